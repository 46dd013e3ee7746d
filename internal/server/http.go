package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tasksage/tasksage/internal/auth"
	"github.com/tasksage/tasksage/internal/instrumentation"
	"github.com/tasksage/tasksage/internal/logging"
	"github.com/tasksage/tasksage/internal/store"
)

// Chatter runs one assistant chat turn.
type Chatter interface {
	Chat(ctx context.Context, userID, message string) (string, error)
}

// SubtaskSuggester proposes subtasks for a new task. Implementations
// never fail; they return an empty slice instead.
type SubtaskSuggester interface {
	Suggest(ctx context.Context, title, description string) []string
}

// Handler serves the task management API.
type Handler struct {
	issuer    *auth.Issuer
	users     *store.UserRepo
	tasks     *store.TaskRepo
	chatter   Chatter
	suggester SubtaskSuggester
	health    *HealthChecker
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// Config collects the dependencies of the HTTP handler. Chatter and
// Suggester may be nil, in which case the related features degrade.
type Config struct {
	Issuer    *auth.Issuer
	Users     *store.UserRepo
	Tasks     *store.TaskRepo
	Chatter   Chatter
	Suggester SubtaskSuggester
	Health    *HealthChecker
	Logger    *slog.Logger
	Metrics   *instrumentation.Metrics
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		issuer:    cfg.Issuer,
		users:     cfg.Users,
		tasks:     cfg.Tasks,
		chatter:   cfg.Chatter,
		suggester: cfg.Suggester,
		health:    cfg.Health,
		logger:    logging.WithComponent(logger, "server"),
		metrics:   cfg.Metrics,
	}
}

// Router builds the HTTP routing table. Task routes require a bearer
// token; auth and health routes do not.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)

	mux.Handle("GET /tasks", h.requireAuth(http.HandlerFunc(h.handleListTasks)))
	mux.Handle("POST /tasks", h.requireAuth(http.HandlerFunc(h.handleCreateTask)))
	mux.Handle("PUT /tasks/{id}", h.requireAuth(http.HandlerFunc(h.handleUpdateTask)))
	mux.Handle("DELETE /tasks/{id}", h.requireAuth(http.HandlerFunc(h.handleDeleteTask)))
	mux.Handle("POST /tasks/chat", h.requireAuth(http.HandlerFunc(h.handleChat)))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			jsonError(w, http.StatusNotFound, "not found")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"message": "Task Management API is running!"})
	})

	if h.health != nil {
		h.health.RegisterHealthEndpoints(mux)
	}

	return h.withRequestMetrics(mux)
}

// requireAuth resolves the bearer token to a user id and stores it on
// the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			jsonError(w, http.StatusUnauthorized, "Missing or malformed authorization header")
			return
		}

		userID, err := h.issuer.Verify(token)
		if err != nil {
			h.logger.Debug("rejected token", "token", logging.SanitizeToken(token))
			jsonError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, withUserID(r, userID))
	})
}

func (h *Handler) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		// Use the matched route pattern to keep label cardinality low
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}
