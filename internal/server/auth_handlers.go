package server

import (
	"net/http"
	"strings"

	"github.com/tasksage/tasksage/internal/auth"
	"github.com/tasksage/tasksage/internal/logging"
	"github.com/tasksage/tasksage/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if len(req.Password) < 6 {
		jsonError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	existing, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to check existing user", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "Email is already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	user := &store.User{Email: req.Email, PasswordHash: hash}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	h.logger.Info("user registered", logging.UserHash(user.ID))
	jsonResponse(w, http.StatusCreated, authResponse{
		Success: true,
		Message: "User registered successfully",
		Token:   token,
		User:    userView{ID: user.ID, Email: user.Email},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to look up user", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		jsonError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", logging.Err(err))
		jsonError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	h.logger.Info("user logged in", logging.UserHash(user.ID))
	jsonResponse(w, http.StatusOK, authResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    userView{ID: user.ID, Email: user.Email},
	})
}
