package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tasksage/tasksage/internal/instrumentation"
	"github.com/tasksage/tasksage/internal/logging"
)

const (
	suggestMaxTokens  = 500
	maxSuggestions    = 3
	suggestPromptTmpl = `Given this task: "%s"%s, suggest 3 specific, actionable subtasks that would help complete it. Respond with only a JSON array of strings, no other text.

Example format: ["subtask 1", "subtask 2", "subtask 3"]`
)

// Suggester is a stateless one-shot use of the model API that proposes
// subtasks for a new task. It degrades to an empty list on every
// fault: suggestions are an enhancement, never a requirement.
type Suggester struct {
	caller  ModelCaller
	model   anthropic.Model
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	timeout time.Duration
}

func NewSuggester(caller ModelCaller, logger *slog.Logger, opts ...Option) *Suggester {
	// Reuse the orchestrator option set for the shared knobs.
	o := &Orchestrator{
		model:        DefaultModel,
		modelTimeout: defaultModelTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{
		caller:  caller,
		model:   o.model,
		logger:  logging.WithComponent(logger, "suggester"),
		metrics: o.metrics,
		timeout: o.modelTimeout,
	}
}

// Suggest returns up to three subtask suggestions for the given task
// title. It never returns an error.
func (s *Suggester) Suggest(ctx context.Context, title, description string) []string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	extra := ""
	if description != "" {
		extra = fmt.Sprintf(" - %s", description)
	}
	prompt := fmt.Sprintf(suggestPromptTmpl, title, extra)

	msg, err := s.caller.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: suggestMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		s.logger.Warn("subtask suggestion model call failed", logging.Err(err))
		s.metrics.RecordSuggestion(ctx, instrumentation.StatusError)
		return []string{}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(v.Text)
		}
	}

	subtasks, err := parseSuggestions(text.String())
	if err != nil {
		s.logger.Warn("failed to parse subtask suggestions", logging.Err(err))
		s.metrics.RecordSuggestion(ctx, instrumentation.StatusError)
		return []string{}
	}

	s.metrics.RecordSuggestion(ctx, instrumentation.StatusSuccess)
	return subtasks
}

// parseSuggestions extracts the first JSON array from the model's
// output, tolerating surrounding prose or code fences.
func parseSuggestions(text string) ([]string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var subtasks []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &subtasks); err != nil {
		return nil, fmt.Errorf("malformed suggestion array: %w", err)
	}
	if len(subtasks) > maxSuggestions {
		subtasks = subtasks[:maxSuggestions]
	}
	return subtasks, nil
}
