package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tasksage/tasksage/internal/instrumentation"
	"github.com/tasksage/tasksage/internal/logging"
)

// ApologyMessage is returned for chat turns while the tool bridge is
// down; no model call is made on this path.
const ApologyMessage = "I'm sorry, the assistant is temporarily unavailable. Please try again later."

const (
	DefaultModel         = anthropic.ModelClaude3_5HaikuLatest
	defaultChatMaxTokens = 1024
	defaultModelTimeout  = 60 * time.Second
	defaultToolTimeout   = 15 * time.Second
)

// ModelCaller is the single operation the orchestrator needs from the
// model API; anthropic.Client.Messages satisfies it.
type ModelCaller interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ToolBridge is the slice of the bridge the orchestrator uses.
type ToolBridge interface {
	IsConnected() bool
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// Orchestrator runs one chat turn: offer tools to the model, execute
// the tools it requests, and return its final answer.
type Orchestrator struct {
	caller  ModelCaller
	bridge  ToolBridge
	model   anthropic.Model
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	maxTokens    int64
	modelTimeout time.Duration
	toolTimeout  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithModel(model anthropic.Model) Option {
	return func(o *Orchestrator) { o.model = model }
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithModelTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.modelTimeout = d }
}

func WithToolTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.toolTimeout = d }
}

func NewOrchestrator(caller ModelCaller, bridge ToolBridge, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		caller:       caller,
		bridge:       bridge,
		model:        DefaultModel,
		logger:       logging.WithComponent(logger, "assistant"),
		maxTokens:    defaultChatMaxTokens,
		modelTimeout: defaultModelTimeout,
		toolTimeout:  defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Chat runs one orchestration turn for the given user. Model API
// faults propagate to the caller; tool faults are folded into
// error-shaped tool results so the turn still completes.
func (o *Orchestrator) Chat(ctx context.Context, userID, message string) (string, error) {
	ctx, span := instrumentation.StartSpan(ctx, "assistant.chat")
	defer span.End()

	log := o.logger.With(logging.UserHash(userID))

	if !o.bridge.IsConnected() {
		log.Warn("chat requested while tool bridge disconnected")
		o.metrics.RecordChatTurn(ctx, instrumentation.StatusError)
		return ApologyMessage, nil
	}

	tools, err := o.bridge.ListTools(ctx)
	if err != nil {
		o.metrics.RecordChatTurn(ctx, instrumentation.StatusError)
		return "", fmt.Errorf("failed to fetch tool descriptors: %w", err)
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}

	userMessage := anthropic.NewUserMessage(anthropic.NewTextBlock(
		fmt.Sprintf("User ID: %s\n\n%s", userID, message),
	))

	first, err := o.callModel(ctx, anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  []anthropic.MessageParam{userMessage},
		Tools:     declareTools(tools),
	})
	if err != nil {
		o.metrics.RecordChatTurn(ctx, instrumentation.StatusError)
		return "", err
	}

	var answer strings.Builder
	toolResults := []anthropic.ContentBlockParamUnion{}
	for _, block := range first.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			answer.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			toolResults = append(toolResults, o.execTool(ctx, log, known, v))
		}
	}

	if len(toolResults) == 0 {
		o.metrics.RecordChatTurn(ctx, instrumentation.StatusSuccess)
		return answer.String(), nil
	}

	// Replay the whole exchange plus every tool result, in invocation
	// order, and take the model's final text answer.
	second, err := o.callModel(ctx, anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []anthropic.MessageParam{
			userMessage,
			first.ToParam(),
			anthropic.NewUserMessage(toolResults...),
		},
	})
	if err != nil {
		o.metrics.RecordChatTurn(ctx, instrumentation.StatusError)
		return "", err
	}

	o.metrics.RecordChatTurn(ctx, instrumentation.StatusSuccess)
	for _, block := range second.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			return v.Text, nil
		}
	}
	return "", nil
}

func (o *Orchestrator) callModel(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()

	ctx, span := instrumentation.StartModelSpan(ctx, string(params.Model))
	defer span.End()

	start := time.Now()
	msg, err := o.caller.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		o.metrics.RecordModelCall(ctx, string(params.Model), instrumentation.StatusError, duration)
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	instrumentation.SetSpanSuccess(span)
	o.metrics.RecordModelCall(ctx, string(params.Model), instrumentation.StatusSuccess, duration)
	return msg, nil
}

// execTool runs one model-requested tool invocation. Every failure
// becomes an error-shaped result for that invocation id; siblings are
// unaffected.
func (o *Orchestrator) execTool(ctx context.Context, log *slog.Logger, known map[string]bool, use anthropic.ToolUseBlock) anthropic.ContentBlockParamUnion {
	if !known[use.Name] {
		log.Warn("model requested unknown tool", logging.Tool(use.Name))
		return anthropic.NewToolResultBlock(use.ID, fmt.Sprintf("Unknown tool: %s", use.Name), true)
	}

	var args map[string]any
	if raw := use.JSON.Input.Raw(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return anthropic.NewToolResultBlock(use.ID, fmt.Sprintf("invalid tool arguments: %v", err), true)
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	payload, err := o.bridge.Call(toolCtx, use.Name, args)
	if err != nil {
		log.Warn("tool invocation failed", logging.Tool(use.Name), logging.Err(err))
		return anthropic.NewToolResultBlock(use.ID, err.Error(), true)
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return anthropic.NewToolResultBlock(use.ID, fmt.Sprintf("failed to serialize tool result: %v", err), true)
	}
	return anthropic.NewToolResultBlock(use.ID, string(serialized), false)
}

// declareTools maps MCP tool descriptors into the model API's tool
// declaration shape.
func declareTools(tools []mcp.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.InputSchema.Properties,
				Required:   t.InputSchema.Required,
			},
		}})
	}
	return out
}
