package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tasksage/tasksage/internal/logging"
)

// ErrNotConnected is returned by ListTools and Call while the bridge
// session is down. Callers check IsConnected or handle this error.
var ErrNotConnected = errors.New("tool bridge not connected")

// State is the bridge session state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// ToolError is a payload-level tool failure: the protocol call itself
// succeeded but the tool reported an error. It must not be treated as
// a connection fault.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// Bridge manages the session to the in-process MCP tool server. The
// transport handles one request at a time, so calls are serialized
// behind a mutex.
type Bridge struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger

	mu     sync.Mutex
	client *client.Client
	state  State
}

func New(srv *mcpserver.MCPServer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		srv:    srv,
		logger: logging.WithComponent(logger, "mcpbridge"),
		state:  StateDisconnected,
	}
}

// Connect establishes the session and performs the protocol handshake.
// It returns false and leaves the bridge disconnected on any failure;
// it never panics or propagates the underlying error.
func (b *Bridge) Connect(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateConnected {
		return true
	}

	c, err := client.NewInProcessClient(b.srv)
	if err != nil {
		b.logger.Error("failed to create tool client", logging.Err(err))
		return false
	}

	if err := c.Start(ctx); err != nil {
		b.logger.Error("failed to start tool client", logging.Err(err))
		_ = c.Close()
		return false
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "tasksage-client",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		b.logger.Error("tool server handshake failed", logging.Err(err))
		_ = c.Close()
		return false
	}

	b.client = c
	b.state = StateConnected

	// Eagerly fetch the tool list for startup diagnostics
	if tools, err := b.listToolsLocked(ctx); err == nil {
		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
		}
		b.logger.Info("connected to tool server", "tools", names)
	} else {
		b.logger.Warn("connected but failed to list tools", logging.Err(err))
	}

	return true
}

// ListTools returns the descriptors advertised by the tool server.
func (b *Bridge) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateConnected {
		return nil, ErrNotConnected
	}
	return b.listToolsLocked(ctx)
}

func (b *Bridge) listToolsLocked(ctx context.Context) ([]mcp.Tool, error) {
	res, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return res.Tools, nil
}

// Call invokes the named tool and parses its text payload as JSON.
// A tool-reported failure comes back as *ToolError; a malformed
// payload is surfaced as a parse error, not swallowed.
func (b *Bridge) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateConnected {
		return nil, ErrNotConnected
	}

	res, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s failed: %w", name, err)
	}

	text, err := firstText(res.Content)
	if err != nil {
		return nil, fmt.Errorf("tool %s returned no text payload: %w", name, err)
	}

	if res.IsError {
		return nil, &ToolError{Tool: name, Message: text}
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload from tool %s: %w", name, err)
	}
	return payload, nil
}

// IsConnected reports the current session state.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateConnected
}

// State returns the current session state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Disconnect tears down the session. Safe to call repeatedly.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateConnected {
		return
	}
	if err := b.client.Close(); err != nil {
		b.logger.Warn("error closing tool client", logging.Err(err))
	}
	b.client = nil
	b.state = StateDisconnected
	b.logger.Info("disconnected from tool server")
}

func firstText(content []mcp.Content) (string, error) {
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text, nil
		}
	}
	return "", errors.New("no text content in result")
}
