package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mark3labs/mcp-go/mcp"
)

// fakeTransport replays canned model API responses in order and
// captures every request body.
type fakeTransport struct {
	responses [][]byte
	calls     int
	bodies    [][]byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	f.bodies = append(f.bodies, b)

	if f.calls >= len(f.responses) {
		return nil, errors.New("no more canned responses")
	}
	body := f.responses[f.calls]
	f.calls++

	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newStubCaller(responses ...string) (*fakeTransport, ModelCaller) {
	ft := &fakeTransport{}
	for _, r := range responses {
		ft.responses = append(ft.responses, []byte(r))
	}
	cli := anthropic.NewClient(
		option.WithHTTPClient(&http.Client{Transport: ft}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return ft, &cli.Messages
}

// fakeBridge records tool calls and serves canned results.
type fakeBridge struct {
	connected bool
	tools     []mcp.Tool
	results   map[string]any
	errs      map[string]error
	calls     []string
}

func (f *fakeBridge) IsConnected() bool { return f.connected }

func (f *fakeBridge) ListTools(_ context.Context) ([]mcp.Tool, error) {
	if !f.connected {
		return nil, errors.New("not connected")
	}
	return f.tools, nil
}

func (f *fakeBridge) Call(_ context.Context, name string, _ map[string]any) (any, error) {
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.results[name], nil
}

func testTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "analyze_tasks",
			Description: "Analyze task patterns",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"user_id": map[string]any{"type": "string"}},
				Required:   []string{"user_id"},
			},
		},
		{
			Name:        "get_overdue_tasks",
			Description: "List overdue tasks",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"user_id": map[string]any{"type": "string"}},
				Required:   []string{"user_id"},
			},
		},
	}
}

type capturedRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string `json:"type"`
			Text      string `json:"text,omitempty"`
			ToolUseID string `json:"tool_use_id,omitempty"`
			IsError   bool   `json:"is_error,omitempty"`
		} `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

func decodeRequest(t *testing.T, body []byte) capturedRequest {
	t.Helper()
	var req capturedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal request body: %v\nbody=%s", err, body)
	}
	return req
}

func TestChat_DisconnectedReturnsApology(t *testing.T) {
	ft, caller := newStubCaller()
	bridge := &fakeBridge{connected: false}
	o := NewOrchestrator(caller, bridge, nil)

	answer, err := o.Chat(context.Background(), "u1", "how am I doing?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != ApologyMessage {
		t.Errorf("Chat() = %q, want apology", answer)
	}
	if ft.calls != 0 {
		t.Errorf("model calls = %d, want 0", ft.calls)
	}
}

func TestChat_NoToolUseSingleCall(t *testing.T) {
	ft, caller := newStubCaller(`{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "You have "},
			{"type": "text", "text": "no overdue tasks."}
		]
	}`)
	bridge := &fakeBridge{connected: true, tools: testTools()}
	o := NewOrchestrator(caller, bridge, nil)

	answer, err := o.Chat(context.Background(), "u1", "status?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "You have no overdue tasks." {
		t.Errorf("Chat() = %q, want concatenated text", answer)
	}
	if ft.calls != 1 {
		t.Errorf("model calls = %d, want 1", ft.calls)
	}
	if len(bridge.calls) != 0 {
		t.Errorf("tool calls = %v, want none", bridge.calls)
	}

	// Tools must be declared on the first call
	req := decodeRequest(t, ft.bodies[0])
	if len(req.Tools) != 2 {
		t.Errorf("declared tools = %d, want 2", len(req.Tools))
	}
}

func TestChat_ToolUseTwoCallsOrderedResults(t *testing.T) {
	ft, caller := newStubCaller(`{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "call_1", "name": "analyze_tasks", "input": {"user_id": "u1"}},
			{"type": "tool_use", "id": "call_2", "name": "get_overdue_tasks", "input": {"user_id": "u1"}}
		]
	}`, `{
		"role": "assistant",
		"content": [{"type": "text", "text": "You completed 5 tasks this week."}]
	}`)
	bridge := &fakeBridge{
		connected: true,
		tools:     testTools(),
		results: map[string]any{
			"analyze_tasks":     map[string]any{"total_tasks": 5},
			"get_overdue_tasks": map[string]any{"count": 0},
		},
	}
	o := NewOrchestrator(caller, bridge, nil)

	answer, err := o.Chat(context.Background(), "u1", "how productive was I?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "You completed 5 tasks this week." {
		t.Errorf("Chat() = %q", answer)
	}
	if ft.calls != 2 {
		t.Fatalf("model calls = %d, want 2", ft.calls)
	}
	if len(bridge.calls) != 2 || bridge.calls[0] != "analyze_tasks" || bridge.calls[1] != "get_overdue_tasks" {
		t.Errorf("tool calls = %v, want ordered pair", bridge.calls)
	}

	// The second request must replay a tool_result for every
	// invocation id, in invocation order.
	req := decodeRequest(t, ft.bodies[1])
	if len(req.Messages) != 3 {
		t.Fatalf("second call messages = %d, want 3", len(req.Messages))
	}
	last := req.Messages[2]
	if last.Role != "user" {
		t.Errorf("final message role = %q, want user", last.Role)
	}
	if len(last.Content) != 2 || last.Content[0].ToolUseID != "call_1" || last.Content[1].ToolUseID != "call_2" {
		t.Errorf("tool results = %+v, want call_1 then call_2", last.Content)
	}
}

func TestChat_ToolFaultDoesNotAbortSiblings(t *testing.T) {
	ft, caller := newStubCaller(`{
		"role": "assistant",
		"content": [
			{"type": "tool_use", "id": "call_1", "name": "analyze_tasks", "input": {"user_id": "u1"}},
			{"type": "tool_use", "id": "call_2", "name": "get_overdue_tasks", "input": {"user_id": "u1"}}
		]
	}`, `{
		"role": "assistant",
		"content": [{"type": "text", "text": "partial answer"}]
	}`)
	bridge := &fakeBridge{
		connected: true,
		tools:     testTools(),
		results:   map[string]any{"get_overdue_tasks": map[string]any{"count": 1}},
		errs:      map[string]error{"analyze_tasks": errors.New("boom")},
	}
	o := NewOrchestrator(caller, bridge, nil)

	answer, err := o.Chat(context.Background(), "u1", "check everything")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "partial answer" {
		t.Errorf("Chat() = %q", answer)
	}
	if len(bridge.calls) != 2 {
		t.Fatalf("tool calls = %v, want both siblings", bridge.calls)
	}

	req := decodeRequest(t, ft.bodies[1])
	last := req.Messages[len(req.Messages)-1]
	if len(last.Content) != 2 {
		t.Fatalf("tool results = %d, want 2", len(last.Content))
	}
	if !last.Content[0].IsError {
		t.Error("expected first result to be error-shaped")
	}
	if last.Content[1].IsError {
		t.Error("expected second result to succeed")
	}
}

func TestChat_UnknownToolNameBecomesErrorResult(t *testing.T) {
	ft, caller := newStubCaller(`{
		"role": "assistant",
		"content": [{"type": "tool_use", "id": "call_1", "name": "drop_database", "input": {}}]
	}`, `{
		"role": "assistant",
		"content": [{"type": "text", "text": "I could not do that."}]
	}`)
	bridge := &fakeBridge{connected: true, tools: testTools()}
	o := NewOrchestrator(caller, bridge, nil)

	answer, err := o.Chat(context.Background(), "u1", "do something weird")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "I could not do that." {
		t.Errorf("Chat() = %q", answer)
	}
	// The bridge must never see a name outside the descriptor list
	if len(bridge.calls) != 0 {
		t.Errorf("tool calls = %v, want none", bridge.calls)
	}

	req := decodeRequest(t, ft.bodies[1])
	last := req.Messages[len(req.Messages)-1]
	if len(last.Content) != 1 || !last.Content[0].IsError {
		t.Errorf("expected one error-shaped tool result, got %+v", last.Content)
	}
}

func TestChat_ModelFaultPropagates(t *testing.T) {
	_, caller := newStubCaller() // transport errors on first call
	bridge := &fakeBridge{connected: true, tools: testTools()}
	o := NewOrchestrator(caller, bridge, nil)

	if _, err := o.Chat(context.Background(), "u1", "hello"); err == nil {
		t.Fatal("expected model fault to propagate")
	}
}
