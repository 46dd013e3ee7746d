package mcpbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tasksage/tasksage/internal/store"
	"github.com/tasksage/tasksage/internal/tools/tasktools"
)

type fakeLister struct {
	tasks []*store.Task
	err   error
}

func (f *fakeLister) ListByOwner(_ context.Context, _ string) ([]*store.Task, error) {
	return f.tasks, f.err
}

func connectedBridge(t *testing.T, lister tasktools.TaskLister) *Bridge {
	t.Helper()
	srv := tasktools.NewServer("test", lister, nil)
	bridge := New(srv, nil)
	if !bridge.Connect(context.Background()) {
		t.Fatal("Connect() = false, want true")
	}
	t.Cleanup(bridge.Disconnect)
	return bridge
}

func TestBridge_StartsDisconnected(t *testing.T) {
	bridge := New(tasktools.NewServer("test", &fakeLister{}, nil), nil)

	if bridge.IsConnected() {
		t.Error("new bridge must start disconnected")
	}
	if bridge.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", bridge.State())
	}
}

func TestBridge_CallWhileDisconnected(t *testing.T) {
	bridge := New(tasktools.NewServer("test", &fakeLister{}, nil), nil)

	if _, err := bridge.Call(context.Background(), "analyze_tasks", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Call() error = %v, want ErrNotConnected", err)
	}
	if _, err := bridge.ListTools(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ListTools() error = %v, want ErrNotConnected", err)
	}
}

func TestBridge_ConnectAndListTools(t *testing.T) {
	bridge := connectedBridge(t, &fakeLister{})

	if !bridge.IsConnected() {
		t.Fatal("expected connected state")
	}

	tools, err := bridge.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
	}
	if !names["analyze_tasks"] || !names["get_overdue_tasks"] {
		t.Errorf("missing expected tools, got %v", names)
	}
}

func TestBridge_ConnectIdempotent(t *testing.T) {
	bridge := connectedBridge(t, &fakeLister{})

	if !bridge.Connect(context.Background()) {
		t.Error("second Connect() = false, want true")
	}
}

func TestBridge_CallParsesPayload(t *testing.T) {
	now := time.Now()
	bridge := connectedBridge(t, &fakeLister{tasks: []*store.Task{
		{Title: "a", Status: store.StatusCompleted, CreatedAt: now, UpdatedAt: now},
	}})

	payload, err := bridge.Call(context.Background(), "analyze_tasks", map[string]any{"user_id": "u1"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map", payload)
	}
	if total, _ := obj["total_tasks"].(float64); total != 1 {
		t.Errorf("total_tasks = %v, want 1", obj["total_tasks"])
	}
}

func TestBridge_ToolErrorStaysConnected(t *testing.T) {
	bridge := connectedBridge(t, &fakeLister{err: errors.New("db gone")})

	_, err := bridge.Call(context.Background(), "analyze_tasks", map[string]any{"user_id": "u1"})

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want *ToolError", err)
	}
	if toolErr.Tool != "analyze_tasks" {
		t.Errorf("Tool = %q, want analyze_tasks", toolErr.Tool)
	}
	if !bridge.IsConnected() {
		t.Error("payload-level tool failure must not disconnect the bridge")
	}
}

func TestBridge_DisconnectIdempotent(t *testing.T) {
	bridge := connectedBridge(t, &fakeLister{})

	bridge.Disconnect()
	if bridge.IsConnected() {
		t.Fatal("expected disconnected state")
	}
	bridge.Disconnect()

	if _, err := bridge.Call(context.Background(), "analyze_tasks", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Call() after disconnect error = %v, want ErrNotConnected", err)
	}
}
