package tasktools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tasksage/tasksage/internal/instrumentation"
	"github.com/tasksage/tasksage/internal/store"
)

// ServerName identifies the tool server during the protocol handshake.
const ServerName = "tasksage-tools"

// TaskLister is the slice of the task repository the tools need. Tools
// only ever read task data.
type TaskLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*store.Task, error)
}

// NewServer builds the MCP server exposing the task analysis tools.
// metrics may be nil.
func NewServer(version string, lister TaskLister, metrics *instrumentation.Metrics) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	RegisterTaskTools(s, lister, metrics)
	return s
}

// RegisterTaskTools registers the analysis tools with the MCP server.
func RegisterTaskTools(s *mcpserver.MCPServer, lister TaskLister, metrics *instrumentation.Metrics) {
	analyzeTool := mcp.NewTool("analyze_tasks",
		mcp.WithDescription("Analyze user task patterns, completion rates, and provide productivity insights"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID to analyze tasks for"),
		),
	)

	s.AddTool(analyzeTool, instrumented("analyze_tasks", metrics, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		userID, ok := args["user_id"].(string)
		if !ok || userID == "" {
			return mcp.NewToolResultError("user_id is required"), nil
		}

		tasks, err := lister.ListByOwner(ctx, userID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze tasks: %v", err)), nil
		}

		insights := computeInsights(tasks, time.Now())
		result, _ := json.MarshalIndent(insights, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))

	overdueTool := mcp.NewTool("get_overdue_tasks",
		mcp.WithDescription("Get list of overdue tasks that need immediate attention"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID to check for overdue tasks"),
		),
	)

	s.AddTool(overdueTool, instrumented("get_overdue_tasks", metrics, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		userID, ok := args["user_id"].(string)
		if !ok || userID == "" {
			return mcp.NewToolResultError("user_id is required"), nil
		}

		tasks, err := lister.ListByOwner(ctx, userID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list overdue tasks: %v", err)), nil
		}

		report := computeOverdue(tasks, time.Now())
		result, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}))
}

// instrumented wraps a tool handler with a span and invocation metrics.
func instrumented(
	toolName string,
	metrics *instrumentation.Metrics,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		metrics.RecordToolInvocation(ctx, toolName, status, duration)

		return result, err
	}
}
