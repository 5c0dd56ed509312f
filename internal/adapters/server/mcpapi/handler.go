// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/cadence/internal/adapters/server/common"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the schedule tools.
func NewHandler(cfg Config, service common.ScheduleService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("schedule service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerLifecycleTools(mcpSrv, service)
	registerEditTools(mcpSrv, service)
	registerQueryTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "cadence"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerLifecycleTools registers the id-addressed lifecycle transitions.
func registerLifecycleTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	idTool := func(name, description string, call func(context.Context, string) (any, error)) {
		srv.AddTool(
			mcp.NewTool(
				name,
				mcp.WithDescription(description),
				mcp.WithString("id", mcp.Required(), mcp.Description("Item identifier")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("id")
				if err != nil {
					return invalidRequestToolResult(err), nil
				}
				out, err := call(ctx, id)
				if err != nil {
					return toolResultFromError(err), nil
				}
				result, err := mcp.NewToolResultJSON(out)
				if err != nil {
					return nil, fmt.Errorf("encode %s result: %w", name, err)
				}
				return result, nil
			},
		)
	}

	idTool("cadence.get_item", "Return one item from any collection with its status.", func(ctx context.Context, id string) (any, error) {
		return service.GetItem(ctx, id)
	})
	idTool("cadence.start_item", "Mark one item in progress.", func(ctx context.Context, id string) (any, error) {
		return service.StartItem(ctx, id)
	})
	idTool("cadence.complete_item", "Complete one item; recurring items spawn their next occurrence.", func(ctx context.Context, id string) (any, error) {
		return service.CompleteItem(ctx, id)
	})
	idTool("cadence.delete_item", "Soft-delete one item. Deleting twice is a no-op.", func(ctx context.Context, id string) (any, error) {
		if err := service.DeleteItem(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "deleted": true}, nil
	})
	idTool("cadence.restore_item", "Restore one soft-deleted item.", func(ctx context.Context, id string) (any, error) {
		return service.RestoreItem(ctx, id)
	})
	idTool("cadence.restore_completed_item", "Reopen one completed item.", func(ctx context.Context, id string) (any, error) {
		return service.RestoreCompletedItem(ctx, id)
	})
	idTool("cadence.item_conflicts", "List active items whose time range overlaps one item.", func(ctx context.Context, id string) (any, error) {
		conflicts, err := service.ItemConflicts(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"conflicts": conflicts}, nil
	})

	srv.AddTool(
		mcp.NewTool(
			"cadence.postpone_item",
			mcp.WithDescription("Move one item to a new start date, keeping its duration, and record why."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithString("new_date", mcp.Required(), mcp.Description("New start date (RFC3339)")),
			mcp.WithString("reason", mcp.Description("Free-text reason")),
			mcp.WithString("reason_category", mcp.Description("Reason category"), mcp.Enum("unavailable", "conflict", "emergency", "other")),
			mcp.WithString("impact", mcp.Description("Impact of the delay"), mcp.Enum("low", "medium", "high")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.PostponeItemRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			item, err := service.PostponeItem(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode postpone_item result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	info := common.DescribeError(err)
	return mcp.NewToolResultError(info.Code + ": " + info.Message)
}

// invalidRequestToolResult reports malformed tool arguments.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
