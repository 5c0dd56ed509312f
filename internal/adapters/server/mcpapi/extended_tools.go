package mcpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/cadence/internal/adapters/server/common"
	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// itemArgs is the shared argument shape of create and update tools.
// Dates travel as strings so malformed input reports invalid_request instead of a bind failure.
type itemArgs struct {
	Title             *string   `json:"title"`
	Description       *string   `json:"description"`
	ScheduleType      *string   `json:"schedule_type"`
	Type              *string   `json:"type"`
	Tags              *[]string `json:"tags"`
	Notes             *string   `json:"notes"`
	Location          *string   `json:"location"`
	StartDate         *string   `json:"start_date"`
	EndDate           *string   `json:"end_date"`
	Duration          *int      `json:"duration"`
	EstimatedDuration *int      `json:"estimated_duration"`
	Reminder          *int      `json:"reminder"`
	Priority          *string   `json:"priority"`
	Recurrence        *string   `json:"recurrence"`
	BlockedBy         *[]string `json:"blocked_by"`
	MaxPostponements  *int      `json:"max_postponements"`
}

// patch converts tool arguments into an item patch.
func (a itemArgs) patch() (app.ItemPatch, error) {
	p := app.ItemPatch{
		Title:             a.Title,
		Description:       a.Description,
		Tags:              a.Tags,
		Notes:             a.Notes,
		Location:          a.Location,
		Duration:          a.Duration,
		EstimatedDuration: a.EstimatedDuration,
		Reminder:          a.Reminder,
		BlockedBy:         a.BlockedBy,
		MaxPostponements:  a.MaxPostponements,
	}
	var err error
	if p.StartDate, err = optionalTime("start_date", a.StartDate); err != nil {
		return app.ItemPatch{}, err
	}
	if p.EndDate, err = optionalTime("end_date", a.EndDate); err != nil {
		return app.ItemPatch{}, err
	}
	if a.ScheduleType != nil {
		v := domain.ScheduleType(*a.ScheduleType)
		p.ScheduleType = &v
	}
	if a.Type != nil {
		v := domain.ItemType(*a.Type)
		p.Type = &v
	}
	if a.Priority != nil {
		v := domain.Priority(*a.Priority)
		p.Priority = &v
	}
	if a.Recurrence != nil {
		v := domain.Recurrence(*a.Recurrence)
		p.Recurrence = &v
	}
	return p, nil
}

// draft converts tool arguments into a creation draft. Enum values are normalized by the engine.
func (a itemArgs) draft() (domain.ScheduleItemDraft, error) {
	p, err := a.patch()
	if err != nil {
		return domain.ScheduleItemDraft{}, err
	}
	var d domain.ScheduleItemDraft
	d.Title = deref(p.Title)
	d.Description = deref(p.Description)
	d.Notes = deref(p.Notes)
	d.Location = deref(p.Location)
	d.Tags = deref(p.Tags)
	d.BlockedBy = deref(p.BlockedBy)
	d.StartDate = deref(p.StartDate)
	d.EndDate = deref(p.EndDate)
	d.Duration = deref(p.Duration)
	d.EstimatedDuration = deref(p.EstimatedDuration)
	d.Reminder = deref(p.Reminder)
	d.MaxPostponements = p.MaxPostponements
	d.ScheduleType = deref(p.ScheduleType)
	d.Type = deref(p.Type)
	d.Priority = deref(p.Priority)
	d.Recurrence = deref(p.Recurrence)
	return d, nil
}

// deref returns *p, or the zero value when p is nil.
func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// optionalTime parses an RFC3339 tool argument when present.
func optionalTime(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	ts, err := common.ParseTime(*raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &ts, nil
}

// itemFieldOptions lists the optional item fields shared by create and update.
func itemFieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("description", mcp.Description("Longer description (markdown)")),
		mcp.WithString("schedule_type", mcp.Description("task or event"), mcp.Enum("task", "event")),
		mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
		mcp.WithString("notes", mcp.Description("Notes (markdown)")),
		mcp.WithString("location", mcp.Description("Location; required for events")),
		mcp.WithString("end_date", mcp.Description("End date (RFC3339); derived from duration when omitted")),
		mcp.WithNumber("duration", mcp.Description("Duration in minutes")),
		mcp.WithNumber("estimated_duration", mcp.Description("Estimated duration in minutes")),
		mcp.WithNumber("reminder", mcp.Description("Minutes before start to remind")),
		mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum("low", "medium", "high", "critical")),
		mcp.WithString("recurrence", mcp.Description("Recurrence"), mcp.Enum("none", "daily", "weekly", "biweekly", "monthly")),
		mcp.WithArray("blocked_by", mcp.Description("Ids of items that must complete first"), mcp.WithStringItems()),
		mcp.WithNumber("max_postponements", mcp.Description("How many times the item may be postponed")),
	}
}

// registerEditTools registers create, update, and list tools.
func registerEditTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	createOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Create one schedule item."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Item type"), mcp.Enum("work", "personal", "health", "learning", "social", "urgent")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date (RFC3339)")),
	}, itemFieldOptions()...)
	srv.AddTool(
		mcp.NewTool("cadence.create_item", createOpts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args itemArgs
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			draft, err := args.draft()
			if err != nil {
				return toolResultFromError(err), nil
			}
			item, err := service.CreateItem(ctx, draft)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode create_item result: %w", err)
			}
			return result, nil
		},
	)

	updateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Update fields of one item; omitted fields stay unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item identifier")),
		mcp.WithString("title", mcp.Description("Item title")),
		mcp.WithString("type", mcp.Description("Item type"), mcp.Enum("work", "personal", "health", "learning", "social", "urgent")),
		mcp.WithString("start_date", mcp.Description("Start date (RFC3339)")),
	}, itemFieldOptions()...)
	srv.AddTool(
		mcp.NewTool("cadence.update_item", updateOpts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ID string `json:"id"`
				itemArgs
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			patch, err := args.patch()
			if err != nil {
				return toolResultFromError(err), nil
			}
			item, err := service.UpdateItem(ctx, args.ID, patch)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode update_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"cadence.list_items",
			mcp.WithDescription("List items of one collection in creation order."),
			mcp.WithString("collection", mcp.Description("Collection"), mcp.Enum("active", "deleted", "completed")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := service.ListItems(ctx, common.ListItemsRequest{Collection: req.GetString("collection", "")})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": items})
			if err != nil {
				return nil, fmt.Errorf("encode list_items result: %w", err)
			}
			return result, nil
		},
	)
}

// registerQueryTools registers the read-only query and metrics tools.
func registerQueryTools(srv *mcpserver.MCPServer, service common.ScheduleService) {
	srv.AddTool(
		mcp.NewTool(
			"cadence.query",
			mcp.WithDescription("Run one read-only query over active items."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Query name"), mcp.Enum(common.SupportedQueries()...)),
			mcp.WithNumber("days", mcp.Description("Window for the upcoming query")),
			mcp.WithString("priority", mcp.Description("Priority for the priority query"), mcp.Enum("low", "medium", "high", "critical")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			items, err := service.Query(ctx, common.QueryRequest{
				Name:     name,
				Days:     req.GetInt("days", 0),
				Priority: req.GetString("priority", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": items})
			if err != nil {
				return nil, fmt.Errorf("encode query result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"cadence.metrics",
			mcp.WithDescription("Return completion rate, streak, average delay, and productive hours."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			metrics, err := service.Metrics(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(metrics)
			if err != nil {
				return nil, fmt.Errorf("encode metrics result: %w", err)
			}
			return result, nil
		},
	)
}
