// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// Query names accepted by Query.
const (
	QueryOverdue  = "overdue"
	QueryUpcoming = "upcoming"
	QueryBlocked  = "blocked"
	QueryPriority = "priority"
)

// supportedQueries stores every query name in canonical order.
var supportedQueries = []string{QueryOverdue, QueryUpcoming, QueryBlocked, QueryPriority}

// SupportedQueries returns all canonical query names.
func SupportedQueries() []string {
	return append([]string(nil), supportedQueries...)
}

// ItemView is one item plus the collection that currently holds it.
type ItemView struct {
	domain.ScheduleItem
	Collection domain.Collection `json:"collection"`
	Status     string            `json:"status"`
}

// ListItemsRequest selects one collection; empty means active.
type ListItemsRequest struct {
	Collection string
}

// PostponeItemRequest captures input for postponing one item.
type PostponeItemRequest struct {
	ID             string `json:"id"`
	NewDate        string `json:"new_date"`
	Reason         string `json:"reason,omitempty"`
	ReasonCategory string `json:"reason_category,omitempty"`
	Impact         string `json:"impact,omitempty"`
}

// QueryRequest selects one read-only query.
type QueryRequest struct {
	Name     string
	Days     int
	Priority string
}

// ScheduleService is the engine surface both transports serve.
type ScheduleService interface {
	CreateItem(context.Context, domain.ScheduleItemDraft) (domain.ScheduleItem, error)
	GetItem(context.Context, string) (ItemView, error)
	ListItems(context.Context, ListItemsRequest) ([]domain.ScheduleItem, error)
	UpdateItem(context.Context, string, app.ItemPatch) (domain.ScheduleItem, error)
	StartItem(context.Context, string) (domain.ScheduleItem, error)
	CompleteItem(context.Context, string) (app.CompletionResult, error)
	PostponeItem(context.Context, PostponeItemRequest) (domain.ScheduleItem, error)
	DeleteItem(context.Context, string) error
	RestoreItem(context.Context, string) (domain.ScheduleItem, error)
	RestoreCompletedItem(context.Context, string) (domain.ScheduleItem, error)
	ItemConflicts(context.Context, string) ([]domain.Conflict, error)
	Query(context.Context, QueryRequest) ([]domain.ScheduleItem, error)
	Metrics(context.Context) (domain.PerformanceMetrics, error)
}
