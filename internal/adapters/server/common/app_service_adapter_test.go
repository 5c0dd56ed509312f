package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/evanschultz/cadence/internal/adapters/storage/memory"
	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// newTestAdapter wires an adapter over a memory-backed service with a fixed clock.
func newTestAdapter(t *testing.T) (*AppServiceAdapter, time.Time) {
	t.Helper()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	next := 0
	svc := app.NewService(memory.New(), nil, func() string {
		next++
		return fmt.Sprintf("i%d", next)
	}, func() time.Time { return now }, app.ServiceConfig{})
	return NewAppServiceAdapter(svc), now
}

// TestAdapterPostponeParsesInput verifies timestamp and enum parsing for postpone requests.
func TestAdapterPostponeParsesInput(t *testing.T) {
	a, now := newTestAdapter(t)
	ctx := context.Background()
	item, err := a.CreateItem(ctx, domain.ScheduleItemDraft{Title: "Plan", Type: domain.ItemTypeWork, StartDate: now.Add(time.Hour), Duration: 30})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	got, err := a.PostponeItem(ctx, PostponeItemRequest{
		ID:             item.ID,
		NewDate:        now.Add(3 * time.Hour).Format(time.RFC3339),
		ReasonCategory: "Conflict",
		Impact:         "high",
	})
	if err != nil {
		t.Fatalf("PostponeItem() error = %v", err)
	}
	if len(got.Postponements) != 1 || got.Postponements[0].ReasonCategory != domain.ReasonConflict || got.Postponements[0].Impact != domain.ImpactHigh {
		t.Fatalf("unexpected postponements %#v", got.Postponements)
	}

	for name, req := range map[string]PostponeItemRequest{
		"missing date": {ID: item.ID},
		"bad date":     {ID: item.ID, NewDate: "tomorrow"},
		"bad category": {ID: item.ID, NewDate: now.Format(time.RFC3339), ReasonCategory: "aliens"},
		"missing id":   {NewDate: now.Format(time.RFC3339)},
	} {
		if _, err := a.PostponeItem(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

// TestAdapterMapsNotFound verifies missing ids surface the transport sentinel.
func TestAdapterMapsNotFound(t *testing.T) {
	a, _ := newTestAdapter(t)
	_, err := a.StartItem(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected both not-found sentinels, got %v", err)
	}
	if info := DescribeError(err); info.Code != CodeNotFound {
		t.Fatalf("code = %q, want %q", info.Code, CodeNotFound)
	}
}

// TestAdapterQueries verifies query routing and input validation.
func TestAdapterQueries(t *testing.T) {
	a, now := newTestAdapter(t)
	ctx := context.Background()
	if _, err := a.CreateItem(ctx, domain.ScheduleItemDraft{Title: "Late", Type: domain.ItemTypeWork, StartDate: now.Add(-2 * time.Hour), Duration: 30, Priority: domain.PriorityHigh}); err != nil {
		t.Fatalf("CreateItem(late) error = %v", err)
	}
	if _, err := a.CreateItem(ctx, domain.ScheduleItemDraft{Title: "Soon", Type: domain.ItemTypeWork, StartDate: now.Add(24 * time.Hour), Duration: 30}); err != nil {
		t.Fatalf("CreateItem(soon) error = %v", err)
	}

	overdue, err := a.Query(ctx, QueryRequest{Name: "overdue"})
	if err != nil || len(overdue) != 1 || overdue[0].Title != "Late" {
		t.Fatalf("Query(overdue) = %#v, %v", overdue, err)
	}
	upcoming, err := a.Query(ctx, QueryRequest{Name: "upcoming", Days: 2})
	if err != nil || len(upcoming) != 1 || upcoming[0].Title != "Soon" {
		t.Fatalf("Query(upcoming) = %#v, %v", upcoming, err)
	}
	high, err := a.Query(ctx, QueryRequest{Name: "priority", Priority: "HIGH"})
	if err != nil || len(high) != 1 {
		t.Fatalf("Query(priority) = %#v, %v", high, err)
	}
	for _, req := range []QueryRequest{{Name: "priority", Priority: "urgent"}, {Name: "someday"}, {Name: "upcoming", Days: -1}} {
		if _, err := a.Query(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("Query(%#v) expected ErrInvalidRequest, got %v", req, err)
		}
	}
	if _, err := a.ListItems(ctx, ListItemsRequest{Collection: "archive"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ListItems(archive) expected ErrInvalidRequest, got %v", err)
	}
}

// TestDescribeError verifies code and context classification for domain failures.
func TestDescribeError(t *testing.T) {
	cases := []struct {
		err  error
		code string
		key  string
	}{
		{err: domain.NewValidationError([]domain.Violation{{Field: "title", Message: "required"}}), code: CodeValidationFailed, key: "violations"},
		{err: fmt.Errorf("postpone: %w", &domain.PostponementLimitError{ItemID: "a", Count: 3, Max: 3}), code: CodePostponementLimit, key: "max"},
		{err: &domain.BlockedError{ItemID: "b", BlockerIDs: []string{"a"}}, code: CodeBlocked, key: "blocker_ids"},
		{err: domain.ErrAlreadyCompleted, code: CodeAlreadyCompleted},
		{err: domain.ErrInvalidTransition, code: CodeInvalidTransition},
		{err: app.ErrInvalidSnapshot, code: CodeInvalidRequest},
		{err: errors.New("disk on fire"), code: CodeInternal},
	}
	for _, tc := range cases {
		info := DescribeError(tc.err)
		if info.Code != tc.code {
			t.Fatalf("DescribeError(%v) code = %q, want %q", tc.err, info.Code, tc.code)
		}
		if tc.key != "" {
			if _, ok := info.Context[tc.key]; !ok {
				t.Fatalf("DescribeError(%v) context missing %q: %#v", tc.err, tc.key, info.Context)
			}
		}
	}
}
