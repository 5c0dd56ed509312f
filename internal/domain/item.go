package domain

import (
	"slices"
	"strings"
	"time"
)

// DefaultMaxPostponements bounds postponements when a draft leaves the limit unset.
const DefaultMaxPostponements = 3

// ScheduleItem is one task or event instance.
type ScheduleItem struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	ScheduleType ScheduleType `json:"schedule_type"`
	Type         ItemType     `json:"type"`
	Tags         []string     `json:"tags"`
	Notes        string       `json:"notes,omitempty"`
	Location     string       `json:"location,omitempty"`

	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Duration          int       `json:"duration"`
	EstimatedDuration int       `json:"estimated_duration"`
	ActualDuration    int       `json:"actual_duration,omitempty"`
	Reminder          int       `json:"reminder,omitempty"`
	Countdown         int       `json:"countdown"`

	Priority   Priority   `json:"priority"`
	Recurrence Recurrence `json:"recurrence"`

	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	InProgress  bool       `json:"in_progress"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	BlockedBy []string `json:"blocked_by"`
	Blocking  []string `json:"blocking"`

	Postponements    []PostponementRecord `json:"postponements"`
	MaxPostponements int                  `json:"max_postponements"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleItemDraft holds creation input, and doubles as the persisted form draft.
type ScheduleItemDraft struct {
	Title             string       `json:"title"`
	Description       string       `json:"description,omitempty"`
	ScheduleType      ScheduleType `json:"schedule_type,omitempty"`
	Type              ItemType     `json:"type"`
	Tags              []string     `json:"tags,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	Location          string       `json:"location,omitempty"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           time.Time    `json:"end_date,omitempty"`
	Duration          int          `json:"duration,omitempty"`
	EstimatedDuration int          `json:"estimated_duration,omitempty"`
	Reminder          int          `json:"reminder,omitempty"`
	Priority          Priority     `json:"priority,omitempty"`
	Recurrence        Recurrence   `json:"recurrence,omitempty"`
	BlockedBy         []string     `json:"blocked_by,omitempty"`
	// MaxPostponements is nil when unset; an explicit 0 forbids postponing.
	MaxPostponements *int `json:"max_postponements,omitempty"`
}

// PostponementLimit returns the configured limit, or DefaultMaxPostponements when unset.
func (d ScheduleItemDraft) PostponementLimit() int {
	if d.MaxPostponements == nil {
		return DefaultMaxPostponements
	}
	return *d.MaxPostponements
}

// Normalize trims text, fills defaults, and derives the missing end of the interval.
func (d ScheduleItemDraft) Normalize() ScheduleItemDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Notes = strings.TrimSpace(d.Notes)
	d.Location = strings.TrimSpace(d.Location)
	d.ScheduleType = ScheduleType(normalizeEnum(string(d.ScheduleType)))
	if d.ScheduleType == "" {
		d.ScheduleType = ScheduleTypeTask
	}
	d.Type = ItemType(normalizeEnum(string(d.Type)))
	d.Priority = Priority(normalizeEnum(string(d.Priority)))
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	d.Recurrence = Recurrence(normalizeEnum(string(d.Recurrence)))
	if d.Recurrence == "" {
		d.Recurrence = RecurrenceNone
	}
	d.Tags = NormalizeTags(d.Tags)
	d.BlockedBy = UniqueIDs(d.BlockedBy)
	if !d.StartDate.IsZero() {
		d.StartDate = d.StartDate.UTC()
	}
	if !d.EndDate.IsZero() {
		d.EndDate = d.EndDate.UTC()
	}
	if d.EndDate.IsZero() && !d.StartDate.IsZero() && d.Duration > 0 {
		d.EndDate = d.StartDate.Add(time.Duration(d.Duration) * time.Minute)
	}
	if d.Duration == 0 && !d.StartDate.IsZero() && d.EndDate.After(d.StartDate) {
		d.Duration = intervalMinutes(d.StartDate, d.EndDate)
	}
	if d.EstimatedDuration == 0 {
		d.EstimatedDuration = d.Duration
	}
	limit := d.PostponementLimit()
	d.MaxPostponements = &limit
	return d
}

// Validate returns every violated constraint of a normalized draft.
func (d ScheduleItemDraft) Validate() []Violation {
	var out []Violation
	add := func(field, msg string) {
		out = append(out, Violation{Field: field, Message: msg})
	}

	if d.Title == "" {
		add("title", "must not be empty")
	}
	intervalOK := true
	if d.StartDate.IsZero() {
		add("start_date", "must be a valid date")
		intervalOK = false
	}
	if d.EndDate.IsZero() {
		if d.Duration <= 0 {
			add("duration", "must be > 0")
		}
		intervalOK = false
	} else if intervalOK && !d.StartDate.Before(d.EndDate) {
		add("end_date", "must be after start_date")
		intervalOK = false
	}
	if intervalOK {
		interval := intervalMinutes(d.StartDate, d.EndDate)
		switch {
		case d.Duration <= 0:
			add("duration", "must be > 0")
		case d.Duration != interval:
			add("duration", "must match the start/end interval")
		}
	}
	if !d.ScheduleType.Valid() {
		add("schedule_type", "must be one of task, event")
	}
	if !d.Type.Valid() {
		add("type", "must be one of work, personal, health, learning, social, urgent")
	}
	if !d.Priority.Valid() {
		add("priority", "must be one of low, medium, high, critical")
	}
	if !d.Recurrence.Valid() {
		add("recurrence", "must be one of none, daily, weekly, biweekly, monthly")
	}
	if d.ScheduleType == ScheduleTypeEvent && d.Location == "" {
		add("location", "is required for events")
	}
	if d.Reminder < 0 {
		add("reminder", "must be >= 0")
	}
	if d.EstimatedDuration < 0 {
		add("estimated_duration", "must be >= 0")
	}
	if d.PostponementLimit() < 0 {
		add("max_postponements", "must be >= 0")
	}
	return out
}

// NewScheduleItem builds a fresh item from a draft, validating every field.
func NewScheduleItem(id string, in ScheduleItemDraft, now time.Time) (ScheduleItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ScheduleItem{}, ErrInvalidID
	}
	in = in.Normalize()
	if err := NewValidationError(in.Validate()); err != nil {
		return ScheduleItem{}, err
	}
	ts := now.UTC()
	return ScheduleItem{
		ID:                id,
		Title:             in.Title,
		Description:       in.Description,
		ScheduleType:      in.ScheduleType,
		Type:              in.Type,
		Tags:              in.Tags,
		Notes:             in.Notes,
		Location:          in.Location,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Duration:          in.Duration,
		EstimatedDuration: in.EstimatedDuration,
		Reminder:          in.Reminder,
		Countdown:         int(in.StartDate.Sub(ts) / time.Minute),
		Priority:          in.Priority,
		Recurrence:        in.Recurrence,
		BlockedBy:         in.BlockedBy,
		Blocking:          []string{},
		Postponements:     []PostponementRecord{},
		MaxPostponements:  in.PostponementLimit(),
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}, nil
}

// Draft converts the item back into the draft shape used for validation.
func (it ScheduleItem) Draft() ScheduleItemDraft {
	limit := it.MaxPostponements
	return ScheduleItemDraft{
		Title:             it.Title,
		Description:       it.Description,
		ScheduleType:      it.ScheduleType,
		Type:              it.Type,
		Tags:              slices.Clone(it.Tags),
		Notes:             it.Notes,
		Location:          it.Location,
		StartDate:         it.StartDate,
		EndDate:           it.EndDate,
		Duration:          it.Duration,
		EstimatedDuration: it.EstimatedDuration,
		Reminder:          it.Reminder,
		Priority:          it.Priority,
		Recurrence:        it.Recurrence,
		BlockedBy:         slices.Clone(it.BlockedBy),
		MaxPostponements:  &limit,
	}
}

// Revise replaces the editable fields with d after validating the merged result.
// Lifecycle flags, history, and the blocking list are left alone.
func (it *ScheduleItem) Revise(d ScheduleItemDraft, now time.Time) error {
	d = d.Normalize()
	violations := d.Validate()
	if d.PostponementLimit() < len(it.Postponements) {
		violations = append(violations, Violation{Field: "max_postponements", Message: "must not be below the recorded postponement count"})
	}
	if slices.Contains(d.BlockedBy, it.ID) {
		violations = append(violations, Violation{Field: "blocked_by", Message: "must not reference the item itself"})
	}
	if err := NewValidationError(violations); err != nil {
		return err
	}
	it.Title = d.Title
	it.Description = d.Description
	it.ScheduleType = d.ScheduleType
	it.Type = d.Type
	it.Tags = d.Tags
	it.Notes = d.Notes
	it.Location = d.Location
	it.StartDate = d.StartDate
	it.EndDate = d.EndDate
	it.Duration = d.Duration
	it.EstimatedDuration = d.EstimatedDuration
	it.Reminder = d.Reminder
	it.Priority = d.Priority
	it.Recurrence = d.Recurrence
	it.BlockedBy = d.BlockedBy
	it.MaxPostponements = d.PostponementLimit()
	it.UpdatedAt = now.UTC()
	return nil
}

// Interval returns endDate - startDate.
func (it ScheduleItem) Interval() time.Duration {
	return it.EndDate.Sub(it.StartDate)
}

// Status names the lifecycle state the item is in.
func (it ScheduleItem) Status() string {
	switch {
	case it.DeletedAt != nil:
		return "deleted"
	case it.Completed:
		return "completed"
	case it.InProgress:
		return "in_progress"
	default:
		return "created"
	}
}

// Start moves a created item to in-progress. Starting an in-progress item is a no-op.
func (it *ScheduleItem) Start(now time.Time) error {
	if it.Completed {
		return ErrAlreadyCompleted
	}
	if it.InProgress {
		return nil
	}
	ts := now.UTC()
	it.InProgress = true
	it.StartedAt = &ts
	it.UpdatedAt = ts
	return nil
}

// Complete marks the item done and records its actual duration.
func (it *ScheduleItem) Complete(now time.Time) error {
	if it.Completed {
		return ErrAlreadyCompleted
	}
	ts := now.UTC()
	it.Completed = true
	it.CompletedAt = &ts
	it.InProgress = false
	if it.StartedAt != nil {
		it.ActualDuration = int(ts.Sub(*it.StartedAt) / time.Minute)
	} else {
		// Never started: assume the estimate held.
		it.ActualDuration = it.EstimatedDuration
	}
	it.UpdatedAt = ts
	return nil
}

// NextOccurrence builds the successor of a recurring item: same interval length, fresh state.
// The step is taken on the calendar of now's location.
func (it ScheduleItem) NextOccurrence(id string, now time.Time) (ScheduleItem, error) {
	if !it.Recurrence.Repeats() {
		return ScheduleItem{}, ErrInvalidTransition
	}
	draft := it.Draft()
	interval := it.Interval()
	draft.StartDate = NextOccurrence(it.StartDate.In(now.Location()), it.Recurrence)
	draft.EndDate = draft.StartDate.Add(interval)
	draft.Duration = intervalMinutes(draft.StartDate, draft.EndDate)
	draft.BlockedBy = nil
	return NewScheduleItem(id, draft, now)
}

// SoftDelete stamps deletedAt and leaves every other field untouched.
func (it *ScheduleItem) SoftDelete(now time.Time) {
	ts := now.UTC()
	it.DeletedAt = &ts
}

// RestoreDeleted clears deletedAt.
func (it *ScheduleItem) RestoreDeleted() {
	it.DeletedAt = nil
}

// RestoreCompleted clears completion so the item is active again.
func (it *ScheduleItem) RestoreCompleted(now time.Time) error {
	if !it.Completed {
		return ErrInvalidTransition
	}
	it.Completed = false
	it.CompletedAt = nil
	it.ActualDuration = 0
	it.UpdatedAt = now.UTC()
	return nil
}

// Clone deep-copies slices and pointers so callers never share mutable state.
func (it ScheduleItem) Clone() ScheduleItem {
	out := it
	out.Tags = cloneStrings(it.Tags)
	out.BlockedBy = cloneStrings(it.BlockedBy)
	out.Blocking = cloneStrings(it.Blocking)
	out.Postponements = append([]PostponementRecord{}, it.Postponements...)
	out.CompletedAt = cloneTime(it.CompletedAt)
	out.StartedAt = cloneTime(it.StartedAt)
	out.DeletedAt = cloneTime(it.DeletedAt)
	return out
}

// AddBlocking records that id waits on this item.
func (it *ScheduleItem) AddBlocking(id string) {
	if !slices.Contains(it.Blocking, id) {
		it.Blocking = append(it.Blocking, id)
	}
}

// RemoveBlocking drops id from the waiting list.
func (it *ScheduleItem) RemoveBlocking(id string) {
	it.Blocking = slices.DeleteFunc(it.Blocking, func(v string) bool { return v == id })
}

// NormalizeTags lowercases, trims, de-duplicates, and sorts tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

// UniqueIDs trims and de-duplicates ids while preserving order.
func UniqueIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// intervalMinutes returns end - start in whole minutes.
func intervalMinutes(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}

// cloneStrings copies in; nil becomes an empty slice.
func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}

// cloneTime copies the pointed-to time.
func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}
