package domain

import (
	"strings"
	"time"
)

// PostponementRecord is one immutable audit entry of a shifted schedule.
type PostponementRecord struct {
	ID             int            `json:"id"`
	OriginalDate   time.Time      `json:"original_date"`
	NewDate        time.Time      `json:"new_date"`
	Reason         string         `json:"reason,omitempty"`
	ReasonCategory ReasonCategory `json:"reason_category"`
	Impact         Impact         `json:"impact"`
	RecordedAt     time.Time      `json:"recorded_at"`
}

// Delay returns newDate - originalDate.
func (r PostponementRecord) Delay() time.Duration {
	return r.NewDate.Sub(r.OriginalDate)
}

// PostponeOptions carries the caller-supplied reason for a postponement.
type PostponeOptions struct {
	Reason         string         `json:"reason,omitempty"`
	ReasonCategory ReasonCategory `json:"reason_category,omitempty"`
	Impact         Impact         `json:"impact,omitempty"`
}

// normalize fills the other/medium defaults.
func (o PostponeOptions) normalize() PostponeOptions {
	o.Reason = strings.TrimSpace(o.Reason)
	o.ReasonCategory = ReasonCategory(normalizeEnum(string(o.ReasonCategory)))
	if o.ReasonCategory == "" {
		o.ReasonCategory = ReasonOther
	}
	o.Impact = Impact(normalizeEnum(string(o.Impact)))
	if o.Impact == "" {
		o.Impact = ImpactMedium
	}
	return o
}

// CanPostpone checks the completion and budget rules, in that order.
func (it ScheduleItem) CanPostpone() error {
	if it.Completed {
		return ErrAlreadyCompleted
	}
	if len(it.Postponements) >= it.MaxPostponements {
		return &PostponementLimitError{ItemID: it.ID, Count: len(it.Postponements), Max: it.MaxPostponements}
	}
	return nil
}

// Postpone shifts the item to newDate, keeping its interval length, and appends an audit record.
// Blocker checks need the rest of the collection and are left to the caller.
func (it *ScheduleItem) Postpone(newDate time.Time, opts PostponeOptions, now time.Time) (PostponementRecord, error) {
	if err := it.CanPostpone(); err != nil {
		return PostponementRecord{}, err
	}
	opts = opts.normalize()
	var violations []Violation
	if newDate.IsZero() {
		violations = append(violations, Violation{Field: "new_date", Message: "must be a valid date"})
	}
	if !opts.ReasonCategory.Valid() {
		violations = append(violations, Violation{Field: "reason_category", Message: "must be one of unavailable, conflict, emergency, other"})
	}
	if !opts.Impact.Valid() {
		violations = append(violations, Violation{Field: "impact", Message: "must be one of low, medium, high"})
	}
	if err := NewValidationError(violations); err != nil {
		return PostponementRecord{}, err
	}

	ts := now.UTC()
	interval := it.Interval()
	record := PostponementRecord{
		ID:             len(it.Postponements) + 1,
		OriginalDate:   it.StartDate,
		NewDate:        newDate.UTC(),
		Reason:         opts.Reason,
		ReasonCategory: opts.ReasonCategory,
		Impact:         opts.Impact,
		RecordedAt:     ts,
	}
	it.Postponements = append(it.Postponements, record)
	it.StartDate = record.NewDate
	it.EndDate = record.NewDate.Add(interval)
	it.UpdatedAt = ts
	return record, nil
}
