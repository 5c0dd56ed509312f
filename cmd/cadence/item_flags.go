package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// inputLayouts are accepted for date flags, tried in order; zone-less forms use local time.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseWhen parses a date flag in loc.
func parseWhen(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range inputLayouts[1:] {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD[ HH:MM]", raw)
}

// itemFlags binds the editable item fields shared by add, edit, and draft save.
type itemFlags struct {
	title            string
	description      string
	scheduleType     string
	itemType         string
	tags             []string
	notes            string
	location         string
	start            string
	end              string
	duration         int
	estimated        int
	reminder         int
	priority         string
	recurrence       string
	blockedBy        []string
	maxPostponements int
}

// register binds the shared item flags to cmd.
func (f *itemFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "item title")
	fl.StringVar(&f.description, "description", "", "markdown description")
	fl.StringVar(&f.scheduleType, "kind", "", "schedule type: task|event")
	fl.StringVar(&f.itemType, "type", "", "item type: work|personal|health|learning|social|urgent")
	fl.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
	fl.StringVar(&f.notes, "notes", "", "markdown notes")
	fl.StringVar(&f.location, "location", "", "location")
	fl.StringVar(&f.start, "start", "", "start date")
	fl.StringVar(&f.end, "end", "", "end date")
	fl.IntVar(&f.duration, "duration", 0, "duration in minutes")
	fl.IntVar(&f.estimated, "estimated", 0, "estimated duration in minutes")
	fl.IntVar(&f.reminder, "reminder", 0, "reminder lead time in minutes")
	fl.StringVar(&f.priority, "priority", "", "priority: low|medium|high|critical")
	fl.StringVar(&f.recurrence, "repeat", "", "recurrence: none|daily|weekly|biweekly|monthly")
	fl.StringSliceVar(&f.blockedBy, "blocked-by", nil, "id of a blocking item (repeatable)")
	fl.IntVar(&f.maxPostponements, "max-postponements", 0, "postponement limit")
}

// draft converts the flags to a creation draft, overlaying them on base.
func (f *itemFlags) draft(cmd *cobra.Command, base domain.ScheduleItemDraft, loc *time.Location) (domain.ScheduleItemDraft, error) {
	changed := cmd.Flags().Changed
	d := base
	if changed("title") {
		d.Title = f.title
	} else if len(cmd.Flags().Args()) > 0 {
		d.Title = strings.Join(cmd.Flags().Args(), " ")
	}
	if changed("description") {
		d.Description = f.description
	}
	if changed("kind") {
		d.ScheduleType = domain.ScheduleType(f.scheduleType)
	}
	if changed("type") {
		d.Type = domain.ItemType(f.itemType)
	}
	if changed("tag") {
		d.Tags = f.tags
	}
	if changed("notes") {
		d.Notes = f.notes
	}
	if changed("location") {
		d.Location = f.location
	}
	if changed("start") {
		start, err := parseWhen(f.start, loc)
		if err != nil {
			return d, err
		}
		d.StartDate = start
	}
	if changed("end") {
		end, err := parseWhen(f.end, loc)
		if err != nil {
			return d, err
		}
		d.EndDate = end
	}
	if changed("duration") {
		d.Duration = f.duration
	}
	if changed("estimated") {
		d.EstimatedDuration = f.estimated
	}
	if changed("reminder") {
		d.Reminder = f.reminder
	}
	if changed("priority") {
		d.Priority = domain.Priority(f.priority)
	}
	if changed("repeat") {
		d.Recurrence = domain.Recurrence(f.recurrence)
	}
	if changed("blocked-by") {
		d.BlockedBy = f.blockedBy
	}
	if changed("max-postponements") {
		limit := f.maxPostponements
		d.MaxPostponements = &limit
	}
	return d, nil
}

// patch converts only the flags set on the command line to an update patch.
func (f *itemFlags) patch(cmd *cobra.Command, loc *time.Location) (app.ItemPatch, error) {
	changed := cmd.Flags().Changed
	var p app.ItemPatch
	if changed("title") {
		p.Title = &f.title
	}
	if changed("description") {
		p.Description = &f.description
	}
	if changed("kind") {
		v := domain.ScheduleType(f.scheduleType)
		p.ScheduleType = &v
	}
	if changed("type") {
		v := domain.ItemType(f.itemType)
		p.Type = &v
	}
	if changed("tag") {
		p.Tags = &f.tags
	}
	if changed("notes") {
		p.Notes = &f.notes
	}
	if changed("location") {
		p.Location = &f.location
	}
	if changed("start") {
		start, err := parseWhen(f.start, loc)
		if err != nil {
			return p, err
		}
		p.StartDate = &start
	}
	if changed("end") {
		end, err := parseWhen(f.end, loc)
		if err != nil {
			return p, err
		}
		p.EndDate = &end
	}
	if changed("duration") {
		p.Duration = &f.duration
	}
	if changed("estimated") {
		p.EstimatedDuration = &f.estimated
	}
	if changed("reminder") {
		p.Reminder = &f.reminder
	}
	if changed("priority") {
		v := domain.Priority(f.priority)
		p.Priority = &v
	}
	if changed("repeat") {
		v := domain.Recurrence(f.recurrence)
		p.Recurrence = &v
	}
	if changed("blocked-by") {
		p.BlockedBy = &f.blockedBy
	}
	if changed("max-postponements") {
		p.MaxPostponements = &f.maxPostponements
	}
	return p, nil
}
