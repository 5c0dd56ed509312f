// Package render formats schedule items, conflicts, and metrics for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/evanschultz/cadence/internal/domain"
)

const (
	minWrapWidth = 24
	timeLayout   = "2006-01-02 15:04"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

// Renderer writes terminal views. A plain renderer emits no ANSI styling.
type Renderer struct {
	styled   bool
	width    int
	loc      *time.Location
	markdown *glamour.TermRenderer
}

// New builds a renderer; width <= 0 falls back to 80 columns.
func New(styled bool, width int, loc *time.Location) *Renderer {
	if width <= 0 {
		width = 80
	}
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{styled: styled, width: width, loc: loc}
}

// style applies s only when output is styled.
func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// when formats t in the renderer's location.
func (r *Renderer) when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format(timeLayout)
}

// newTable builds a table with the given headers, rounded and colored when styled.
func (r *Renderer) newTable(headers ...string) *table.Table {
	t := table.New().Headers(headers...)
	if !r.styled {
		return t.Border(lipgloss.NormalBorder())
	}
	return t.
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// Items renders a table of items; overdue rows are highlighted relative to now.
func (r *Renderer) Items(items []domain.ScheduleItem, now time.Time) string {
	if len(items) == 0 {
		return "no items"
	}
	t := r.newTable("ID", "Title", "Type", "Priority", "Start", "End", "Status", "Postponed")
	for _, it := range items {
		status := it.Status()
		switch {
		case it.Completed:
			status = r.style(doneStyle, status)
		case it.DeletedAt == nil && it.EndDate.Before(now):
			status = r.style(overdueStyle, "overdue")
		}
		t.Row(
			it.ID,
			it.Title,
			string(it.Type),
			string(it.Priority),
			r.when(it.StartDate),
			r.when(it.EndDate),
			status,
			fmt.Sprintf("%d/%d", len(it.Postponements), it.MaxPostponements),
		)
	}
	return t.String()
}

// Item renders one item as labeled fields followed by its description and notes as markdown.
func (r *Renderer) Item(it domain.ScheduleItem, coll domain.Collection) string {
	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", r.style(labelStyle, fmt.Sprintf("%-12s", label+":")), value)
	}
	field("ID", it.ID)
	field("Title", it.Title)
	field("Collection", string(coll))
	field("Status", it.Status())
	field("Kind", string(it.ScheduleType)+"/"+string(it.Type))
	field("Priority", string(it.Priority))
	field("Start", r.when(it.StartDate))
	field("End", r.when(it.EndDate))
	field("Duration", strconv.Itoa(it.Duration)+"m")
	if it.Reminder > 0 {
		field("Reminder", strconv.Itoa(it.Reminder)+"m before")
	}
	if it.Recurrence.Repeats() {
		field("Repeats", string(it.Recurrence))
	}
	field("Location", it.Location)
	field("Tags", strings.Join(it.Tags, ", "))
	field("Blocked by", strings.Join(it.BlockedBy, ", "))
	field("Blocking", strings.Join(it.Blocking, ", "))
	field("Postponed", fmt.Sprintf("%d/%d", len(it.Postponements), it.MaxPostponements))
	for i, p := range it.Postponements {
		line := fmt.Sprintf("%s -> %s", r.when(p.OriginalDate), r.when(p.NewDate))
		if p.Reason != "" {
			line += " (" + p.Reason + ")"
		}
		field(fmt.Sprintf("  #%d", i+1), line)
	}
	for _, section := range []struct{ title, body string }{
		{"Description", it.Description},
		{"Notes", it.Notes},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(r.Markdown("## " + section.title + "\n\n" + section.body))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Conflicts renders overlapping items.
func (r *Renderer) Conflicts(conflicts []domain.Conflict) string {
	if len(conflicts) == 0 {
		return "no conflicts"
	}
	t := r.newTable("Item", "Conflicts with", "Title", "Start", "End")
	for _, c := range conflicts {
		t.Row(c.ItemID, c.ConflictingID, c.Title, r.when(c.StartDate), r.when(c.EndDate))
	}
	return t.String()
}

// Metrics renders the performance summary.
func (r *Renderer) Metrics(m domain.PerformanceMetrics) string {
	t := r.newTable("Metric", "Value")
	hours := "-"
	if len(m.ProductiveHours) > 0 {
		hours = strings.Join(m.ProductiveHours, ", ")
	}
	t.Rows(
		[]string{"Completion rate", fmt.Sprintf("%.1f%%", m.CompletionRate)},
		[]string{"Postponement rate", fmt.Sprintf("%.1f%%", m.PostponementRate)},
		[]string{"Average delay", fmt.Sprintf("%.1f min", m.AverageDelay)},
		[]string{"Streak", fmt.Sprintf("%d days", m.StreakDays)},
		[]string{"Focus time", fmt.Sprintf("%d min", m.FocusTime)},
		[]string{"Productive hours", hours},
		[]string{"Computed", r.when(m.ComputedAt)},
	)
	return t.String()
}

// Markdown renders text through glamour, returning the input unchanged if rendering fails.
func (r *Renderer) Markdown(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if r.markdown == nil {
		style := styles.NoTTYStyle
		if r.styled {
			style = styles.DarkStyle
		}
		wrap := max(r.width, minWrapWidth)
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return text
		}
		r.markdown = renderer
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
