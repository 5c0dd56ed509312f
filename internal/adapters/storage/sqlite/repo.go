package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists schedule items, the metrics cache, the draft, and the notification outbox.
type Repository struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open(driverName, fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database. One connection keeps every query on the same database.
func OpenInMemory() (*Repository, error) {
	db, err := sqlx.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// fileDSN builds a connection string whose pragmas apply to every pooled connection.
func fileDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: path}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema. Connection pragmas travel in the DSN.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schedule_items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			schedule_type TEXT NOT NULL,
			item_type TEXT NOT NULL,
			tags_json TEXT NOT NULL DEFAULT '[]',
			notes TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			duration INTEGER NOT NULL,
			estimated_duration INTEGER NOT NULL DEFAULT 0,
			actual_duration INTEGER NOT NULL DEFAULT 0,
			reminder INTEGER NOT NULL DEFAULT 0,
			countdown INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL,
			recurrence TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			in_progress INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			deleted_at TEXT,
			blocked_by_json TEXT NOT NULL DEFAULT '[]',
			blocking_json TEXT NOT NULL DEFAULT '[]',
			postponements_json TEXT NOT NULL DEFAULT '[]',
			max_postponements INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_items_collection ON schedule_items(collection, seq);`,
		`CREATE TABLE IF NOT EXISTS metrics_cache (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload_json TEXT NOT NULL,
			computed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS item_draft (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			fire_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			delivered_at TEXT,
			canceled_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_item ON notifications(item_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications(fire_at) WHERE delivered_at IS NULL AND canceled_at IS NULL;`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// itemRow is the flat column form of a ScheduleItem.
type itemRow struct {
	Seq               int64          `db:"seq"`
	ID                string         `db:"id"`
	Collection        string         `db:"collection"`
	Title             string         `db:"title"`
	Description       string         `db:"description"`
	ScheduleType      string         `db:"schedule_type"`
	ItemType          string         `db:"item_type"`
	TagsJSON          string         `db:"tags_json"`
	Notes             string         `db:"notes"`
	Location          string         `db:"location"`
	StartDate         string         `db:"start_date"`
	EndDate           string         `db:"end_date"`
	Duration          int            `db:"duration"`
	EstimatedDuration int            `db:"estimated_duration"`
	ActualDuration    int            `db:"actual_duration"`
	Reminder          int            `db:"reminder"`
	Countdown         int            `db:"countdown"`
	Priority          string         `db:"priority"`
	Recurrence        string         `db:"recurrence"`
	Completed         bool           `db:"completed"`
	CompletedAt       sql.NullString `db:"completed_at"`
	InProgress        bool           `db:"in_progress"`
	StartedAt         sql.NullString `db:"started_at"`
	DeletedAt         sql.NullString `db:"deleted_at"`
	BlockedByJSON     string         `db:"blocked_by_json"`
	BlockingJSON      string         `db:"blocking_json"`
	PostponementsJSON string         `db:"postponements_json"`
	MaxPostponements  int            `db:"max_postponements"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

const itemColumns = `seq, id, collection, title, description, schedule_type, item_type, tags_json, notes, location,
	start_date, end_date, duration, estimated_duration, actual_duration, reminder, countdown,
	priority, recurrence, completed, completed_at, in_progress, started_at, deleted_at,
	blocked_by_json, blocking_json, postponements_json, max_postponements, created_at, updated_at`

const insertItemSQL = `INSERT INTO schedule_items (
	id, collection, title, description, schedule_type, item_type, tags_json, notes, location,
	start_date, end_date, duration, estimated_duration, actual_duration, reminder, countdown,
	priority, recurrence, completed, completed_at, in_progress, started_at, deleted_at,
	blocked_by_json, blocking_json, postponements_json, max_postponements, created_at, updated_at
) VALUES (
	:id, :collection, :title, :description, :schedule_type, :item_type, :tags_json, :notes, :location,
	:start_date, :end_date, :duration, :estimated_duration, :actual_duration, :reminder, :countdown,
	:priority, :recurrence, :completed, :completed_at, :in_progress, :started_at, :deleted_at,
	:blocked_by_json, :blocking_json, :postponements_json, :max_postponements, :created_at, :updated_at
)`

// updateItemSQL keeps seq so creation order survives moves. %s is the optional collection assignment.
const updateItemSQL = `UPDATE schedule_items SET %s
	title = :title, description = :description, schedule_type = :schedule_type, item_type = :item_type,
	tags_json = :tags_json, notes = :notes, location = :location,
	start_date = :start_date, end_date = :end_date, duration = :duration,
	estimated_duration = :estimated_duration, actual_duration = :actual_duration,
	reminder = :reminder, countdown = :countdown, priority = :priority, recurrence = :recurrence,
	completed = :completed, completed_at = :completed_at, in_progress = :in_progress,
	started_at = :started_at, deleted_at = :deleted_at,
	blocked_by_json = :blocked_by_json, blocking_json = :blocking_json,
	postponements_json = :postponements_json, max_postponements = :max_postponements,
	created_at = :created_at, updated_at = :updated_at
WHERE id = :id`

// GetItem loads one item and its collection.
func (r *Repository) GetItem(ctx context.Context, id string) (domain.ScheduleItem, domain.Collection, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM schedule_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduleItem{}, "", app.ErrNotFound
	}
	if err != nil {
		return domain.ScheduleItem{}, "", fmt.Errorf("get item %s: %w", id, err)
	}
	item, err := row.toDomain()
	if err != nil {
		return domain.ScheduleItem{}, "", err
	}
	return item, domain.Collection(row.Collection), nil
}

// ListItems loads one collection in creation order.
func (r *Repository) ListItems(ctx context.Context, c domain.Collection) ([]domain.ScheduleItem, error) {
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM schedule_items WHERE collection = ? ORDER BY seq`, string(c)); err != nil {
		return nil, fmt.Errorf("list %s items: %w", c, err)
	}
	out := make([]domain.ScheduleItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ListAll loads every collection with a single query.
func (r *Repository) ListAll(ctx context.Context) (app.Collections, error) {
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM schedule_items ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("list all items: %w", err)
	}
	out := app.Collections{}
	for _, row := range rows {
		item, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		coll := domain.Collection(row.Collection)
		out[coll] = append(out[coll], item)
	}
	return out, nil
}

// Apply runs the batch in one transaction.
func (r *Repository) Apply(ctx context.Context, ops ...app.Op) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, op := range ops {
		if err = app.ValidateOp(op); err != nil {
			return err
		}
		if err = applyOp(ctx, tx, op); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// applyOp executes one batch op inside tx.
func applyOp(ctx context.Context, tx *sqlx.Tx, op app.Op) error {
	row, err := itemRowFromDomain(op.Item, op.Collection)
	if err != nil {
		return err
	}
	switch op.Kind {
	case app.OpInsert:
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM schedule_items WHERE id = ?`, row.ID); err != nil {
			return fmt.Errorf("insert %s: %w", row.ID, err)
		}
		if exists > 0 {
			return fmt.Errorf("insert %s: %w", row.ID, app.ErrDuplicateID)
		}
		if _, err := tx.NamedExecContext(ctx, insertItemSQL, row); err != nil {
			return fmt.Errorf("insert %s: %w", row.ID, err)
		}
		return nil
	case app.OpReplace:
		res, err := tx.NamedExecContext(ctx, fmt.Sprintf(updateItemSQL, ""), row)
		if err != nil {
			return fmt.Errorf("replace %s: %w", row.ID, err)
		}
		if err := translateNoRows(res); err != nil {
			return fmt.Errorf("replace %s: %w", row.ID, err)
		}
		return nil
	case app.OpMove:
		res, err := tx.NamedExecContext(ctx, fmt.Sprintf(updateItemSQL, "collection = :collection,"), row)
		if err != nil {
			return fmt.Errorf("move %s: %w", row.ID, err)
		}
		if err := translateNoRows(res); err != nil {
			return fmt.Errorf("move %s: %w", row.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", op.Kind)
	}
}

// SaveMetrics replaces the cached metrics row.
func (r *Repository) SaveMetrics(ctx context.Context, m domain.PerformanceMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO metrics_cache(id, payload_json, computed_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload_json = excluded.payload_json, computed_at = excluded.computed_at
	`, string(payload), ts(m.ComputedAt))
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// LoadMetrics returns the cached metrics or app.ErrNotFound.
func (r *Repository) LoadMetrics(ctx context.Context) (domain.PerformanceMetrics, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, `SELECT payload_json FROM metrics_cache WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PerformanceMetrics{}, app.ErrNotFound
	}
	if err != nil {
		return domain.PerformanceMetrics{}, fmt.Errorf("load metrics: %w", err)
	}
	var m domain.PerformanceMetrics
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return domain.PerformanceMetrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}

// SaveDraft replaces the stored draft.
func (r *Repository) SaveDraft(ctx context.Context, d domain.ScheduleItemDraft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO item_draft(id, payload_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload_json = excluded.payload_json, updated_at = excluded.updated_at
	`, string(payload), ts(time.Now()))
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the stored draft or app.ErrNotFound.
func (r *Repository) LoadDraft(ctx context.Context) (domain.ScheduleItemDraft, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, `SELECT payload_json FROM item_draft WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduleItemDraft{}, app.ErrNotFound
	}
	if err != nil {
		return domain.ScheduleItemDraft{}, fmt.Errorf("load draft: %w", err)
	}
	var d domain.ScheduleItemDraft
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return domain.ScheduleItemDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

// ClearDraft deletes the stored draft, if any.
func (r *Repository) ClearDraft(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_draft WHERE id = 1`); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// itemRowFromDomain flattens an item into its column form.
func itemRowFromDomain(it domain.ScheduleItem, c domain.Collection) (itemRow, error) {
	tags, err := encodeJSON(nonNilStrings(it.Tags))
	if err != nil {
		return itemRow{}, err
	}
	blockedBy, err := encodeJSON(nonNilStrings(it.BlockedBy))
	if err != nil {
		return itemRow{}, err
	}
	blocking, err := encodeJSON(nonNilStrings(it.Blocking))
	if err != nil {
		return itemRow{}, err
	}
	postponements := it.Postponements
	if postponements == nil {
		postponements = []domain.PostponementRecord{}
	}
	history, err := encodeJSON(postponements)
	if err != nil {
		return itemRow{}, err
	}
	return itemRow{
		ID:                it.ID,
		Collection:        string(c),
		Title:             it.Title,
		Description:       it.Description,
		ScheduleType:      string(it.ScheduleType),
		ItemType:          string(it.Type),
		TagsJSON:          tags,
		Notes:             it.Notes,
		Location:          it.Location,
		StartDate:         ts(it.StartDate),
		EndDate:           ts(it.EndDate),
		Duration:          it.Duration,
		EstimatedDuration: it.EstimatedDuration,
		ActualDuration:    it.ActualDuration,
		Reminder:          it.Reminder,
		Countdown:         it.Countdown,
		Priority:          string(it.Priority),
		Recurrence:        string(it.Recurrence),
		Completed:         it.Completed,
		CompletedAt:       nullableTS(it.CompletedAt),
		InProgress:        it.InProgress,
		StartedAt:         nullableTS(it.StartedAt),
		DeletedAt:         nullableTS(it.DeletedAt),
		BlockedByJSON:     blockedBy,
		BlockingJSON:      blocking,
		PostponementsJSON: history,
		MaxPostponements:  it.MaxPostponements,
		CreatedAt:         ts(it.CreatedAt),
		UpdatedAt:         ts(it.UpdatedAt),
	}, nil
}

// toDomain rebuilds the item from its columns.
func (row itemRow) toDomain() (domain.ScheduleItem, error) {
	it := domain.ScheduleItem{
		ID:                row.ID,
		Title:             row.Title,
		Description:       row.Description,
		ScheduleType:      domain.ScheduleType(row.ScheduleType),
		Type:              domain.ItemType(row.ItemType),
		Notes:             row.Notes,
		Location:          row.Location,
		StartDate:         parseTS(row.StartDate),
		EndDate:           parseTS(row.EndDate),
		Duration:          row.Duration,
		EstimatedDuration: row.EstimatedDuration,
		ActualDuration:    row.ActualDuration,
		Reminder:          row.Reminder,
		Countdown:         row.Countdown,
		Priority:          domain.Priority(row.Priority),
		Recurrence:        domain.Recurrence(row.Recurrence),
		Completed:         row.Completed,
		CompletedAt:       parseNullTS(row.CompletedAt),
		InProgress:        row.InProgress,
		StartedAt:         parseNullTS(row.StartedAt),
		DeletedAt:         parseNullTS(row.DeletedAt),
		MaxPostponements:  row.MaxPostponements,
		CreatedAt:         parseTS(row.CreatedAt),
		UpdatedAt:         parseTS(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.TagsJSON), &it.Tags); err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("decode tags of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.BlockedByJSON), &it.BlockedBy); err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("decode blocked_by of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.BlockingJSON), &it.Blocking); err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("decode blocking of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.PostponementsJSON), &it.Postponements); err != nil {
		return domain.ScheduleItem{}, fmt.Errorf("decode postponements of %s: %w", row.ID, err)
	}
	return it, nil
}

// encodeJSON marshals v for a JSON text column.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}

// nonNilStrings returns an empty slice for nil.
func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// translateNoRows maps a zero-row update to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// tsLayout is fixed-width so stored timestamps compare correctly as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts formats t in UTC with the storage layout.
func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// nullableTS maps a nil time to NULL.
func nullableTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

// parseTS parses a stored timestamp, returning the zero time on bad input.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses a nullable stored timestamp.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

var _ app.Store = (*Repository)(nil)
