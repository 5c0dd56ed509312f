package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/config"
	"github.com/evanschultz/cadence/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("CADENCE_DEV_MODE", "false")
	os.Exit(m.Run())
}

// testEnv points one CLI run at a throwaway database and config file.
type testEnv struct {
	dbPath  string
	cfgPath string
}

// newTestEnv prepares isolated config and database paths, writing config when non-empty.
func newTestEnv(t *testing.T, config string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{dbPath: filepath.Join(dir, "cadence.db"), cfgPath: filepath.Join(dir, "config.toml")}
	if config != "" {
		if err := os.WriteFile(env.cfgPath, []byte(config), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return env
}

// run executes one command against the env and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--db", e.dbPath, "--config", e.cfgPath}, args...)
	err := run(context.Background(), full, &out, io.Discard)
	return out.String(), err
}

// mustJSON runs a --json command and decodes its output into v.
func (e testEnv) mustJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := e.run(t, append([]string{"--json"}, args...)...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %v output %q: %v", args, out, err)
	}
}

// stamp formats t the way --start and --to accept it.
func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// TestRunVersion verifies both the flag and the subcommand.
func TestRunVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"version"}} {
		var out strings.Builder
		if err := run(context.Background(), args, &out, io.Discard); err != nil {
			t.Fatalf("run(%v) error = %v", args, err)
		}
		if !strings.Contains(out.String(), "cadence") || !strings.Contains(out.String(), version) {
			t.Fatalf("expected version output, got %q", out.String())
		}
	}
}

// TestRunPaths verifies path resolution output without opening storage.
func TestRunPaths(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "cadence-test", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: cadence-test", "dev_mode: false", "config:", "db:", "logs:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in %q", want, out.String())
		}
	}
}

// TestRunItemLifecycle walks an item from creation through completion of a recurring series.
func TestRunItemLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	start := time.Now().Add(2 * time.Hour).Truncate(time.Minute)

	var created domain.ScheduleItem
	env.mustJSON(t, &created, "add", "Morning", "run", "--type", "health", "--start", stamp(start), "--duration", "30", "--repeat", "daily", "--tag", "Fitness")
	if created.ID == "" || created.Title != "Morning run" || created.Duration != 30 {
		t.Fatalf("unexpected created item %#v", created)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "fitness" {
		t.Fatalf("expected normalized tags, got %v", created.Tags)
	}

	var started domain.ScheduleItem
	env.mustJSON(t, &started, "start", created.ID)
	if !started.InProgress {
		t.Fatalf("expected in-progress item, got %#v", started)
	}

	var postponed domain.ScheduleItem
	env.mustJSON(t, &postponed, "postpone", created.ID, "--to", stamp(start.Add(time.Hour)), "--reason", "rain", "--category", "unavailable", "--impact", "low")
	if len(postponed.Postponements) != 1 || !postponed.StartDate.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected postponed item %#v", postponed)
	}

	var edited domain.ScheduleItem
	env.mustJSON(t, &edited, "edit", created.ID, "--priority", "high")
	if edited.Priority != domain.PriorityHigh || edited.Title != "Morning run" {
		t.Fatalf("unexpected edited item %#v", edited)
	}

	var done app.CompletionResult
	env.mustJSON(t, &done, "done", created.ID)
	if !done.Item.Completed || done.Next == nil {
		t.Fatalf("expected completion with successor, got %#v", done)
	}
	if want := start.Add(time.Hour).AddDate(0, 0, 1); !done.Next.StartDate.Equal(want) {
		t.Fatalf("successor start = %v, want %v", done.Next.StartDate, want)
	}

	var high []domain.ScheduleItem
	env.mustJSON(t, &high, "priority", "high")
	if len(high) != 2 {
		t.Fatalf("priority high = %d items, want 2", len(high))
	}

	var metrics domain.PerformanceMetrics
	env.mustJSON(t, &metrics, "metrics")
	if metrics.CompletionRate != 50 {
		t.Fatalf("completion rate = %v, want 50", metrics.CompletionRate)
	}

	out, err := env.run(t, "list")
	if err != nil {
		t.Fatalf("run(list) error = %v", err)
	}
	if !strings.Contains(out, "Morning run") {
		t.Fatalf("expected table row, got %q", out)
	}
}

// TestRunAddWithZeroMaxPostponements verifies an explicit zero limit reaches the engine.
func TestRunAddWithZeroMaxPostponements(t *testing.T) {
	env := newTestEnv(t, "")
	start := time.Now().Add(2 * time.Hour).Truncate(time.Minute)

	var created domain.ScheduleItem
	env.mustJSON(t, &created, "add", "Fixed", "slot", "--type", "work", "--start", stamp(start), "--duration", "30", "--max-postponements", "0")
	if created.MaxPostponements != 0 {
		t.Fatalf("expected max postponements 0, got %d", created.MaxPostponements)
	}
	if _, err := env.run(t, "postpone", created.ID, "--to", stamp(start.Add(time.Hour))); err == nil {
		t.Fatal("expected postpone to fail with a zero limit")
	}
}

// TestRunDeleteAndRestore verifies the soft-delete round trip.
func TestRunDeleteAndRestore(t *testing.T) {
	env := newTestEnv(t, "")
	var created domain.ScheduleItem
	env.mustJSON(t, &created, "add", "--title", "Call", "--type", "social", "--start", stamp(time.Now().Add(time.Hour)), "--duration", "15")

	if _, err := env.run(t, "delete", created.ID); err != nil {
		t.Fatalf("run(delete) error = %v", err)
	}
	var deleted []domain.ScheduleItem
	env.mustJSON(t, &deleted, "list", "--collection", "deleted")
	if len(deleted) != 1 || deleted[0].ID != created.ID {
		t.Fatalf("deleted collection = %#v", deleted)
	}
	if _, err := env.run(t, "start", created.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("start on deleted item error = %v, want ErrNotFound", err)
	}

	var restored domain.ScheduleItem
	env.mustJSON(t, &restored, "restore", created.ID)
	if restored.DeletedAt != nil {
		t.Fatalf("expected restored item, got %#v", restored)
	}
}

// TestRunErrors verifies argument and engine failures surface as errors.
func TestRunErrors(t *testing.T) {
	env := newTestEnv(t, "")
	cases := []struct {
		name string
		args []string
		is   error
	}{
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "missing item", args: []string{"show", "ghost"}, is: app.ErrNotFound},
		{name: "bad date", args: []string{"add", "--title", "x", "--type", "work", "--start", "soonish", "--duration", "5"}},
		{name: "validation", args: []string{"add", "--title", "x", "--type", "nope", "--start", stamp(time.Now()), "--duration", "5"}, is: domain.ErrValidation},
		{name: "empty edit", args: []string{"edit", "ghost"}},
		{name: "postpone without date", args: []string{"postpone", "ghost"}},
		{name: "bad priority", args: []string{"priority", "urgent"}},
		{name: "import without file", args: []string{"import"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.run(t, tc.args...)
			if err == nil {
				t.Fatalf("run(%v) expected error", tc.args)
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("run(%v) error = %v, want %v", tc.args, err, tc.is)
			}
		})
	}
}

// TestRunDraftFlow verifies drafts merge across saves and clear on submit.
func TestRunDraftFlow(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.run(t, "draft", "save", "Read", "paper", "--type", "learning"); err != nil {
		t.Fatalf("run(draft save) error = %v", err)
	}
	if _, err := env.run(t, "draft", "save", "--start", stamp(time.Now().Add(3*time.Hour)), "--duration", "45"); err != nil {
		t.Fatalf("run(draft save 2) error = %v", err)
	}

	var draft domain.ScheduleItemDraft
	env.mustJSON(t, &draft, "draft", "show")
	if draft.Title != "Read paper" || draft.Type != domain.ItemTypeLearning || draft.Duration != 45 {
		t.Fatalf("unexpected merged draft %#v", draft)
	}

	var item domain.ScheduleItem
	env.mustJSON(t, &item, "draft", "submit")
	if item.Title != "Read paper" {
		t.Fatalf("unexpected submitted item %#v", item)
	}
	if _, err := env.run(t, "draft", "show"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("draft show after submit error = %v, want ErrNotFound", err)
	}
}

// TestRunNotifyDeliversOverdue verifies the outbox plans an overdue notice and notify delivers it.
func TestRunNotifyDeliversOverdue(t *testing.T) {
	env := newTestEnv(t, "[notifications]\nsink = \"stdout\"\n")
	var created domain.ScheduleItem
	env.mustJSON(t, &created, "add", "--title", "Report", "--type", "work", "--start", stamp(time.Now().Add(-2*time.Hour)), "--duration", "60")

	out, err := env.run(t, "notify")
	if err != nil {
		t.Fatalf("run(notify) error = %v", err)
	}
	if !strings.Contains(out, "overdue") || !strings.Contains(out, created.ID) || !strings.Contains(out, "Overdue: Report") {
		t.Fatalf("expected overdue delivery, got %q", out)
	}

	again, err := env.run(t, "notify")
	if err != nil {
		t.Fatalf("run(notify again) error = %v", err)
	}
	if strings.TrimSpace(again) != "" {
		t.Fatalf("expected nothing pending on second pass, got %q", again)
	}
}

// TestRunNotifyDisabled verifies notify refuses to run when the outbox is off.
func TestRunNotifyDisabled(t *testing.T) {
	env := newTestEnv(t, "[notifications]\nenabled = false\n")
	if _, err := env.run(t, "notify"); err == nil {
		t.Fatal("expected disabled notifications error")
	}
}

// TestRunExportImport verifies a snapshot moves items between databases.
func TestRunExportImport(t *testing.T) {
	src := newTestEnv(t, "")
	var created domain.ScheduleItem
	src.mustJSON(t, &created, "add", "--title", "Ship", "--type", "work", "--start", stamp(time.Now().Add(time.Hour)), "--duration", "90")

	snapPath := filepath.Join(t.TempDir(), "out", "snap.json")
	if _, err := src.run(t, "export", "--out", snapPath); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}

	dst := newTestEnv(t, "")
	if _, err := dst.run(t, "import", "--in", snapPath); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	var item domain.ScheduleItem
	dst.mustJSON(t, &item, "show", created.ID)
	if item.Title != "Ship" || item.Duration != 90 {
		t.Fatalf("unexpected imported item %#v", item)
	}
}

// TestParseWhen verifies accepted date layouts.
func TestParseWhen(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	cases := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2026-02-21T12:00:00Z", want: time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)},
		{raw: "2026-02-21 09:30", want: time.Date(2026, 2, 21, 9, 30, 0, 0, loc)},
		{raw: "2026-02-21T09:30", want: time.Date(2026, 2, 21, 9, 30, 0, 0, loc)},
		{raw: "2026-02-21", want: time.Date(2026, 2, 21, 0, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got, err := parseWhen(tc.raw, loc)
		if err != nil {
			t.Fatalf("parseWhen(%q) error = %v", tc.raw, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseWhen(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
	if _, err := parseWhen("tomorrow", loc); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

// TestDevLogFilePath verifies dev log placement and stem sanitizing.
func TestDevLogFilePath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	got, err := devLogFilePath(dir, "my app/dev", now)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if want := filepath.Join(dir, "my-app-dev-20260221.log"); got != want {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
	if sanitizeLogFileStem("  ") != "cadence" {
		t.Fatal("expected fallback stem")
	}
}

// TestRuntimeLoggerEngineKeepsSinkFormats verifies engine events stay text on the console and logfmt in the dev file.
func TestRuntimeLoggerEngineKeepsSinkFormats(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC) }
	var stderr bytes.Buffer
	logger, err := newRuntimeLogger(&stderr, "cadence", true, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Engine().Info("item created", "item_id", "i1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	console := stderr.String()
	if !strings.Contains(console, "item created") || !strings.Contains(console, "component=engine") {
		t.Fatalf("expected engine event on console, got %q", console)
	}
	if strings.Contains(console, "msg=") || strings.Contains(console, "level=") {
		t.Fatalf("expected text format on console, got %q", console)
	}
	content, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), `msg="item created"`) || !strings.Contains(string(content), "component=engine") {
		t.Fatalf("expected logfmt engine event in dev file, got %q", content)
	}
}
