package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evanschultz/cadence/internal/adapters/notify"
	"github.com/evanschultz/cadence/internal/adapters/storage/sqlite"
	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/config"
	"github.com/evanschultz/cadence/internal/platform"
	"github.com/evanschultz/cadence/internal/render"
)

var version = "dev"

// main runs the CLI entrypoint.
func main() {
	ctx := context.Background()
	c := newCLI(os.Stdout, os.Stderr)
	err := fang.Execute(ctx, newRootCommand(c), fang.WithVersion(version))
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation with explicit streams; main wraps the same tree in fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := newCLI(stdout, stderr)
	defer c.close()
	root := newRootCommand(c)
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	asJSON     bool
}

// cli carries streams, flags, and the lazily opened runtime for one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	opts   globalOptions
	now    func() time.Time
	env    *runtimeEnv
}

// runtimeEnv is everything a command needs once config and storage are resolved.
type runtimeEnv struct {
	appName    string
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// newCLI builds CLI state writing to stdout and stderr.
func newCLI(stdout, stderr io.Writer) *cli {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &cli{stdout: stdout, stderr: stderr, now: time.Now}
}

// newRootCommand wires global flags and every subcommand.
func newRootCommand(c *cli) *cobra.Command {
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("CADENCE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	appName := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("CADENCE_APP_NAME")); envApp != "" {
		appName = envApp
	}

	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Schedule tasks and events with recurrence, postponement limits, and dependencies",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&c.opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.BoolVar(&c.opts.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newAddCommand(c),
		newListCommand(c),
		newShowCommand(c),
		newStartCommand(c),
		newDoneCommand(c),
		newPostponeCommand(c),
		newDeleteCommand(c),
		newRestoreCommand(c),
		newEditCommand(c),
		newConflictsCommand(c),
		newOverdueCommand(c),
		newUpcomingCommand(c),
		newPriorityCommand(c),
		newBlockedCommand(c),
		newMetricsCommand(c),
		newDraftCommand(c),
		newNotifyCommand(c),
		newExportCommand(c),
		newImportCommand(c),
		newServeCommand(c),
		newPathsCommand(c),
		newVersionCommand(c),
	)
	return root
}

// resolvePaths applies flag, env, and platform defaults for config and data paths.
func (c *cli) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.opts.appName,
		DevMode: c.opts.devMode,
	})
}

// open resolves config, logging, storage, and the engine once per invocation.
func (c *cli) open() (*runtimeEnv, error) {
	if c.env != nil {
		return c.env, nil
	}
	paths, err := c.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := c.opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("CADENCE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(c.opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("CADENCE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(c.stderr, c.opts.appName, c.opts.devMode, cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "dev_mode", c.opts.devMode)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	var notifier app.Notifier
	if cfg.Notifications.Enabled {
		notifier = notify.NewOutbox(repo, newID, c.now)
	}
	svc := app.NewService(repo, notifier, newID, c.now, app.ServiceConfig{
		DefaultMaxPostponements: cfg.Engine.DefaultMaxPostponements,
		ArchiveCompleted:        cfg.Engine.ArchiveCompleted,
		UpcomingDays:            cfg.Engine.UpcomingDays,
		StreakWindowDays:        cfg.Engine.StreakWindowDays,
		NotificationTimeout:     cfg.NotificationTimeout(),
	}, app.WithLogger(logger.Engine()))

	c.env = &runtimeEnv{
		appName:    c.opts.appName,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}
	return c.env, nil
}

// close releases the runtime opened by open, if any.
func (c *cli) close() {
	if c.env == nil {
		return
	}
	if err := c.env.repo.Close(); err != nil {
		c.env.logger.Warn("sqlite close failed", "db_path", c.env.cfg.Database.Path, "err", err)
	}
	if err := c.env.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "warning: close runtime log sink: %v\n", err)
	}
	c.env = nil
}

// service wraps open for commands that only need the engine.
func (c *cli) service() (*app.Service, error) {
	env, err := c.open()
	if err != nil {
		return nil, err
	}
	return env.svc, nil
}

// renderer styles output only when stdout is a terminal.
func (c *cli) renderer() *render.Renderer {
	styled, width := false, 0
	if f, ok := c.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		styled = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	return render.New(styled, width, time.Local)
}

// emit prints v as JSON under --json, otherwise the text view.
func (c *cli) emit(v any, text func(*render.Renderer) string) error {
	if c.opts.asJSON {
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(c.stdout, string(encoded))
		return err
	}
	_, err := fmt.Fprintln(c.stdout, text(c.renderer()))
	return err
}

// newID returns time-ordered ids so sqlite rows sort by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// parseBoolEnv reads a boolean env var and reports whether it was set to a valid value.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// newPathsCommand prints the resolved config, data, and log paths.
func newPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := c.resolvePaths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.opts.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.opts.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(c.stdout, "logs: %s\n", paths.LogDir)
			return nil
		},
	}
}

// newVersionCommand prints the build version.
func newVersionCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cadence version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(c.stdout, "cadence %s\n", version)
			return err
		},
	}
}
