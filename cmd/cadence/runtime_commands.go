package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evanschultz/cadence/internal/adapters/notify"
	"github.com/evanschultz/cadence/internal/adapters/server"
	"github.com/evanschultz/cadence/internal/adapters/server/common"
	"github.com/evanschultz/cadence/internal/app"
)

// dispatcher builds the outbox dispatcher from config.
func (c *cli) dispatcher(env *runtimeEnv) (*notify.Dispatcher, error) {
	sink, err := notify.NewSink(env.cfg.Notifications.Sink, env.logger.Engine(), c.stdout)
	if err != nil {
		return nil, err
	}
	return notify.NewDispatcher(env.repo, sink, c.now, env.logger.Engine()), nil
}

// newNotifyCommand delivers due outbox notifications.
func newNotifyCommand(c *cli) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Deliver due notifications once, or continuously with --watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open()
			if err != nil {
				return err
			}
			if !env.cfg.Notifications.Enabled {
				return errors.New("notifications are disabled in config")
			}
			d, err := c.dispatcher(env)
			if err != nil {
				return err
			}
			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				env.logger.Info("watching notification outbox", "interval", env.cfg.DispatchInterval())
				return d.Run(ctx, env.cfg.DispatchInterval())
			}
			n, err := d.DispatchDue(cmd.Context())
			if err != nil {
				return fmt.Errorf("dispatch notifications: %w", err)
			}
			env.logger.Debug("notifications dispatched", "count", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep dispatching until interrupted")
	return cmd
}

// newExportCommand writes a snapshot of every collection.
func newExportCommand(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			snap, err := svc.ExportSnapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("export snapshot: %w", err)
			}
			encoded, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "-" {
				if _, err := c.stdout.Write(encoded); err != nil {
					return fmt.Errorf("write snapshot to stdout: %w", err)
				}
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCommand loads a snapshot file.
func newImportCommand(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON snapshot, overwriting items with the same ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}
			if err := svc.ImportSnapshot(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// newServeCommand runs the HTTP and MCP servers with the dispatcher alongside.
func newServeCommand(c *cli) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and MCP APIs, dispatching notifications alongside",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.open()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				env.cfg.Server.HTTPBind = bind
			}
			var d *notify.Dispatcher
			if env.cfg.Notifications.Enabled {
				if d, err = c.dispatcher(env); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(ctx, server.Config{
					HTTPBind:      env.cfg.Server.HTTPBind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					ServerName:    env.appName,
					ServerVersion: version,
				}, server.Dependencies{
					Service: common.NewAppServiceAdapter(env.svc),
					Logger:  env.logger.Engine(),
				})
			})
			if d != nil {
				g.Go(func() error {
					return d.Run(ctx, env.cfg.DispatchInterval())
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "override server.http_bind")
	return cmd
}
