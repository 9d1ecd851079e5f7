package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/metrics"
	"github.com/doridoridoriand/nodeboard/internal/probe"
	"github.com/doridoridoriand/nodeboard/internal/procman"
	"github.com/doridoridoriand/nodeboard/internal/scheduler"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"github.com/doridoridoriand/nodeboard/internal/sysmon"
	"github.com/doridoridoriand/nodeboard/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	watchDebounce   = 500 * time.Millisecond
	scriptStopGrace = 5 * time.Second
)

var errUserQuit = errors.New("user quit")

func newRunCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the dashboard (default command)",
		Long: `Start periodic node checks, host sampling and the terminal dashboard.

Edits to the nodes file trigger an immediate check. With --no-ui the
dashboard is skipped and log lines are also written to stderr.

Examples:
  nodeboard run
  nodeboard run --no-ui --metrics-listen :9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, o)
		},
	}
}

func runDashboard(cmd *cobra.Command, o *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := o.loader()
	settings, err := loader.LoadSettings()
	if err != nil {
		return err
	}

	var extra io.Writer
	if settings.UIDisable {
		extra = cmd.ErrOrStderr()
	}
	logger, closeLog, err := openLogger(settings, extra)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.LogConfigLoad(true, loader.SettingsPath, nil)

	store := state.NewStore()
	batcher := scheduler.NewBatcher(probe.NewTCPProber(), store, logger)
	system := sysmon.NewMonitor(settings.DiskPaths, logger)
	procs := procman.NewManager(settings.Scripts, settings.LogDir, logger)
	defer procs.StopAll(scriptStopGrace)

	registry := metrics.NewRegistry(store, system)
	monitor := scheduler.NewMonitor(loader, batcher, store, logger, scheduler.Options{
		Observer: metrics.NewCycleMetrics(registry),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return quiet(monitor.Run(gctx))
	})
	g.Go(func() error {
		return quiet(system.Run(gctx, settings.Refresh()))
	})
	g.Go(func() error {
		nodesPath := loader.ResolveNodesPath(settings)
		err := config.Watch(gctx, nodesPath, watchDebounce, func() {
			logger.Info(log.CategoryConfig, "nodes file changed", zap.String("path", nodesPath))
			monitor.ForceCheck()
		}, func(err error) {
			logger.Warn(log.CategoryConfig, "nodes file watcher error", zap.String("path", nodesPath), zap.Error(err))
		})
		if err := quiet(err); err != nil {
			logger.Warn(log.CategoryConfig, "nodes file watch disabled", zap.String("path", nodesPath), zap.Error(err))
		}
		return nil
	})
	if settings.MetricsListen != "" {
		g.Go(func() error {
			logger.Info(log.CategorySystem, "metrics server listening", zap.String("addr", settings.MetricsListen))
			if err := quiet(metrics.Serve(gctx, settings.MetricsListen, registry)); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if settings.UIDisable {
		fmt.Fprintln(cmd.OutOrStdout(), "nodeboard running without dashboard; press Ctrl-C to stop")
	} else {
		dashboard := ui.New(monitor, store, system, procs, logger)
		g.Go(func() error {
			err := dashboard.Run(gctx)
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				return errUserQuit
			}
			return quiet(err)
		})
	}

	err = g.Wait()
	logger.Info(log.CategorySystem, "nodeboard stopped")
	if errors.Is(err, errUserQuit) {
		return nil
	}
	return err
}

// openLogger opens the application log file. extra, when non-nil, also
// receives every line.
func openLogger(settings config.Settings, extra io.Writer) (*log.Logger, func(), error) {
	path := settings.LogPath()
	if path == "" {
		if extra == nil {
			return log.Nop(), func() {}, nil
		}
		return log.NewLogger(log.ParseLevel(settings.LogLevel), extra), func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = file
	if extra != nil {
		w = io.MultiWriter(file, extra)
	}
	logger := log.NewLogger(log.ParseLevel(settings.LogLevel), w)
	return logger, func() {
		_ = logger.Sync()
		_ = file.Close()
	}, nil
}

// quiet maps cancellation to nil.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
