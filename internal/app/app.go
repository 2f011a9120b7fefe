package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/five82/stm2mon/internal/alert"
	"github.com/five82/stm2mon/internal/config"
	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/prefs"
	"github.com/five82/stm2mon/internal/sink"
	"github.com/five82/stm2mon/internal/state"
	"github.com/five82/stm2mon/internal/ui"
)

// Options configure the stm2mon application.
type Options struct {
	ConfigPath string
	PrefsPath  string         // empty uses default ~/.config/stm2mon/prefs.toml
	Flags      *pflag.FlagSet // parsed command line; may be nil
	Headless   bool
}

// Run boots stm2mon until the context is cancelled or the operator quits.
func Run(ctx context.Context, opts Options) (err error) {
	cfg, err := config.Load(opts.ConfigPath, opts.Flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg.Log, !opts.Headless)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeLog()) }()
	if cfg.File != "" {
		logger.Info("using config file", "path", cfg.File)
	}

	writer, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Warn("close sink failed", "error", cerr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctrl := ingest.NewController(ingest.Options{
		Sink:         sink.NewMetrics(writer),
		Alerts:       alert.NewTracker(),
		Metrics:      ingest.NewMetrics(reg),
		Logger:       logger,
		PollInterval: cfg.Ingest.PollInterval,
		StopTimeout:  cfg.Ingest.StopTimeout,
		EventBuffer:  cfg.Ingest.EventBuffer,
	})
	defer func() {
		if serr := ctrl.Stop(); serr != nil && !errors.Is(serr, ingest.ErrNotRunning) {
			logger.Warn("stop ingestion failed", "error", serr)
		}
	}()

	store := &state.Store{}
	StartPump(ctx, store, ctrl.Events(), logger)

	if cfg.Metrics.Addr != "" {
		addr, err := ServeMetrics(ctx, cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		logger.Info("serving metrics", "addr", addr)
	}

	if opts.Headless {
		return RunHeadless(ctx, ctrl, store, cfg, logger)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	return ui.Run(ui.Options{
		Context:       ctx,
		Controller:    ctrl,
		Store:         store,
		AlertFraction: cfg.Ingest.AlertFraction,
		Form:          userPrefs.FormDefaults(cfg.Run.Input()),
		Prefs:         userPrefs,
		PrefsPath:     opts.PrefsPath,
		ThemeName:     userPrefs.Theme,
		Logger:        logger,
	})
}

func logStartError(logger *slog.Logger, err error) {
	logger.Error("start ingestion failed", "category", ingest.Category(err), "error", err)
}
