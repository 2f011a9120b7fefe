package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/stm2mon/internal/app"
	"github.com/five82/stm2mon/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("stm2mon", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default ~/.config/stm2mon/config.toml)")
	prefsPath := flags.String("prefs", "", "preferences file (default ~/.config/stm2mon/prefs.toml)")
	headless := flags.Bool("headless", false, "ingest the configured run without the TUI until SIGINT/SIGTERM")
	config.RegisterFlags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Flags:      flags,
		Headless:   *headless,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "stm2mon: %v\n", err)
		return 1
	}
	return 0
}
