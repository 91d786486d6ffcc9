package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"illo/internal/app"
)

func main() {
	var (
		cfgPath  = pflag.String("config", "./config.json", "path to config file (json, yaml or toml)")
		sim      = pflag.Bool("sim", false, "use the simulated device even if a serial port is configured")
		logLevel = pflag.String("log-level", "", "override logging.level from the config")
	)
	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{
		ConfigPath: *cfgPath,
		ForceSim:   *sim,
		LogLevel:   *logLevel,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
