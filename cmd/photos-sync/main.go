// Package main runs the photos-sync client: the control API with background
// photo sync, or one-shot commands against the same repositories.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/config"
	"github.com/photos-network/photos-sync/internal/logger"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Parse()

	if options.Command == "serve" {
		fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
		fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot start", zap.Error(err))
	}
	defer a.Close()

	if err := a.run(ctx, options.Command, os.Stdin, os.Stdout); err != nil {
		zapLogger.Error("command failed", zap.String("cmd", options.Command), zap.Error(err))
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}
