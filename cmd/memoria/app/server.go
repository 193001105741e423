// Package app provides the memoria server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/memoria/cmd/memoria/app/options"
	"github.com/kart-io/memoria/internal/memoria"
	"github.com/kart-io/memoria/pkg/infra/app"
)

const commandDesc = `Memoria grant document service

Scores a project's technical report against the grant call and repairs
its weakest sections one by one.

This server provides:
  - Diagnosis of a project document by a text generation model
  - Automatic improvement with a live progress stream (SSE)
  - Per-project run lock, shared model rate limit and retries`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(memoria.Name),
		app.WithShortDescription("Memoria grant document diagnosis and repair service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// 第二次收到信号时直接退出。
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
