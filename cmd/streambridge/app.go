package main

import (
	"context"
	"log"
	"sync"

	"streambridge/internal/config"
	"streambridge/internal/feed"
	"streambridge/internal/render"
	"streambridge/internal/supervisor"
	"streambridge/pkg/srb"
)

// App wires the feed, ring, render and supervisor components together.
type App struct {
	config *config.Config
	ring   *srb.Ring

	feedClient *feed.Client
	renderer   *render.Render

	fileMonitor  *supervisor.FileMonitor
	stdinMonitor *supervisor.StdinMonitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp builds an App from the default configuration.
func NewApp() (*App, error) {
	cfg := config.DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())

	ring, err := srb.New(cfg.Buffer.Size, cfg.Buffer.DrainPollInterval)
	if err != nil {
		cancel()
		return nil, err
	}

	app := &App{
		config: cfg,
		ring:   ring,
		ctx:    ctx,
		cancel: cancel,
	}

	app.feedClient = feed.NewClient(ctx, &cfg.Feed, ring, cfg.EnableDebug)
	app.renderer = render.New(ctx, &cfg.Render, cfg.Buffer.AnchorFetchTimeout, ring, cfg.EnableDebug)

	if cfg.Supervisor.UseStdin {
		app.stdinMonitor = supervisor.NewStdinMonitor(ctx, &cfg.Supervisor, app)
	} else {
		app.fileMonitor = supervisor.NewFileMonitor(ctx, &cfg.Supervisor, app)
	}

	return app, nil
}

// Start starts every component.
func (app *App) Start() error {
	if err := app.feedClient.Start(); err != nil {
		return err
	}
	app.renderer.Start()

	if app.config.Supervisor.UseStdin {
		if err := app.stdinMonitor.Start(); err != nil {
			return err
		}
		log.Println("streambridge started (stdin control mode)")
	} else {
		if err := app.fileMonitor.Start(); err != nil {
			return err
		}
		log.Printf("streambridge started (file control mode: %s)", app.config.Supervisor.FilePath)
	}

	return nil
}

// Stop cancels the shared context, stops the monitor, the feed client and
// the renderer in that order, then signals writer-finished and aborts the
// ring. Nothing is ever added to wg, so Stop does not wait for the
// components' background goroutines to exit.
func (app *App) Stop() error {
	app.cancel()

	if app.fileMonitor != nil {
		if err := app.fileMonitor.Stop(); err != nil {
			log.Printf("failed to stop file monitor: %v", err)
		}
	}
	if app.stdinMonitor != nil {
		if err := app.stdinMonitor.Stop(); err != nil {
			log.Printf("failed to stop stdin monitor: %v", err)
		}
	}
	if err := app.feedClient.Stop(); err != nil {
		log.Printf("failed to stop feed client: %v", err)
	}
	if err := app.renderer.Stop(); err != nil {
		log.Printf("failed to stop renderer: %v", err)
	}

	app.ring.SignalWriterFinished()
	app.ring.Abort()

	app.wg.Wait()

	log.Println("streambridge exited safely")
	return nil
}

// Wait blocks until the application's context is cancelled.
func (app *App) Wait() {
	<-app.ctx.Done()
}

// HandleCommand implements supervisor.Handler.
func (app *App) HandleCommand(cmd supervisor.Command) {
	if !supervisor.Handle(app.ring, cmd) {
		app.cancel()
	}
}
