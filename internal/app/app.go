package app

import (
	"context"
	"fmt"

	"fxagent/internal/config"
	"fxagent/internal/logger"
	apihttp "fxagent/internal/transport/http/api"
	"fxagent/internal/workflow"

	"golang.org/x/sync/errgroup"
)

// App owns the assembled engine and the HTTP service in front of it.
type App struct {
	cfg     *config.Config
	engine  *workflow.Engine
	server  *apihttp.Server
	Summary *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Engine exposes the workflow engine for one-shot CLI runs.
func (a *App) Engine() *workflow.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
