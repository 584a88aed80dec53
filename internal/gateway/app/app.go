package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"screendeck/internal/gateway/config"
	"screendeck/internal/gateway/handler"
	"screendeck/internal/gateway/server"
	"screendeck/internal/logging"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

type App struct {
	server     *server.Server
	components *Components
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logging.Setup(cfg.LogLevel, cfg.LogFormat, nil)

	c, err := Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	h := server.Handlers{
		Convert:  handler.NewConvertHandler(c.Pipeline),
		History:  handler.NewHistoryHandler(c.History),
		Health:   handler.NewHealthHandler(c.Registry.Names(), c.Registry.Default(), c.OCR, c.Documents != nil),
		Gatherer: c.Gatherer,
		// base64 inflates the image by a third; leave room for the envelope.
		MaxBody: int64(cfg.MaxImageBytes)*4/3 + 64<<10,
	}
	if c.Documents != nil {
		h.Documents = handler.NewDocumentHandler(c.Documents)
	}

	return &App{
		server:     server.New(cfg.Port, server.NewMux(h)),
		components: c,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(a.server.Shutdown(ctx), a.components.Close())
}

// Run serves until ctx is done or the server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- a.server.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, a.Shutdown(sctx))
}
