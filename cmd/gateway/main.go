package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"screendeck/internal/gateway/app"
	"screendeck/internal/gateway/config"
	"screendeck/internal/logging"
)

func main() {
	port := flag.String("port", "", "listen port, overrides PORT")
	flag.Parse()

	log := logging.Component("gateway")
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if *port != "" {
		cfg.Port = config.NormalizePort(*port)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize app")
	}

	go func() {
		if err := a.Start(); err != nil {
			log.WithError(err).Error("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	if err := a.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exiting")
}
