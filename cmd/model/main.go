// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command model runs the Meridian Model API server: operation execution,
// job tracking, model queries, and change subscriptions over REST and
// WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MeridianIDE/MeridianCore/pkg/logging"
	"github.com/MeridianIDE/MeridianCore/services/model"
)

const serviceName = "model"

func main() {
	addr := flag.String("addr", ":8085", "listen address")
	configPath := flag.String("config", "", "path to YAML server configuration")
	watchRoot := flag.String("watch-root", "", "workspace directory to watch for saves (overrides config)")
	logDir := flag.String("log-dir", "", "directory for JSON log files (empty disables file logging)")
	debug := flag.Bool("debug", false, "enable debug logging")
	jsonLogs := flag.Bool("json-logs", false, "emit stderr logs as JSON")
	flag.Parse()

	level := logging.LevelInfo
	if *debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: serviceName,
		JSON:    *jsonLogs,
	})
	defer logger.Close()
	slogger := logger.Slog()

	if err := run(*addr, *configPath, *watchRoot, *debug, slogger); err != nil {
		slogger.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(addr, configPath, watchRoot string, debug bool, slogger *slog.Logger) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if watchRoot != "" {
		cfg.WatchRoot = watchRoot
	}

	// Metrics: otel instruments exported through the Prometheus registry,
	// scraped at /metrics.
	promExporter, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	otel.SetMeterProvider(meterProvider)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = meterProvider.Shutdown(ctx)
	}()

	server, err := model.NewServer(cfg, nil)
	if err != nil {
		return fmt.Errorf("building model server: %w", err)
	}
	defer server.Close()

	if err := registerBuiltins(server.Registry()); err != nil {
		return fmt.Errorf("registering built-in operations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("meridian-" + serviceName))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	model.RegisterRoutes(router, model.NewHandlers(server, nil))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slogger.Info("model server listening", "addr", addr, "watch_root", cfg.WatchRoot)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slogger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slogger.Info("model server stopped")
	return nil
}
