package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roverlink/roverlink/internal/api"
	"github.com/roverlink/roverlink/internal/auth"
	"github.com/roverlink/roverlink/internal/config"
	"github.com/roverlink/roverlink/internal/hub"
	"github.com/roverlink/roverlink/internal/logring"
	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/internal/robot"
	"github.com/roverlink/roverlink/internal/video"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	staticDir := flag.String("static-dir", "", "serve static files from this directory under /public; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("roverlink-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.SlogLevel())

	secret := cfg.Server.Auth.Secret()
	if secret == "" {
		slog.Error("auth secret not set", "env", cfg.Server.Auth.SecretEnv)
		os.Exit(1)
	}
	adminPass := cfg.Server.Auth.AdminPass()
	if adminPass == "" {
		slog.Error("admin password not set", "env", cfg.Server.Auth.AdminPassEnv)
		os.Exit(1)
	}

	gate, err := auth.New(cfg.Server.Auth.Mode, secret,
		cfg.Server.Auth.AdminUser, adminPass, cfg.Server.Auth.TokenTTL)
	if err != nil {
		slog.Error("failed to build token gate", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"max_frame_bytes", cfg.Server.Video.MaxFrameBytes,
		"log_capacity", cfg.Server.Logs.Capacity,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	met := metrics.New()
	ring := logring.New(cfg.Server.Logs.Capacity)
	ring.Subscribe(logring.LevelInfo, met) // count every appended entry
	cache := video.New(cfg.Server.Video.MaxFrameBytes)
	robots := robot.New(ring)

	// Connection router — closes all live connections on shutdown.
	h := hub.New(gate, cache, robots, ring, met)
	go h.Run(ctx)

	// Hot-reload the log level on config changes.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			level.Set(c.Server.SlogLevel())
		})
		if err != nil {
			slog.Error("config watch unavailable", "err", err)
		}
	}()

	router := api.New(gate, cache, robots, met, h)
	if *staticDir != "" {
		router.Handle("/public/*",
			http.StripPrefix("/public/", http.FileServer(http.Dir(*staticDir))))
		slog.Info("serving static files", "dir", *staticDir)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: router,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("roverlink-server shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	slog.Info("roverlink-server stopped")
}
