package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/konavision/config"
	"github.com/krau/konavision/onnx"
	"github.com/krau/konavision/server"
	"github.com/krau/konavision/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(config.C().LogLevel)})))
	slog.Info("Starting KonaVision")

	if err := onnx.Init(); err != nil {
		slog.Error("Failed to initialize ONNX Runtime environment", slog.String("error", err.Error()))
		return
	}
	defer onnx.Shutdown()

	threads := config.C().IntraOpThreads
	loader := func(path string) (service.Session, error) {
		s, err := onnx.Load(path, threads)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	reg, err := server.Init(ctx, loader)
	if err != nil {
		slog.Error("Failed to initialize server", slog.String("error", err.Error()))
		return
	}
	defer func() {
		if err := reg.Close(); err != nil {
			slog.Error("Failed to release models", slog.String("error", err.Error()))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    config.C().Host + ":" + config.C().Port,
		Handler: server.New(reg, config.C().MaxUploadMB).Router(),
	}
	slog.Info("Listening on", slog.String("address", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", slog.String("error", err.Error()))
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
