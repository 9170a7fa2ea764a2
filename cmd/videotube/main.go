package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videotube/internal/auth"
	"videotube/internal/config"
	"videotube/internal/handler"
	"videotube/internal/media"
	"videotube/internal/service"
	"videotube/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	shutdownTimeout = 10 * time.Second
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)
	lgr.Info("starting videotube", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("videotube stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	lgr.Info("videotube stopped")
}

func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	//INIT DB
	if err := storage.Migrate(ctx, cfg.DbURL); err != nil {
		return err
	}

	st, err := storage.NewPostgresStorage(ctx, cfg.DbURL)
	if err != nil {
		return err
	}
	defer st.Close()

	mediaStorage, err := media.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	srvc := service.NewService(st, st, tokens, mediaStorage, lgr)

	//INIT SERVER
	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewHandler(srvc, tokens, cfg, lgr).InitRoutes()

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", cfg.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
