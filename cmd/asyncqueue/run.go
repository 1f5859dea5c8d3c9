package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/handlers"
	"github.com/kubev2v/asyncqueue/internal/processor"
	"github.com/kubev2v/asyncqueue/internal/server"
	"github.com/kubev2v/asyncqueue/internal/services"
	"github.com/kubev2v/asyncqueue/internal/store"
	"github.com/kubev2v/asyncqueue/internal/store/migrations"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the task API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer flush()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Configuration) error {
	logger := zap.S().Named("agent")
	logger.Infow("starting", "config", cfg.DebugMap())

	db, err := store.NewDBFromFolder(cfg.Store.DataFolder)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return err
	}

	proc, err := processor.New(cfg.Processor)
	if err != nil {
		return err
	}

	taskSrv, err := services.NewTaskService(cfg.Queue, proc, store.NewStore(db))
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, handlers.New(taskSrv).RegisterRoutes)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server failed", "error", err)
		}
	}

	// new submissions fail fast while in-flight requests drain
	taskSrv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
		logger.Warnw("http shutdown incomplete", "error", stopErr)
	}

	taskSrv.Close()
	logger.Info("stopped")

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
