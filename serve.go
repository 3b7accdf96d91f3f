package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"vidshape/config"
	"vidshape/credentials"
	"vidshape/failures"
	"vidshape/job"
	"vidshape/logger"
	"vidshape/routes"
	"vidshape/success"
	taskqueue "vidshape/taskQueue"
)

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = config.GetListenAddr()
			}
			return serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default VIDSHAPE_LISTEN_ADDR or :8080)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	logger.Info("Starting vidshape server initialization")

	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return err
	}
	defer credentials.CloseDB()

	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		return err
	}
	defer failures.Close()

	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		return err
	}
	defer success.Close()

	if err := taskqueue.Open(config.GetQueueDBPath()); err != nil {
		return err
	}
	defer taskqueue.Close()
	logger.Infof("Databases opened under %s", config.GetDataDir())

	if rt, err := job.DefaultRuntime(); err != nil {
		logger.Warnf("Media runtime unavailable, jobs will fail until it is: %v", err)
	} else {
		job.SetRuntime(rt)
	}

	if n, err := job.RestorePendingJobs(); err != nil {
		logger.Errorf("Failed to restore pending jobs: %v", err)
	} else if n > 0 {
		logger.Infof("Restored %d pending jobs", n)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go cleanupRoutine(ctx, 24*time.Hour)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		job.ProcessPendingJobs(ctx)
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(config.GetDirectServeBaseDir()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("vidshape server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		cancel()
		<-workerDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	logger.Info("Waiting for the running job to finish")
	<-workerDone
	return nil
}

// cleanupRoutine periodically removes success and failure records past the retention window.
func cleanupRoutine(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCleanup(config.GetRecordRetention())
		}
	}
}

func runCleanup(maxAge time.Duration) {
	logger.Infof("Cleaning up records older than %v", maxAge)
	if n, err := success.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old success records: %v", err)
	} else {
		logger.Infof("Removed %d old success records", n)
	}
	if n, err := failures.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old failure records: %v", err)
	} else {
		logger.Infof("Removed %d old failure records", n)
	}
}
