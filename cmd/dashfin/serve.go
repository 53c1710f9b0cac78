package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"dashfin/internal/auth"
	"dashfin/internal/config"
	"dashfin/internal/database"
	"dashfin/internal/handlers"
	"dashfin/internal/identify"
	"dashfin/internal/jobs"
	"dashfin/internal/logger"
	"dashfin/internal/version"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	return cmd
}

// openStore validates the store settings, opens the database and applies
// pending migrations
func openStore(c config.Config) (*database.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	db, err := database.Open(c.Store.URL, c.Store.Key)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func identifyDefaults(c config.Config) identify.Defaults {
	return identify.Defaults{
		HighAmountCardID: c.Identify.HighAmountCard,
		LowAmountCardID:  c.Identify.LowAmountCard,
		CategoryCardIDs:  identify.DefaultCategoryCards(),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := logger.Default()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	db, err := openStore(cfg)
	if err != nil {
		log.Error("database_open_failed", "dialect_postgres", cfg.Store.IsPostgres(), "error", err.Error())
		return err
	}
	defer db.Close()

	a := auth.New(db, cfg.Auth.Required)
	if !cfg.Auth.Required {
		log.Warn("auth_disabled")
	}

	worker := jobs.NewWorker(db, log, cfg.Jobs.PollInterval)
	worker.Register(jobs.JobRehashPasswords, jobs.RehashPasswordsHandler())
	worker.Register(jobs.JobCleanSessions, jobs.CleanSessionsHandler(a))
	worker.Start()
	defer worker.Stop()

	if _, err := db.CreateJob(ctx, jobs.JobCleanSessions, nil); err != nil {
		log.Error("job_enqueue_failed", "job_type", jobs.JobCleanSessions, "error", err.Error())
	}
	if cfg.Auth.RehashOnStart {
		if id, err := db.CreateJob(ctx, jobs.JobRehashPasswords, nil); err != nil {
			log.Error("job_enqueue_failed", "job_type", jobs.JobRehashPasswords, "error", err.Error())
		} else {
			log.Info("job_enqueued", "job_type", jobs.JobRehashPasswords, "job_id", id)
		}
	}

	h := handlers.New(db, a, handlers.Options{
		DefaultUser: cfg.Webhook.DefaultUser,
		Defaults:    identifyDefaults(cfg),
	})

	// Wrap with middleware: logging -> auth -> mux
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: logger.HTTPMiddleware(a.Middleware(h.Routes())),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", "port", cfg.Server.Port, "address", "http://localhost:"+strconv.Itoa(cfg.Server.Port), "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", "error", err.Error())
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server_stopping", "timeout", cfg.Server.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", "error", err.Error())
		return err
	}
	log.Info("server_stopped")
	return nil
}
