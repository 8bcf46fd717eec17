package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/retoucher/internal/autosave"
	"github.com/lehigh-university-libraries/retoucher/internal/config"
	"github.com/lehigh-university-libraries/retoucher/internal/handlers"
	"github.com/lehigh-university-libraries/retoucher/internal/prompts"
	"github.com/lehigh-university-libraries/retoucher/internal/session"
	"github.com/lehigh-university-libraries/retoucher/internal/storage"
	"github.com/lehigh-university-libraries/retoucher/internal/views"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editing API server",
		Long: `Starts the Retoucher HTTP API.

Sessions, their edit history and the recent prompt lists are kept in a SQLite
database so an interrupted session can be resumed. Pass --db "" to keep
everything in memory.`,
		Example: `  # Start server on the default address :8888
  retoucher serve

  # Use OpenAI and a custom database
  RETOUCHER_PROVIDER=openai retoucher serve --addr :3000 --db /var/lib/retoucher/state.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DB = dbPath
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}

			var store storage.Store
			if cfg.DB == "" {
				store = storage.NewMemoryStore()
			} else {
				db, err := storage.Open(cfg.DB, storage.WithMkdirAll())
				if err != nil {
					return err
				}
				defer db.Close()
				store = db
			}

			book := prompts.NewBook(store)
			registry := views.NewRegistry()
			handler := handlers.New(func(id string) *session.Session {
				if id == "" {
					id = uuid.NewString()
				}
				return session.New(eng,
					session.WithID(id),
					session.WithViews(registry),
					session.WithPrompts(book),
					session.WithBrushSize(cfg.BrushSize),
					session.WithAutosave(autosave.NewSaver(store, autosave.SessionKey(id), cfg.AutosaveDelay)),
				)
			}, book, registry, store)

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Retoucher API available", "addr", cfg.Addr, "provider", eng.provider, "model", eng.model, "db", cfg.DB)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				if err := handler.Close(shutdownCtx); err != nil {
					slog.Error("Failed to save sessions", "err", err)
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8888", "Address to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "retoucher.db", "SQLite database for sessions and prompts")

	return cmd
}
