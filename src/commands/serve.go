package commands

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/handlers"
	"github.com/username/ledgervault/src/logger"
	"github.com/username/ledgervault/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newServeCommand() *cobra.Command {
	var storePath string
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				storePath = config.Cfg.DatabasePath
			}
			if port == "" {
				port = config.Cfg.Port
			}

			importService := services.NewImportService(storePath, config.Cfg.ImportHistoryRetention, nil)
			importHandler := handlers.NewImportHandler(importService)

			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/import", importHandler.HandleImport)
			mux.HandleFunc("GET /api/import/history", importHandler.HandleGetHistory)
			mux.HandleFunc("GET /api/import/history/{importID}/changes", importHandler.HandleGetChanges)
			mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/" {
					http.NotFound(w, r)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"message":"LedgerVault is running"}`))
			})

			server := &http.Server{
				Addr:         ":" + port,
				Handler:      rateLimitMiddleware(mux),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			logger.L.Info("Server starting", "address", server.Addr, "store", storePath)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.L.Error("Failed to start server", "error", err)
				return err
			}
			logger.L.Info("Server stopped gracefully.")
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "store path (defaults to DATABASE_PATH)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to PORT)")
	return cmd
}
