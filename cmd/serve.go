package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/apply-cli/internal/model"
	"github.com/sells-group/apply-cli/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only JSON API over the application history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		log := zap.L().Named("serve")
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(cfg.Tracker.HistoryFile, cfg.Server.CORSOrigins, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("starting server", zap.Int("port", port), zap.String("history_file", cfg.Tracker.HistoryFile))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// buildRouter serves the history file. Every request reads the file afresh so
// that saves from a running chat session show up immediately.
func buildRouter(historyFile string, origins []string, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	// Per-request opens only surface load failures.
	storeLog := log.Named("tracker").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	open := func() *tracker.Store {
		return tracker.Open(historyFile, tracker.Options{}, storeLog)
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, open().Statistics())
		})

		r.Get("/applications", func(w http.ResponseWriter, r *http.Request) {
			store := open()
			apps := store.List()
			if q := r.URL.Query().Get("status"); q != "" {
				status, err := model.ParseStatus(q)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				apps = store.ByStatus(status)
			}
			if apps == nil {
				apps = []*model.Application{}
			}
			writeJSON(w, http.StatusOK, apps)
		})

		r.Get("/applications/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			app, ok := open().Get(id)
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "application not found"})
				return
			}
			writeJSON(w, http.StatusOK, app)
		})

		r.Get("/export.csv", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="applications.csv"`)
			if err := open().ExportCSV(w); err != nil {
				log.Error("csv export failed", zap.Error(err))
			}
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
