package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-reports/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports as JSON over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initReportService()
		if err != nil {
			return err
		}

		handler := buildRouter(svc, cfg.Server.AllowedOrigins)
		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// buildRouter mounts the health check and the report endpoints.
func buildRouter(svc *report.Service, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, http.StatusOK, map[string]any{
			"status": "ok",
			"cache":  svc.CacheStats(),
		})
	})

	r.Route("/reports/{tenant}/{pipeline}", func(r chi.Router) {
		r.Get("/daily", reportHandler(func(ctx context.Context, req report.Request) (any, error) {
			return svc.DailyReport(ctx, req)
		}))
		r.Get("/pipeline", reportHandler(func(ctx context.Context, req report.Request) (any, error) {
			return svc.PipelineReport(ctx, req)
		}))
		r.Get("/seguimiento", reportHandler(func(ctx context.Context, req report.Request) (any, error) {
			return svc.SeguimientoReport(ctx, req)
		}))
		r.Get("/pedidos", reportHandler(func(ctx context.Context, req report.Request) (any, error) {
			return svc.PedidosReport(ctx, req)
		}))
		r.Get("/prices", reportHandler(func(ctx context.Context, req report.Request) (any, error) {
			return svc.PriceReport(ctx, req)
		}))
	})

	return r
}

func reportHandler(build func(ctx context.Context, req report.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := report.Request{
			TenantID:   chi.URLParam(r, "tenant"),
			PipelineID: chi.URLParam(r, "pipeline"),
			Date:       r.URL.Query().Get("date"),
		}

		out, err := build(r.Context(), req)
		if err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				zap.L().Error("serve: report failed",
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err),
				)
			}
			writeResponse(w, status, map[string]string{"error": errorMessage(err)})
			return
		}
		writeResponse(w, http.StatusOK, out)
	}
}

func errorStatus(err error) int {
	switch {
	case eris.Is(err, report.ErrRateLimited):
		return http.StatusTooManyRequests
	case eris.Is(err, report.ErrUnknownTenant), eris.Is(err, report.ErrDealNotFound):
		return http.StatusNotFound
	case eris.Is(err, report.ErrInvalidRequest):
		return http.StatusBadRequest
	case eris.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to clients: the user message for rate
// limits, otherwise the error chain.
func errorMessage(err error) string {
	if eris.Is(err, report.ErrRateLimited) {
		return report.RateLimitMessage
	}
	return err.Error()
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
