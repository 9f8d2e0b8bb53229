package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/engramkit/engram/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve the memory engine over HTTP.

Endpoints live under /v1/memory/. The server also exposes /healthz and
a Prometheus /metrics endpoint.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8787", "Listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.exporter", "stdout")
	viper.SetDefault("tracing.timeout", 10*time.Second)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := slog.Default()

	var tracingCfg tracing.Config
	if err := viper.UnmarshalKey("tracing", &tracingCfg); err != nil {
		return fmt.Errorf("parse tracing config: %w", err)
	}
	shutdownTracing, err := tracing.Init(ctx, tracingCfg, "engram", Version, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	metrics := newAPIMetrics()
	metrics.setRecordCount(eng.store.Count())
	tracer := otel.Tracer("engram/api")

	mw := func(route string, next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			spanCtx, span := tracer.Start(r.Context(), route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(rec, r.WithContext(spanCtx))

			elapsed := time.Since(start)
			status := strconv.Itoa(rec.status)
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			metrics.recordRequest(r.Method, route, status, elapsed)
			metrics.setRecordCount(eng.store.Count())
			log.Info("request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration", elapsed,
			)
		}
	}

	mux := http.NewServeMux()
	api := &MemoryAPI{store: eng.store}
	api.RegisterMemoryRoutes(mux, mw)
	mux.Handle("/metrics", metrics.handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": Version})
	})

	addr := viper.GetString("server.addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
