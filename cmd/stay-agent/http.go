package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/StayScout/config"
	"github.com/BearBump/StayScout/internal/scheduler"
	"github.com/BearBump/StayScout/internal/services/agent"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type controlOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	agent *agent.Agent
	loop  *scheduler.Loop
	cfg   *config.Config
}

func runControlServer(ctx context.Context, opts controlOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("agent swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("agent swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{}
		if opts.loop != nil {
			out["scheduler"] = opts.loop.Status()
		}
		if opts.agent != nil {
			out["agent"] = opts.agent.Stats()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/statistics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.agent == nil {
			_, _ = w.Write([]byte(`{"error":"agent not wired"}`))
			return
		}
		window := 7 * 24 * time.Hour
		if d := r.URL.Query().Get("days"); d != "" {
			var days int
			if _, err := fmt.Sscanf(d, "%d", &days); err == nil && days > 0 {
				window = time.Duration(days) * 24 * time.Hour
			}
		}
		stats, err := opts.agent.Statistics(r.Context(), window)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(stats)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Секреты наружу не отдаём, только операционные настройки.
		out := map[string]any{
			"sources":                   opts.cfg.Agent.Sources,
			"notifiers":                 opts.cfg.Agent.Notifiers,
			"destination":               opts.cfg.Agent.Criteria.Destination,
			"searchIntervalHours":       opts.cfg.Agent.SearchIntervalHours,
			"priceAlertIntervalMinutes": opts.cfg.Agent.PriceAlertIntervalMinutes,
			"cleanupIntervalDays":       opts.cfg.Agent.CleanupIntervalDays,
			"newWindowHours":            opts.cfg.Agent.NewWindowHours,
			"priceDropThresholdPct":     opts.cfg.Agent.PriceDropThresholdPct,
			"retentionDays":             opts.cfg.Agent.RetentionDays,
			"fetchRatePerMinute":        opts.cfg.Agent.FetchRatePerMinute,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger/{task}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.loop == nil {
			_, _ = w.Write([]byte(`{"error":"scheduler not wired"}`))
			return
		}
		task := chi.URLParam(r, "task")
		if !opts.loop.RunNow(r.Context(), task) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"triggered": false, "task": task})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"triggered": true, "task": task})
	})

	r.Post("/test-notify", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.agent == nil {
			_, _ = w.Write([]byte(`{"error":"agent not wired"}`))
			return
		}
		if err := opts.agent.TestNotify(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_, _ = w.Write([]byte(`{"sent":true}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
