package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/api"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/config"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/provision"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	runOnStart := flag.Bool("run-on-start", false, "run one merge provisioning pass at startup")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("hkd-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"catalog", cfg.Catalog.Path,
		"watch", cfg.Catalog.Watch,
		"grafana_url", cfg.Grafana.URL,
		"auth_mode", cfg.Grafana.Auth.Mode(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Catalog store, seeded from the YAML file.
	st := catalog.NewStore()
	snap, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.Catalog.Path, "err", err)
		os.Exit(1)
	}
	st.Replace(snap)
	slog.Info("catalog loaded",
		"path", cfg.Catalog.Path,
		"stations", len(snap.Stations),
		"instruments", len(snap.Instruments),
		"alerts", len(snap.Alerts),
	)

	// Grafana API client.
	client := grafana.NewClient(grafana.Options{
		BaseURL:   cfg.Grafana.URL,
		Username:  cfg.Grafana.Auth.Username(),
		Password:  cfg.Grafana.Auth.Password(),
		Token:     cfg.Grafana.Auth.Token(),
		Timeout:   time.Duration(cfg.Grafana.TimeoutSeconds) * time.Second,
		RateLimit: cfg.Grafana.RateLimit,
		RateBurst: cfg.Grafana.RateBurst,
	})

	// Provisioning engine, streaming pass progress to the WebSocket hub.
	var prov *provision.Provisioner
	hub := ws.New(func() *provision.PassResult {
		if prov == nil {
			return nil
		}
		return prov.Last()
	})
	go hub.Run(ctx)

	prov = provision.New(client, provision.BuildConfig{
		DatasourceUID:  cfg.Grafana.DatasourceUID,
		DatasourceName: cfg.Grafana.DatasourceName,
		InfluxBucket:   cfg.Grafana.InfluxBucket,
	}, st.Snapshot, hub)

	if *runOnStart {
		go func() {
			if _, err := prov.Run(ctx, provision.ModeMerge); err != nil {
				slog.Error("startup provisioning pass failed", "err", err)
			}
		}()
	}

	// Catalog file watcher — a rewritten catalog replaces the store and
	// triggers a merge pass.
	if cfg.Catalog.Watch {
		go func() {
			err := catalog.Watch(ctx, cfg.Catalog.Path, func(snap *catalog.Snapshot) {
				st.Replace(snap)
				if _, err := prov.Run(ctx, provision.ModeMerge); err != nil {
					slog.Error("provisioning pass after catalog reload failed", "err", err)
				}
			})
			if err != nil {
				slog.Error("catalog watcher stopped", "err", err)
			}
		}()
	}

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, prov, client))
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("hkd-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
