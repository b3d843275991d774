/**
 * netscope-observatoryd Entry Point.
 *
 * Loads configuration, opens storage, and runs the capture supervisor
 * until a shutdown signal arrives or the supervisor exits on its own.
 * Exit codes follow the daemon's error taxonomy: 0 clean, 2 config
 * invalid, 3 interface unavailable, 4 persistence unrecoverable.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/enrich"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"github.com/netscope-observatory/netscope-observatory/internal/notify"
	"github.com/netscope-observatory/netscope-observatory/internal/query"
	"github.com/netscope-observatory/netscope-observatory/internal/storage"
	"github.com/netscope-observatory/netscope-observatory/internal/supervisor"
)

const (
	exitClean            = 0
	exitConfigInvalid    = 2
	exitInterfaceDown    = 3
	exitPersistenceFatal = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration file")
	metricsAddr := flag.String("metrics-addr", ":9464", "address to serve Prometheus metrics on")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config error: %v", err)
		return exitConfigInvalid
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		log.Printf("opening database %s: %v", cfg.DBPath, err)
		return exitPersistenceFatal
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		log.Printf("running migrations: %v", err)
		return exitPersistenceFatal
	}

	geo, err := enrich.OpenMaxMindResolver(cfg.GeoIPCityDB, cfg.GeoIPASNDB)
	if err != nil {
		log.Printf("opening GeoIP databases: %v (continuing without geo enrichment)", err)
		geo = nil
	} else if geo != nil {
		defer geo.Close()
	}

	hub := notify.NewHub(64)
	sup := supervisor.New(cfg, store, hub, geoResolverOrNil(geo))
	querySvc := query.New(store, healthAdapter{sup})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received, draining in-flight work")
		cancel()
	}()

	metricsSrv := startMetricsServer(*metricsAddr)
	defer metricsSrv.Close()

	go runRetentionSweeper(ctx, store, cfg.RetentionDays)

	_ = querySvc // consumed by the (out of scope) HTTP query layer; kept wired here so main owns its one instance

	runErr := sup.Run(ctx)
	if runErr == nil {
		log.Println("shutdown complete")
		return exitClean
	}

	var kerr *model.KindError
	if errors.As(runErr, &kerr) {
		switch kerr.Kind {
		case model.ErrInterfaceUnavailable:
			log.Printf("capture interface unavailable: %v", runErr)
			return exitInterfaceDown
		case model.ErrPersistenceFatal:
			log.Printf("persistence failure: %v", runErr)
			return exitPersistenceFatal
		}
	}
	log.Printf("supervisor exited: %v", runErr)
	return exitPersistenceFatal
}

// geoResolverOrNil adapts a possibly-nil *enrich.MaxMindResolver to a nil
// enrich.GeoResolver interface value; a non-nil concrete pointer stored in
// an interface is never == nil, so this indirection is required to let
// downstream nil-checks work as intended.
func geoResolverOrNil(r *enrich.MaxMindResolver) enrich.GeoResolver {
	if r == nil {
		return nil
	}
	return r
}

type healthAdapter struct {
	sup *supervisor.Supervisor
}

func (h healthAdapter) Health() query.Health { return h.sup.CurrentHealth() }

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	return srv
}

// runRetentionSweeper trims rows older than retentionDays once a day,
// per spec.md's retention policy. A non-positive retentionDays disables
// trimming entirely.
func runRetentionSweeper(ctx context.Context, store storage.Storage, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			if err := store.TrimOlderThan(cutoff); err != nil {
				log.Printf("retention sweep: %v", err)
			}
		}
	}
}
