// cmd/sync/main.go
//
// ShopSync – catalog reconciliation entry point.
//
// Run life-cycle
// --------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load layered config (YAML → env → Vault refs) and validate it.
//
//  4. Open the global DB pool and read the shop roster with its
//     per-shop language lists.
//
//  5. Expose /metrics and /healthz on a side listener for scrapes while
//     the run is in flight.
//
//  6. Fan the fleet out: one pipeline goroutine per shop, each with its
//     own DB pool, each closing its own sync_logs audit row.  A failing
//     shop never blocks a sibling.
//
//  7. Log the per-shop outcomes and total wall-clock; exit non-zero when
//     any shop failed.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/config"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/database"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/logger"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/store"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/syncer"
)

const serverEnvPath = "/usr/local/etc/shopsync/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	rootDir := os.Getenv("SHOPSYNC_ROOT")
	if rootDir == "" {
		rootDir, _ = os.Getwd()
	}
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		logOut.Fatalw("load config", "err", err)
	}

	//
	// ── 2.  Global DB connect + shop roster ─────────────────────────────
	//
	logOut.Infow("connecting to global DB")
	globalDB, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logOut.Fatalw("connect global DB", "err", err)
	}
	defer globalDB.Close()
	logOut.Infow("global DB online")

	shops, err := store.New(globalDB).Shops(ctx)
	if err != nil {
		logOut.Fatalw("load shop roster", "err", err)
	}
	if len(shops) == 0 {
		logOut.Warnw("no shops configured, nothing to do")
		return
	}
	logOut.Infow("shop roster loaded", "shops", len(shops))

	//
	// ── 3.  Metrics endpoint ────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: r}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Warnw("metrics listener stopped", "err", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutCtx)
	}()
	logOut.Infow("metrics listener up", "addr", cfg.HTTP.ListenAddr)

	//
	// ── 4.  Fleet run ───────────────────────────────────────────────────
	//
	start := time.Now()
	outcomes := syncer.RunFleet(ctx, shops, syncer.NewShopRunner(cfg, logOut), logOut)

	for _, o := range outcomes {
		if o.Err != nil {
			logOut.Errorw("shop finished with error",
				"shop", o.Shop.Name, "took", o.Duration, "err", o.Err)
			continue
		}
		logOut.Infow("shop finished", "shop", o.Shop.Name, "took", o.Duration)
	}

	failed := syncer.Failed(outcomes)
	logOut.Infow("fleet run complete",
		"shops", len(shops),
		"failed", failed,
		"took", time.Since(start))

	if failed > 0 {
		logOut.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
