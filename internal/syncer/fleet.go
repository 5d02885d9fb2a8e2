// internal/syncer/fleet.go
//
// Fleet scheduler: every configured shop, concurrently, isolated.
//
// Context
// -------
// One goroutine per shop, concurrency equal to the shop count.  A failing
// shop is logged and its outcome recorded; it never cancels or blocks a
// sibling.  Each shop run opens its own database pool inside its runner, so
// no handle is shared across shop tasks — connection efficiency is traded
// for complete fault isolation.
//
// Nothing here guards two overlapping fleet runs against racing on the same
// shop's rows.  That gap is deliberate and documented; the sync_logs trail
// is the operator's signal.

package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/config"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/database"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/store"
)

// Runner executes one shop's pipeline.  Production uses NewShopRunner;
// tests substitute scripted runners.
type Runner func(ctx context.Context, shop store.Shop) error

// Outcome is one shop's result in a fleet pass.
type Outcome struct {
	Shop     store.Shop
	Err      error
	Duration time.Duration
}

// RunFleet fans one Runner invocation out per shop and waits for all of
// them.  Outcomes are returned in roster order regardless of completion
// order.
func RunFleet(ctx context.Context, shops []store.Shop, run Runner, log *zap.SugaredLogger) []Outcome {
	outcomes := make([]Outcome, len(shops))

	var wg sync.WaitGroup
	for i, sh := range shops {
		wg.Add(1)
		go func(i int, sh store.Shop) {
			defer wg.Done()
			start := time.Now()
			err := run(ctx, sh)
			outcomes[i] = Outcome{Shop: sh, Err: err, Duration: time.Since(start)}
			if err != nil {
				log.Errorw("shop sync failed", "shop", sh.Name, "err", err)
			}
		}(i, sh)
	}
	wg.Wait()

	return outcomes
}

// NewShopRunner wires the production pipeline: a private database pool per
// shop, the shared API base URL, and credential lookup from the loaded
// config.
func NewShopRunner(cfg *config.Config, log *zap.SugaredLogger) Runner {
	return func(ctx context.Context, shop store.Shop) error {
		db, err := database.OpenWithOptions(ctx, cfg.Database.DSN, database.PerShop)
		if err != nil {
			return fmt.Errorf("open pool for shop %s: %w", shop.Name, err)
		}
		defer db.Close()

		p := &Pipeline{
			Shop:        shop,
			Store:       store.New(db),
			Credentials: cfg.CredentialsFor,
			NewFetcher: func(creds lightspeed.Credentials) Fetcher {
				return lightspeed.New(creds,
					lightspeed.WithBaseURL(cfg.API.BaseURL),
					lightspeed.WithLogger(log.With("shop", shop.Name)))
			},
			Log: log,
		}
		return p.Run(ctx)
	}
}

// Failed counts the outcomes that ended in error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
