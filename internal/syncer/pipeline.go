// internal/syncer/pipeline.go
//
// Shop pipeline orchestrator: one shop, one run, start to terminal status.
//
// Context
// -------
// The pipeline drives the 7-step sequence for a single shop:
//
//  1. Open the sync_logs audit row (`running`).
//  2. Resolve the shop's API credentials by TLD; absence fails the run.
//  3. Fetch base-language products and variants concurrently.
//  4. Attach variants to products; count and report orphans.
//  5. Project and upsert product, product-content, variant, and
//     variant-content rows, in that order.
//  6. Cleanup: delete stored products, then variants, that the base fetch
//     no longer contains.
//  7. For every other active language: fetch the pair concurrently, keep
//     only content whose remote id is in the base-language valid set, and
//     upsert content rows.  No cleanup here.
//
// Any error in steps 2–7 closes the audit row as `error` with the metrics
// gathered so far and propagates to the fleet, which logs it and moves on.
// Steps never overlap: each one completes before the next begins, except
// the two fetches inside a pair.
//
// Notes
// -----
// • The valid sets are the base fetch's own id sets, not a re-read of the
//   store.  A concurrent external delete between upsert and the secondary
//   pass could therefore leave content rows for a just-removed id; the
//   design accepts this because same-shop runs are not mutually excluded
//   anyway.
// • Oxford commas, two spaces after periods.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/catalog"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/metrics"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/store"
)

// Fetcher is the slice of the API client the pipeline needs.
// *lightspeed.Client satisfies it; tests substitute scripted fakes.
type Fetcher interface {
	Products(ctx context.Context, lang string) ([]lightspeed.Product, error)
	Variants(ctx context.Context, lang string) ([]lightspeed.Variant, error)
}

// Store is the slice of the destination store the pipeline needs.
type Store interface {
	StartSyncLog(ctx context.Context, shopID int64) (int64, error)
	FinishSyncLog(ctx context.Context, id int64, status string, m store.RunMetrics, errMsg string) error
	UpsertProducts(ctx context.Context, rows []catalog.ProductRow) error
	UpsertProductContent(ctx context.Context, rows []catalog.ProductContentRow) error
	UpsertVariants(ctx context.Context, rows []catalog.VariantRow) error
	UpsertVariantContent(ctx context.Context, rows []catalog.VariantContentRow) error
	CleanupProducts(ctx context.Context, shopID int64, fetched map[int64]struct{}) (int, error)
	CleanupVariants(ctx context.Context, shopID int64, fetched map[int64]struct{}) (int, error)
}

// Pipeline carries one shop run's collaborators.  All fields are required.
type Pipeline struct {
	Shop        store.Shop
	Store       Store
	Credentials func(tld string) (lightspeed.Credentials, error)
	NewFetcher  func(lightspeed.Credentials) Fetcher
	Log         *zap.SugaredLogger
}

// Run executes the full pipeline and returns the run's terminal error, if
// any.  The sync_logs row always reaches a terminal status, even on
// failure.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.Log.With("shop", p.Shop.Name)
	log.Infow("syncing shop")

	logID, err := p.Store.StartSyncLog(ctx, p.Shop.ID)
	if err != nil {
		return fmt.Errorf("shop %s: %w", p.Shop.Name, err)
	}

	start := time.Now()
	metrics.ShopSyncsInFlight.Inc()
	defer func() {
		metrics.ShopSyncsInFlight.Dec()
		metrics.ShopSyncSeconds.Observe(time.Since(start).Seconds())
	}()

	var m store.RunMetrics
	if err := p.run(ctx, log, &m); err != nil {
		metrics.ShopSyncsTotal.WithLabelValues(store.StatusError).Inc()
		if ferr := p.Store.FinishSyncLog(ctx, logID, store.StatusError, m, err.Error()); ferr != nil {
			log.Errorw("could not record failed sync", "err", ferr)
		}
		return fmt.Errorf("shop %s: %w", p.Shop.Name, err)
	}

	if err := p.Store.FinishSyncLog(ctx, logID, store.StatusSuccess, m, ""); err != nil {
		metrics.ShopSyncsTotal.WithLabelValues(store.StatusError).Inc()
		return fmt.Errorf("shop %s: %w", p.Shop.Name, err)
	}
	metrics.ShopSyncsTotal.WithLabelValues(store.StatusSuccess).Inc()

	log.Infow("shop sync complete",
		"took", time.Since(start),
		"products", m.ProductsSynced,
		"variants", m.VariantsSynced,
		"products_deleted", m.ProductsDeleted,
		"variants_deleted", m.VariantsDeleted,
		"variants_filtered", m.VariantsFiltered)
	return nil
}

// run is steps 2–7.  Metrics accumulate in m as the run progresses so a
// failure still records how far it got.
func (p *Pipeline) run(ctx context.Context, log *zap.SugaredLogger, m *store.RunMetrics) error {
	creds, err := p.Credentials(p.Shop.TLD)
	if err != nil {
		return err
	}
	fetch := p.NewFetcher(creds)

	baseLang, err := p.Shop.BaseLanguage()
	if err != nil {
		return err
	}

	// Base language: full fetch, products and variants in parallel.
	products, variants, err := fetchPair(ctx, fetch, baseLang)
	if err != nil {
		return err
	}
	m.ProductsFetched = len(products)
	m.VariantsFetched = len(variants)
	log.Infow("fetched catalog", "lang", baseLang,
		"products", len(products), "variants", len(variants))

	attached, orphans := catalog.Attach(products, variants)
	m.VariantsFiltered = orphans.Count()
	if n := orphans.Count(); n > 0 {
		metrics.OrphanVariantsTotal.Add(float64(n))
		log.Warnw("variants reference products missing from this fetch",
			"count", n, "variant_ids", orphans.VariantIDs())
	}

	rows, err := catalog.BuildRows(p.Shop.ID, baseLang, attached)
	if err != nil {
		return err
	}
	m.ProductsSynced = len(rows.Products)
	m.VariantsSynced = len(rows.Variants)
	log.Infow("built rows to upsert",
		"products", len(rows.Products), "variants", len(rows.Variants))

	// Core before content: content rows reference ids the core upsert must
	// have satisfied first.
	if err := p.Store.UpsertProducts(ctx, rows.Products); err != nil {
		return err
	}
	if err := p.Store.UpsertProductContent(ctx, rows.ProductContent); err != nil {
		return err
	}
	if err := p.Store.UpsertVariants(ctx, rows.Variants); err != nil {
		return err
	}
	if err := p.Store.UpsertVariantContent(ctx, rows.VariantContent); err != nil {
		return err
	}

	// The valid sets gate both cleanup and every secondary-language pass.
	validProducts := make(map[int64]struct{}, len(rows.Products))
	for _, r := range rows.Products {
		validProducts[r.ProductID] = struct{}{}
	}
	validVariants := make(map[int64]struct{}, len(rows.Variants))
	for _, r := range rows.Variants {
		validVariants[r.VariantID] = struct{}{}
	}

	if m.ProductsDeleted, err = p.Store.CleanupProducts(ctx, p.Shop.ID, validProducts); err != nil {
		return err
	}
	if m.ProductsDeleted > 0 {
		log.Infow("deleted products gone upstream", "count", m.ProductsDeleted)
	}
	if m.VariantsDeleted, err = p.Store.CleanupVariants(ctx, p.Shop.ID, validVariants); err != nil {
		return err
	}
	if m.VariantsDeleted > 0 {
		log.Infow("deleted variants gone upstream", "count", m.VariantsDeleted)
	}

	// Secondary languages: content only, filtered against the valid sets.
	for _, lang := range p.Shop.ActiveLanguages() {
		if lang == baseLang {
			continue
		}
		if err := p.syncContent(ctx, log, fetch, lang, validProducts, validVariants); err != nil {
			return err
		}
	}
	return nil
}

// syncContent is one secondary-language pass: step 7 for a single language.
func (p *Pipeline) syncContent(ctx context.Context, log *zap.SugaredLogger, fetch Fetcher,
	lang string, validProducts, validVariants map[int64]struct{}) error {

	log.Infow("syncing language", "lang", lang)

	products, variants, err := fetchPair(ctx, fetch, lang)
	if err != nil {
		return err
	}

	keptProducts := make([]lightspeed.Product, 0, len(products))
	for _, pr := range products {
		if _, ok := validProducts[pr.ID]; ok {
			keptProducts = append(keptProducts, pr)
		}
	}
	keptVariants := make([]lightspeed.Variant, 0, len(variants))
	for _, v := range variants {
		if _, ok := validVariants[v.ID]; ok {
			keptVariants = append(keptVariants, v)
		}
	}

	if n := len(products) - len(keptProducts); n > 0 {
		log.Warnw("filtered products not in base language", "lang", lang, "count", n)
	}
	if n := len(variants) - len(keptVariants); n > 0 {
		log.Warnw("filtered variants not in base language", "lang", lang, "count", n)
	}

	if err := p.Store.UpsertProductContent(ctx,
		catalog.ProductContentRows(p.Shop.ID, lang, keptProducts)); err != nil {
		return err
	}
	return p.Store.UpsertVariantContent(ctx,
		catalog.VariantContentRows(p.Shop.ID, lang, keptVariants))
}

// fetchPair retrieves one language's products and variants as a scoped pair
// of tasks.  A failure in either cancels its sibling fetch only, never
// another shop's.
func fetchPair(ctx context.Context, fetch Fetcher, lang string) ([]lightspeed.Product, []lightspeed.Variant, error) {
	var (
		products []lightspeed.Product
		variants []lightspeed.Variant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = fetch.Products(gctx, lang)
		return err
	})
	g.Go(func() error {
		var err error
		variants, err = fetch.Variants(gctx, lang)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, variants, nil
}
