// internal/store/store.go
//
// Postgres store of record: bulk upserts and set-difference cleanup.
//
// Context
// -------
// Every destination table is keyed by a composite natural key (shop plus
// remote id, plus language for content tables), so a sync run is idempotent:
// re-applying the same snapshot upserts the same rows into the same state.
// Cleanup is the inverse half of reconciliation — stored ids minus freshly
// fetched ids are deleted, scoped to the shop, which is how records removed
// upstream leave the store.  There is no tombstone state.
//
// Workflow (one shop, base language)
// ---------------------------------
//  1. UpsertProducts        – core rows first; content references them.
//  2. UpsertProductContent
//  3. UpsertVariants
//  4. UpsertVariantContent
//  5. CleanupProducts, CleanupVariants – after all upserts, base fetch only.
//
// Notes
// -----
// • A failed upsert or delete is fatal to the shop's run; rows already
//   written stay written.  The sync_logs row records how far the run got.
// • Statements are chunked so a large catalog cannot overrun the Postgres
//   bind-parameter limit.
// • Oxford commas, two spaces after periods.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/catalog"
)

// upsertChunk bounds rows per INSERT.  Widest row shape is 8 columns, so
// this stays well under the 65535 bind-parameter ceiling.
const upsertChunk = 500

// Store wraps one shop pipeline's private *sqlx.DB pool.
type Store struct {
	db *sqlx.DB
}

// New wraps an open pool.  The caller owns the pool's lifetime.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

//
// ── Bulk upserts ────────────────────────────────────────────────────────
//

// UpsertProducts writes core product rows.  No-op on empty input.
func (s *Store) UpsertProducts(ctx context.Context, rows []catalog.ProductRow) error {
	const q = `
        INSERT INTO products
               (shop_id, lightspeed_product_id, visibility, image, ls_created_at, ls_updated_at)
        VALUES (:shop_id, :lightspeed_product_id, :visibility, :image, :ls_created_at, :ls_updated_at)
        ON CONFLICT (shop_id, lightspeed_product_id) DO UPDATE SET
               visibility    = EXCLUDED.visibility,
               image         = EXCLUDED.image,
               ls_created_at = EXCLUDED.ls_created_at,
               ls_updated_at = EXCLUDED.ls_updated_at`
	return upsertChunked(ctx, s.db, "products", q, rows)
}

// UpsertProductContent writes localized product text rows.
func (s *Store) UpsertProductContent(ctx context.Context, rows []catalog.ProductContentRow) error {
	const q = `
        INSERT INTO product_content
               (shop_id, lightspeed_product_id, language_code, url, title, fulltitle, description, content)
        VALUES (:shop_id, :lightspeed_product_id, :language_code, :url, :title, :fulltitle, :description, :content)
        ON CONFLICT (shop_id, lightspeed_product_id, language_code) DO UPDATE SET
               url         = EXCLUDED.url,
               title       = EXCLUDED.title,
               fulltitle   = EXCLUDED.fulltitle,
               description = EXCLUDED.description,
               content     = EXCLUDED.content`
	return upsertChunked(ctx, s.db, "product_content", q, rows)
}

// UpsertVariants writes core variant rows.
func (s *Store) UpsertVariants(ctx context.Context, rows []catalog.VariantRow) error {
	const q = `
        INSERT INTO variants
               (shop_id, lightspeed_product_id, lightspeed_variant_id, sku, is_default, price_excl, image)
        VALUES (:shop_id, :lightspeed_product_id, :lightspeed_variant_id, :sku, :is_default, :price_excl, :image)
        ON CONFLICT (shop_id, lightspeed_variant_id) DO UPDATE SET
               lightspeed_product_id = EXCLUDED.lightspeed_product_id,
               sku        = EXCLUDED.sku,
               is_default = EXCLUDED.is_default,
               price_excl = EXCLUDED.price_excl,
               image      = EXCLUDED.image`
	return upsertChunked(ctx, s.db, "variants", q, rows)
}

// UpsertVariantContent writes localized variant text rows.
func (s *Store) UpsertVariantContent(ctx context.Context, rows []catalog.VariantContentRow) error {
	const q = `
        INSERT INTO variant_content
               (shop_id, lightspeed_variant_id, language_code, title)
        VALUES (:shop_id, :lightspeed_variant_id, :language_code, :title)
        ON CONFLICT (shop_id, lightspeed_variant_id, language_code) DO UPDATE SET
               title = EXCLUDED.title`
	return upsertChunked(ctx, s.db, "variant_content", q, rows)
}

// upsertChunked runs one named multi-row INSERT per chunk.  Any failure is
// fatal to the caller's run; earlier chunks are not rolled back.
func upsertChunked[T any](ctx context.Context, db *sqlx.DB, table, query string, rows []T) error {
	for start := 0; start < len(rows); start += upsertChunk {
		end := min(start+upsertChunk, len(rows))
		if _, err := db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("upsert %d rows into %s: %w", end-start, table, err)
		}
	}
	return nil
}

//
// ── Set-difference cleanup ──────────────────────────────────────────────
//

// CleanupProducts deletes the shop's stored products that the current
// base-language fetch no longer contains.  Returns the delete count.
func (s *Store) CleanupProducts(ctx context.Context, shopID int64, fetched map[int64]struct{}) (int, error) {
	return s.cleanup(ctx, "products", "lightspeed_product_id", shopID, fetched)
}

// CleanupVariants does the same for variants, using the attached (valid)
// variant id set as ground truth.
func (s *Store) CleanupVariants(ctx context.Context, shopID int64, fetched map[int64]struct{}) (int, error) {
	return s.cleanup(ctx, "variants", "lightspeed_variant_id", shopID, fetched)
}

func (s *Store) cleanup(ctx context.Context, table, idColumn string, shopID int64, fetched map[int64]struct{}) (int, error) {
	var stored []int64
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE shop_id = $1`, idColumn, table)
	if err := s.db.SelectContext(ctx, &stored, q, shopID); err != nil {
		return 0, fmt.Errorf("select stored ids from %s: %w", table, err)
	}

	orphans := make([]int64, 0)
	for _, id := range stored {
		if _, ok := fetched[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })

	del, args, err := sqlx.In(
		fmt.Sprintf(`DELETE FROM %s WHERE shop_id = ? AND %s IN (?)`, table, idColumn),
		shopID, orphans,
	)
	if err != nil {
		return 0, fmt.Errorf("build delete for %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(del), args...); err != nil {
		return 0, fmt.Errorf("delete %d rows from %s: %w", len(orphans), table, err)
	}
	return len(orphans), nil
}
