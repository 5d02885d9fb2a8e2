// internal/store/shops.go
//
// Shop roster: shops and their configured languages.
//
// The roster is read once at the start of a fleet run and treated as
// immutable for the run's duration.  Exactly one language per shop must be
// flagged is_default; that base language drives the full sync and cleanup,
// while every other active language drives a content-only pass.

package store

import (
	"context"
	"fmt"
)

// Language is one configured language of a shop.
type Language struct {
	Code      string `db:"code"`
	IsActive  bool   `db:"is_active"`
	IsDefault bool   `db:"is_default"`
}

// Shop is one row of the shops table with its nested language config.
type Shop struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	TLD       string `db:"tld"`
	Languages []Language
}

// BaseLanguage returns the shop's default language code.  A roster row
// without one is a configuration defect that fails the shop's run.
func (sh *Shop) BaseLanguage() (string, error) {
	for _, l := range sh.Languages {
		if l.IsDefault {
			return l.Code, nil
		}
	}
	return "", fmt.Errorf("shop %s: no default language configured", sh.Name)
}

// ActiveLanguages returns the codes eligible for sync, in configured order.
// The base language is included; callers skip it when iterating secondary
// passes.
func (sh *Shop) ActiveLanguages() []string {
	out := make([]string, 0, len(sh.Languages))
	for _, l := range sh.Languages {
		if l.IsActive {
			out = append(out, l.Code)
		}
	}
	return out
}

// Shops loads the full roster with language config, ordered by shop id.
func (s *Store) Shops(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	if err := s.db.SelectContext(ctx, &shops, `
        SELECT id, name, tld
        FROM   shops
        ORDER  BY id`); err != nil {
		return nil, fmt.Errorf("select shops: %w", err)
	}

	type langRow struct {
		ShopID int64 `db:"shop_id"`
		Language
	}
	var langs []langRow
	if err := s.db.SelectContext(ctx, &langs, `
        SELECT shop_id, code, is_active, is_default
        FROM   shop_languages
        ORDER  BY shop_id, id`); err != nil {
		return nil, fmt.Errorf("select shop languages: %w", err)
	}

	byShop := make(map[int64][]Language, len(shops))
	for _, lr := range langs {
		byShop[lr.ShopID] = append(byShop[lr.ShopID], lr.Language)
	}
	for i := range shops {
		shops[i].Languages = byShop[shops[i].ID]
	}
	return shops, nil
}
