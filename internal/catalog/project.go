// internal/catalog/project.go
//
// Snapshot projector: fetched records → destination row shapes.
//
// Context
// -------
// Four tables, four row shapes.  Core rows (products, variants) hold the
// language-independent fields and are written only during the base-language
// pass; content rows hold the localized text and are written for the base
// language and again for every secondary language.  Projection is pure: the
// only failure mode is a variant missing its upsert-key material (remote id
// or SKU), which would corrupt the conflict key and therefore aborts the
// shop's run.

package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
)

// IntegrityError reports a fetched record that cannot be projected without
// corrupting an upsert key.
type IntegrityError struct {
	Entity string // "variant"
	ID     int64  // remote id when known
	Field  string // missing field
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %d: required field %q missing", e.Entity, e.ID, e.Field)
}

//
// ── Row shapes ──────────────────────────────────────────────────────────
//

// ProductRow mirrors one row of the products table.
type ProductRow struct {
	ShopID      int64      `db:"shop_id"`
	ProductID   int64      `db:"lightspeed_product_id"`
	Visibility  *string    `db:"visibility"`
	Image       []byte     `db:"image"` // jsonb, NULL when absent
	LsCreatedAt *time.Time `db:"ls_created_at"`
	LsUpdatedAt *time.Time `db:"ls_updated_at"`
}

// ProductContentRow mirrors one row of the product_content table.
type ProductContentRow struct {
	ShopID       int64   `db:"shop_id"`
	ProductID    int64   `db:"lightspeed_product_id"`
	LanguageCode string  `db:"language_code"`
	URL          *string `db:"url"`
	Title        *string `db:"title"`
	FullTitle    *string `db:"fulltitle"`
	Description  *string `db:"description"`
	Content      *string `db:"content"`
}

// VariantRow mirrors one row of the variants table.
type VariantRow struct {
	ShopID    int64    `db:"shop_id"`
	ProductID int64    `db:"lightspeed_product_id"`
	VariantID int64    `db:"lightspeed_variant_id"`
	SKU       string   `db:"sku"`
	IsDefault bool     `db:"is_default"`
	PriceExcl *float64 `db:"price_excl"`
	Image     []byte   `db:"image"`
}

// VariantContentRow mirrors one row of the variant_content table.
type VariantContentRow struct {
	ShopID       int64   `db:"shop_id"`
	VariantID    int64   `db:"lightspeed_variant_id"`
	LanguageCode string  `db:"language_code"`
	Title        *string `db:"title"`
}

// Rows bundles the full projection of one attached product snapshot.
type Rows struct {
	Products       []ProductRow
	ProductContent []ProductContentRow
	Variants       []VariantRow
	VariantContent []VariantContentRow
}

//
// ── Projection ──────────────────────────────────────────────────────────
//

// BuildRows projects an attached product snapshot into all four row shapes
// for the given shop and language.  Ordering follows the input: products in
// fetch order, variants grouped under their parent.
func BuildRows(shopID int64, lang string, products []lightspeed.Product) (Rows, error) {
	var rows Rows
	rows.Products = make([]ProductRow, 0, len(products))
	rows.ProductContent = make([]ProductContentRow, 0, len(products))

	for i := range products {
		p := &products[i]
		rows.Products = append(rows.Products, ProductRow{
			ShopID:      shopID,
			ProductID:   p.ID,
			Visibility:  p.Visibility,
			Image:       marshalImage(p.Image),
			LsCreatedAt: p.CreatedAt,
			LsUpdatedAt: p.UpdatedAt,
		})
		rows.ProductContent = append(rows.ProductContent, projectProductContent(shopID, lang, p))

		for j := range p.Variants {
			v := &p.Variants[j]
			vr, err := projectVariant(shopID, p.ID, v)
			if err != nil {
				return Rows{}, err
			}
			rows.Variants = append(rows.Variants, vr)
			rows.VariantContent = append(rows.VariantContent, projectVariantContent(shopID, lang, v))
		}
	}
	return rows, nil
}

// ProductContentRows projects a secondary-language product fetch into
// content rows only.  Callers filter the input against the base-language
// valid set first.
func ProductContentRows(shopID int64, lang string, products []lightspeed.Product) []ProductContentRow {
	out := make([]ProductContentRow, 0, len(products))
	for i := range products {
		out = append(out, projectProductContent(shopID, lang, &products[i]))
	}
	return out
}

// VariantContentRows projects a secondary-language variant fetch into
// content rows only.
func VariantContentRows(shopID int64, lang string, variants []lightspeed.Variant) []VariantContentRow {
	out := make([]VariantContentRow, 0, len(variants))
	for i := range variants {
		out = append(out, projectVariantContent(shopID, lang, &variants[i]))
	}
	return out
}

func projectProductContent(shopID int64, lang string, p *lightspeed.Product) ProductContentRow {
	return ProductContentRow{
		ShopID:       shopID,
		ProductID:    p.ID,
		LanguageCode: lang,
		URL:          p.URL,
		Title:        p.Title,
		FullTitle:    p.FullTitle,
		Description:  p.Description,
		Content:      p.Content,
	}
}

func projectVariant(shopID, productID int64, v *lightspeed.Variant) (VariantRow, error) {
	if v.ID == 0 {
		return VariantRow{}, &IntegrityError{Entity: "variant", Field: "id"}
	}
	if v.SKU == nil {
		return VariantRow{}, &IntegrityError{Entity: "variant", ID: v.ID, Field: "sku"}
	}
	return VariantRow{
		ShopID:    shopID,
		ProductID: productID,
		VariantID: v.ID,
		SKU:       *v.SKU,
		IsDefault: v.IsDefault,
		PriceExcl: v.PriceExcl,
		Image:     marshalImage(v.Image),
	}, nil
}

func projectVariantContent(shopID int64, lang string, v *lightspeed.Variant) VariantContentRow {
	return VariantContentRow{
		ShopID:       shopID,
		VariantID:    v.ID,
		LanguageCode: lang,
		Title:        v.Title,
	}
}

// marshalImage renders the normalized image for a jsonb column.  Logical
// absence stays SQL NULL, not an empty object.
func marshalImage(im *lightspeed.Image) []byte {
	if im == nil {
		return nil
	}
	b, err := json.Marshal(im)
	if err != nil {
		return nil
	}
	return b
}
