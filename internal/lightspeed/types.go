// internal/lightspeed/types.go
//
// Typed wire records for the Lightspeed eCom API.
//
// Context
// -------
// The API hands back loosely-shaped JSON.  Everything is mapped into these
// structs at the fetch boundary so nothing downstream ever touches an
// untyped map.  Two quirks are absorbed here:
//
//   - `image` is false (not null, not {}) when a record has no image, and an
//     object with a dozen CDN fields when it has one.  We keep exactly the
//     three fields the catalog stores and turn any non-object into logical
//     absence (a nil *Image).
//   - a variant's parent arrives as a nested relation,
//     `{"product": {"resource": {"id": N}}}`.  The relation is read during
//     the attach stage and then discarded; it is never persisted.
package lightspeed

import (
	"bytes"
	"encoding/json"
	"time"
)

// Image is the normalized form of an upstream image sub-object.  All other
// upstream metadata is dropped.
type Image struct {
	Title *string `json:"title"`
	Thumb *string `json:"thumb"`
	Src   *string `json:"src"`
}

// Product is one record of GET /{lang}/products.json, restricted to the
// fields projection in ProductFields.  Variants is populated by the attach
// stage, not by the wire.
type Product struct {
	ID          int64           `json:"id"`
	Visibility  *string         `json:"visibility"`
	URL         *string         `json:"url"`
	Title       *string         `json:"title"`
	FullTitle   *string         `json:"fulltitle"`
	Description *string         `json:"description"`
	Content     *string         `json:"content"`
	RawImage    json.RawMessage `json:"image"`
	CreatedAt   *time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"`

	Image    *Image    `json:"-"`
	Variants []Variant `json:"-"`
}

// Variant is one record of GET /{lang}/variants.json, restricted to
// VariantFields.
type Variant struct {
	ID        int64           `json:"id"`
	IsDefault bool            `json:"isDefault"`
	SKU       *string         `json:"sku"`
	PriceExcl *float64        `json:"priceExcl"`
	Title     *string         `json:"title"`
	RawImage  json.RawMessage `json:"image"`
	Product   *Relation       `json:"product"`

	Image *Image `json:"-"`
}

// Relation is the nested owner reference on a wire variant.
type Relation struct {
	Resource struct {
		ID int64 `json:"id"`
	} `json:"resource"`
}

// ProductID returns the referenced parent product id, or zero when the
// relation is absent.
func (v *Variant) ProductID() int64 {
	if v.Product == nil {
		return 0
	}
	return v.Product.Resource.ID
}

// normalizeImage maps a raw image value to its stored shape.  Anything that
// is not a JSON object (false, null, absent) becomes nil.
func normalizeImage(raw json.RawMessage) *Image {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var im Image
	if err := json.Unmarshal(raw, &im); err != nil {
		return nil
	}
	return &im
}
