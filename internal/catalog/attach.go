// internal/catalog/attach.go
//
// Join/attach stage: variants onto their parent products.
//
// Context
// -------
// Products and variants arrive from two independently-paginated fetches, so
// the parent/child structure has to be rebuilt locally.  Each variant names
// its owner through the wire relation; the relation is consumed here and
// stripped, since it is never persisted.  A variant whose owner is absent
// from the product snapshot is an orphan: it is excluded from every
// product's variant list (and therefore from all persistence this run), but
// it is always counted and reported, never silently dropped.
//
// The grouping map is built once and handed onward; later stages never
// mutate it.

package catalog

import (
	"sort"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
)

// OrphanReport describes the variants that could not be attached.
type OrphanReport struct {
	// ByProduct maps each missing parent product id to the orphaned
	// variant ids that referenced it.  Key 0 collects variants whose wire
	// record carried no usable relation at all.
	ByProduct map[int64][]int64
}

// Count returns the total number of orphaned variants.
func (r OrphanReport) Count() int {
	n := 0
	for _, ids := range r.ByProduct {
		n += len(ids)
	}
	return n
}

// VariantIDs returns every orphaned variant id, sorted, for log lines.
func (r OrphanReport) VariantIDs() []int64 {
	ids := make([]int64, 0, r.Count())
	for _, vs := range r.ByProduct {
		ids = append(ids, vs...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Attach populates each product's Variants list from the variant snapshot
// and reports the leftovers.  Every product receives a list, possibly empty.
// The input slices are not reordered; variant order within a product follows
// the fetch order.
func Attach(products []lightspeed.Product, variants []lightspeed.Variant) ([]lightspeed.Product, OrphanReport) {
	byProduct := make(map[int64][]lightspeed.Variant, len(products))
	for _, v := range variants {
		pid := v.ProductID()
		v.Product = nil // relation resolved, drop it
		byProduct[pid] = append(byProduct[pid], v)
	}

	known := make(map[int64]struct{}, len(products))
	for i := range products {
		known[products[i].ID] = struct{}{}
		products[i].Variants = byProduct[products[i].ID]
	}

	report := OrphanReport{ByProduct: make(map[int64][]int64)}
	for pid, vs := range byProduct {
		if _, ok := known[pid]; ok {
			continue
		}
		for _, v := range vs {
			report.ByProduct[pid] = append(report.ByProduct[pid], v.ID)
		}
	}

	return products, report
}
