// internal/syncer/pipeline_test.go
//
// Unit-tests for the shop pipeline orchestrator.
//
// Context
// -------
// The pipeline is exercised end to end against scripted fakes: a Fetcher
// that serves canned per-language snapshots (or fails), and a Store that
// records every call in order.  The tests pin down:
//
//   • the strict upsert order (core before content, cleanup after both),
//   • secondary-language filtering against the base-language valid sets,
//   • the audit-row lifecycle: running → success with metrics, or
//     running → error with the message and the metrics gathered so far,
//   • missing credentials failing the run before any fetch.

package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/catalog"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/config"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/store"
)

//
// ── Fakes ───────────────────────────────────────────────────────────────
//

type fakeFetcher struct {
	products map[string][]lightspeed.Product
	variants map[string][]lightspeed.Variant
	err      error // when set, every fetch fails
}

func (f *fakeFetcher) Products(_ context.Context, lang string) ([]lightspeed.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products[lang], nil
}

func (f *fakeFetcher) Variants(_ context.Context, lang string) ([]lightspeed.Variant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.variants[lang], nil
}

// fakeStore records calls in order and keeps every row it is handed.
type fakeStore struct {
	mu    sync.Mutex
	calls []string

	productContent []catalog.ProductContentRow
	variantContent []catalog.VariantContentRow
	productRows    []catalog.ProductRow
	variantRows    []catalog.VariantRow

	storedProductIDs []int64 // pre-seeded "previous run" state for cleanup
	storedVariantIDs []int64
	deletedProducts  []int64
	deletedVariants  []int64

	finishStatus  string
	finishMetrics store.RunMetrics
	finishErrMsg  string
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeStore) StartSyncLog(context.Context, int64) (int64, error) {
	s.record("StartSyncLog")
	return 1, nil
}

func (s *fakeStore) FinishSyncLog(_ context.Context, _ int64, status string, m store.RunMetrics, errMsg string) error {
	s.record("FinishSyncLog")
	s.finishStatus = status
	s.finishMetrics = m
	s.finishErrMsg = errMsg
	return nil
}

func (s *fakeStore) UpsertProducts(_ context.Context, rows []catalog.ProductRow) error {
	s.record("UpsertProducts")
	s.productRows = append(s.productRows, rows...)
	return nil
}

func (s *fakeStore) UpsertProductContent(_ context.Context, rows []catalog.ProductContentRow) error {
	s.record("UpsertProductContent")
	s.productContent = append(s.productContent, rows...)
	return nil
}

func (s *fakeStore) UpsertVariants(_ context.Context, rows []catalog.VariantRow) error {
	s.record("UpsertVariants")
	s.variantRows = append(s.variantRows, rows...)
	return nil
}

func (s *fakeStore) UpsertVariantContent(_ context.Context, rows []catalog.VariantContentRow) error {
	s.record("UpsertVariantContent")
	s.variantContent = append(s.variantContent, rows...)
	return nil
}

func (s *fakeStore) CleanupProducts(_ context.Context, _ int64, fetched map[int64]struct{}) (int, error) {
	s.record("CleanupProducts")
	for _, id := range s.storedProductIDs {
		if _, ok := fetched[id]; !ok {
			s.deletedProducts = append(s.deletedProducts, id)
		}
	}
	return len(s.deletedProducts), nil
}

func (s *fakeStore) CleanupVariants(_ context.Context, _ int64, fetched map[int64]struct{}) (int, error) {
	s.record("CleanupVariants")
	for _, id := range s.storedVariantIDs {
		if _, ok := fetched[id]; !ok {
			s.deletedVariants = append(s.deletedVariants, id)
		}
	}
	return len(s.deletedVariants), nil
}

//
// ── Fixtures ────────────────────────────────────────────────────────────
//

func testShop() store.Shop {
	return store.Shop{
		ID:   7,
		Name: "Shop BE",
		TLD:  "be",
		Languages: []store.Language{
			{Code: "nl", IsActive: true, IsDefault: true},
			{Code: "fr", IsActive: true},
		},
	}
}

func baseProduct(id int64) lightspeed.Product {
	p := lightspeed.Product{ID: id}
	p.Title = strp("product")
	return p
}

func wireVariant(id, productID int64) lightspeed.Variant {
	sku := "SKU"
	v := lightspeed.Variant{ID: id, SKU: &sku, Title: strp("variant")}
	v.Product = &lightspeed.Relation{}
	v.Product.Resource.ID = productID
	return v
}

func strp(s string) *string { return &s }

func okCredentials(string) (lightspeed.Credentials, error) {
	return lightspeed.Credentials{Key: "k", Secret: "s"}, nil
}

func newPipeline(sh store.Shop, f Fetcher, st Store) *Pipeline {
	return &Pipeline{
		Shop:        sh,
		Store:       st,
		Credentials: okCredentials,
		NewFetcher:  func(lightspeed.Credentials) Fetcher { return f },
		Log:         zap.NewNop().Sugar(),
	}
}

//
// ── Tests ───────────────────────────────────────────────────────────────
//

func TestPipeline_UpsertOrderAndAudit(t *testing.T) {
	fetch := &fakeFetcher{
		products: map[string][]lightspeed.Product{
			"nl": {baseProduct(10), baseProduct(11)},
			"fr": {baseProduct(10), baseProduct(11)},
		},
		variants: map[string][]lightspeed.Variant{
			"nl": {wireVariant(100, 10), wireVariant(101, 11)},
			"fr": {wireVariant(100, 10), wireVariant(101, 11)},
		},
	}
	st := &fakeStore{}

	if err := newPipeline(testShop(), fetch, st).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []string{
		"StartSyncLog",
		"UpsertProducts", "UpsertProductContent",
		"UpsertVariants", "UpsertVariantContent",
		"CleanupProducts", "CleanupVariants",
		"UpsertProductContent", "UpsertVariantContent", // fr pass
		"FinishSyncLog",
	}
	if len(st.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", st.calls, want)
	}
	for i := range want {
		if st.calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s (full: %v)", i, st.calls[i], want[i], st.calls)
		}
	}

	if st.finishStatus != store.StatusSuccess || st.finishErrMsg != "" {
		t.Fatalf("terminal status %q (err %q), want success", st.finishStatus, st.finishErrMsg)
	}
	m := st.finishMetrics
	if m.ProductsFetched != 2 || m.VariantsFetched != 2 || m.ProductsSynced != 2 || m.VariantsSynced != 2 {
		t.Fatalf("metrics wrong: %+v", m)
	}
}

func TestPipeline_SecondaryLanguageFiltering(t *testing.T) {
	// Base (valid) product set is {10, 11}; the fr fetch also carries 12.
	// Content rows may be written for 10 and 11 only.
	fetch := &fakeFetcher{
		products: map[string][]lightspeed.Product{
			"nl": {baseProduct(10), baseProduct(11)},
			"fr": {baseProduct(10), baseProduct(11), baseProduct(12)},
		},
		variants: map[string][]lightspeed.Variant{
			"nl": {wireVariant(100, 10)},
			"fr": {wireVariant(100, 10), wireVariant(999, 12)},
		},
	}
	st := &fakeStore{}

	if err := newPipeline(testShop(), fetch, st).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var frProducts, frVariants []int64
	for _, r := range st.productContent {
		if r.LanguageCode == "fr" {
			frProducts = append(frProducts, r.ProductID)
		}
	}
	for _, r := range st.variantContent {
		if r.LanguageCode == "fr" {
			frVariants = append(frVariants, r.VariantID)
		}
	}

	if len(frProducts) != 2 || frProducts[0] != 10 || frProducts[1] != 11 {
		t.Fatalf("fr product content for %v, want [10 11]", frProducts)
	}
	if len(frVariants) != 1 || frVariants[0] != 100 {
		t.Fatalf("fr variant content for %v, want [100]", frVariants)
	}
}

func TestPipeline_CleanupUsesBaseFetchAsGroundTruth(t *testing.T) {
	fetch := &fakeFetcher{
		products: map[string][]lightspeed.Product{"nl": {baseProduct(2), baseProduct(3)}},
		variants: map[string][]lightspeed.Variant{"nl": {wireVariant(20, 2)}},
	}
	st := &fakeStore{
		storedProductIDs: []int64{1, 2, 3, 4},
		storedVariantIDs: []int64{20, 21},
	}

	sh := testShop()
	sh.Languages = sh.Languages[:1] // base language only
	if err := newPipeline(sh, fetch, st).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(st.deletedProducts) != 2 || st.deletedProducts[0] != 1 || st.deletedProducts[1] != 4 {
		t.Fatalf("deleted products %v, want [1 4]", st.deletedProducts)
	}
	if len(st.deletedVariants) != 1 || st.deletedVariants[0] != 21 {
		t.Fatalf("deleted variants %v, want [21]", st.deletedVariants)
	}
	if st.finishMetrics.ProductsDeleted != 2 || st.finishMetrics.VariantsDeleted != 1 {
		t.Fatalf("delete metrics wrong: %+v", st.finishMetrics)
	}
}

func TestPipeline_OrphanVariantsCountedNotStored(t *testing.T) {
	fetch := &fakeFetcher{
		products: map[string][]lightspeed.Product{"nl": {baseProduct(1)}},
		variants: map[string][]lightspeed.Variant{"nl": {
			wireVariant(10, 1),
			wireVariant(11, 42), // product 42 not in the fetch
		}},
	}
	st := &fakeStore{}

	sh := testShop()
	sh.Languages = sh.Languages[:1]
	if err := newPipeline(sh, fetch, st).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if st.finishMetrics.VariantsFiltered != 1 {
		t.Fatalf("variants_filtered = %d, want 1", st.finishMetrics.VariantsFiltered)
	}
	for _, r := range st.variantRows {
		if r.VariantID == 11 {
			t.Fatal("orphan variant 11 was persisted")
		}
	}
	if len(st.variantRows) != 1 || st.variantRows[0].VariantID != 10 {
		t.Fatalf("variant rows %v, want just id 10", st.variantRows)
	}
}

func TestPipeline_MissingCredentialsFailsRun(t *testing.T) {
	st := &fakeStore{}
	p := newPipeline(testShop(), &fakeFetcher{}, st)
	p.Credentials = func(tld string) (lightspeed.Credentials, error) {
		return lightspeed.Credentials{}, &config.MissingCredentialsError{TLD: tld}
	}

	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var mce *config.MissingCredentialsError
	if !errors.As(err, &mce) {
		t.Fatalf("error is %T, want *config.MissingCredentialsError", err)
	}
	if st.finishStatus != store.StatusError {
		t.Fatalf("terminal status %q, want error", st.finishStatus)
	}
	if !strings.Contains(st.finishErrMsg, "missing API credentials for shop TLD=BE") {
		t.Fatalf("audit error message %q", st.finishErrMsg)
	}
	// Failed before any fetch or upsert.
	if len(st.productRows) != 0 || len(st.variantRows) != 0 {
		t.Fatal("rows were written despite credential failure")
	}
}

func TestPipeline_FetchFailureRecordsError(t *testing.T) {
	boom := errors.New("connection reset")
	st := &fakeStore{}
	p := newPipeline(testShop(), &fakeFetcher{err: boom}, st)

	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if st.finishStatus != store.StatusError || st.finishErrMsg == "" {
		t.Fatalf("audit row: status %q, msg %q", st.finishStatus, st.finishErrMsg)
	}
	if len(st.calls) != 2 || st.calls[0] != "StartSyncLog" || st.calls[1] != "FinishSyncLog" {
		t.Fatalf("calls = %v, want audit open, no writes, audit close", st.calls)
	}
}
