// internal/syncer/fleet_test.go
//
// Fleet isolation tests: a failing shop must not block or taint siblings.

package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/store"
)

func fleetShop(id int64, name, tld string) store.Shop {
	return store.Shop{
		ID:   id,
		Name: name,
		TLD:  tld,
		Languages: []store.Language{
			{Code: "nl", IsActive: true, IsDefault: true},
		},
	}
}

func TestRunFleet_FailureIsolation(t *testing.T) {
	shops := []store.Shop{
		fleetShop(1, "Shop A", "nl"),
		fleetShop(2, "Shop B", "be"),
		fleetShop(3, "Shop C", "de"),
	}

	// Shop B's API is down on every attempt; A and C run full pipelines
	// against healthy fakes.
	var mu sync.Mutex
	stores := map[string]*fakeStore{}
	run := func(ctx context.Context, sh store.Shop) error {
		st := &fakeStore{}
		mu.Lock()
		stores[sh.TLD] = st
		mu.Unlock()

		fetch := &fakeFetcher{
			products: map[string][]lightspeed.Product{"nl": {baseProduct(sh.ID * 100)}},
			variants: map[string][]lightspeed.Variant{"nl": {wireVariant(sh.ID*1000, sh.ID*100)}},
		}
		if sh.TLD == "be" {
			fetch = &fakeFetcher{err: errors.New("api unreachable")}
		}
		return newPipeline(sh, fetch, st).Run(ctx)
	}

	outcomes := RunFleet(context.Background(), shops, run, zap.NewNop().Sugar())

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	// Roster order, regardless of completion order.
	for i, sh := range shops {
		if outcomes[i].Shop.Name != sh.Name {
			t.Fatalf("outcome %d is %s, want %s", i, outcomes[i].Shop.Name, sh.Name)
		}
	}

	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("healthy shops failed: A=%v, C=%v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Fatal("shop B should have failed")
	}
	if !strings.Contains(outcomes[1].Err.Error(), "Shop B") {
		t.Fatalf("shop B error %q does not name the shop", outcomes[1].Err)
	}

	for _, tld := range []string{"nl", "de"} {
		if st := stores[tld]; st.finishStatus != store.StatusSuccess {
			t.Fatalf("shop %s audit status %q, want success", tld, st.finishStatus)
		}
	}
	b := stores["be"]
	if b.finishStatus != store.StatusError || b.finishErrMsg == "" {
		t.Fatalf("shop B audit row: status %q, msg %q, want error with message", b.finishStatus, b.finishErrMsg)
	}
}

func TestRunFleet_AllShopsRunConcurrently(t *testing.T) {
	const n = 4
	shops := make([]store.Shop, n)
	for i := range shops {
		shops[i] = fleetShop(int64(i+1), "Shop", "nl")
	}

	// Every runner blocks until all n have started; the fleet only
	// finishes if the runs truly overlap.
	var started atomic.Int32
	release := make(chan struct{})
	run := func(ctx context.Context, _ store.Shop) error {
		if started.Add(1) == n {
			close(release)
		}
		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("peers never started")
		}
	}

	outcomes := RunFleet(context.Background(), shops, run, zap.NewNop().Sugar())
	if got := Failed(outcomes); got != 0 {
		t.Fatalf("%d shops failed, want 0", got)
	}
}

func TestFailed_Counts(t *testing.T) {
	outcomes := []Outcome{
		{Err: nil},
		{Err: errors.New("x")},
		{Err: nil},
		{Err: errors.New("y")},
	}
	if got := Failed(outcomes); got != 2 {
		t.Fatalf("Failed = %d, want 2", got)
	}
}
