package oracle

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"stablemint/crypto"
)

type captureSink struct {
	mu      sync.Mutex
	updates []sinkUpdate
	err     error
}

type sinkUpdate struct {
	reporter crypto.Address
	code     string
	price    *big.Int
}

func (c *captureSink) UpdatePrice(reporter crypto.Address, code string, price *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.updates = append(c.updates, sinkUpdate{reporter: reporter, code: code, price: new(big.Int).Set(price)})
	return nil
}

func (c *captureSink) all() []sinkUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sinkUpdate{}, c.updates...)
}

func newTestPoller(t *testing.T, sink PriceSink, opts PollerOptions) (*Poller, *ManualSource, crypto.Address) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	reporter := key.PubKey().Address()

	manual := NewManualSource()
	agg := NewAggregator(nil, 0)
	agg.Register("manual", manual)

	poller, err := NewPoller(agg, sink, key, []crypto.Address{reporter}, []string{"btc"}, time.Second, opts)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	return poller, manual, reporter
}

func TestPollerSubmitsSignedPrice(t *testing.T) {
	sink := &captureSink{}
	poller, manual, reporter := newTestPoller(t, sink, PollerOptions{})
	manual.Set("BTC", big.NewInt(4_000_000_000_000), time.Now())

	poller.sweep(context.Background())

	updates := sink.all()
	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	if updates[0].code != "BTC" {
		t.Fatalf("unexpected code %s", updates[0].code)
	}
	if updates[0].price.Cmp(big.NewInt(4_000_000_000_000)) != 0 {
		t.Fatalf("unexpected price %s", updates[0].price)
	}
	if !updates[0].reporter.Equal(reporter) {
		t.Fatalf("unexpected reporter %s", updates[0].reporter)
	}
}

func TestPollerSkipsWhenNoQuote(t *testing.T) {
	sink := &captureSink{}
	poller, _, _ := newTestPoller(t, sink, PollerOptions{})

	poller.sweep(context.Background())

	if len(sink.all()) != 0 {
		t.Fatal("poller must not submit without a quote")
	}
}

func TestPollerJournalsAcceptedSubmissions(t *testing.T) {
	journal := openTestJournal(t)
	history := openTestHistory(t)
	sink := &captureSink{}
	poller, manual, _ := newTestPoller(t, sink, PollerOptions{Journal: journal, History: history})
	manual.Set("BTC", big.NewInt(2_000_000), time.Now())

	ctx := context.Background()
	poller.sweep(ctx)

	entry, err := journal.Last("BTC")
	if err != nil {
		t.Fatalf("journal entry: %v", err)
	}
	if entry.Price.Cmp(big.NewInt(2_000_000)) != 0 || entry.ProofID == "" {
		t.Fatalf("journal entry incomplete: %+v", entry)
	}
	if entry.Source != "manual" {
		t.Fatalf("journal source lost: %s", entry.Source)
	}

	checkpoint, err := journal.LastCheckpoint("poller")
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if checkpoint.IsZero() {
		t.Fatal("sweep must checkpoint the journal")
	}

	samples, err := history.Recent(ctx, "BTC", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected one history sample, got %d", len(samples))
	}
}

func TestPollerRunStopsOnContextCancel(t *testing.T) {
	sink := &captureSink{}
	poller, manual, _ := newTestPoller(t, sink, PollerOptions{})
	manual.Set("BTC", big.NewInt(2_000_000), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
	if len(sink.all()) == 0 {
		t.Fatal("initial sweep must run before the first tick")
	}
}
