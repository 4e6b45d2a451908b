package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"stablemint/crypto"
	"stablemint/observability/metrics"
)

// PriceSink accepts verified price updates keyed by the reporter identity.
// The vault engine satisfies this interface directly.
type PriceSink interface {
	UpdatePrice(reporter crypto.Address, code string, price *big.Int) error
}

// Poller periodically resolves prices for the configured collateral codes,
// signs them as submissions and pushes them into the sink. Accepted
// submissions are journaled and sampled into history when those stores are
// wired.
type Poller struct {
	aggregator *Aggregator
	sink       PriceSink
	key        *crypto.PrivateKey
	oracles    []crypto.Address
	codes      []string
	interval   time.Duration
	journal    *Journal
	history    *History
	logger     *slog.Logger
}

// PollerOptions configures optional poller collaborators.
type PollerOptions struct {
	Journal *Journal
	History *History
	Logger  *slog.Logger
}

// NewPoller wires a poller for the given codes. The key identifies this
// reporter; oracles is the authorized set submissions are verified against
// before they reach the sink.
func NewPoller(agg *Aggregator, sink PriceSink, key *crypto.PrivateKey, oracles []crypto.Address, codes []string, interval time.Duration, opts PollerOptions) (*Poller, error) {
	if agg == nil {
		return nil, fmt.Errorf("oracle poller: aggregator required")
	}
	if sink == nil {
		return nil, fmt.Errorf("oracle poller: sink required")
	}
	if key == nil {
		return nil, fmt.Errorf("oracle poller: signing key required")
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("oracle poller: at least one collateral code required")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		if symbol := normalizeSymbol(code); symbol != "" {
			normalized = append(normalized, symbol)
		}
	}
	return &Poller{
		aggregator: agg,
		sink:       sink,
		key:        key,
		oracles:    append([]crypto.Address{}, oracles...),
		codes:      normalized,
		interval:   interval,
		journal:    opts.Journal,
		history:    opts.History,
		logger:     logger,
	}, nil
}

// Run sweeps immediately and then on every tick until the context ends.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	for _, code := range p.codes {
		if err := p.submitOnce(ctx, code); err != nil {
			metrics.Oracle().RecordSubmission(code, false)
			p.logger.Error("price submission failed", "code", code, "error", err)
			continue
		}
		metrics.Oracle().RecordSubmission(code, true)
	}
	if p.journal != nil {
		if err := p.journal.Checkpoint("poller", time.Now()); err != nil {
			p.logger.Warn("journal checkpoint failed", "error", err)
		}
	}
}

func (p *Poller) submitOnce(ctx context.Context, code string) error {
	quote, err := p.aggregator.GetPrice(code)
	if err != nil {
		return err
	}
	sub, err := NewSubmission(code, quote.Price, quote.Timestamp.Unix())
	if err != nil {
		return err
	}
	if err := sub.Sign(p.key); err != nil {
		return err
	}
	reporter, err := sub.Verify(p.oracles)
	if err != nil {
		return err
	}
	if err := p.sink.UpdatePrice(reporter, sub.Code, sub.Price); err != nil {
		return err
	}

	proofID, err := sub.ID()
	if err != nil {
		return err
	}
	p.logger.Info("price submitted",
		"code", sub.Code,
		"price", sub.Price.String(),
		"source", quote.Source,
		"proofId", proofID,
	)
	if p.journal != nil {
		entry := JournalEntry{
			Code:        sub.Code,
			Price:       sub.Price,
			SubmittedAt: time.Now().UTC(),
			ProofID:     proofID,
			Source:      quote.Source,
		}
		if err := p.journal.Record(entry); err != nil {
			p.logger.Warn("journal write failed", "code", sub.Code, "error", err)
		}
	}
	if p.history != nil {
		sample := Sample{
			Code:       sub.Code,
			Price:      sub.Price,
			Source:     quote.Source,
			ObservedAt: quote.Timestamp,
		}
		if err := p.history.Record(ctx, sample); err != nil {
			p.logger.Warn("history write failed", "code", sub.Code, "error", err)
		}
	}
	return nil
}
