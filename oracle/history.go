package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
)

// ErrHistoryPathRequired is returned when the backing store path is missing.
var ErrHistoryPathRequired = errors.New("oracle history path must be configured")

const historySchema = `
CREATE TABLE IF NOT EXISTS price_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL,
    price TEXT NOT NULL,
    source TEXT NOT NULL,
    observed_at INTEGER NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_samples_code ON price_samples(code, observed_at DESC);
`

// History persists accepted price samples for auditing and deviation
// analysis outside the hot path.
type History struct {
	db *sql.DB
}

// Sample is one recorded price observation.
type Sample struct {
	Code       string
	Price      *big.Int
	Source     string
	ObservedAt time.Time
	RecordedAt time.Time
}

// OpenHistory initialises the sqlite-backed sample store.
func OpenHistory(path string) (*History, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrHistoryPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases database resources.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record persists a single accepted sample.
func (h *History) Record(ctx context.Context, sample Sample) error {
	if h == nil || h.db == nil {
		return fmt.Errorf("oracle history not configured")
	}
	if sample.Price == nil {
		return fmt.Errorf("sample missing price")
	}
	code := normalizeSymbol(sample.Code)
	if code == "" {
		return fmt.Errorf("sample missing code")
	}
	recorded := sample.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx, `
        INSERT INTO price_samples(code, price, source, observed_at, recorded_at)
        VALUES(?, ?, ?, ?, ?)
    `, code, sample.Price.String(), strings.ToLower(strings.TrimSpace(sample.Source)), sample.ObservedAt.UTC().Unix(), recorded.UTC())
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Recent returns the latest samples for a code in reverse observation
// order, up to limit entries.
func (h *History) Recent(ctx context.Context, code string, limit int) ([]Sample, error) {
	if h == nil || h.db == nil {
		return nil, fmt.Errorf("oracle history not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	symbol := normalizeSymbol(code)
	rows, err := h.db.QueryContext(ctx, `
        SELECT code, price, source, observed_at, recorded_at
        FROM price_samples
        WHERE code = ?
        ORDER BY observed_at DESC, id DESC
        LIMIT ?
    `, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]Sample, 0, limit)
	for rows.Next() {
		var (
			sample     Sample
			priceStr   string
			observedAt int64
		)
		if err := rows.Scan(&sample.Code, &priceStr, &sample.Source, &observedAt, &sample.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		price, ok := new(big.Int).SetString(priceStr, 10)
		if !ok {
			return nil, fmt.Errorf("corrupt sample price %q", priceStr)
		}
		sample.Price = price
		sample.ObservedAt = time.Unix(observedAt, 0).UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
