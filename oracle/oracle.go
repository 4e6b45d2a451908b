package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PriceScale is the implicit fixed-point scale for quoted prices. One whole
// stable unit per collateral unit is 1_000_000.
const PriceScale = 1_000_000

var priceScaleRat = new(big.Rat).SetInt64(PriceScale)

// Quote is a single scaled price observation for a collateral code.
type Quote struct {
	Price     *big.Int
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote.
func (q Quote) Clone() Quote {
	clone := Quote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	return clone
}

// Source resolves the current price for a collateral code.
type Source interface {
	GetPrice(code string) (Quote, error)
}

// ErrNoFreshQuote indicates that no source produced a quote within the
// configured freshness window.
var ErrNoFreshQuote = errors.New("oracle: no fresh quote available")

// Aggregator consults registered sources in priority order until one
// produces a fresh, positive quote.
type Aggregator struct {
	mu       sync.RWMutex
	priority []string
	sources  map[string]Source
	maxAge   time.Duration
}

// NewAggregator constructs an aggregator with the provided priority and
// freshness window. A zero maxAge disables the freshness check.
func NewAggregator(priority []string, maxAge time.Duration) *Aggregator {
	return &Aggregator{
		priority: append([]string{}, priority...),
		sources:  make(map[string]Source),
		maxAge:   maxAge,
	}
}

// SetMaxAge updates the freshness window used when filtering quotes.
func (a *Aggregator) SetMaxAge(maxAge time.Duration) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.maxAge = maxAge
	a.mu.Unlock()
}

// Register adds or replaces a source under the supplied identifier. Names
// are stored in lowercase so lookups stay consistent regardless of the
// configuration casing.
func (a *Aggregator) Register(name string, source Source) {
	if a == nil || source == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[trimmed] = source
	for _, entry := range a.priority {
		if strings.EqualFold(entry, trimmed) {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

// GetPrice fetches a price respecting the priority ordering. The returned
// quote is a defensive copy so callers cannot mutate shared state.
func (a *Aggregator) GetPrice(code string) (Quote, error) {
	if a == nil {
		return Quote{}, fmt.Errorf("oracle aggregator not configured")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	a.mu.RUnlock()

	symbol := normalizeSymbol(code)
	if symbol == "" {
		return Quote{}, fmt.Errorf("oracle: collateral code required")
	}

	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge)
	}

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		source := a.sources[strings.ToLower(name)]
		a.mu.RUnlock()
		if source == nil {
			continue
		}
		quote, err := source.GetPrice(symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if quote.Price == nil || quote.Price.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle: source %s returned invalid price", name)
			continue
		}
		if maxAge > 0 && quote.Timestamp.Before(cutoff) {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := quote.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = strings.ToLower(name)
		}
		return result, nil
	}
	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return Quote{}, lastErr
}

// ManualSource is an in-memory source used for tests and manual overrides
// during incident response.
type ManualSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{quotes: make(map[string]Quote)}
}

// Set stores the scaled price for the collateral code.
func (m *ManualSource) Set(code string, price *big.Int, ts time.Time) {
	if m == nil || price == nil {
		return
	}
	symbol := normalizeSymbol(code)
	if symbol == "" {
		return
	}
	m.mu.Lock()
	m.quotes[symbol] = Quote{Price: new(big.Int).Set(price), Timestamp: ts, Source: "manual"}
	m.mu.Unlock()
}

// SetDecimal records a decimal price string, scaling it to PriceScale.
func (m *ManualSource) SetDecimal(code, price string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual source not configured")
	}
	scaled, err := ScaleDecimal(price)
	if err != nil {
		return err
	}
	m.Set(code, scaled, ts)
	return nil
}

// GetPrice retrieves the stored quote for the collateral code.
func (m *ManualSource) GetPrice(code string) (Quote, error) {
	if m == nil {
		return Quote{}, fmt.Errorf("manual source not configured")
	}
	symbol := normalizeSymbol(code)
	m.mu.RLock()
	stored, ok := m.quotes[symbol]
	m.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("manual source: no quote for %s", symbol)
	}
	return stored.Clone(), nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CoinGeckoSource adapts the public CoinGecko simple price API.
type CoinGeckoSource struct {
	client   HTTPDoer
	endpoint string
	vs       string
	idMap    map[string]string
}

const defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// NewCoinGeckoSource constructs a new adapter. idMap maps collateral codes
// to CoinGecko asset identifiers; vsCurrency is the quote currency, usd by
// default.
func NewCoinGeckoSource(client HTTPDoer, endpoint, vsCurrency string, idMap map[string]string) *CoinGeckoSource {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultCoinGeckoEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	vs := strings.ToLower(strings.TrimSpace(vsCurrency))
	if vs == "" {
		vs = "usd"
	}
	mapped := make(map[string]string, len(idMap))
	for k, v := range idMap {
		mapped[normalizeSymbol(k)] = strings.TrimSpace(v)
	}
	return &CoinGeckoSource{client: client, endpoint: ep, vs: vs, idMap: mapped}
}

func (s *CoinGeckoSource) assetID(code string) string {
	if id, ok := s.idMap[normalizeSymbol(code)]; ok && id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(code))
}

func (s *CoinGeckoSource) GetPrice(code string) (Quote, error) {
	if s == nil {
		return Quote{}, fmt.Errorf("coingecko source not configured")
	}
	id := s.assetID(code)
	if id == "" {
		return Quote{}, fmt.Errorf("coingecko source: unmapped asset %s", code)
	}
	req, err := http.NewRequest(http.MethodGet, s.endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	values := url.Values{}
	values.Set("ids", id)
	values.Set("vs_currencies", s.vs)
	values.Set("include_last_updated_at", "true")
	req.URL.RawQuery = values.Encode()
	resp, err := s.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("coingecko source: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var payload map[string]map[string]interface{}
	if err := decoder.Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("coingecko source: decode: %w", err)
	}
	entry, ok := payload[id]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko source: quote missing for %s", code)
	}
	priceStr := ""
	if raw, exists := entry[s.vs]; exists {
		switch v := raw.(type) {
		case json.Number:
			priceStr = v.String()
		case string:
			priceStr = v
		case float64:
			priceStr = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			priceStr = fmt.Sprintf("%v", v)
		}
	}
	scaled, err := ScaleDecimal(priceStr)
	if err != nil {
		return Quote{}, fmt.Errorf("coingecko source: %w", err)
	}
	ts := time.Time{}
	if rawTs, exists := entry["last_updated_at"]; exists {
		switch v := rawTs.(type) {
		case json.Number:
			if parsed, err := v.Int64(); err == nil && parsed > 0 {
				ts = time.Unix(parsed, 0)
			}
		case float64:
			if v > 0 {
				ts = time.Unix(int64(v), 0)
			}
		}
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Quote{Price: scaled, Timestamp: ts, Source: "coingecko"}, nil
}

// ScaleDecimal parses a positive decimal string and scales it to an integer
// price at PriceScale, truncating toward zero.
func ScaleDecimal(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("oracle: price required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("oracle: invalid price %q", value)
	}
	if rat.Sign() <= 0 {
		return nil, fmt.Errorf("oracle: price must be positive")
	}
	scaled := new(big.Rat).Mul(rat, priceScaleRat)
	return new(big.Int).Quo(scaled.Num(), scaled.Denom()), nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
