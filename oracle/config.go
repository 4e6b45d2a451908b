package oracle

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for the price sidecar.
type Config struct {
	Interval    Duration       `yaml:"interval"`
	MaxAge      Duration       `yaml:"max_age"`
	Codes       []string       `yaml:"codes"`
	Sources     []SourceConfig `yaml:"sources"`
	KeyFile     string         `yaml:"key_file"`
	JournalPath string         `yaml:"journal"`
	HistoryPath string         `yaml:"history"`
}

// SourceConfig describes one upstream price source.
type SourceConfig struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Endpoint string            `yaml:"endpoint"`
	Currency string            `yaml:"vs_currency"`
	Assets   map[string]string `yaml:"assets"`
}

// LoadConfig reads sidecar configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Interval.Duration <= 0 {
		cfg.Interval.Duration = 30 * time.Second
	}
	if cfg.MaxAge.Duration <= 0 {
		cfg.MaxAge.Duration = 5 * time.Minute
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Codes) == 0 {
		return fmt.Errorf("oracle config: at least one collateral code required")
	}
	for _, code := range cfg.Codes {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("oracle config: empty collateral code")
		}
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("oracle config: at least one source required")
	}
	seen := make(map[string]struct{}, len(cfg.Sources))
	for _, source := range cfg.Sources {
		name := strings.ToLower(strings.TrimSpace(source.Name))
		if name == "" {
			return fmt.Errorf("oracle config: source name required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("oracle config: duplicate source %q", name)
		}
		seen[name] = struct{}{}
		switch strings.ToLower(strings.TrimSpace(source.Type)) {
		case "manual", "coingecko":
		default:
			return fmt.Errorf("oracle config: unsupported source type %q", source.Type)
		}
	}
	return nil
}

// BuildAggregator constructs the aggregator described by the configuration.
func BuildAggregator(cfg Config, client HTTPDoer) (*Aggregator, *ManualSource, error) {
	agg := NewAggregator(nil, cfg.MaxAge.Duration)
	var manual *ManualSource
	for _, source := range cfg.Sources {
		switch strings.ToLower(strings.TrimSpace(source.Type)) {
		case "manual":
			if manual == nil {
				manual = NewManualSource()
			}
			agg.Register(source.Name, manual)
		case "coingecko":
			agg.Register(source.Name, NewCoinGeckoSource(client, source.Endpoint, source.Currency, source.Assets))
		default:
			return nil, nil, fmt.Errorf("oracle config: unsupported source type %q", source.Type)
		}
	}
	return agg, manual, nil
}
