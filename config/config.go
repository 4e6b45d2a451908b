package config

import (
	"os"
	"path/filepath"
	"strings"

	"stablemint/native/vault"
	"stablemint/observability/logging"

	"github.com/BurntSushi/toml"
)

// Config is the daemon-level configuration. Module-specific settings live in
// their own sections so operators can manage everything from one file.
type Config struct {
	RPCAddress    string  `toml:"RPCAddress"`
	DataDir       string  `toml:"DataDir"`
	AuthToken     string  `toml:"AuthToken"`
	RPCRatePerSec float64 `toml:"RPCRatePerSec"`
	RPCBurst      int     `toml:"RPCBurst"`

	Log    LogConfig    `toml:"log"`
	Oracle OracleConfig `toml:"oracle"`
	Vault  vault.Config `toml:"vault"`
}

// LogConfig controls the structured log output and the optional rotating
// file sink.
type LogConfig struct {
	Service     string `toml:"Service"`
	Environment string `toml:"Environment"`
	File        string `toml:"File"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
}

// FileOptions converts the log section into logging sink options.
func (l LogConfig) FileOptions() logging.FileOptions {
	return logging.FileOptions{
		Path:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// OracleConfig wires the embedded price poller. The poller has its own YAML
// configuration file because it is also deployable as a standalone sidecar.
type OracleConfig struct {
	Enabled    bool   `toml:"Enabled"`
	ConfigFile string `toml:"ConfigFile"`
	KeyFile    string `toml:"KeyFile"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8546"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./stablemint-data"
	}
	if c.RPCRatePerSec <= 0 {
		c.RPCRatePerSec = 50
	}
	if c.RPCBurst <= 0 {
		c.RPCBurst = 100
	}
	if strings.TrimSpace(c.Log.Service) == "" {
		c.Log.Service = "stablemintd"
	}
	if strings.TrimSpace(c.Log.Environment) == "" {
		c.Log.Environment = "local"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Vault.Oracles = []string{}
	cfg.Vault.Paused = []string{}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
