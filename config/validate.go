package config

import (
	"fmt"
	"strings"

	"stablemint/crypto"
)

// Validate rejects configurations the daemon could not start with. Address
// fields are checked eagerly so a typo fails at boot instead of at the first
// vault operation.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if c.RPCRatePerSec <= 0 {
		return fmt.Errorf("config: RPCRatePerSec must be positive")
	}
	if c.RPCBurst <= 0 {
		return fmt.Errorf("config: RPCBurst must be positive")
	}

	if strings.TrimSpace(c.Vault.AdminAddress) == "" {
		return fmt.Errorf("config: vault.AdminAddress is required")
	}
	if _, err := crypto.DecodeAddress(c.Vault.AdminAddress); err != nil {
		return fmt.Errorf("config: vault.AdminAddress: %w", err)
	}
	if addr := strings.TrimSpace(c.Vault.ReserveAddress); addr != "" {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("config: vault.ReserveAddress: %w", err)
		}
	}
	if len(c.Vault.Oracles) == 0 {
		return fmt.Errorf("config: at least one vault oracle is required")
	}
	for _, oracleAddr := range c.Vault.Oracles {
		if _, err := crypto.DecodeAddress(oracleAddr); err != nil {
			return fmt.Errorf("config: vault oracle %q: %w", oracleAddr, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Vault.Collateral))
	for _, col := range c.Vault.Collateral {
		code := strings.ToUpper(strings.TrimSpace(col.Code))
		if code == "" {
			return fmt.Errorf("config: collateral entry missing code")
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("config: duplicate collateral entry %s", code)
		}
		seen[code] = struct{}{}
		if _, err := col.Params(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if c.Oracle.Enabled {
		if strings.TrimSpace(c.Oracle.ConfigFile) == "" {
			return fmt.Errorf("config: oracle.ConfigFile is required when the poller is enabled")
		}
		if strings.TrimSpace(c.Oracle.KeyFile) == "" {
			return fmt.Errorf("config: oracle.KeyFile is required when the poller is enabled")
		}
	}
	return nil
}
