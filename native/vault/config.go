package vault

import (
	"fmt"
	"math/big"
	"strings"
)

// Config captures the runtime configuration for the vault module. Amount
// fields are decimal strings so TOML files stay exact beyond int64.
type Config struct {
	AdminAddress   string             `toml:"AdminAddress"`
	ReserveAddress string             `toml:"ReserveAddress"`
	Oracles        []string           `toml:"Oracles"`
	Paused         []string           `toml:"Paused"`
	Collateral     []CollateralConfig `toml:"collateral"`
}

// CollateralConfig declares one collateral type bootstrapped at startup.
type CollateralConfig struct {
	Code               string `toml:"Code"`
	TokenRef           string `toml:"TokenRef"`
	LiquidationRatio   uint64 `toml:"LiquidationRatio"`
	LiquidationPenalty uint64 `toml:"LiquidationPenalty"`
	StabilityFee       uint64 `toml:"StabilityFee"`
	DebtCeiling        string `toml:"DebtCeiling"`
	MinVaultDebt       string `toml:"MinVaultDebt"`
	AdapterName        string `toml:"AdapterName"`
}

// Params converts the declaration into registration parameters.
func (c CollateralConfig) Params() (CollateralParams, error) {
	ceiling, err := parseAmount(c.DebtCeiling)
	if err != nil {
		return CollateralParams{}, fmt.Errorf("collateral %s: debt ceiling: %w", c.Code, err)
	}
	minDebt, err := parseAmount(c.MinVaultDebt)
	if err != nil {
		return CollateralParams{}, fmt.Errorf("collateral %s: min vault debt: %w", c.Code, err)
	}
	return CollateralParams{
		Code:               c.Code,
		TokenRef:           c.TokenRef,
		LiquidationRatio:   c.LiquidationRatio,
		LiquidationPenalty: c.LiquidationPenalty,
		StabilityFee:       c.StabilityFee,
		DebtCeiling:        ceiling,
		MinVaultDebt:       minDebt,
		AdapterName:        c.AdapterName,
	}, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", value)
	}
	return parsed, nil
}
