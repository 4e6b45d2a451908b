package vault

import (
	"math/big"

	"stablemint/crypto"
)

// CollateralType captures the per-asset risk parameters and running totals
// for one registered collateral asset. Amounts are denominated in the
// asset's base units and expressed as big integers to keep the bookkeeping
// exact.
type CollateralType struct {
	// Code is the short asset code, e.g. "BTC".
	Code string
	// TokenRef is the external token contract reference for the asset.
	TokenRef string
	// LiquidationRatio is the minimum collateralization ratio, fixed-point
	// with RatioScale == 100% (1_500_000 == 150%).
	LiquidationRatio uint64
	// LiquidationPenalty is the fraction of the debt-covering collateral
	// retained by the protocol on liquidation, fixed-point RatioScale.
	LiquidationPenalty uint64
	// StabilityFee is the annualized interest rate charged on outstanding
	// debt, fixed-point RatioScale.
	StabilityFee uint64
	// DebtCeiling caps the aggregate stable-asset debt issuable against
	// this collateral type.
	DebtCeiling *big.Int
	// MinVaultDebt is the floor below which a vault's debt must be zero.
	MinVaultDebt *big.Int
	// AdapterName identifies the settlement adapter bound at registration.
	AdapterName string
	// TotalCollateral is the aggregate collateral locked across all vaults.
	TotalCollateral *big.Int
	// TotalDebt is the aggregate stable-asset debt issued, fees included.
	TotalDebt *big.Int
	// CreatedAt records the registration timestamp in unix seconds.
	CreatedAt int64
}

// Clone returns a deep copy of the collateral type record.
func (c *CollateralType) Clone() *CollateralType {
	if c == nil {
		return nil
	}
	clone := *c
	if c.DebtCeiling != nil {
		clone.DebtCeiling = new(big.Int).Set(c.DebtCeiling)
	}
	if c.MinVaultDebt != nil {
		clone.MinVaultDebt = new(big.Int).Set(c.MinVaultDebt)
	}
	if c.TotalCollateral != nil {
		clone.TotalCollateral = new(big.Int).Set(c.TotalCollateral)
	}
	if c.TotalDebt != nil {
		clone.TotalDebt = new(big.Int).Set(c.TotalDebt)
	}
	return &clone
}

func (c *CollateralType) ensureDefaults() {
	if c.DebtCeiling == nil {
		c.DebtCeiling = big.NewInt(0)
	}
	if c.MinVaultDebt == nil {
		c.MinVaultDebt = big.NewInt(0)
	}
	if c.TotalCollateral == nil {
		c.TotalCollateral = big.NewInt(0)
	}
	if c.TotalDebt == nil {
		c.TotalDebt = big.NewInt(0)
	}
}

// PriceFeed stores the latest oracle price for one collateral type. No
// history is retained here; the oracle sidecar appends history separately.
type PriceFeed struct {
	// Code is the collateral type the price refers to.
	Code string
	// Price is the stable-asset base units per collateral base unit,
	// fixed-point PriceScale.
	Price *big.Int
	// UpdatedAt is the engine timestamp of the last accepted update.
	UpdatedAt int64
	// Reporter is the oracle identity that produced the update.
	Reporter crypto.Address
}

// Clone returns a deep copy of the price feed record.
func (p *PriceFeed) Clone() *PriceFeed {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	}
	return &clone
}

// VaultStatus tracks the stored lifecycle state of a vault. The "at risk"
// condition is derived on demand from prices and never stored.
type VaultStatus uint8

const (
	// StatusOpen marks a vault holding collateral with zero debt.
	StatusOpen VaultStatus = iota
	// StatusActive marks a vault with outstanding debt.
	StatusActive
	// StatusLiquidated is terminal: collateral seized, debt cleared.
	StatusLiquidated
	// StatusClosed is terminal: debt repaid and collateral fully withdrawn.
	StatusClosed
)

func (s VaultStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusActive:
		return "active"
	case StatusLiquidated:
		return "liquidated"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the vault can no longer be mutated.
func (s VaultStatus) Terminal() bool {
	return s == StatusLiquidated || s == StatusClosed
}

// Vault is a single collateralized debt position owned by one account
// against one collateral type.
type Vault struct {
	Owner crypto.Address
	// ID is the engine-wide sequential vault identifier.
	ID uint64
	// Code is the collateral type backing the vault.
	Code string
	// Collateral is the locked collateral balance in asset base units.
	Collateral *big.Int
	// Debt is the stable-asset amount owed, principal plus folded fees.
	Debt *big.Int
	// Status is the stored lifecycle state.
	Status VaultStatus
	// OpenedAt records the creation timestamp in unix seconds.
	OpenedAt int64
	// FeeCheckpoint is the unix second up to which stability fees have
	// been folded into Debt.
	FeeCheckpoint int64
}

// Clone returns a deep copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	if v.Collateral != nil {
		clone.Collateral = new(big.Int).Set(v.Collateral)
	}
	if v.Debt != nil {
		clone.Debt = new(big.Int).Set(v.Debt)
	}
	return &clone
}

func (v *Vault) ensureDefaults() {
	if v.Collateral == nil {
		v.Collateral = big.NewInt(0)
	}
	if v.Debt == nil {
		v.Debt = big.NewInt(0)
	}
}

// LiquidationResult summarizes a completed liquidation for callers and
// event logs.
type LiquidationResult struct {
	// Liquidator is the caller that triggered the seizure, recorded for
	// incentive accounting outside the core.
	Liquidator crypto.Address
	// Seized is the full collateral amount removed from the vault.
	Seized *big.Int
	// DebtCleared is the vault debt written off, fees included.
	DebtCleared *big.Int
	// ReserveTake is the collateral routed to the protocol reserve,
	// covering the debt plus the liquidation penalty.
	ReserveTake *big.Int
	// SurplusReturned is the leftover collateral released back to the
	// vault owner.
	SurplusReturned *big.Int
}
