package vault

import (
	"errors"
	"math/big"
	"testing"
)

func TestLiquidateSafeVaultRejected(t *testing.T) {
	f := newFixture(t)
	f.registerBTC(t, 1_000_000_000)
	f.setPrice(t, 2_000_000)
	f.fundOwner(t, 100_000_000)

	liquidator := makeAddress(0x09)
	id, err := f.engine.OpenVault(f.owner, "BTC", big.NewInt(100_000_000), big.NewInt(100_000_000))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}

	_, err = f.engine.LiquidateVault(liquidator, f.owner, id, "BTC")
	if !errors.Is(err, ErrVaultIsSafe) {
		t.Fatalf("expected ErrVaultIsSafe, got %v", err)
	}
	record, _ := f.engine.VaultInfo(f.owner, id, "BTC")
	if record.Status != StatusActive {
		t.Fatalf("safe vault mutated by failed liquidation: %s", record.Status)
	}
}

func TestLiquidateAfterPriceDrop(t *testing.T) {
	f := newFixture(t)
	f.registerBTC(t, 1_000_000_000)
	f.setPrice(t, 2_000_000)
	f.fundOwner(t, 100_000_000)

	liquidator := makeAddress(0x09)
	id, err := f.engine.OpenVault(f.owner, "BTC", big.NewInt(100_000_000), big.NewInt(100_000_000))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}

	// 140% after the drop, below the 150% liquidation ratio.
	f.setPrice(t, 1_400_000)

	result, err := f.engine.LiquidateVault(liquidator, f.owner, id, "BTC")
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if !result.Liquidator.Equal(liquidator) {
		t.Fatalf("result carries wrong liquidator %s", result.Liquidator)
	}
	if result.Seized.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("unexpected seizure %s", result.Seized)
	}
	if result.DebtCleared.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("unexpected debt cleared %s", result.DebtCleared)
	}

	// Debt cover rounds up to 71_428_572 units, 13% penalty on top.
	wantReserve := big.NewInt(80_714_286)
	wantSurplus := big.NewInt(19_285_714)
	if result.ReserveTake.Cmp(wantReserve) != 0 {
		t.Fatalf("reserve take %s, want %s", result.ReserveTake, wantReserve)
	}
	if result.SurplusReturned.Cmp(wantSurplus) != 0 {
		t.Fatalf("surplus %s, want %s", result.SurplusReturned, wantSurplus)
	}
	f.mustBalance(t, f.collateral, f.reserve, 80_714_286)
	f.mustBalance(t, f.collateral, f.owner, 19_285_714)
	f.mustBalance(t, f.collateral, f.custody, 0)

	record, err := f.engine.VaultInfo(f.owner, id, "BTC")
	if err != nil {
		t.Fatalf("vault info: %v", err)
	}
	if record.Status != StatusLiquidated {
		t.Fatalf("expected liquidated status, got %s", record.Status)
	}
	if record.Collateral.Sign() != 0 || record.Debt.Sign() != 0 {
		t.Fatalf("liquidated vault not zeroed: collateral %s debt %s", record.Collateral, record.Debt)
	}

	ct, _ := f.engine.CollateralTypeInfo("BTC")
	if ct.TotalCollateral.Sign() != 0 || ct.TotalDebt.Sign() != 0 {
		t.Fatalf("residual totals after liquidation: collateral %s debt %s", ct.TotalCollateral, ct.TotalDebt)
	}

	// The record is terminal afterwards.
	if _, err := f.engine.LiquidateVault(liquidator, f.owner, id, "BTC"); !errors.Is(err, ErrVaultNotActive) {
		t.Fatalf("expected ErrVaultNotActive on repeat, got %v", err)
	}
}

func TestLiquidateUnderwaterVault(t *testing.T) {
	f := newFixture(t)
	f.registerBTC(t, 1_000_000_000)
	f.setPrice(t, 2_000_000)
	f.fundOwner(t, 100_000_000)

	liquidator := makeAddress(0x09)
	id, err := f.engine.OpenVault(f.owner, "BTC", big.NewInt(100_000_000), big.NewInt(100_000_000))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}

	// Collateral value falls below the debt outright. Everything seized
	// goes to the reserve, the owner gets nothing back.
	f.setPrice(t, 500_000)

	result, err := f.engine.LiquidateVault(liquidator, f.owner, id, "BTC")
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if result.ReserveTake.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("underwater reserve take %s", result.ReserveTake)
	}
	if result.SurplusReturned.Sign() != 0 {
		t.Fatalf("underwater vault returned surplus %s", result.SurplusReturned)
	}
	f.mustBalance(t, f.collateral, f.reserve, 100_000_000)
	f.mustBalance(t, f.collateral, f.owner, 0)
}

func TestLiquidateRequiresKnownVault(t *testing.T) {
	f := newFixture(t)
	f.registerBTC(t, 1_000_000_000)

	_, err := f.engine.LiquidateVault(makeAddress(0x09), f.owner, 7, "BTC")
	if !errors.Is(err, ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
}
