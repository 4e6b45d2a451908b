package vault

import (
	"math/big"
	"testing"
)

func TestMulDivTruncates(t *testing.T) {
	got := mulDiv(big.NewInt(10), big.NewInt(10), big.NewInt(3))
	if got.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("mulDiv(10,10,3) = %s, want 33", got)
	}
	if mulDiv(nil, big.NewInt(1), big.NewInt(1)).Sign() != 0 {
		t.Fatalf("nil operand must yield zero")
	}
	if mulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)).Sign() != 0 {
		t.Fatalf("zero denominator must yield zero")
	}
}

func TestMulDivCeilRoundsUp(t *testing.T) {
	got := mulDivCeil(big.NewInt(10), big.NewInt(10), big.NewInt(3))
	if got.Cmp(big.NewInt(34)) != 0 {
		t.Fatalf("mulDivCeil(10,10,3) = %s, want 34", got)
	}
	exact := mulDivCeil(big.NewInt(10), big.NewInt(9), big.NewInt(3))
	if exact.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("exact division must not round: got %s", exact)
	}
}

func TestCollateralizationRatio(t *testing.T) {
	// 10_000_000 units at price 4_000_000_000_000 backing 50_000_000 debt.
	value := collateralValue(big.NewInt(10_000_000), big.NewInt(4_000_000_000_000))
	if value.Cmp(big.NewInt(40_000_000_000_000)) != 0 {
		t.Fatalf("collateral value %s", value)
	}
	ratio := collateralizationRatio(value, big.NewInt(50_000_000))
	if ratio.Cmp(big.NewInt(800_000_000_000)) != 0 {
		t.Fatalf("ratio %s", ratio)
	}
	if !isSafe(ratio, 1_500_000) {
		t.Fatalf("ratio %s should be safe at 150%%", ratio)
	}

	zeroDebt := collateralizationRatio(value, big.NewInt(0))
	if zeroDebt.Cmp(RatioUnbounded) != 0 {
		t.Fatalf("zero debt must report the unbounded sentinel, got %s", zeroDebt)
	}
}

func TestIsSafeBoundary(t *testing.T) {
	// Exactly at the liquidation ratio counts as safe.
	if !isSafe(big.NewInt(1_500_000), 1_500_000) {
		t.Fatalf("boundary ratio must be safe")
	}
	if isSafe(big.NewInt(1_499_999), 1_500_000) {
		t.Fatalf("one below the boundary must be unsafe")
	}
}

func TestAccruedFee(t *testing.T) {
	debt := big.NewInt(100_000_000)

	full := accruedFee(debt, 20_000, 0, yearSeconds)
	if full.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("one year at 2%% on %s = %s, want 2_000_000", debt, full)
	}

	half := accruedFee(debt, 20_000, 0, yearSeconds/2)
	if half.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("half year fee %s, want 1_000_000", half)
	}

	if accruedFee(debt, 20_000, 100, 100).Sign() != 0 {
		t.Fatalf("zero elapsed must accrue nothing")
	}
	if accruedFee(debt, 20_000, 200, 100).Sign() != 0 {
		t.Fatalf("negative elapsed must accrue nothing")
	}
	if accruedFee(big.NewInt(0), 20_000, 0, yearSeconds).Sign() != 0 {
		t.Fatalf("zero debt must accrue nothing")
	}
	if accruedFee(debt, 0, 0, yearSeconds).Sign() != 0 {
		t.Fatalf("zero fee rate must accrue nothing")
	}
}
