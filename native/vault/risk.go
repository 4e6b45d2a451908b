package vault

import "math/big"

// collateralValue converts a collateral balance into stable-asset base
// units at the given price. The final division truncates toward zero so
// rounding always favors the protocol.
func collateralValue(collateral, price *big.Int) *big.Int {
	return mulDiv(collateral, price, priceScaleInt)
}

// collateralizationRatio computes value * RatioScale / debt, truncating.
// A vault with zero debt is unbounded and reports the sentinel maximum.
func collateralizationRatio(value, debt *big.Int) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(RatioUnbounded)
	}
	return mulDiv(value, ratioScaleInt, debt)
}

// isSafe reports whether the ratio satisfies the collateral type's
// liquidation ratio.
func isSafe(ratio *big.Int, liquidationRatio uint64) bool {
	if ratio == nil {
		return false
	}
	return ratio.Cmp(new(big.Int).SetUint64(liquidationRatio)) >= 0
}

// accruedFee computes the simple-interest stability fee on debt between
// the checkpoint and now: debt * fee * elapsed / (RatioScale * year).
// Truncation keeps the charge conservative; the elapsed window is clamped
// at zero so a stale clock can never rebate fees.
func accruedFee(debt *big.Int, stabilityFee uint64, checkpoint, now int64) *big.Int {
	if debt == nil || debt.Sign() == 0 || stabilityFee == 0 || now <= checkpoint {
		return big.NewInt(0)
	}
	elapsed := big.NewInt(now - checkpoint)
	fee := new(big.Int).Mul(debt, new(big.Int).SetUint64(stabilityFee))
	fee.Mul(fee, elapsed)
	den := new(big.Int).Mul(ratioScaleInt, yearInt)
	return fee.Quo(fee, den)
}

// ratioAfter computes the collateralization ratio a vault would have with
// the hypothetical collateral and debt balances at the given price.
func ratioAfter(collateral, debt, price *big.Int) *big.Int {
	return collateralizationRatio(collateralValue(collateral, price), debt)
}
