package vault

import "math/big"

const (
	// RatioScale is the implicit fixed-point scale for ratios, penalties
	// and fees: 1_000_000 == 100%.
	RatioScale = 1_000_000
	// PriceScale is the implicit fixed-point scale for oracle prices.
	PriceScale = 1_000_000
	// yearSeconds is the fee accrual year length.
	yearSeconds = 31_536_000
)

var (
	ratioScaleInt = big.NewInt(RatioScale)
	priceScaleInt = big.NewInt(PriceScale)
	yearInt       = big.NewInt(yearSeconds)

	// RatioUnbounded is the sentinel collateralization ratio of a vault
	// with zero debt.
	RatioUnbounded = mustBigInt("340282366920938463463374607431768211455")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDiv computes a*b/den with truncation toward zero. The intermediate
// product is exact, so there is no silent overflow.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// mulDivCeil computes a*b/den rounded away from zero for non-negative
// inputs. Used where rounding down would leak value out of the protocol.
func mulDivCeil(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(a, b)
	rem := new(big.Int)
	out, rem := num.QuoRem(num, den, rem)
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

func isPositive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

func bigOrZero(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}
