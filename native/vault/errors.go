package vault

import "errors"

var (
	errNilState       = errors.New("vault engine: state not configured")
	errNoAdapter      = errors.New("vault engine: collateral adapter not registered")
	errNoStableToken  = errors.New("vault engine: stable token not configured")
	errNoReserve      = errors.New("vault engine: protocol reserve not configured")
	ErrNotInitialized = errors.New("vault engine: oracle set not initialized")
	ErrInitialized    = errors.New("vault engine: already initialized")

	// Authorization failures.
	ErrUnauthorizedOracle = errors.New("vault: reporter not in authorized oracle set")
	ErrUnauthorizedAdmin  = errors.New("vault: caller is not the administrator")

	// Lookup failures.
	ErrUnknownCollateralType = errors.New("vault: unknown collateral type")
	ErrPriceUnavailable      = errors.New("vault: price unavailable")
	ErrVaultNotFound         = errors.New("vault: vault not found")

	// Validation failures.
	ErrDuplicateCollateralType = errors.New("vault: collateral type already registered")
	ErrInvalidParameter        = errors.New("vault: invalid parameter")
	ErrInvalidAmount           = errors.New("vault: amount must be positive")
	ErrCollateralMismatch      = errors.New("vault: collateral type does not match vault")
	ErrVaultNotActive          = errors.New("vault: vault is closed or liquidated")

	// Solvency failures.
	ErrInsufficientCollateral = errors.New("vault: insufficient collateral")
	ErrWithdrawalUnsafe       = errors.New("vault: withdrawal would breach liquidation ratio")
	ErrGenerationUnsafe       = errors.New("vault: generation would breach liquidation ratio")
	ErrDebtCeilingExceeded    = errors.New("vault: collateral debt ceiling exceeded")
	ErrBelowMinimumDebt       = errors.New("vault: debt below collateral minimum")
	ErrOverRepayment          = errors.New("vault: repayment exceeds outstanding debt")

	// Safety invariant failures.
	ErrVaultIsSafe = errors.New("vault: vault satisfies its liquidation ratio")

	// External collaborator failures.
	ErrTokenOperation     = errors.New("vault: stable token operation failed")
	ErrCollateralTransfer = errors.New("vault: collateral transfer failed")
)

// Kind classifies engine failures for transport layers that map error
// classes onto wire codes.
type Kind uint8

const (
	KindInternal Kind = iota
	KindAuthorization
	KindNotFound
	KindValidation
	KindSolvency
	KindSafetyInvariant
	KindExternalCall
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindSolvency:
		return "solvency"
	case KindSafetyInvariant:
		return "safety_invariant"
	case KindExternalCall:
		return "external_call"
	}
	return "internal"
}

// Classify maps an engine error onto its taxonomy kind. Unknown errors are
// reported as internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrUnauthorizedOracle), errors.Is(err, ErrUnauthorizedAdmin):
		return KindAuthorization
	case errors.Is(err, ErrUnknownCollateralType), errors.Is(err, ErrPriceUnavailable), errors.Is(err, ErrVaultNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateCollateralType), errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrCollateralMismatch),
		errors.Is(err, ErrVaultNotActive), errors.Is(err, ErrNotInitialized), errors.Is(err, ErrInitialized):
		return KindValidation
	case errors.Is(err, ErrInsufficientCollateral), errors.Is(err, ErrWithdrawalUnsafe),
		errors.Is(err, ErrGenerationUnsafe), errors.Is(err, ErrDebtCeilingExceeded),
		errors.Is(err, ErrBelowMinimumDebt), errors.Is(err, ErrOverRepayment):
		return KindSolvency
	case errors.Is(err, ErrVaultIsSafe):
		return KindSafetyInvariant
	case errors.Is(err, ErrTokenOperation), errors.Is(err, ErrCollateralTransfer):
		return KindExternalCall
	}
	return KindInternal
}
