package vault

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"stablemint/crypto"
	nativecommon "stablemint/native/common"
)

const moduleName = "vault"

// Engine orchestrates every vault state transition: collateral type
// registration, oracle price ingestion, the vault lifecycle and the
// liquidation protocol. All operations are serialized behind a single
// mutex so the engine behaves like the one-operation-at-a-time host it
// models; validation happens in full before any state mutation or
// external call so failures never leave partial state behind.
type Engine struct {
	mu       sync.Mutex
	state    EngineState
	admin    crypto.Address
	reserve  crypto.Address
	token    StableToken
	adapters map[string]CollateralAdapter
	pauses   nativecommon.PauseView
	nowFn    func() int64
}

// NewEngine constructs a vault engine owned by the given administrator
// identity. State, token and adapters are wired afterwards.
func NewEngine(admin crypto.Address) *Engine {
	return &Engine{
		admin:    admin,
		adapters: make(map[string]CollateralAdapter),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to its persistence layer.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetPauses installs the administrative pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetStableToken wires the fungible stable-asset interface.
func (e *Engine) SetStableToken(token StableToken) {
	if e == nil {
		return
	}
	e.token = token
}

// SetReserve configures the protocol reserve that receives liquidation
// penalties and the debt-covering collateral share.
func (e *Engine) SetReserve(addr crypto.Address) {
	if e == nil {
		return
	}
	e.reserve = addr
}

// RegisterAdapter binds a settlement adapter under the given name.
// Collateral types registered later reference the adapter by this name
// exactly once, at registration time.
func (e *Engine) RegisterAdapter(name string, adapter CollateralAdapter) {
	if e == nil || adapter == nil {
		return
	}
	e.adapters[name] = adapter
}

// SetTimeSource overrides the engine clock. The host must supply a
// monotonic clock; fee accrual clamps regressions to zero elapsed time.
func (e *Engine) SetTimeSource(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// Initialize records the authorized oracle identity set. It may be called
// exactly once per engine state.
func (e *Engine) Initialize(oracles []crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(oracles) == 0 {
		return fmt.Errorf("%w: oracle set must not be empty", ErrInvalidParameter)
	}
	existing, err := e.state.OracleSet()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrInitialized
	}
	return e.state.PutOracleSet(oracles)
}

// --- Collateral Type Registry ---

// CollateralParams are the registration inputs for a collateral type.
type CollateralParams struct {
	Code               string
	TokenRef           string
	LiquidationRatio   uint64
	LiquidationPenalty uint64
	StabilityFee       uint64
	DebtCeiling        *big.Int
	MinVaultDebt       *big.Int
	AdapterName        string
}

// AddCollateralType registers a collateral asset with its risk
// parameters. Restricted to the administrator identity.
func (e *Engine) AddCollateralType(caller crypto.Address, params CollateralParams) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !caller.Equal(e.admin) {
		return fmt.Errorf("%w: %s", ErrUnauthorizedAdmin, caller)
	}
	code := normalizeCode(params.Code)
	if code == "" {
		return fmt.Errorf("%w: collateral code required", ErrInvalidParameter)
	}
	if params.LiquidationRatio < RatioScale {
		return fmt.Errorf("%w: liquidation ratio must be at least 100%%", ErrInvalidParameter)
	}
	if params.LiquidationPenalty >= RatioScale {
		return fmt.Errorf("%w: liquidation penalty must be below 100%%", ErrInvalidParameter)
	}
	if params.StabilityFee >= RatioScale {
		return fmt.Errorf("%w: stability fee must be below 100%%", ErrInvalidParameter)
	}
	if !isPositive(params.DebtCeiling) {
		return fmt.Errorf("%w: debt ceiling must be positive", ErrInvalidParameter)
	}
	if params.MinVaultDebt != nil && params.MinVaultDebt.Sign() < 0 {
		return fmt.Errorf("%w: minimum vault debt must not be negative", ErrInvalidParameter)
	}
	if _, ok := e.adapters[params.AdapterName]; !ok {
		return fmt.Errorf("%w: adapter %q", errNoAdapter, params.AdapterName)
	}
	existing, err := e.state.GetCollateralType(code)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateCollateralType, code)
	}
	record := &CollateralType{
		Code:               code,
		TokenRef:           params.TokenRef,
		LiquidationRatio:   params.LiquidationRatio,
		LiquidationPenalty: params.LiquidationPenalty,
		StabilityFee:       params.StabilityFee,
		DebtCeiling:        bigOrZero(params.DebtCeiling),
		MinVaultDebt:       bigOrZero(params.MinVaultDebt),
		AdapterName:        params.AdapterName,
		TotalCollateral:    big.NewInt(0),
		TotalDebt:          big.NewInt(0),
		CreatedAt:          e.nowFn(),
	}
	return e.state.PutCollateralType(record)
}

// CollateralTypeInfo returns the full parameter record for the code.
func (e *Engine) CollateralTypeInfo(code string) (*CollateralType, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadType(code)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// CollateralCodes lists every registered collateral type code.
func (e *Engine) CollateralCodes() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ListCollateralCodes()
}

// --- Price Feed Registry ---

// UpdatePrice overwrites the latest price for a collateral type. The
// reporter must belong to the authorized oracle set.
func (e *Engine) UpdatePrice(reporter crypto.Address, code string, price *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "price"); err != nil {
		return err
	}
	if !isPositive(price) {
		return fmt.Errorf("%w: price must be positive", ErrInvalidParameter)
	}
	if _, err := e.loadType(code); err != nil {
		return err
	}
	authorized, err := e.isAuthorizedOracle(reporter)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("%w: %s", ErrUnauthorizedOracle, reporter)
	}
	feed := &PriceFeed{
		Code:      normalizeCode(code),
		Price:     new(big.Int).Set(price),
		UpdatedAt: e.nowFn(),
		Reporter:  reporter,
	}
	return e.state.PutPriceFeed(feed)
}

// PriceFeedInfo returns the current feed for the collateral type.
func (e *Engine) PriceFeedInfo(code string) (*PriceFeed, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadType(code); err != nil {
		return nil, err
	}
	feed, err := e.loadPrice(code)
	if err != nil {
		return nil, err
	}
	return feed.Clone(), nil
}

func (e *Engine) isAuthorizedOracle(reporter crypto.Address) (bool, error) {
	oracles, err := e.state.OracleSet()
	if err != nil {
		return false, err
	}
	if len(oracles) == 0 {
		return false, ErrNotInitialized
	}
	for _, oracle := range oracles {
		if oracle.Equal(reporter) {
			return true, nil
		}
	}
	return false, nil
}

// --- Vault lifecycle ---

// OpenVault creates a vault for the owner, pulling the initial collateral
// through the asset adapter and, when initialDebt is positive, minting
// stable asset under the same checks generation applies.
func (e *Engine) OpenVault(owner crypto.Address, code string, collateral, initialDebt *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "open"); err != nil {
		return 0, err
	}
	if !isPositive(collateral) {
		return 0, fmt.Errorf("%w: collateral", ErrInvalidAmount)
	}
	debt := bigOrZero(initialDebt)
	if debt.Sign() < 0 {
		return 0, fmt.Errorf("%w: initial debt", ErrInvalidAmount)
	}
	ct, err := e.loadType(code)
	if err != nil {
		return 0, err
	}
	adapter, err := e.adapterFor(ct)
	if err != nil {
		return 0, err
	}

	if debt.Sign() > 0 {
		if e.token == nil {
			return 0, errNoStableToken
		}
		if debt.Cmp(ct.MinVaultDebt) < 0 {
			return 0, fmt.Errorf("%w: %s < %s for %s", ErrBelowMinimumDebt, debt, ct.MinVaultDebt, ct.Code)
		}
		projected := new(big.Int).Add(ct.TotalDebt, debt)
		if projected.Cmp(ct.DebtCeiling) > 0 {
			return 0, fmt.Errorf("%w: %s", ErrDebtCeilingExceeded, ct.Code)
		}
		feed, err := e.loadPrice(ct.Code)
		if err != nil {
			return 0, err
		}
		if !isSafe(ratioAfter(collateral, debt, feed.Price), ct.LiquidationRatio) {
			return 0, fmt.Errorf("%w: initial position unsafe for %s", ErrInsufficientCollateral, ct.Code)
		}
	}

	id, err := e.state.NextVaultID()
	if err != nil {
		return 0, err
	}

	if err := adapter.Lock(owner, collateral); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCollateralTransfer, err)
	}
	if debt.Sign() > 0 {
		if err := e.token.Mint(owner, debt); err != nil {
			// Unwind the collateral pull so the failed open leaves no trace.
			_ = adapter.Release(owner, collateral)
			return 0, fmt.Errorf("%w: %v", ErrTokenOperation, err)
		}
	}

	now := e.nowFn()
	status := StatusOpen
	if debt.Sign() > 0 {
		status = StatusActive
	}
	record := &Vault{
		Owner:         owner,
		ID:            id,
		Code:          ct.Code,
		Collateral:    new(big.Int).Set(collateral),
		Debt:          debt,
		Status:        status,
		OpenedAt:      now,
		FeeCheckpoint: now,
	}
	if err := e.state.PutVault(record); err != nil {
		return 0, err
	}
	if err := e.state.AppendOwnerVaultID(owner, id); err != nil {
		return 0, err
	}
	ct.TotalCollateral = new(big.Int).Add(ct.TotalCollateral, collateral)
	ct.TotalDebt = new(big.Int).Add(ct.TotalDebt, debt)
	if err := e.state.PutCollateralType(ct); err != nil {
		return 0, err
	}
	return id, nil
}

// DepositCollateral adds collateral to an existing vault. Depositing only
// ever improves the ratio, so no safety check applies.
func (e *Engine) DepositCollateral(owner crypto.Address, id uint64, code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "deposit"); err != nil {
		return err
	}
	if !isPositive(amount) {
		return fmt.Errorf("%w: deposit", ErrInvalidAmount)
	}
	record, ct, err := e.loadActiveVault(owner, id, code)
	if err != nil {
		return err
	}
	adapter, err := e.adapterFor(ct)
	if err != nil {
		return err
	}
	fee := e.accrue(record, ct)

	if err := adapter.Lock(owner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrCollateralTransfer, err)
	}

	record.Collateral = new(big.Int).Add(record.Collateral, amount)
	if err := e.state.PutVault(record); err != nil {
		return err
	}
	ct.TotalCollateral = new(big.Int).Add(ct.TotalCollateral, amount)
	foldFee(ct, fee)
	return e.state.PutCollateralType(ct)
}

// WithdrawCollateral releases collateral back to the owner as long as the
// vault stays at or above its liquidation ratio afterwards.
func (e *Engine) WithdrawCollateral(owner crypto.Address, id uint64, code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "withdraw"); err != nil {
		return err
	}
	if !isPositive(amount) {
		return fmt.Errorf("%w: withdrawal", ErrInvalidAmount)
	}
	record, ct, err := e.loadActiveVault(owner, id, code)
	if err != nil {
		return err
	}
	adapter, err := e.adapterFor(ct)
	if err != nil {
		return err
	}
	if amount.Cmp(record.Collateral) > 0 {
		return fmt.Errorf("%w: withdrawal %s exceeds balance %s", ErrInsufficientCollateral, amount, record.Collateral)
	}
	fee := e.accrue(record, ct)

	remaining := new(big.Int).Sub(record.Collateral, amount)
	if record.Debt.Sign() > 0 {
		feed, err := e.loadPrice(ct.Code)
		if err != nil {
			return err
		}
		if !isSafe(ratioAfter(remaining, record.Debt, feed.Price), ct.LiquidationRatio) {
			return fmt.Errorf("%w: vault %d", ErrWithdrawalUnsafe, record.ID)
		}
	}

	if err := adapter.Release(owner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrCollateralTransfer, err)
	}

	record.Collateral = remaining
	if record.Debt.Sign() == 0 && remaining.Sign() == 0 {
		record.Status = StatusClosed
	}
	if err := e.state.PutVault(record); err != nil {
		return err
	}
	ct.TotalCollateral = new(big.Int).Sub(ct.TotalCollateral, amount)
	foldFee(ct, fee)
	return e.state.PutCollateralType(ct)
}

// GenerateStablecoin mints stable asset against the vault's collateral,
// enforcing the debt ceiling, safety ratio and minimum debt floor.
func (e *Engine) GenerateStablecoin(owner crypto.Address, id uint64, code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "generate"); err != nil {
		return err
	}
	if !isPositive(amount) {
		return fmt.Errorf("%w: generation", ErrInvalidAmount)
	}
	if e.token == nil {
		return errNoStableToken
	}
	record, ct, err := e.loadActiveVault(owner, id, code)
	if err != nil {
		return err
	}
	foldFee(ct, e.accrue(record, ct))

	newDebt := new(big.Int).Add(record.Debt, amount)
	projectedTotal := new(big.Int).Add(ct.TotalDebt, amount)
	if projectedTotal.Cmp(ct.DebtCeiling) > 0 {
		return fmt.Errorf("%w: %s", ErrDebtCeilingExceeded, ct.Code)
	}
	feed, err := e.loadPrice(ct.Code)
	if err != nil {
		return err
	}
	if !isSafe(ratioAfter(record.Collateral, newDebt, feed.Price), ct.LiquidationRatio) {
		return fmt.Errorf("%w: vault %d", ErrGenerationUnsafe, record.ID)
	}
	if newDebt.Cmp(ct.MinVaultDebt) < 0 {
		return fmt.Errorf("%w: %s < %s for %s", ErrBelowMinimumDebt, newDebt, ct.MinVaultDebt, ct.Code)
	}

	if err := e.token.Mint(owner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenOperation, err)
	}

	record.Debt = newDebt
	record.Status = StatusActive
	if err := e.state.PutVault(record); err != nil {
		return err
	}
	ct.TotalDebt = projectedTotal
	return e.state.PutCollateralType(ct)
}

// RepayStablecoin burns stable asset from the owner and reduces the vault
// debt. Repaying more than is owed fails fast instead of clamping so
// caller bugs surface immediately.
func (e *Engine) RepayStablecoin(owner crypto.Address, id uint64, code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "repay"); err != nil {
		return err
	}
	if !isPositive(amount) {
		return fmt.Errorf("%w: repayment", ErrInvalidAmount)
	}
	if e.token == nil {
		return errNoStableToken
	}
	record, ct, err := e.loadActiveVault(owner, id, code)
	if err != nil {
		return err
	}
	fee := e.accrue(record, ct)

	if record.Debt.Sign() == 0 {
		return fmt.Errorf("%w: vault %d has no outstanding debt", ErrOverRepayment, record.ID)
	}
	if amount.Cmp(record.Debt) > 0 {
		return fmt.Errorf("%w: %s > %s on vault %d", ErrOverRepayment, amount, record.Debt, record.ID)
	}
	remaining := new(big.Int).Sub(record.Debt, amount)
	if remaining.Sign() > 0 && remaining.Cmp(ct.MinVaultDebt) < 0 {
		return fmt.Errorf("%w: residual %s < %s for %s", ErrBelowMinimumDebt, remaining, ct.MinVaultDebt, ct.Code)
	}

	if err := e.token.Burn(owner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenOperation, err)
	}

	record.Debt = remaining
	if remaining.Sign() == 0 {
		record.Status = StatusOpen
	}
	if err := e.state.PutVault(record); err != nil {
		return err
	}
	foldFee(ct, fee)
	reduceTotalDebt(ct, amount)
	return e.state.PutCollateralType(ct)
}

// LiquidateVault seizes an unsafe vault. Any caller may trigger it; the
// debt-covering collateral plus the penalty cut go to the protocol
// reserve and any surplus is returned to the vault owner. The liquidator
// identity is echoed in the result for incentive accounting outside the
// core.
func (e *Engine) LiquidateVault(liquidator, owner crypto.Address, id uint64, code string) (*LiquidationResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName, "liquidate"); err != nil {
		return nil, err
	}
	if e.reserve.IsZero() {
		return nil, errNoReserve
	}
	record, ct, err := e.loadActiveVault(owner, id, code)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapterFor(ct)
	if err != nil {
		return nil, err
	}
	fee := e.accrue(record, ct)

	if record.Debt.Sign() == 0 {
		return nil, fmt.Errorf("%w: vault %d has no debt", ErrVaultIsSafe, record.ID)
	}
	feed, err := e.loadPrice(ct.Code)
	if err != nil {
		return nil, err
	}
	if isSafe(ratioAfter(record.Collateral, record.Debt, feed.Price), ct.LiquidationRatio) {
		return nil, fmt.Errorf("%w: vault %d", ErrVaultIsSafe, record.ID)
	}

	seized := new(big.Int).Set(record.Collateral)
	debtCleared := new(big.Int).Set(record.Debt)

	// Collateral units needed to cover the debt at the current price,
	// rounded up so the protocol never under-collects.
	debtShare := mulDivCeil(debtCleared, priceScaleInt, feed.Price)
	if debtShare.Cmp(seized) > 0 {
		debtShare = new(big.Int).Set(seized)
	}
	penaltyShare := mulDiv(debtShare, new(big.Int).SetUint64(ct.LiquidationPenalty), ratioScaleInt)
	headroom := new(big.Int).Sub(seized, debtShare)
	if penaltyShare.Cmp(headroom) > 0 {
		penaltyShare = headroom
	}
	reserveTake := new(big.Int).Add(debtShare, penaltyShare)
	surplus := new(big.Int).Sub(seized, reserveTake)

	if reserveTake.Sign() > 0 {
		if err := adapter.Release(e.reserve, reserveTake); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCollateralTransfer, err)
		}
	}
	if surplus.Sign() > 0 {
		if err := adapter.Release(owner, surplus); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCollateralTransfer, err)
		}
	}

	record.Collateral = big.NewInt(0)
	record.Debt = big.NewInt(0)
	record.Status = StatusLiquidated
	if err := e.state.PutVault(record); err != nil {
		return nil, err
	}
	ct.TotalCollateral = new(big.Int).Sub(ct.TotalCollateral, seized)
	foldFee(ct, fee)
	reduceTotalDebt(ct, debtCleared)
	if err := e.state.PutCollateralType(ct); err != nil {
		return nil, err
	}
	return &LiquidationResult{
		Liquidator:      liquidator,
		Seized:          seized,
		DebtCleared:     debtCleared,
		ReserveTake:     reserveTake,
		SurplusReturned: surplus,
	}, nil
}

// --- Queries ---

// VaultInfo returns the stored vault record.
func (e *Engine) VaultInfo(owner crypto.Address, id uint64, code string) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadVault(owner, id, code)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// OwnerVaultIDs returns every vault identifier ever created for the
// owner, in insertion order.
func (e *Engine) OwnerVaultIDs(owner crypto.Address) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.OwnerVaultIDs(owner)
}

// VaultCollateralization reports the vault's current ratio with fees
// accrued virtually up to now. The computation does not persist anything.
func (e *Engine) VaultCollateralization(owner crypto.Address, id uint64, code string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadVault(owner, id, code)
	if err != nil {
		return nil, err
	}
	if record.Debt.Sign() == 0 {
		return new(big.Int).Set(RatioUnbounded), nil
	}
	ct, err := e.loadType(record.Code)
	if err != nil {
		return nil, err
	}
	feed, err := e.loadPrice(record.Code)
	if err != nil {
		return nil, err
	}
	debt := new(big.Int).Add(record.Debt, accruedFee(record.Debt, ct.StabilityFee, record.FeeCheckpoint, e.nowFn()))
	return ratioAfter(record.Collateral, debt, feed.Price), nil
}

// --- internals ---

func (e *Engine) loadType(code string) (*CollateralType, error) {
	record, err := e.state.GetCollateralType(code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollateralType, normalizeCode(code))
	}
	return record, nil
}

func (e *Engine) loadPrice(code string) (*PriceFeed, error) {
	feed, err := e.state.GetPriceFeed(code)
	if err != nil {
		return nil, err
	}
	if feed == nil || feed.Price == nil || feed.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, normalizeCode(code))
	}
	return feed, nil
}

func (e *Engine) loadVault(owner crypto.Address, id uint64, code string) (*Vault, error) {
	record, err := e.state.GetVault(owner, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: owner %s id %d", ErrVaultNotFound, owner, id)
	}
	if normalizeCode(code) != record.Code {
		return nil, fmt.Errorf("%w: vault %d holds %s", ErrCollateralMismatch, id, record.Code)
	}
	return record, nil
}

func (e *Engine) loadActiveVault(owner crypto.Address, id uint64, code string) (*Vault, *CollateralType, error) {
	record, err := e.loadVault(owner, id, code)
	if err != nil {
		return nil, nil, err
	}
	if record.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: vault %d is %s", ErrVaultNotActive, id, record.Status)
	}
	ct, err := e.loadType(record.Code)
	if err != nil {
		return nil, nil, err
	}
	return record, ct, nil
}

func (e *Engine) adapterFor(ct *CollateralType) (CollateralAdapter, error) {
	adapter, ok := e.adapters[ct.AdapterName]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: adapter %q for %s", errNoAdapter, ct.AdapterName, ct.Code)
	}
	return adapter, nil
}

// accrue folds the stability fee owed since the vault's checkpoint into
// its debt balance and advances the checkpoint. It runs before every
// ratio or ceiling check so accrual cannot be dodged by timing an
// operation. The returned fee is added to the collateral type totals by
// the caller when the operation commits.
func (e *Engine) accrue(record *Vault, ct *CollateralType) *big.Int {
	now := e.nowFn()
	fee := accruedFee(record.Debt, ct.StabilityFee, record.FeeCheckpoint, now)
	if fee.Sign() > 0 {
		record.Debt = new(big.Int).Add(record.Debt, fee)
	}
	if now > record.FeeCheckpoint {
		record.FeeCheckpoint = now
	}
	return fee
}

// foldFee credits an accrued stability fee to the collateral type's running
// debt total. Fees consume ceiling headroom the same way issuance does, but
// accrual on an existing vault cannot be refused, so the credit saturates at
// the ceiling and any excess stays on the vault record only. TotalDebt never
// exceeds DebtCeiling after a committed operation.
func foldFee(ct *CollateralType, fee *big.Int) {
	if fee == nil || fee.Sign() <= 0 {
		return
	}
	total := new(big.Int).Add(ct.TotalDebt, fee)
	if total.Cmp(ct.DebtCeiling) > 0 {
		if ct.TotalDebt.Cmp(ct.DebtCeiling) >= 0 {
			return
		}
		total.Set(ct.DebtCeiling)
	}
	ct.TotalDebt = total
}

// reduceTotalDebt lowers the running debt total, flooring at zero. Repaid
// fee portions that saturated away at the ceiling are larger than what the
// total ever recorded.
func reduceTotalDebt(ct *CollateralType, amount *big.Int) {
	reduced := new(big.Int).Sub(ct.TotalDebt, amount)
	if reduced.Sign() < 0 {
		reduced.SetInt64(0)
	}
	ct.TotalDebt = reduced
}
