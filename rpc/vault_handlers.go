package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"stablemint/crypto"
	"stablemint/native/vault"
	"stablemint/observability/metrics"
	"stablemint/oracle"
)

type addCollateralTypeParams struct {
	Caller             string `json:"caller"`
	Code               string `json:"code"`
	TokenRef           string `json:"tokenRef,omitempty"`
	LiquidationRatio   uint64 `json:"liquidationRatio"`
	LiquidationPenalty uint64 `json:"liquidationPenalty"`
	StabilityFee       uint64 `json:"stabilityFee"`
	DebtCeiling        string `json:"debtCeiling"`
	MinVaultDebt       string `json:"minVaultDebt,omitempty"`
	AdapterName        string `json:"adapter"`
}

type updatePriceParams struct {
	Reporter string `json:"reporter"`
	Code     string `json:"code"`
	Price    string `json:"price"`
}

type submitPriceParams struct {
	Code      string `json:"code"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

type openVaultParams struct {
	Owner       string `json:"owner"`
	Code        string `json:"code"`
	Collateral  string `json:"collateral"`
	InitialDebt string `json:"initialDebt,omitempty"`
}

type vaultAmountParams struct {
	Owner  string `json:"owner"`
	ID     uint64 `json:"vaultId"`
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type vaultRefParams struct {
	Owner string `json:"owner"`
	ID    uint64 `json:"vaultId"`
	Code  string `json:"code"`
}

type liquidateParams struct {
	Liquidator string `json:"liquidator"`
	Owner      string `json:"owner"`
	ID         uint64 `json:"vaultId"`
	Code       string `json:"code"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type codeParams struct {
	Code string `json:"code"`
}

type collateralTypeResult struct {
	Code               string `json:"code"`
	TokenRef           string `json:"tokenRef,omitempty"`
	LiquidationRatio   uint64 `json:"liquidationRatio"`
	LiquidationPenalty uint64 `json:"liquidationPenalty"`
	StabilityFee       uint64 `json:"stabilityFee"`
	DebtCeiling        string `json:"debtCeiling"`
	MinVaultDebt       string `json:"minVaultDebt"`
	TotalCollateral    string `json:"totalCollateral"`
	TotalDebt          string `json:"totalDebt"`
	Adapter            string `json:"adapter"`
	CreatedAt          int64  `json:"createdAt"`
}

type priceResult struct {
	Code      string `json:"code"`
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updatedAt"`
	Reporter  string `json:"reporter,omitempty"`
}

type vaultResult struct {
	Owner      string `json:"owner"`
	ID         uint64 `json:"vaultId"`
	Code       string `json:"code"`
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
	Status     string `json:"status"`
	OpenedAt   int64  `json:"openedAt"`
}

type openVaultResult struct {
	VaultID uint64 `json:"vaultId"`
}

type liquidationResultView struct {
	Liquidator      string `json:"liquidator"`
	Seized          string `json:"seized"`
	DebtCleared     string `json:"debtCleared"`
	ReserveTake     string `json:"reserveTake"`
	SurplusReturned string `json:"surplusReturned"`
}

type collateralizationResult struct {
	Ratio     string `json:"ratio"`
	Unbounded bool   `json:"unbounded"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("parameter object required")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value, field string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return amount, nil
}

func parseOptionalAmount(value, field string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(value, field)
}

func collateralTypeView(ct *vault.CollateralType) collateralTypeResult {
	return collateralTypeResult{
		Code:               ct.Code,
		TokenRef:           ct.TokenRef,
		LiquidationRatio:   ct.LiquidationRatio,
		LiquidationPenalty: ct.LiquidationPenalty,
		StabilityFee:       ct.StabilityFee,
		DebtCeiling:        ct.DebtCeiling.String(),
		MinVaultDebt:       ct.MinVaultDebt.String(),
		TotalCollateral:    ct.TotalCollateral.String(),
		TotalDebt:          ct.TotalDebt.String(),
		Adapter:            ct.AdapterName,
		CreatedAt:          ct.CreatedAt,
	}
}

func vaultView(record *vault.Vault) vaultResult {
	return vaultResult{
		Owner:      record.Owner.String(),
		ID:         record.ID,
		Code:       record.Code,
		Collateral: record.Collateral.String(),
		Debt:       record.Debt.String(),
		Status:     record.Status.String(),
		OpenedAt:   record.OpenedAt,
	}
}

func (s *Server) publishExposure(code string) {
	ct, err := s.engine.CollateralTypeInfo(code)
	if err != nil {
		return
	}
	metrics.Vault().SetExposure(ct.Code, ct.TotalCollateral, ct.TotalDebt)
}

func (s *Server) handleAddCollateralType(w http.ResponseWriter, req *RPCRequest) int {
	var params addCollateralTypeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	caller, err := parseAddress(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	ceiling, err := parseAmount(params.DebtCeiling, "debtCeiling")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	minDebt, err := parseOptionalAmount(params.MinVaultDebt, "minVaultDebt")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	err = s.engine.AddCollateralType(caller, vault.CollateralParams{
		Code:               params.Code,
		TokenRef:           params.TokenRef,
		LiquidationRatio:   params.LiquidationRatio,
		LiquidationPenalty: params.LiquidationPenalty,
		StabilityFee:       params.StabilityFee,
		DebtCeiling:        ceiling,
		MinVaultDebt:       minDebt,
		AdapterName:        params.AdapterName,
	})
	metrics.Vault().RecordOperation("add_collateral_type", err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	ct, err := s.engine.CollateralTypeInfo(params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, collateralTypeView(ct))
	return 0
}

func (s *Server) handleListCollateralTypes(w http.ResponseWriter, req *RPCRequest) int {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return codeInvalidParams
	}
	codes, err := s.engine.CollateralCodes()
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	if codes == nil {
		codes = []string{}
	}
	writeResult(w, req.ID, codes)
	return 0
}

func (s *Server) handleGetCollateralType(w http.ResponseWriter, req *RPCRequest) int {
	var params codeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	ct, err := s.engine.CollateralTypeInfo(params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, collateralTypeView(ct))
	return 0
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, req *RPCRequest) int {
	var params updatePriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	reporter, err := parseAddress(params.Reporter, "reporter")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	price, err := parseAmount(params.Price, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	err = s.engine.UpdatePrice(reporter, params.Code, price)
	metrics.Vault().RecordOperation("update_price", err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	metrics.Oracle().SetLastPrice(params.Code, price)
	feed, err := s.engine.PriceFeedInfo(params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, priceView(feed))
	return 0
}

// handleSubmitPrice accepts a signed oracle submission. The signer is
// recovered from the payload and authorization is enforced by the engine's
// oracle set, so no bearer token is needed on this path.
func (s *Server) handleSubmitPrice(w http.ResponseWriter, req *RPCRequest) int {
	var params submitPriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	price, err := parseAmount(params.Price, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	sub, err := oracle.NewSubmission(params.Code, price, params.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(params.Signature), "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid signature hex", err.Error())
		return codeInvalidParams
	}
	sub.Signature = sig
	signer, err := sub.Signer()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	err = s.engine.UpdatePrice(signer, sub.Code, sub.Price)
	metrics.Vault().RecordOperation("submit_price", err == nil)
	metrics.Oracle().RecordSubmission(sub.Code, err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	metrics.Oracle().SetLastPrice(sub.Code, sub.Price)
	feed, err := s.engine.PriceFeedInfo(sub.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, priceView(feed))
	return 0
}

func priceView(feed *vault.PriceFeed) priceResult {
	result := priceResult{
		Code:      feed.Code,
		Price:     feed.Price.String(),
		UpdatedAt: feed.UpdatedAt,
	}
	if !feed.Reporter.IsZero() {
		result.Reporter = feed.Reporter.String()
	}
	return result
}

func (s *Server) handleGetPrice(w http.ResponseWriter, req *RPCRequest) int {
	var params codeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	feed, err := s.engine.PriceFeedInfo(params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, priceView(feed))
	return 0
}

func (s *Server) handleOpenVault(w http.ResponseWriter, req *RPCRequest) int {
	var params openVaultParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	collateral, err := parseAmount(params.Collateral, "collateral")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	initialDebt, err := parseOptionalAmount(params.InitialDebt, "initialDebt")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	id, err := s.engine.OpenVault(owner, params.Code, collateral, initialDebt)
	metrics.Vault().RecordOperation("open", err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	s.publishExposure(params.Code)
	writeResult(w, req.ID, openVaultResult{VaultID: id})
	return 0
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) int {
	return s.handleAmountOp(w, req, "deposit", s.engine.DepositCollateral)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) int {
	return s.handleAmountOp(w, req, "withdraw", s.engine.WithdrawCollateral)
}

func (s *Server) handleGenerate(w http.ResponseWriter, req *RPCRequest) int {
	return s.handleAmountOp(w, req, "generate", s.engine.GenerateStablecoin)
}

func (s *Server) handleRepay(w http.ResponseWriter, req *RPCRequest) int {
	return s.handleAmountOp(w, req, "repay", s.engine.RepayStablecoin)
}

func (s *Server) handleAmountOp(w http.ResponseWriter, req *RPCRequest, op string, fn func(crypto.Address, uint64, string, *big.Int) error) int {
	var params vaultAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	amount, err := parseAmount(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	err = fn(owner, params.ID, params.Code, amount)
	metrics.Vault().RecordOperation(op, err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	s.publishExposure(params.Code)
	record, err := s.engine.VaultInfo(owner, params.ID, params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, vaultView(record))
	return 0
}

func (s *Server) handleLiquidate(w http.ResponseWriter, req *RPCRequest) int {
	var params liquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	liquidator, err := parseAddress(params.Liquidator, "liquidator")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	result, err := s.engine.LiquidateVault(liquidator, owner, params.ID, params.Code)
	metrics.Vault().RecordOperation("liquidate", err == nil)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	metrics.Vault().RecordLiquidation(params.Code)
	s.publishExposure(params.Code)
	writeResult(w, req.ID, liquidationResultView{
		Liquidator:      result.Liquidator.String(),
		Seized:          result.Seized.String(),
		DebtCleared:     result.DebtCleared.String(),
		ReserveTake:     result.ReserveTake.String(),
		SurplusReturned: result.SurplusReturned.String(),
	})
	return 0
}

func (s *Server) handleGetVault(w http.ResponseWriter, req *RPCRequest) int {
	var params vaultRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	record, err := s.engine.VaultInfo(owner, params.ID, params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, vaultView(record))
	return 0
}

func (s *Server) handleListVaults(w http.ResponseWriter, req *RPCRequest) int {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	ids, err := s.engine.OwnerVaultIDs(owner)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, ids)
	return 0
}

func (s *Server) handleGetCollateralization(w http.ResponseWriter, req *RPCRequest) int {
	var params vaultRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	owner, err := parseAddress(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return codeInvalidParams
	}
	ratio, err := s.engine.VaultCollateralization(owner, params.ID, params.Code)
	if err != nil {
		return s.writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, collateralizationResult{
		Ratio:     ratio.String(),
		Unbounded: ratio.Cmp(vault.RatioUnbounded) == 0,
	})
	return 0
}
