package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"stablemint/crypto"
	"stablemint/storage"
)

var collateralCodesKey = []byte("vault/types")

// KVState persists engine records as JSON documents in a key-value store.
// It is the production EngineState implementation; tests typically wrap a
// storage.MemDB.
type KVState struct {
	db storage.Database
}

func NewKVState(db storage.Database) *KVState {
	return &KVState{db: db}
}

type storedCollateralType struct {
	Code               string   `json:"code"`
	TokenRef           string   `json:"tokenRef"`
	LiquidationRatio   uint64   `json:"liquidationRatio"`
	LiquidationPenalty uint64   `json:"liquidationPenalty"`
	StabilityFee       uint64   `json:"stabilityFee"`
	DebtCeiling        *big.Int `json:"debtCeiling"`
	MinVaultDebt       *big.Int `json:"minVaultDebt"`
	AdapterName        string   `json:"adapterName"`
	TotalCollateral    *big.Int `json:"totalCollateral"`
	TotalDebt          *big.Int `json:"totalDebt"`
	CreatedAt          int64    `json:"createdAt"`
}

type storedPriceFeed struct {
	Code      string   `json:"code"`
	Price     *big.Int `json:"price"`
	UpdatedAt int64    `json:"updatedAt"`
	Reporter  string   `json:"reporter"`
}

type storedVault struct {
	Owner         string   `json:"owner"`
	ID            uint64   `json:"id"`
	Code          string   `json:"code"`
	Collateral    *big.Int `json:"collateral"`
	Debt          *big.Int `json:"debt"`
	Status        uint8    `json:"status"`
	OpenedAt      int64    `json:"openedAt"`
	FeeCheckpoint int64    `json:"feeCheckpoint"`
}

func (s *KVState) get(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (s *KVState) put(key []byte, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.db.Put(key, raw)
}

func (s *KVState) GetCollateralType(code string) (*CollateralType, error) {
	var stored storedCollateralType
	ok, err := s.get(collateralTypeKey(code), &stored)
	if err != nil || !ok {
		return nil, err
	}
	record := &CollateralType{
		Code:               stored.Code,
		TokenRef:           stored.TokenRef,
		LiquidationRatio:   stored.LiquidationRatio,
		LiquidationPenalty: stored.LiquidationPenalty,
		StabilityFee:       stored.StabilityFee,
		DebtCeiling:        stored.DebtCeiling,
		MinVaultDebt:       stored.MinVaultDebt,
		AdapterName:        stored.AdapterName,
		TotalCollateral:    stored.TotalCollateral,
		TotalDebt:          stored.TotalDebt,
		CreatedAt:          stored.CreatedAt,
	}
	record.ensureDefaults()
	return record, nil
}

func (s *KVState) PutCollateralType(record *CollateralType) error {
	if record == nil {
		return fmt.Errorf("nil collateral type")
	}
	record.ensureDefaults()
	code := normalizeCode(record.Code)
	stored := storedCollateralType{
		Code:               code,
		TokenRef:           record.TokenRef,
		LiquidationRatio:   record.LiquidationRatio,
		LiquidationPenalty: record.LiquidationPenalty,
		StabilityFee:       record.StabilityFee,
		DebtCeiling:        record.DebtCeiling,
		MinVaultDebt:       record.MinVaultDebt,
		AdapterName:        record.AdapterName,
		TotalCollateral:    record.TotalCollateral,
		TotalDebt:          record.TotalDebt,
		CreatedAt:          record.CreatedAt,
	}
	if err := s.put(collateralTypeKey(code), stored); err != nil {
		return err
	}
	return s.indexCollateralCode(code)
}

func (s *KVState) indexCollateralCode(code string) error {
	codes, err := s.ListCollateralCodes()
	if err != nil {
		return err
	}
	for _, existing := range codes {
		if existing == code {
			return nil
		}
	}
	codes = append(codes, code)
	sort.Strings(codes)
	return s.put(collateralCodesKey, codes)
}

func (s *KVState) ListCollateralCodes() ([]string, error) {
	var codes []string
	if _, err := s.get(collateralCodesKey, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *KVState) GetPriceFeed(code string) (*PriceFeed, error) {
	var stored storedPriceFeed
	ok, err := s.get(priceFeedKey(code), &stored)
	if err != nil || !ok {
		return nil, err
	}
	feed := &PriceFeed{
		Code:      stored.Code,
		Price:     stored.Price,
		UpdatedAt: stored.UpdatedAt,
	}
	if stored.Reporter != "" {
		reporter, err := crypto.DecodeAddress(stored.Reporter)
		if err != nil {
			return nil, fmt.Errorf("decode feed reporter: %w", err)
		}
		feed.Reporter = reporter
	}
	if feed.Price == nil {
		feed.Price = big.NewInt(0)
	}
	return feed, nil
}

func (s *KVState) PutPriceFeed(feed *PriceFeed) error {
	if feed == nil {
		return fmt.Errorf("nil price feed")
	}
	stored := storedPriceFeed{
		Code:      normalizeCode(feed.Code),
		Price:     bigOrZero(feed.Price),
		UpdatedAt: feed.UpdatedAt,
	}
	if !feed.Reporter.IsZero() {
		stored.Reporter = feed.Reporter.String()
	}
	return s.put(priceFeedKey(feed.Code), stored)
}

func (s *KVState) GetVault(owner crypto.Address, id uint64) (*Vault, error) {
	var stored storedVault
	ok, err := s.get(vaultRecordKey(owner, id), &stored)
	if err != nil || !ok {
		return nil, err
	}
	decodedOwner, err := crypto.DecodeAddress(stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("decode vault owner: %w", err)
	}
	record := &Vault{
		Owner:         decodedOwner,
		ID:            stored.ID,
		Code:          stored.Code,
		Collateral:    stored.Collateral,
		Debt:          stored.Debt,
		Status:        VaultStatus(stored.Status),
		OpenedAt:      stored.OpenedAt,
		FeeCheckpoint: stored.FeeCheckpoint,
	}
	record.ensureDefaults()
	return record, nil
}

func (s *KVState) PutVault(record *Vault) error {
	if record == nil {
		return fmt.Errorf("nil vault")
	}
	record.ensureDefaults()
	stored := storedVault{
		Owner:         record.Owner.String(),
		ID:            record.ID,
		Code:          normalizeCode(record.Code),
		Collateral:    record.Collateral,
		Debt:          record.Debt,
		Status:        uint8(record.Status),
		OpenedAt:      record.OpenedAt,
		FeeCheckpoint: record.FeeCheckpoint,
	}
	return s.put(vaultRecordKey(record.Owner, record.ID), stored)
}

func (s *KVState) OwnerVaultIDs(owner crypto.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := s.get(ownerIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *KVState) AppendOwnerVaultID(owner crypto.Address, id uint64) error {
	ids, err := s.OwnerVaultIDs(owner)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	return s.put(ownerIndexKey(owner), ids)
}

func (s *KVState) NextVaultID() (uint64, error) {
	raw, err := s.db.Get(vaultSequenceKey)
	current := uint64(0)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			return 0, err
		}
	} else {
		parsed, parseErr := strconv.ParseUint(string(raw), 10, 64)
		if parseErr != nil {
			return 0, fmt.Errorf("decode vault sequence: %w", parseErr)
		}
		current = parsed
	}
	next := current + 1
	if err := s.db.Put(vaultSequenceKey, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *KVState) OracleSet() ([]crypto.Address, error) {
	var encoded []string
	ok, err := s.get(oracleSetKey, &encoded)
	if err != nil || !ok {
		return nil, err
	}
	oracles := make([]crypto.Address, 0, len(encoded))
	for _, entry := range encoded {
		addr, err := crypto.DecodeAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("decode oracle identity: %w", err)
		}
		oracles = append(oracles, addr)
	}
	return oracles, nil
}

func (s *KVState) PutOracleSet(oracles []crypto.Address) error {
	encoded := make([]string, 0, len(oracles))
	for _, addr := range oracles {
		encoded = append(encoded, addr.String())
	}
	return s.put(oracleSetKey, encoded)
}
