package vault

import (
	"math/big"
	"testing"

	"stablemint/crypto"
	"stablemint/storage"
)

func TestKVStateCollateralTypeRoundTrip(t *testing.T) {
	state := NewKVState(storage.NewMemDB())

	missing, err := state.GetCollateralType("BTC")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing type must be nil")
	}

	record := &CollateralType{
		Code:               "BTC",
		TokenRef:           "btc-token",
		LiquidationRatio:   1_500_000,
		LiquidationPenalty: 130_000,
		StabilityFee:       20_000,
		DebtCeiling:        big.NewInt(1_000_000_000),
		MinVaultDebt:       big.NewInt(100_000),
		TotalCollateral:    big.NewInt(10_000_000),
		TotalDebt:          big.NewInt(50_000_000),
		AdapterName:        "bank",
		CreatedAt:          1_700_000_000,
	}
	if err := state.PutCollateralType(record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := state.GetCollateralType("btc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatal("stored type not found")
	}
	if loaded.Code != "BTC" || loaded.AdapterName != "bank" {
		t.Fatalf("identity fields lost: %+v", loaded)
	}
	if loaded.DebtCeiling.Cmp(record.DebtCeiling) != 0 || loaded.TotalDebt.Cmp(record.TotalDebt) != 0 {
		t.Fatalf("big amounts lost: ceiling %s debt %s", loaded.DebtCeiling, loaded.TotalDebt)
	}
	if loaded.LiquidationRatio != record.LiquidationRatio || loaded.StabilityFee != record.StabilityFee {
		t.Fatalf("risk parameters lost: %+v", loaded)
	}
}

func TestKVStateCollateralCodeIndex(t *testing.T) {
	state := NewKVState(storage.NewMemDB())
	for _, code := range []string{"ETH", "BTC", "ATOM"} {
		record := &CollateralType{
			Code:             code,
			LiquidationRatio: RatioScale,
			DebtCeiling:      big.NewInt(1),
			MinVaultDebt:     big.NewInt(0),
			TotalCollateral:  big.NewInt(0),
			TotalDebt:        big.NewInt(0),
			AdapterName:      "bank",
		}
		if err := state.PutCollateralType(record); err != nil {
			t.Fatalf("put %s: %v", code, err)
		}
	}
	// Re-writing an existing code must not duplicate the index entry.
	if err := state.PutCollateralType(&CollateralType{
		Code:             "BTC",
		LiquidationRatio: RatioScale,
		DebtCeiling:      big.NewInt(2),
		MinVaultDebt:     big.NewInt(0),
		TotalCollateral:  big.NewInt(0),
		TotalDebt:        big.NewInt(0),
		AdapterName:      "bank",
	}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	codes, err := state.ListCollateralCodes()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"ATOM", "BTC", "ETH"}
	if len(codes) != len(want) {
		t.Fatalf("unexpected code list %v", codes)
	}
	for i, code := range want {
		if codes[i] != code {
			t.Fatalf("code list not sorted: %v", codes)
		}
	}
}

func TestKVStateVaultAndOwnerIndex(t *testing.T) {
	state := NewKVState(storage.NewMemDB())
	owner := makeAddress(0x11)
	other := makeAddress(0x12)

	missing, err := state.GetVault(owner, 1)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing vault must be nil")
	}

	for _, id := range []uint64{1, 2, 3} {
		record := &Vault{
			Owner:         owner,
			ID:            id,
			Code:          "BTC",
			Collateral:    big.NewInt(int64(id) * 10),
			Debt:          big.NewInt(int64(id)),
			Status:        StatusActive,
			OpenedAt:      1_700_000_000,
			FeeCheckpoint: 1_700_000_000,
		}
		if err := state.PutVault(record); err != nil {
			t.Fatalf("put vault %d: %v", id, err)
		}
		if err := state.AppendOwnerVaultID(owner, id); err != nil {
			t.Fatalf("append owner id %d: %v", id, err)
		}
	}

	loaded, err := state.GetVault(owner, 2)
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if loaded == nil || loaded.Collateral.Cmp(big.NewInt(20)) != 0 || !loaded.Owner.Equal(owner) {
		t.Fatalf("vault round trip failed: %+v", loaded)
	}
	if loaded.Status != StatusActive {
		t.Fatalf("status lost: %s", loaded.Status)
	}

	ids, err := state.OwnerVaultIDs(owner)
	if err != nil {
		t.Fatalf("owner ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("owner index out of order: %v", ids)
	}

	otherIDs, err := state.OwnerVaultIDs(other)
	if err != nil {
		t.Fatalf("other owner ids: %v", err)
	}
	if len(otherIDs) != 0 {
		t.Fatalf("unexpected ids for other owner: %v", otherIDs)
	}
}

func TestKVStateNextVaultID(t *testing.T) {
	state := NewKVState(storage.NewMemDB())
	for want := uint64(1); want <= 3; want++ {
		id, err := state.NextVaultID()
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if id != want {
			t.Fatalf("sequence broken: got %d want %d", id, want)
		}
	}
}

func TestKVStateOracleSet(t *testing.T) {
	state := NewKVState(storage.NewMemDB())

	empty, err := state.OracleSet()
	if err != nil {
		t.Fatalf("empty set: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty oracle set, got %v", empty)
	}

	oracles := []crypto.Address{makeAddress(0x21), makeAddress(0x22)}
	if err := state.PutOracleSet(oracles); err != nil {
		t.Fatalf("put oracle set: %v", err)
	}
	loaded, err := state.OracleSet()
	if err != nil {
		t.Fatalf("oracle set: %v", err)
	}
	if len(loaded) != 2 || !loaded[0].Equal(oracles[0]) || !loaded[1].Equal(oracles[1]) {
		t.Fatalf("oracle set round trip failed: %v", loaded)
	}
}
