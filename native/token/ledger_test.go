package token

import (
	"errors"
	"math/big"
	"testing"

	"stablemint/crypto"
	"stablemint/storage"
)

func testAddress(last byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = last
	return crypto.NewAddress(crypto.AccountPrefix, buf)
}

func mustBalance(t *testing.T, l *Ledger, addr crypto.Address, want int64) {
	t.Helper()
	got, err := l.BalanceOf(addr)
	if err != nil {
		t.Fatalf("balance of %s: %v", addr, err)
	}
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("balance of %s = %s, want %d", addr, got, want)
	}
}

func TestLedgerMintBurn(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB(), "smx")
	if ledger.Symbol() != "SMX" {
		t.Fatalf("symbol not normalized: %s", ledger.Symbol())
	}
	alice := testAddress(0x01)

	mustBalance(t, ledger, alice, 0)
	if err := ledger.Mint(alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint(alice, big.NewInt(250)); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	mustBalance(t, ledger, alice, 750)

	if err := ledger.Burn(alice, big.NewInt(700)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	mustBalance(t, ledger, alice, 50)

	err := ledger.Burn(alice, big.NewInt(51))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	mustBalance(t, ledger, alice, 50)

	if err := ledger.Mint(alice, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := ledger.Burn(alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ledger.Mint(alice, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestLedgerTransfer(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB(), "BTC")
	alice := testAddress(0x01)
	bob := testAddress(0x02)

	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	mustBalance(t, ledger, alice, 60)
	mustBalance(t, ledger, bob, 40)

	err := ledger.Transfer(alice, bob, big.NewInt(61))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	mustBalance(t, ledger, alice, 60)
	mustBalance(t, ledger, bob, 40)
}

func TestLedgersAreIsolatedBySymbol(t *testing.T) {
	db := storage.NewMemDB()
	btc := NewLedger(db, "BTC")
	smx := NewLedger(db, "SMX")
	alice := testAddress(0x01)

	if err := btc.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	mustBalance(t, btc, alice, 10)
	mustBalance(t, smx, alice, 0)
}

func TestCustodianLockRelease(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB(), "BTC")
	custody := testAddress(0x0f)
	alice := testAddress(0x01)
	bob := testAddress(0x02)
	custodian := NewCustodian(ledger, custody)

	if !custodian.Custody().Equal(custody) {
		t.Fatalf("unexpected custody account %s", custodian.Custody())
	}

	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := custodian.Lock(alice, big.NewInt(80)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	mustBalance(t, ledger, alice, 20)
	mustBalance(t, ledger, custody, 80)

	err := custodian.Lock(alice, big.NewInt(21))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := custodian.Release(bob, big.NewInt(30)); err != nil {
		t.Fatalf("release: %v", err)
	}
	mustBalance(t, ledger, bob, 30)
	mustBalance(t, ledger, custody, 50)
}
