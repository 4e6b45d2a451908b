package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"stablemint/crypto"
	"stablemint/storage"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
)

// Ledger is a storage-backed fungible token balance book. The daemon uses
// it as the reference implementation of the stable-asset and collateral
// interfaces; real deployments substitute adapters that call out to the
// authoritative token systems.
type Ledger struct {
	mu     sync.Mutex
	db     storage.Database
	symbol string
}

func NewLedger(db storage.Database, symbol string) *Ledger {
	return &Ledger{db: db, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

// Symbol returns the asset code the ledger accounts for.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) balanceKey(addr crypto.Address) []byte {
	return []byte("token/" + l.symbol + "/bal/" + addr.Hex())
}

func (l *Ledger) readBalance(addr crypto.Address) (*big.Int, error) {
	raw, err := l.db.Get(l.balanceKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	balance := new(big.Int)
	if err := json.Unmarshal(raw, balance); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) writeBalance(addr crypto.Address, balance *big.Int) error {
	raw, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return l.db.Put(l.balanceKey(addr), raw)
}

// BalanceOf returns the current balance for the account.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readBalance(addr)
}

// Mint credits freshly issued units to the account.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.readBalance(to)
	if err != nil {
		return err
	}
	return l.writeBalance(to, balance.Add(balance, amount))
}

// Burn debits units from the account, failing when the balance is short.
func (l *Ledger) Burn(from crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.readBalance(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, balance, l.symbol, amount)
	}
	return l.writeBalance(from, balance.Sub(balance, amount))
}

// Transfer moves units between accounts atomically under the ledger lock.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBalance, err := l.readBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from, fromBalance, l.symbol, amount)
	}
	toBalance, err := l.readBalance(to)
	if err != nil {
		return err
	}
	if err := l.writeBalance(from, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.writeBalance(to, toBalance.Add(toBalance, amount))
}
