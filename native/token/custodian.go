package token

import (
	"math/big"

	"stablemint/crypto"
)

// Custodian adapts a Ledger into the engine's collateral settlement path.
// Locked collateral sits under a dedicated custody account.
type Custodian struct {
	ledger  *Ledger
	custody crypto.Address
}

func NewCustodian(ledger *Ledger, custody crypto.Address) *Custodian {
	return &Custodian{ledger: ledger, custody: custody}
}

// Custody returns the account holding locked collateral.
func (c *Custodian) Custody() crypto.Address { return c.custody }

// Lock pulls collateral from the owner into custody.
func (c *Custodian) Lock(owner crypto.Address, amount *big.Int) error {
	return c.ledger.Transfer(owner, c.custody, amount)
}

// Release returns custodied collateral to the recipient.
func (c *Custodian) Release(to crypto.Address, amount *big.Int) error {
	return c.ledger.Transfer(c.custody, to, amount)
}
