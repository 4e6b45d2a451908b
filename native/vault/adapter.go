package vault

import (
	"math/big"

	"stablemint/crypto"
)

// CollateralAdapter is the settlement path for one collateral asset class.
// Implementations are bound to a collateral type at registration time and
// stored as typed references; the adapter name in the registry is metadata
// only and is never re-resolved per call.
type CollateralAdapter interface {
	// Lock pulls collateral from the owner into protocol custody.
	Lock(owner crypto.Address, amount *big.Int) error
	// Release returns custodied collateral to the recipient.
	Release(to crypto.Address, amount *big.Int) error
}

// StableToken is the fungible stable-asset interface. Mint and burn are
// assumed atomic and authoritative on the token side.
type StableToken interface {
	Mint(to crypto.Address, amount *big.Int) error
	Burn(from crypto.Address, amount *big.Int) error
}
