package vault

import "stablemint/crypto"

// EngineState is the persistence boundary for the vault engine. Lookups
// return (nil, nil) when the record does not exist so the engine owns the
// not-found semantics.
type EngineState interface {
	GetCollateralType(code string) (*CollateralType, error)
	PutCollateralType(record *CollateralType) error
	ListCollateralCodes() ([]string, error)

	GetPriceFeed(code string) (*PriceFeed, error)
	PutPriceFeed(feed *PriceFeed) error

	GetVault(owner crypto.Address, id uint64) (*Vault, error)
	PutVault(record *Vault) error

	OwnerVaultIDs(owner crypto.Address) ([]uint64, error)
	AppendOwnerVaultID(owner crypto.Address, id uint64) error

	// NextVaultID allocates and persists the next sequential identifier.
	NextVaultID() (uint64, error)

	OracleSet() ([]crypto.Address, error)
	PutOracleSet(oracles []crypto.Address) error
}
