package entities

import (
	"math/big"
	"strings"
	"time"

	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
)

type DenominationMode string

const (
	// ModeWrappedOnly measures tranche denominators against issued
	// claim-record supply plus off-ledger claims.
	ModeWrappedOnly DenominationMode = "wrapped_only"
	// ModeWholeSupply measures denominators against the full outstanding
	// supply of every accepted asset, valued at snapshotted prices.
	ModeWholeSupply DenominationMode = "whole_supply"
)

type UnclaimedPolicy string

const (
	PolicyDonate UnclaimedPolicy = "donate"
	PolicyPool   UnclaimedPolicy = "pool"
)

// Tranche is one priority class among claimants. Index 0 is the most senior.
// The set and ordering of tranches never change after vault construction.
type Tranche struct {
	Index          int
	Name           string
	IssuerID       string
	AcceptedAssets []string
}

// AssetConfig binds an accepted underlying asset to a tranche and a price
// source. StaticPrice is the fallback unit price at RateScale precision and
// is also the sole price for assets with no external source.
type AssetConfig struct {
	AssetID       string
	TrancheIndex  int
	PriceSourceID string
	StaticPrice   *big.Int
}

// OffLedgerClaim is a claim recognized by configuration and a legal-document
// hash rather than by holding a claim record. It contributes to its tranche's
// denominator even though no claim-record supply is ever minted for it.
type OffLedgerClaim struct {
	ClaimID      string
	Claimant     string
	TrancheIndex int
	Amount       *big.Int
	LegalHash    []byte
}

// VaultConfig is the write-once construction input of a recovery vault.
type VaultConfig struct {
	VaultID         string
	Name            string
	Mode            DenominationMode
	RecoveryAsset   string
	Tranches        []Tranche
	Assets          []AssetConfig
	OffLedgerClaims []OffLedgerClaim
	Policy          UnclaimedPolicy
	TreasuryID      string
}

// Validate enforces the factory contract: contiguous tranche ordering,
// in-range asset and off-ledger tranche assignments, positive static prices
// and a known unclaimed-funds policy.
func (c VaultConfig) Validate() error {
	if strings.TrimSpace(c.VaultID) == "" || strings.TrimSpace(c.Name) == "" {
		return domainerrors.ErrInvalidVaultConfig
	}
	if c.Mode != ModeWrappedOnly && c.Mode != ModeWholeSupply {
		return domainerrors.ErrInvalidVaultConfig
	}
	if c.Policy != PolicyDonate && c.Policy != PolicyPool {
		return domainerrors.ErrInvalidVaultConfig
	}
	if c.Policy == PolicyDonate && strings.TrimSpace(c.TreasuryID) == "" {
		return domainerrors.ErrInvalidVaultConfig
	}
	if strings.TrimSpace(c.RecoveryAsset) == "" || len(c.Tranches) == 0 {
		return domainerrors.ErrInvalidVaultConfig
	}
	for i, tranche := range c.Tranches {
		if tranche.Index != i || strings.TrimSpace(tranche.IssuerID) == "" {
			return domainerrors.ErrInvalidVaultConfig
		}
	}
	for _, asset := range c.Assets {
		if asset.TrancheIndex < 0 || asset.TrancheIndex >= len(c.Tranches) {
			return domainerrors.ErrInvalidTrancheIndex
		}
		if asset.StaticPrice == nil || asset.StaticPrice.Sign() <= 0 {
			return domainerrors.ErrInvalidVaultConfig
		}
	}
	for _, claim := range c.OffLedgerClaims {
		if claim.TrancheIndex < 0 || claim.TrancheIndex >= len(c.Tranches) {
			return domainerrors.ErrInvalidTrancheIndex
		}
		if claim.Amount == nil || claim.Amount.Sign() <= 0 {
			return domainerrors.ErrInvalidVaultConfig
		}
		if strings.TrimSpace(claim.Claimant) == "" || len(claim.LegalHash) == 0 {
			return domainerrors.ErrInvalidVaultConfig
		}
	}
	return nil
}

// AssetByID returns the configuration of an accepted asset.
func (c VaultConfig) AssetByID(assetID string) (AssetConfig, bool) {
	for _, asset := range c.Assets {
		if asset.AssetID == assetID {
			return asset, true
		}
	}
	return AssetConfig{}, false
}

// OffLedgerTotal sums configured off-ledger claim amounts for one tranche.
func (c VaultConfig) OffLedgerTotal(trancheIndex int) *big.Int {
	total := big.NewInt(0)
	for _, claim := range c.OffLedgerClaims {
		if claim.TrancheIndex == trancheIndex {
			total.Add(total, claim.Amount)
		}
	}
	return total
}

// PrimaryAsset returns the first accepted asset of a tranche, used for
// objection-weight pricing. Off-ledger-only tranches have none and weigh
// claim-record balances 1:1.
func (c VaultConfig) PrimaryAsset(trancheIndex int) (AssetConfig, bool) {
	if trancheIndex < 0 || trancheIndex >= len(c.Tranches) {
		return AssetConfig{}, false
	}
	for _, assetID := range c.Tranches[trancheIndex].AcceptedAssets {
		if asset, ok := c.AssetByID(assetID); ok {
			return asset, true
		}
	}
	return AssetConfig{}, false
}

// VaultState is the mutable vault-level accounting shared across rounds.
type VaultState struct {
	PendingPool             *big.Int
	DepositsClosed          bool
	FirstExecutedAt         *time.Time
	LastVetoAt              *time.Time
	LastVetoInitiator       string
	TotalClaimedAllRounds   *big.Int
	RedistributionActivated bool
	RedistributionPool      *big.Int
	RedistributionRemaining *big.Int
}

// NewVaultState returns a zeroed state for a freshly constructed vault.
func NewVaultState() VaultState {
	return VaultState{
		PendingPool:             big.NewInt(0),
		TotalClaimedAllRounds:   big.NewInt(0),
		RedistributionPool:      big.NewInt(0),
		RedistributionRemaining: big.NewInt(0),
	}
}
