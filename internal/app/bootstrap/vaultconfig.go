package bootstrap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
)

// vaultConfigFile is the on-disk shape of a vault construction document.
// Amounts and prices are decimal strings; legal hashes are hex.
type vaultConfigFile struct {
	VaultID         string               `json:"vault_id"`
	Name            string               `json:"name"`
	Mode            string               `json:"mode"`
	RecoveryAsset   string               `json:"recovery_asset"`
	UnclaimedPolicy string               `json:"unclaimed_policy"`
	TreasuryID      string               `json:"treasury_id"`
	Tranches        []trancheFile        `json:"tranches"`
	Assets          []assetFile          `json:"assets"`
	OffLedgerClaims []offLedgerClaimFile `json:"off_ledger_claims"`
}

type trancheFile struct {
	Index          int      `json:"index"`
	Name           string   `json:"name"`
	IssuerID       string   `json:"issuer_id"`
	AcceptedAssets []string `json:"accepted_assets"`
}

type assetFile struct {
	AssetID       string `json:"asset_id"`
	TrancheIndex  int    `json:"tranche_index"`
	PriceSourceID string `json:"price_source_id"`
	StaticPrice   string `json:"static_price"`
}

type offLedgerClaimFile struct {
	ClaimID      string `json:"claim_id"`
	Claimant     string `json:"claimant"`
	TrancheIndex int    `json:"tranche_index"`
	Amount       string `json:"amount"`
	LegalHash    string `json:"legal_hash"`
}

func loadVaultConfig(path string) (entities.VaultConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return entities.VaultConfig{}, fmt.Errorf("read vault config: %w", err)
	}
	var file vaultConfigFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return entities.VaultConfig{}, fmt.Errorf("parse vault config: %w", err)
	}

	config := entities.VaultConfig{
		VaultID:       file.VaultID,
		Name:          file.Name,
		Mode:          entities.DenominationMode(file.Mode),
		RecoveryAsset: file.RecoveryAsset,
		Policy:        entities.UnclaimedPolicy(file.UnclaimedPolicy),
		TreasuryID:    file.TreasuryID,
	}
	for _, tranche := range file.Tranches {
		config.Tranches = append(config.Tranches, entities.Tranche{
			Index:          tranche.Index,
			Name:           tranche.Name,
			IssuerID:       tranche.IssuerID,
			AcceptedAssets: tranche.AcceptedAssets,
		})
	}
	for _, asset := range file.Assets {
		price, ok := new(big.Int).SetString(asset.StaticPrice, 10)
		if !ok {
			return entities.VaultConfig{}, fmt.Errorf("asset %q: malformed static price %q", asset.AssetID, asset.StaticPrice)
		}
		config.Assets = append(config.Assets, entities.AssetConfig{
			AssetID:       asset.AssetID,
			TrancheIndex:  asset.TrancheIndex,
			PriceSourceID: asset.PriceSourceID,
			StaticPrice:   price,
		})
	}
	for _, claim := range file.OffLedgerClaims {
		amount, ok := new(big.Int).SetString(claim.Amount, 10)
		if !ok {
			return entities.VaultConfig{}, fmt.Errorf("off-ledger claim %q: malformed amount %q", claim.ClaimID, claim.Amount)
		}
		legalHash, err := hex.DecodeString(claim.LegalHash)
		if err != nil {
			return entities.VaultConfig{}, fmt.Errorf("off-ledger claim %q: malformed legal hash: %w", claim.ClaimID, err)
		}
		config.OffLedgerClaims = append(config.OffLedgerClaims, entities.OffLedgerClaim{
			ClaimID:      claim.ClaimID,
			Claimant:     claim.Claimant,
			TrancheIndex: claim.TrancheIndex,
			Amount:       amount,
			LegalHash:    legalHash,
		})
	}

	if err := config.Validate(); err != nil {
		return entities.VaultConfig{}, err
	}
	return config, nil
}
