package commands

import (
	"context"
	"math/big"
	"strings"

	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

// DepositCommand moves a distressed holding into the vault in exchange for
// tranche claim records.
type DepositCommand struct {
	Holder  string
	AssetID string
	Amount  *big.Int
}

// DepositResult reports the claim records minted against a deposit.
type DepositResult struct {
	TrancheIndex int
	Minted       *big.Int
}

// Deposit accepts an underlying asset, values it at the resolved unit price
// and mints that value as claim records in the asset's tranche. Deposits
// grow the tranche denominator; in wrapped-only mode they are refused once
// the first round has been initiated.
func (uc UseCase) Deposit(ctx context.Context, cmd DepositCommand) (DepositResult, error) {
	holder := strings.TrimSpace(cmd.Holder)
	if holder == "" || cmd.Amount == nil || cmd.Amount.Sign() <= 0 {
		return DepositResult{}, domainerrors.ErrZeroAmount
	}
	asset, ok := uc.Config.AssetByID(strings.TrimSpace(cmd.AssetID))
	if !ok {
		return DepositResult{}, domainerrors.ErrAssetNotAccepted
	}

	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return DepositResult{}, err
	}
	if state.DepositsClosed {
		return DepositResult{}, domainerrors.ErrDepositsClosed
	}

	price, _ := uc.resolvePrice(ctx, asset)
	minted := waterfall.Value(cmd.Amount, price)
	if minted.Sign() <= 0 {
		return DepositResult{}, domainerrors.ErrZeroAmount
	}

	if err := uc.Assets.Collect(ctx, asset.AssetID, holder, cmd.Amount); err != nil {
		return DepositResult{}, err
	}
	if err := uc.Ledger.Mint(ctx, asset.TrancheIndex, holder, minted); err != nil {
		return DepositResult{}, err
	}
	now := uc.now()
	if err := uc.emit(ctx, "vault.deposit", "deposit", holder, now, map[string]any{
		"holder":        holder,
		"asset_id":      asset.AssetID,
		"amount":        cmd.Amount.String(),
		"minted":        minted.String(),
		"tranche_index": asset.TrancheIndex,
	}); err != nil {
		return DepositResult{}, err
	}

	uc.logger().Info("deposit accepted",
		"event", "engine_deposit_accepted",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"holder", holder,
		"asset_id", asset.AssetID,
		"tranche_index", asset.TrancheIndex,
		"minted", minted.String(),
	)
	return DepositResult{TrancheIndex: asset.TrancheIndex, Minted: minted}, nil
}

// DepositRecovery adds recovered value to the pending pool awaiting the next
// distribution round.
func (uc UseCase) DepositRecovery(ctx context.Context, from string, amount *big.Int) error {
	from = strings.TrimSpace(from)
	if from == "" || amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}

	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return err
	}
	if err := uc.Funds.Deposit(ctx, from, amount); err != nil {
		return err
	}
	state.PendingPool = new(big.Int).Add(state.PendingPool, amount)
	if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
		return err
	}
	now := uc.now()
	if err := uc.emit(ctx, "vault.recovery_deposited", "recovery", from, now, map[string]any{
		"from":         from,
		"amount":       amount.String(),
		"pending_pool": state.PendingPool.String(),
	}); err != nil {
		return err
	}

	uc.logger().Info("recovery funds deposited",
		"event", "engine_recovery_deposited",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"from", from,
		"amount", amount.String(),
		"pending_pool", state.PendingPool.String(),
	)
	return nil
}
