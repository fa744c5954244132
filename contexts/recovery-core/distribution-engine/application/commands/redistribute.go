package commands

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
)

// DistributeUnclaimed disposes of the vault's residual recovery-asset
// balance once the unclaimed-funds deadline has passed. It runs once:
// the donate policy forwards the residual to the configured treasury, the
// pool policy opens a pro-rata secondary pool sized to the residual.
func (uc UseCase) DistributeUnclaimed(ctx context.Context) (*big.Int, error) {
	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return nil, err
	}
	if state.RedistributionActivated {
		return nil, domainerrors.ErrRedistributionDone
	}
	if state.FirstExecutedAt == nil {
		return nil, domainerrors.ErrDeadlineNotReached
	}
	now := uc.now()
	if now.Sub(*state.FirstExecutedAt) < uc.Params.UnclaimedDeadline {
		return nil, domainerrors.ErrDeadlineNotReached
	}

	residual, err := uc.Funds.VaultBalance(ctx)
	if err != nil {
		return nil, err
	}
	if residual.Sign() <= 0 {
		return nil, domainerrors.ErrNoResidualFunds
	}

	state.RedistributionActivated = true
	if uc.Config.Policy == entities.PolicyPool {
		state.RedistributionPool = new(big.Int).Set(residual)
		state.RedistributionRemaining = new(big.Int).Set(residual)
	}
	if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
		return nil, err
	}
	if uc.Config.Policy == entities.PolicyDonate {
		if err := uc.Funds.Transfer(ctx, uc.Config.TreasuryID, residual); err != nil {
			return nil, err
		}
	}

	if err := uc.emit(ctx, "unclaimed.activated", "vault", uc.Config.VaultID, now, map[string]any{
		"policy":   string(uc.Config.Policy),
		"residual": residual.String(),
	}); err != nil {
		return nil, err
	}

	uc.logger().Info("unclaimed funds policy activated",
		"event", "engine_unclaimed_activated",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"policy", string(uc.Config.Policy),
		"residual", residual.String(),
	)
	return residual, nil
}

// RedeemResidual pays an identity's pro-rata share of the secondary pool:
// lifetimeClaimed x pool / totalClaimedAllRounds, capped by the running
// remaining-pool counter so rounding can never over-draw the pool. One
// redemption per identity.
func (uc UseCase) RedeemResidual(ctx context.Context, identity string) (*big.Int, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domainerrors.ErrZeroAmount
	}

	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return nil, err
	}
	if !state.RedistributionActivated || uc.Config.Policy != entities.PolicyPool {
		return nil, domainerrors.ErrRedistributionClosed
	}
	if state.RedistributionRemaining.Sign() <= 0 {
		return nil, domainerrors.ErrPoolExhausted
	}
	if redeemed, err := uc.Repo.HasRedeemedResidual(ctx, identity); err != nil {
		return nil, err
	} else if redeemed {
		return nil, domainerrors.ErrAlreadyRedeemed
	}

	lifetime, err := uc.Repo.LifetimeClaimed(ctx, identity)
	if err != nil {
		return nil, err
	}
	if lifetime.Sign() <= 0 || state.TotalClaimedAllRounds.Sign() <= 0 {
		return nil, domainerrors.ErrNothingToRedeem
	}

	share := new(big.Int).Mul(lifetime, state.RedistributionPool)
	share.Quo(share, state.TotalClaimedAllRounds)
	if share.Cmp(state.RedistributionRemaining) > 0 {
		share = new(big.Int).Set(state.RedistributionRemaining)
	}
	if share.Sign() <= 0 {
		return nil, domainerrors.ErrNothingToRedeem
	}

	if err := uc.Repo.MarkRedeemedResidual(ctx, identity); err != nil {
		return nil, err
	}
	state.RedistributionRemaining = new(big.Int).Sub(state.RedistributionRemaining, share)
	if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
		return nil, err
	}
	if err := uc.Funds.Transfer(ctx, identity, share); err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.emit(ctx, "unclaimed.redeemed", "vault", identity, now, map[string]any{
		"identity":  identity,
		"share":     share.String(),
		"remaining": state.RedistributionRemaining.String(),
	}); err != nil {
		return nil, err
	}

	uc.logger().Info("redistribution share redeemed",
		"event", "engine_residual_redeemed",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"identity", identity,
		"share", share.String(),
	)
	return share, nil
}
