package commands

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

// ObjectResult reports the accumulated weight after an objection and whether
// the objection tipped the round into a veto.
type ObjectResult struct {
	Weight            *big.Int
	AccumulatedWeight *big.Int
	TotalWeight       *big.Int
	Vetoed            bool
}

// Object records one weighted objection against a pending round. Weights use
// the voter's claim-record balances valued at the round's snapshotted prices;
// transfers are paused for the whole window, so balances cannot migrate
// between objectors after the snapshot. When both the participation quorum
// and the blocking threshold are met the round is vetoed immediately: its
// amount returns to the pending pool and the bond returns to the initiator.
func (uc UseCase) Object(ctx context.Context, roundID, identity string) (ObjectResult, error) {
	identity = strings.TrimSpace(identity)
	roundID = strings.TrimSpace(roundID)
	if identity == "" || roundID == "" {
		return ObjectResult{}, domainerrors.ErrZeroAmount
	}

	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return ObjectResult{}, err
	}
	if round.Phase != entities.PhaseInitiated {
		return ObjectResult{}, domainerrors.ErrRoundNotPending
	}
	now := uc.now()
	if now.Sub(round.InitiatedAt) > uc.Params.ObjectionWindow {
		return ObjectResult{}, domainerrors.ErrObjectionWindowOver
	}
	if objected, err := uc.Repo.HasObjected(ctx, roundID, identity); err != nil {
		return ObjectResult{}, err
	} else if objected {
		return ObjectResult{}, domainerrors.ErrAlreadyObjected
	}

	snapshot, err := uc.Repo.GetSnapshot(ctx, roundID)
	if err != nil {
		return ObjectResult{}, err
	}
	weight, err := uc.objectionWeight(ctx, snapshot, identity)
	if err != nil {
		return ObjectResult{}, err
	}
	if weight.Sign() <= 0 {
		return ObjectResult{}, domainerrors.ErrNoVotingPower
	}

	if err := uc.Repo.MarkObjected(ctx, roundID, identity); err != nil {
		return ObjectResult{}, err
	}
	round.ObjectionPower = new(big.Int).Add(round.ObjectionPower, weight)

	result := ObjectResult{
		Weight:            weight,
		AccumulatedWeight: round.ObjectionPower,
		TotalWeight:       round.TotalPower,
	}
	if uc.vetoReached(round.ObjectionPower, round.TotalPower) {
		if err := uc.veto(ctx, &round); err != nil {
			return ObjectResult{}, err
		}
		result.Vetoed = true
	} else if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return ObjectResult{}, err
	}

	if err := uc.emit(ctx, "round.objected", "round", roundID, now, map[string]any{
		"round_id":           roundID,
		"identity":           identity,
		"weight":             weight.String(),
		"accumulated_weight": round.ObjectionPower.String(),
		"total_weight":       round.TotalPower.String(),
		"vetoed":             result.Vetoed,
	}); err != nil {
		return ObjectResult{}, err
	}

	uc.logger().Info("round objection recorded",
		"event", "engine_round_objected",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"identity", identity,
		"weight", weight.String(),
		"vetoed", result.Vetoed,
	)
	return result, nil
}

// objectionWeight sums the identity's claim-record balances per tranche,
// valued at the snapshotted price of the tranche's primary underlying asset,
// or 1:1 for off-ledger-only tranches.
func (uc UseCase) objectionWeight(
	ctx context.Context,
	snapshot entities.RoundSnapshot,
	identity string,
) (*big.Int, error) {
	total := big.NewInt(0)
	for _, tranche := range uc.Config.Tranches {
		balance, err := uc.Ledger.BalanceOf(ctx, tranche.Index, identity)
		if err != nil {
			return nil, err
		}
		if balance.Sign() <= 0 {
			continue
		}
		if primary, ok := uc.Config.PrimaryAsset(tranche.Index); ok {
			total.Add(total, waterfall.Value(balance, snapshot.Prices[primary.AssetID]))
			continue
		}
		total.Add(total, balance)
	}
	return total, nil
}

// vetoReached applies the blocking threshold and the minimum-participation
// quorum, both in basis points of snapshotted total weight.
func (uc UseCase) vetoReached(accumulated, total *big.Int) bool {
	if total == nil || total.Sign() <= 0 {
		return false
	}
	scaled := new(big.Int).Mul(accumulated, big.NewInt(10_000))
	bps := scaled.Quo(scaled, total).Int64()
	return bps >= uc.Params.QuorumBps && bps >= uc.Params.VetoThresholdBps
}

// veto returns the round's amount to the pending pool, zeroes it, returns
// the bond and makes the round terminal.
func (uc UseCase) veto(ctx context.Context, round *entities.DistributionRound) error {
	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return err
	}
	now := uc.now()
	refund := new(big.Int).Set(round.Amount)
	bond := new(big.Int).Set(round.Bond)

	state.PendingPool = new(big.Int).Add(state.PendingPool, refund)
	state.LastVetoAt = &now
	state.LastVetoInitiator = round.Initiator
	round.Amount = big.NewInt(0)
	round.Phase = entities.PhaseVetoed
	round.BondReturned = true

	if err := uc.Repo.SaveRound(ctx, *round); err != nil {
		return err
	}
	if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
		return err
	}
	if err := uc.Ledger.SetTransfersPaused(ctx, false); err != nil {
		return err
	}
	// Bond leaves the vault only after all round state is committed.
	if err := uc.Funds.Transfer(ctx, round.Initiator, bond); err != nil {
		return err
	}

	if err := uc.emit(ctx, "round.vetoed", "round", round.RoundID, now, map[string]any{
		"round_id":     round.RoundID,
		"refunded":     refund.String(),
		"pending_pool": state.PendingPool.String(),
	}); err != nil {
		return err
	}
	if err := uc.emit(ctx, "bond.returned", "round", round.RoundID, now, map[string]any{
		"round_id":  round.RoundID,
		"initiator": round.Initiator,
		"bond":      bond.String(),
		"reason":    "round_vetoed",
	}); err != nil {
		return err
	}

	uc.logger().Info("round vetoed",
		"event", "engine_round_vetoed",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", round.RoundID,
		"refunded", refund.String(),
	)
	return nil
}
