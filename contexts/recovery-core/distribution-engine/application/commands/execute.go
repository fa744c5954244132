package commands

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

// ExecuteResult reports the fee paid to the initiator and the per-tranche
// allocation of the remainder.
type ExecuteResult struct {
	Fee      *big.Int
	Payments []waterfall.Payment
}

// Execute settles a pending round once its objection window has elapsed. It
// pays the initiator the fixed-rate execution fee, then runs the waterfall
// allocator over the remainder against the round's snapshotted denominators.
// Executing is permitted once, for non-vetoed rounds only, by anyone.
func (uc UseCase) Execute(ctx context.Context, roundID string) (ExecuteResult, error) {
	roundID = strings.TrimSpace(roundID)
	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return ExecuteResult{}, err
	}
	switch round.Phase {
	case entities.PhaseInitiated:
	case entities.PhaseVetoed:
		return ExecuteResult{}, domainerrors.ErrRoundVetoed
	default:
		return ExecuteResult{}, domainerrors.ErrRoundAlreadyExecuted
	}
	now := uc.now()
	if now.Sub(round.InitiatedAt) <= uc.Params.ObjectionWindow {
		return ExecuteResult{}, domainerrors.ErrObjectionWindowOpen
	}

	states, err := uc.Repo.ListTrancheStates(ctx, roundID)
	if err != nil {
		return ExecuteResult{}, err
	}

	fee := waterfall.BasisPoints(round.Amount, uc.Params.ExecutionFeeBps)
	distributable := new(big.Int).Sub(round.Amount, fee)

	positions := make([]waterfall.Position, len(states))
	for _, s := range states {
		positions[s.TrancheIndex] = waterfall.Position{
			TrancheIndex: s.TrancheIndex,
			Denominator:  s.Denominator,
			Paid:         s.Paid,
		}
	}
	payments, err := waterfall.Allocate(distributable, positions)
	if err != nil {
		return ExecuteResult{}, err
	}
	for _, payment := range payments {
		states[payment.TrancheIndex].Paid = payment.Paid
		states[payment.TrancheIndex].RedemptionRate = payment.RedemptionRate
	}

	round.Phase = entities.PhaseExecuted
	round.ExecutedAt = &now

	if err := uc.Repo.SaveTrancheStates(ctx, states); err != nil {
		return ExecuteResult{}, err
	}
	if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return ExecuteResult{}, err
	}

	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return ExecuteResult{}, err
	}
	// The very first execution anchors the unclaimed-funds deadline.
	if state.FirstExecutedAt == nil {
		state.FirstExecutedAt = &now
		if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
			return ExecuteResult{}, err
		}
	}
	if err := uc.Ledger.SetTransfersPaused(ctx, false); err != nil {
		return ExecuteResult{}, err
	}
	if fee.Sign() > 0 {
		if err := uc.Funds.Transfer(ctx, round.Initiator, fee); err != nil {
			return ExecuteResult{}, err
		}
	}

	allocations := make([]map[string]any, 0, len(payments))
	for _, payment := range payments {
		allocations = append(allocations, map[string]any{
			"tranche_index":   payment.TrancheIndex,
			"amount":          payment.Amount.String(),
			"paid":            payment.Paid.String(),
			"redemption_rate": payment.RedemptionRate.String(),
		})
	}
	if err := uc.emit(ctx, "round.executed", "round", roundID, now, map[string]any{
		"round_id":    roundID,
		"fee":         fee.String(),
		"distributed": distributable.String(),
		"allocations": allocations,
	}); err != nil {
		return ExecuteResult{}, err
	}

	uc.logger().Info("round executed",
		"event", "engine_round_executed",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"fee", fee.String(),
		"distributed", distributable.String(),
	)
	return ExecuteResult{Fee: fee, Payments: payments}, nil
}
