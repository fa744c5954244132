package commands

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
	"remnant/internal/shared/merkle"
)

// ClaimResult reports what one redemption burned and paid out.
type ClaimResult struct {
	RoundID string
	Burned  map[int]*big.Int
	Payout  *big.Int
}

// Claim redeems the holder's share of one executed round. Per tranche it
// burns balance x redemptionRate of the holder's claim records and pays the
// burned value in the recovery asset. One claim per holder per round; a zero
// computed total fails with ErrNothingToRedeem.
func (uc UseCase) Claim(ctx context.Context, roundID, holder string) (ClaimResult, error) {
	holder = strings.TrimSpace(holder)
	roundID = strings.TrimSpace(roundID)
	if holder == "" || roundID == "" {
		return ClaimResult{}, domainerrors.ErrZeroAmount
	}

	available, err := uc.Funds.VaultBalance(ctx)
	if err != nil {
		return ClaimResult{}, err
	}
	result, err := uc.settleDirect(ctx, roundID, holder, available)
	if err != nil {
		return ClaimResult{}, err
	}
	if err := uc.Funds.Transfer(ctx, holder, result.Payout); err != nil {
		return ClaimResult{}, err
	}

	uc.logger().Info("direct claim settled",
		"event", "engine_claim_settled",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"holder", holder,
		"payout", result.Payout.String(),
	)
	return result, nil
}

// ClaimBatch settles the holder's share across several rounds, skipping
// rounds that are unexecuted, already claimed or beyond the vault's current
// funding instead of failing the batch. It fails only when no round yields
// anything.
func (uc UseCase) ClaimBatch(ctx context.Context, roundIDs []string, holder string) ([]ClaimResult, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" || len(roundIDs) == 0 {
		return nil, domainerrors.ErrZeroAmount
	}

	available, err := uc.Funds.VaultBalance(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]ClaimResult, 0, len(roundIDs))
	total := big.NewInt(0)
	for _, roundID := range roundIDs {
		result, err := uc.settleDirect(ctx, strings.TrimSpace(roundID), holder, available)
		switch err {
		case nil:
			results = append(results, result)
			total.Add(total, result.Payout)
		case domainerrors.ErrRoundNotExecuted,
			domainerrors.ErrAlreadyClaimed,
			domainerrors.ErrNothingToRedeem,
			domainerrors.ErrInsufficientFunds:
			continue
		default:
			return nil, err
		}
	}
	if total.Sign() <= 0 {
		return nil, domainerrors.ErrNothingToRedeem
	}
	if err := uc.Funds.Transfer(ctx, holder, total); err != nil {
		return nil, err
	}

	uc.logger().Info("batch claim settled",
		"event", "engine_claim_batch_settled",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"holder", holder,
		"rounds", len(results),
		"payout", total.String(),
	)
	return results, nil
}

// settleDirect applies the burn-on-claim accounting for one round without
// moving funds; callers transfer the payout after state is committed. The
// payout is computed and reserved against available before any burn or flag
// is written, so an underfunded vault never destroys claim records.
func (uc UseCase) settleDirect(
	ctx context.Context,
	roundID, holder string,
	available *big.Int,
) (ClaimResult, error) {
	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return ClaimResult{}, err
	}
	if round.Phase != entities.PhaseExecuted &&
		round.Phase != entities.PhaseChallenged &&
		round.Phase != entities.PhaseBondReturned {
		return ClaimResult{}, domainerrors.ErrRoundNotExecuted
	}
	if claimed, err := uc.Repo.HasClaimed(ctx, roundID, holder); err != nil {
		return ClaimResult{}, err
	} else if claimed {
		return ClaimResult{}, domainerrors.ErrAlreadyClaimed
	}

	states, err := uc.Repo.ListTrancheStates(ctx, roundID)
	if err != nil {
		return ClaimResult{}, err
	}

	burned := make(map[int]*big.Int)
	payout := big.NewInt(0)
	for _, state := range states {
		if state.RedemptionRate.Sign() <= 0 {
			continue
		}
		balance, err := uc.Ledger.BalanceOf(ctx, state.TrancheIndex, holder)
		if err != nil {
			return ClaimResult{}, err
		}
		entitled := waterfall.ApplyRate(balance, state.RedemptionRate)
		if entitled.Sign() <= 0 {
			continue
		}
		// Bonus overflow can push a rate past RateScale; the payout keeps
		// the full rate but the burn is bounded by the holder's balance.
		toBurn := entitled
		if toBurn.Cmp(balance) > 0 {
			toBurn = new(big.Int).Set(balance)
		}
		payout.Add(payout, entitled)
		burned[state.TrancheIndex] = toBurn
	}
	if payout.Sign() <= 0 {
		return ClaimResult{}, domainerrors.ErrNothingToRedeem
	}
	if available.Cmp(payout) < 0 {
		return ClaimResult{}, domainerrors.ErrInsufficientFunds
	}

	for trancheIndex, toBurn := range burned {
		if err := uc.Ledger.Burn(ctx, trancheIndex, holder, toBurn); err != nil {
			return ClaimResult{}, err
		}
	}
	available.Sub(available, payout)
	if err := uc.Repo.MarkClaimed(ctx, roundID, holder); err != nil {
		return ClaimResult{}, err
	}
	round.ClaimedTotal = new(big.Int).Add(round.ClaimedTotal, payout)
	if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return ClaimResult{}, err
	}
	if err := uc.recordClaimed(ctx, holder, payout); err != nil {
		return ClaimResult{}, err
	}
	if err := uc.emit(ctx, "claim.settled", "claim", roundID+":"+holder, uc.now(), map[string]any{
		"round_id": roundID,
		"holder":   holder,
		"payout":   payout.String(),
	}); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{RoundID: roundID, Burned: burned, Payout: payout}, nil
}

// OffLedgerClaimCommand redeems a configured off-ledger claim against a
// round using a membership proof over the round's root.
type OffLedgerClaimCommand struct {
	RoundID      string
	Claimant     string
	TrancheIndex int
	Amount       *big.Int
	LegalHash    []byte
	Proof        [][]byte
}

// ClaimOffLedger verifies the deterministic leaf encoding of the claim
// against the round's proof root and pays amount x redemptionRate once per
// (claimant, tranche) pair per round. No claim record is burned; the payout
// still counts toward lifetime claimed totals for redistribution.
func (uc UseCase) ClaimOffLedger(ctx context.Context, cmd OffLedgerClaimCommand) (*big.Int, error) {
	claimant := strings.TrimSpace(cmd.Claimant)
	roundID := strings.TrimSpace(cmd.RoundID)
	if claimant == "" || roundID == "" || cmd.Amount == nil || cmd.Amount.Sign() <= 0 {
		return nil, domainerrors.ErrZeroAmount
	}
	if cmd.TrancheIndex < 0 || cmd.TrancheIndex >= len(uc.Config.Tranches) {
		return nil, domainerrors.ErrInvalidTrancheIndex
	}

	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Phase != entities.PhaseExecuted &&
		round.Phase != entities.PhaseChallenged &&
		round.Phase != entities.PhaseBondReturned {
		return nil, domainerrors.ErrRoundNotExecuted
	}
	if claimed, err := uc.Repo.HasClaimedOffLedger(ctx, roundID, claimant, cmd.TrancheIndex); err != nil {
		return nil, err
	} else if claimed {
		return nil, domainerrors.ErrAlreadyClaimed
	}

	leaf := merkle.LeafOffLedger(claimant, cmd.TrancheIndex, cmd.Amount, cmd.LegalHash, round.SnapshotAt)
	if !merkle.Verify(round.ProofRoot, leaf, cmd.Proof) {
		return nil, domainerrors.ErrProofInvalid
	}

	states, err := uc.Repo.ListTrancheStates(ctx, roundID)
	if err != nil {
		return nil, err
	}
	payout := waterfall.ApplyRate(cmd.Amount, states[cmd.TrancheIndex].RedemptionRate)
	if payout.Sign() <= 0 {
		return nil, domainerrors.ErrNothingToRedeem
	}
	available, err := uc.Funds.VaultBalance(ctx)
	if err != nil {
		return nil, err
	}
	if available.Cmp(payout) < 0 {
		return nil, domainerrors.ErrInsufficientFunds
	}

	if err := uc.Repo.MarkClaimedOffLedger(ctx, roundID, claimant, cmd.TrancheIndex); err != nil {
		return nil, err
	}
	round.ClaimedTotal = new(big.Int).Add(round.ClaimedTotal, payout)
	if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return nil, err
	}
	if err := uc.recordClaimed(ctx, claimant, payout); err != nil {
		return nil, err
	}
	if err := uc.Funds.Transfer(ctx, claimant, payout); err != nil {
		return nil, err
	}

	if err := uc.emit(ctx, "claim.off_ledger_settled", "claim", roundID+":"+claimant, uc.now(), map[string]any{
		"round_id":      roundID,
		"claimant":      claimant,
		"tranche_index": cmd.TrancheIndex,
		"payout":        payout.String(),
	}); err != nil {
		return nil, err
	}

	uc.logger().Info("off-ledger claim settled",
		"event", "engine_off_ledger_claim_settled",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"claimant", claimant,
		"tranche_index", cmd.TrancheIndex,
		"payout", payout.String(),
	)
	return payout, nil
}

// recordClaimed tracks lifetime claimed totals feeding the redistribution
// pool's pro-rata shares.
func (uc UseCase) recordClaimed(ctx context.Context, identity string, amount *big.Int) error {
	if err := uc.Repo.AddLifetimeClaimed(ctx, identity, amount); err != nil {
		return err
	}
	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return err
	}
	state.TotalClaimedAllRounds = new(big.Int).Add(state.TotalClaimedAllRounds, amount)
	return uc.Repo.SaveVaultState(ctx, state)
}
