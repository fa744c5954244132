package commands

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/internal/shared/merkle"
)

// ChallengeCommand asserts that a leaf included under the round's proof root
// carries fraudulent claim contents. The proof must be valid against the
// root: an invalid proof is rejected, a valid one forfeits the bond.
type ChallengeCommand struct {
	RoundID    string
	Challenger string
	Leaf       []byte
	Proof      [][]byte
}

// Challenge slashes the submitter bond in favor of the challenger when a
// valid membership proof is presented within the challenge window.
func (uc UseCase) Challenge(ctx context.Context, cmd ChallengeCommand) error {
	roundID := strings.TrimSpace(cmd.RoundID)
	challenger := strings.TrimSpace(cmd.Challenger)
	if roundID == "" || challenger == "" {
		return domainerrors.ErrZeroAmount
	}

	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Phase == entities.PhaseChallenged {
		return domainerrors.ErrAlreadyChallenged
	}
	if round.Phase != entities.PhaseExecuted || round.ExecutedAt == nil {
		return domainerrors.ErrRoundNotExecuted
	}
	if round.BondReturned {
		return domainerrors.ErrBondAlreadyReturned
	}
	now := uc.now()
	if now.Sub(*round.ExecutedAt) > uc.Params.ChallengeWindow {
		return domainerrors.ErrChallengeWindowOver
	}
	if !merkle.Verify(round.ProofRoot, cmd.Leaf, cmd.Proof) {
		return domainerrors.ErrProofInvalid
	}

	bond := new(big.Int).Set(round.Bond)
	round.Phase = entities.PhaseChallenged
	round.BondReturned = true
	if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return err
	}
	if err := uc.Funds.Transfer(ctx, challenger, bond); err != nil {
		return err
	}

	if err := uc.emit(ctx, "challenge.raised", "round", roundID, now, map[string]any{
		"round_id":   roundID,
		"challenger": challenger,
		"bond":       bond.String(),
	}); err != nil {
		return err
	}

	uc.logger().Info("round challenged, bond forfeited",
		"event", "engine_round_challenged",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"challenger", challenger,
		"bond", bond.String(),
	)
	return nil
}

// ReturnBond releases the submitter bond back to the initiator once the
// challenge window has elapsed without a successful challenge.
func (uc UseCase) ReturnBond(ctx context.Context, roundID string) error {
	roundID = strings.TrimSpace(roundID)
	round, err := uc.Repo.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Phase == entities.PhaseChallenged {
		return domainerrors.ErrAlreadyChallenged
	}
	if round.Phase != entities.PhaseExecuted || round.ExecutedAt == nil {
		return domainerrors.ErrRoundNotExecuted
	}
	if round.BondReturned {
		return domainerrors.ErrBondAlreadyReturned
	}
	now := uc.now()
	if now.Sub(*round.ExecutedAt) <= uc.Params.ChallengeWindow {
		return domainerrors.ErrChallengeWindowOpen
	}

	bond := new(big.Int).Set(round.Bond)
	round.Phase = entities.PhaseBondReturned
	round.BondReturned = true
	if err := uc.Repo.SaveRound(ctx, round); err != nil {
		return err
	}
	if err := uc.Funds.Transfer(ctx, round.Initiator, bond); err != nil {
		return err
	}

	if err := uc.emit(ctx, "bond.returned", "round", roundID, now, map[string]any{
		"round_id":  roundID,
		"initiator": round.Initiator,
		"bond":      bond.String(),
		"reason":    "challenge_window_elapsed",
	}); err != nil {
		return err
	}

	uc.logger().Info("submitter bond returned",
		"event", "engine_bond_returned",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"bond", bond.String(),
	)
	return nil
}
