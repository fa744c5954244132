package commands

import (
	"context"
	"math/big"
	"strings"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

// InitiateCommand opens a distribution round against the pending pool.
type InitiateCommand struct {
	Initiator  string
	ProofRoot  []byte
	SnapshotAt time.Time
	Bond       *big.Int
}

// Initiate runs the snapshot engine, collects the submitter bond and opens a
// round carrying the entire pending pool. In wrapped-only mode the first
// initiation permanently closes deposits, freezing every denominator for the
// rest of the vault's life.
func (uc UseCase) Initiate(ctx context.Context, cmd InitiateCommand) (entities.DistributionRound, error) {
	initiator := strings.TrimSpace(cmd.Initiator)
	now := uc.now()

	if initiator == "" {
		return entities.DistributionRound{}, domainerrors.ErrZeroAmount
	}
	if len(cmd.ProofRoot) == 0 {
		return entities.DistributionRound{}, domainerrors.ErrInvalidProofRoot
	}
	if cmd.SnapshotAt.After(now) {
		return entities.DistributionRound{}, domainerrors.ErrInvalidSnapshotRef
	}
	if cmd.Bond == nil || cmd.Bond.Cmp(uc.Params.MinBond) < 0 {
		return entities.DistributionRound{}, domainerrors.ErrInsufficientBond
	}

	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	if state.PendingPool.Sign() <= 0 {
		return entities.DistributionRound{}, domainerrors.ErrNoPendingFunds
	}

	prior, exists, err := uc.Repo.LatestRound(ctx)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	sequence := 0
	var priorStates []entities.TrancheRoundState
	if exists {
		if prior.Phase == entities.PhaseInitiated {
			return entities.DistributionRound{}, domainerrors.ErrRoundActive
		}
		sequence = prior.Sequence + 1
		if prior.Phase == entities.PhaseVetoed {
			if state.LastVetoAt != nil && now.Sub(*state.LastVetoAt) < uc.Params.VetoCooldown {
				return entities.DistributionRound{}, domainerrors.ErrVetoCooldownActive
			}
			if strings.EqualFold(state.LastVetoInitiator, initiator) {
				return entities.DistributionRound{}, domainerrors.ErrVetoedInitiator
			}
		}
		priorStates, err = uc.latestExecutedStates(ctx, prior)
		if err != nil {
			return entities.DistributionRound{}, err
		}
	}

	roundID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.DistributionRound{}, err
	}

	snapshot, err := uc.takeSnapshot(ctx, roundID, cmd.SnapshotAt)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	states := uc.buildTrancheStates(roundID, snapshot, priorStates)

	round := entities.DistributionRound{
		RoundID:        roundID,
		Sequence:       sequence,
		ProofRoot:      append([]byte(nil), cmd.ProofRoot...),
		SnapshotAt:     cmd.SnapshotAt.UTC(),
		Amount:         new(big.Int).Set(state.PendingPool),
		Initiator:      initiator,
		Bond:           new(big.Int).Set(cmd.Bond),
		Phase:          entities.PhaseInitiated,
		InitiatedAt:    now,
		ObjectionPower: big.NewInt(0),
		TotalPower:     uc.totalObjectionPower(snapshot),
		ClaimedTotal:   big.NewInt(0),
	}

	if err := uc.Funds.Collect(ctx, initiator, cmd.Bond); err != nil {
		return entities.DistributionRound{}, err
	}
	if err := uc.Repo.CreateRound(ctx, round, snapshot, states); err != nil {
		if refundErr := uc.Funds.Transfer(ctx, initiator, cmd.Bond); refundErr != nil {
			uc.logger().Error("bond refund failed after round creation error",
				"event", "engine_bond_refund_failed",
				"module", "recovery-core/distribution-engine",
				"layer", "application",
				"vault_id", uc.Config.VaultID,
				"initiator", initiator,
				"error", refundErr,
			)
		}
		return entities.DistributionRound{}, err
	}

	state.PendingPool = big.NewInt(0)
	if uc.Config.Mode == entities.ModeWrappedOnly {
		state.DepositsClosed = true
	}
	if err := uc.Repo.SaveVaultState(ctx, state); err != nil {
		return entities.DistributionRound{}, err
	}
	// Claim records stay put during the objection window so objection
	// weights cannot be double-counted by moving balances between voters.
	if err := uc.Ledger.SetTransfersPaused(ctx, true); err != nil {
		return entities.DistributionRound{}, err
	}

	if err := uc.emit(ctx, "round.initiated", "round", roundID, now, map[string]any{
		"round_id":    roundID,
		"sequence":    sequence,
		"initiator":   initiator,
		"amount":      round.Amount.String(),
		"snapshot_at": round.SnapshotAt,
		"total_power": round.TotalPower.String(),
	}); err != nil {
		return entities.DistributionRound{}, err
	}
	if err := uc.emit(ctx, "bond.posted", "round", roundID, now, map[string]any{
		"round_id":  roundID,
		"initiator": initiator,
		"bond":      round.Bond.String(),
	}); err != nil {
		return entities.DistributionRound{}, err
	}

	uc.logger().Info("distribution round initiated",
		"event", "engine_round_initiated",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"round_id", roundID,
		"sequence", sequence,
		"initiator", initiator,
		"amount", round.Amount.String(),
	)
	return round, nil
}

// takeSnapshot freezes prices, claim-record supplies and, in whole-supply
// mode, underlying asset supplies under the round's id. These values are the
// exclusive source of truth for the round's denominators and weights.
func (uc UseCase) takeSnapshot(
	ctx context.Context,
	roundID string,
	snapshotAt time.Time,
) (entities.RoundSnapshot, error) {
	snapshot := entities.RoundSnapshot{
		RoundID:      roundID,
		SnapshotAt:   snapshotAt.UTC(),
		Prices:       make(map[string]*big.Int, len(uc.Config.Assets)),
		ClaimSupply:  make(map[int]*big.Int, len(uc.Config.Tranches)),
		BurnedSupply: make(map[int]*big.Int, len(uc.Config.Tranches)),
		AssetSupply:  make(map[string]*big.Int),
	}
	for _, asset := range uc.Config.Assets {
		price, _ := uc.resolvePrice(ctx, asset)
		snapshot.Prices[asset.AssetID] = price
	}
	for _, tranche := range uc.Config.Tranches {
		supply, err := uc.Ledger.TotalSupply(ctx, tranche.Index)
		if err != nil {
			return entities.RoundSnapshot{}, err
		}
		snapshot.ClaimSupply[tranche.Index] = supply
		burned, err := uc.Ledger.TotalBurned(ctx, tranche.Index)
		if err != nil {
			return entities.RoundSnapshot{}, err
		}
		snapshot.BurnedSupply[tranche.Index] = burned
	}
	if uc.Config.Mode == entities.ModeWholeSupply {
		for _, asset := range uc.Config.Assets {
			supply, err := uc.Assets.TotalSupply(ctx, asset.AssetID)
			if err != nil {
				return entities.RoundSnapshot{}, err
			}
			snapshot.AssetSupply[asset.AssetID] = supply
		}
	}
	return snapshot, nil
}

// denominator computes one tranche's total claim for a round from snapshot
// values only. Wrapped-only mode counts claim records on their original
// issuance basis: the live snapshot supply plus everything settlement has
// burned since, so cumulative paid amounts measured against earlier rounds
// keep meaning outstanding = denominator - paid. Whole-supply mode values
// every accepted asset's full outstanding supply, which claim burns never
// touch, letting non-depositing holders dilute depositors without being
// able to claim.
func (uc UseCase) denominator(snapshot entities.RoundSnapshot, trancheIndex int) *big.Int {
	total := uc.Config.OffLedgerTotal(trancheIndex)
	if uc.Config.Mode == entities.ModeWholeSupply {
		for _, assetID := range uc.Config.Tranches[trancheIndex].AcceptedAssets {
			supply, ok := snapshot.AssetSupply[assetID]
			if !ok {
				continue
			}
			total.Add(total, waterfall.Value(supply, snapshot.Prices[assetID]))
		}
		return total
	}
	if supply, ok := snapshot.ClaimSupply[trancheIndex]; ok {
		total.Add(total, supply)
	}
	if burned, ok := snapshot.BurnedSupply[trancheIndex]; ok {
		total.Add(total, burned)
	}
	return total
}

// buildTrancheStates carries cumulative paid amounts forward from the last
// executed round and freezes this round's denominators. A denominator is
// clamped to the carried paid amount so a whole-supply basis shrinking
// between rounds can never push paid past it or walk a redemption rate
// backwards.
func (uc UseCase) buildTrancheStates(
	roundID string,
	snapshot entities.RoundSnapshot,
	prior []entities.TrancheRoundState,
) []entities.TrancheRoundState {
	states := make([]entities.TrancheRoundState, len(uc.Config.Tranches))
	for _, tranche := range uc.Config.Tranches {
		paid := big.NewInt(0)
		for _, prev := range prior {
			if prev.TrancheIndex == tranche.Index {
				paid = new(big.Int).Set(prev.Paid)
				break
			}
		}
		denominator := uc.denominator(snapshot, tranche.Index)
		if denominator.Cmp(paid) < 0 {
			denominator = new(big.Int).Set(paid)
		}
		states[tranche.Index] = entities.TrancheRoundState{
			RoundID:        roundID,
			TrancheIndex:   tranche.Index,
			Denominator:    denominator,
			Paid:           paid,
			RedemptionRate: waterfall.Rate(paid, denominator),
		}
	}
	return states
}

// latestExecutedStates walks back to the most recent round that actually
// executed; vetoed rounds never move cumulative accounting.
func (uc UseCase) latestExecutedStates(
	ctx context.Context,
	latest entities.DistributionRound,
) ([]entities.TrancheRoundState, error) {
	round := latest
	for {
		if round.Phase != entities.PhaseVetoed {
			return uc.Repo.ListTrancheStates(ctx, round.RoundID)
		}
		if round.Sequence == 0 {
			return nil, nil
		}
		rounds, err := uc.Repo.ListRounds(ctx, round.Sequence-1, 1)
		if err != nil {
			return nil, err
		}
		if len(rounds) == 0 {
			return nil, nil
		}
		round = rounds[0]
	}
}

// totalObjectionPower values each tranche's snapshotted claim supply at the
// snapshotted price of its primary underlying asset; off-ledger-only
// tranches count supply 1:1.
func (uc UseCase) totalObjectionPower(snapshot entities.RoundSnapshot) *big.Int {
	total := big.NewInt(0)
	for _, tranche := range uc.Config.Tranches {
		supply, ok := snapshot.ClaimSupply[tranche.Index]
		if !ok || supply.Sign() <= 0 {
			continue
		}
		if primary, ok := uc.Config.PrimaryAsset(tranche.Index); ok {
			total.Add(total, waterfall.Value(supply, snapshot.Prices[primary.AssetID]))
			continue
		}
		total.Add(total, supply)
	}
	return total
}
