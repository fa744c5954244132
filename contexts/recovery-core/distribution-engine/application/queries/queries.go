package queries

import (
	"context"
	"math/big"
	"strings"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/ports"
)

// UseCase is the consolidated read-only API over vault state. Collection
// reads are paginated so large asset or claim sets never force a full scan
// into one response.
type UseCase struct {
	Config entities.VaultConfig
	Repo   ports.VaultRepository
	Ledger ports.ClaimRecordLedger
}

const maxPageSize = 100

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}

// RoundView joins a round with its per-tranche cumulative state.
type RoundView struct {
	Round    entities.DistributionRound
	Tranches []entities.TrancheRoundState
}

func (uc UseCase) GetRound(ctx context.Context, roundID string) (RoundView, error) {
	round, err := uc.Repo.GetRound(ctx, strings.TrimSpace(roundID))
	if err != nil {
		return RoundView{}, err
	}
	states, err := uc.Repo.ListTrancheStates(ctx, round.RoundID)
	if err != nil {
		return RoundView{}, err
	}
	return RoundView{Round: round, Tranches: states}, nil
}

func (uc UseCase) ListRounds(ctx context.Context, offset, limit int) ([]entities.DistributionRound, error) {
	offset, limit = clampPage(offset, limit)
	return uc.Repo.ListRounds(ctx, offset, limit)
}

func (uc UseCase) GetSnapshot(ctx context.Context, roundID string) (entities.RoundSnapshot, error) {
	return uc.Repo.GetSnapshot(ctx, strings.TrimSpace(roundID))
}

// TrancheView is a tranche's configuration plus live claim-record supply and
// configured off-ledger total.
type TrancheView struct {
	Tranche        entities.Tranche
	ClaimSupply    *big.Int
	OffLedgerTotal *big.Int
}

func (uc UseCase) GetTranche(ctx context.Context, index int) (TrancheView, error) {
	if index < 0 || index >= len(uc.Config.Tranches) {
		return TrancheView{}, domainerrors.ErrInvalidTrancheIndex
	}
	supply, err := uc.Ledger.TotalSupply(ctx, index)
	if err != nil {
		return TrancheView{}, err
	}
	return TrancheView{
		Tranche:        uc.Config.Tranches[index],
		ClaimSupply:    supply,
		OffLedgerTotal: uc.Config.OffLedgerTotal(index),
	}, nil
}

func (uc UseCase) ListTranches(ctx context.Context) ([]TrancheView, error) {
	views := make([]TrancheView, 0, len(uc.Config.Tranches))
	for _, tranche := range uc.Config.Tranches {
		view, err := uc.GetTranche(ctx, tranche.Index)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (uc UseCase) ListAssets(offset, limit int) []entities.AssetConfig {
	offset, limit = clampPage(offset, limit)
	if offset >= len(uc.Config.Assets) {
		return nil
	}
	end := offset + limit
	if end > len(uc.Config.Assets) {
		end = len(uc.Config.Assets)
	}
	return uc.Config.Assets[offset:end]
}

func (uc UseCase) ListOffLedgerClaims(offset, limit int) []entities.OffLedgerClaim {
	offset, limit = clampPage(offset, limit)
	if offset >= len(uc.Config.OffLedgerClaims) {
		return nil
	}
	end := offset + limit
	if end > len(uc.Config.OffLedgerClaims) {
		end = len(uc.Config.OffLedgerClaims)
	}
	return uc.Config.OffLedgerClaims[offset:end]
}

// ClaimStatus reports whether an identity has objected to or claimed a
// round, and its current claim-record balances.
type ClaimStatus struct {
	RoundID  string
	Identity string
	Objected bool
	Claimed  bool
	Balances map[int]*big.Int
}

func (uc UseCase) GetClaimStatus(ctx context.Context, roundID, identity string) (ClaimStatus, error) {
	roundID = strings.TrimSpace(roundID)
	identity = strings.TrimSpace(identity)
	if _, err := uc.Repo.GetRound(ctx, roundID); err != nil {
		return ClaimStatus{}, err
	}
	objected, err := uc.Repo.HasObjected(ctx, roundID, identity)
	if err != nil {
		return ClaimStatus{}, err
	}
	claimed, err := uc.Repo.HasClaimed(ctx, roundID, identity)
	if err != nil {
		return ClaimStatus{}, err
	}
	balances := make(map[int]*big.Int, len(uc.Config.Tranches))
	for _, tranche := range uc.Config.Tranches {
		balance, err := uc.Ledger.BalanceOf(ctx, tranche.Index, identity)
		if err != nil {
			return ClaimStatus{}, err
		}
		balances[tranche.Index] = balance
	}
	return ClaimStatus{
		RoundID:  roundID,
		Identity: identity,
		Objected: objected,
		Claimed:  claimed,
		Balances: balances,
	}, nil
}

// PendingPool returns the recovery value awaiting the next round.
func (uc UseCase) PendingPool(ctx context.Context) (*big.Int, error) {
	state, err := uc.Repo.GetVaultState(ctx)
	if err != nil {
		return nil, err
	}
	return state.PendingPool, nil
}

// VaultState exposes the vault-level accounting snapshot.
func (uc UseCase) VaultState(ctx context.Context) (entities.VaultState, error) {
	return uc.Repo.GetVaultState(ctx)
}
