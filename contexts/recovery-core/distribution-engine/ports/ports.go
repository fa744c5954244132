package ports

import (
	"context"
	"math/big"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	"remnant/internal/shared/events"
	"remnant/internal/shared/outbox"
)

// VaultRepository owns every piece of mutable vault state: vault-level
// accounting, rounds with their snapshots and per-tranche states, and the
// sparse per-holder flags. Implementations must apply each call atomically.
type VaultRepository interface {
	GetVaultState(ctx context.Context) (entities.VaultState, error)
	SaveVaultState(ctx context.Context, state entities.VaultState) error

	CreateRound(
		ctx context.Context,
		round entities.DistributionRound,
		snapshot entities.RoundSnapshot,
		states []entities.TrancheRoundState,
	) error
	GetRound(ctx context.Context, roundID string) (entities.DistributionRound, error)
	LatestRound(ctx context.Context) (entities.DistributionRound, bool, error)
	SaveRound(ctx context.Context, round entities.DistributionRound) error
	ListRounds(ctx context.Context, offset, limit int) ([]entities.DistributionRound, error)

	GetSnapshot(ctx context.Context, roundID string) (entities.RoundSnapshot, error)
	ListTrancheStates(ctx context.Context, roundID string) ([]entities.TrancheRoundState, error)
	SaveTrancheStates(ctx context.Context, states []entities.TrancheRoundState) error

	HasObjected(ctx context.Context, roundID, identity string) (bool, error)
	MarkObjected(ctx context.Context, roundID, identity string) error
	HasClaimed(ctx context.Context, roundID, identity string) (bool, error)
	MarkClaimed(ctx context.Context, roundID, identity string) error
	HasClaimedOffLedger(ctx context.Context, roundID, claimant string, trancheIndex int) (bool, error)
	MarkClaimedOffLedger(ctx context.Context, roundID, claimant string, trancheIndex int) error

	LifetimeClaimed(ctx context.Context, identity string) (*big.Int, error)
	AddLifetimeClaimed(ctx context.Context, identity string, amount *big.Int) error
	HasRedeemedResidual(ctx context.Context, identity string) (bool, error)
	MarkRedeemedResidual(ctx context.Context, identity string) error
}

// ClaimRecordLedger is the capability the vault holds over its tranche
// claim-record issuers: exclusive mint/burn plus balance and supply reads.
// Transfer mechanics live with the issuer, not here; the vault only gates
// them through the pause switch while a round is open for objections.
type ClaimRecordLedger interface {
	Mint(ctx context.Context, trancheIndex int, holder string, amount *big.Int) error
	Burn(ctx context.Context, trancheIndex int, holder string, amount *big.Int) error
	BalanceOf(ctx context.Context, trancheIndex int, holder string) (*big.Int, error)
	TotalSupply(ctx context.Context, trancheIndex int) (*big.Int, error)
	TotalBurned(ctx context.Context, trancheIndex int) (*big.Int, error)
	SetTransfersPaused(ctx context.Context, paused bool) error
}

// RecoveryFunds moves the recovery asset. Use cases commit all ledger state
// before calling Transfer so a misbehaving counterparty cannot observe
// half-applied accounting.
type RecoveryFunds interface {
	Deposit(ctx context.Context, from string, amount *big.Int) error
	Collect(ctx context.Context, from string, amount *big.Int) error
	Transfer(ctx context.Context, to string, amount *big.Int) error
	VaultBalance(ctx context.Context) (*big.Int, error)
}

// UnderlyingAssets reads and receives the distressed assets accepted by the
// vault's tranches. TotalSupply feeds whole-supply denominators.
type UnderlyingAssets interface {
	Collect(ctx context.Context, assetID, from string, amount *big.Int) error
	TotalSupply(ctx context.Context, assetID string) (*big.Int, error)
}

// PriceQuote is the explicit result of an external price read. Valid is
// false when the source itself reports the value as unusable.
type PriceQuote struct {
	Value     *big.Int
	UpdatedAt time.Time
	Valid     bool
}

// PriceSource reads a configured external price feed. Errors and invalid
// quotes are recovered by the resolver's static fallback, never surfaced.
type PriceSource interface {
	Quote(ctx context.Context, sourceID string) (PriceQuote, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event events.Envelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
