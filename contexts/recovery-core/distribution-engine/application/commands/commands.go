package commands

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	application "remnant/contexts/recovery-core/distribution-engine/application"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	"remnant/contexts/recovery-core/distribution-engine/ports"
	"remnant/internal/shared/events"
)

// Params are the vault's immutable protocol knobs.
type Params struct {
	ObjectionWindow   time.Duration
	ChallengeWindow   time.Duration
	VetoCooldown      time.Duration
	UnclaimedDeadline time.Duration
	VetoThresholdBps  int64
	QuorumBps         int64
	ExecutionFeeBps   int64
	MinBond           *big.Int
	PriceMaxAge       time.Duration
	PriceMaxValue     *big.Int
}

// DefaultParams mirror the reference deployment: 48h objections, 72h
// challenges, 24h veto cooldown, one-year unclaimed deadline, 10% veto
// threshold with 5% participation quorum and a 0.5% execution fee.
func DefaultParams() Params {
	return Params{
		ObjectionWindow:   48 * time.Hour,
		ChallengeWindow:   72 * time.Hour,
		VetoCooldown:      24 * time.Hour,
		UnclaimedDeadline: 365 * 24 * time.Hour,
		VetoThresholdBps:  1000,
		QuorumBps:         500,
		ExecutionFeeBps:   50,
		MinBond:           big.NewInt(1_000),
		PriceMaxAge:       24 * time.Hour,
		PriceMaxValue:     new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil),
	}
}

// UseCase orchestrates every state transition of one recovery vault. All
// mutations go through Repo, which applies each call atomically; outbound
// fund transfers are issued only after state is committed.
type UseCase struct {
	Config entities.VaultConfig
	Params Params
	Repo   ports.VaultRepository
	Ledger ports.ClaimRecordLedger
	Funds  ports.RecoveryFunds
	Assets ports.UnderlyingAssets
	Prices ports.PriceSource
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Outbox ports.OutboxWriter
	Logger *slog.Logger
}

func (uc UseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc UseCase) logger() *slog.Logger {
	return application.ResolveLogger(uc.Logger)
}

// emit appends a notification envelope to the outbox. A nil outbox is
// treated as no-op for pure read/test wiring.
func (uc UseCase) emit(
	ctx context.Context,
	eventType string,
	entityType string,
	entityID string,
	occurredAt time.Time,
	payload map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "remnant",
		OccurredAtUTC:  occurredAt,
		VaultID:        uc.Config.VaultID,
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}
