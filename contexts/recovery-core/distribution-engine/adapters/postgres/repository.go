package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/ports"
	"remnant/internal/shared/events"
	"remnant/internal/shared/outbox"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists vault state, rounds and the engine outbox. Amounts and
// rates are stored as numeric text so arbitrary-precision integers survive
// the round trip unchanged.
type Repository struct {
	db      *gorm.DB
	vaultID string
	logger  *slog.Logger
}

func NewRepository(db *gorm.DB, vaultID string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:      db,
		vaultID: strings.TrimSpace(vaultID),
		logger:  logger,
	}
}

// AutoMigrate creates the engine's tables.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&vaultStateModel{},
		&roundModel{},
		&roundSnapshotModel{},
		&trancheStateModel{},
		&objectionModel{},
		&claimModel{},
		&offLedgerClaimModel{},
		&lifetimeClaimModel{},
		&residualRedemptionModel{},
		&engineOutboxModel{},
	)
}

func (r *Repository) GetVaultState(ctx context.Context) (entities.VaultState, error) {
	var row vaultStateModel
	err := r.db.WithContext(ctx).
		Where("vault_id = ?", r.vaultID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.NewVaultState(), nil
		}
		return entities.VaultState{}, r.logError("engine_repo_get_vault_state_failed", err)
	}
	return vaultStateFromModel(row)
}

func (r *Repository) SaveVaultState(ctx context.Context, state entities.VaultState) error {
	row := vaultStateToModel(r.vaultID, state)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vault_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("engine_repo_save_vault_state_failed", err)
	}
	return nil
}

func (r *Repository) CreateRound(
	ctx context.Context,
	round entities.DistributionRound,
	snapshot entities.RoundSnapshot,
	states []entities.TrancheRoundState,
) error {
	snapshotRow, err := snapshotToModel(snapshot)
	if err != nil {
		return r.logError("engine_repo_snapshot_encode_failed", err, "round_id", round.RoundID)
	}
	stateRows := make([]trancheStateModel, 0, len(states))
	for _, state := range states {
		stateRows = append(stateRows, trancheStateToModel(state))
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roundRow := roundToModel(round)
		if err := tx.Create(&roundRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRoundActive
			}
			return err
		}
		if err := tx.Create(&snapshotRow).Error; err != nil {
			return err
		}
		if len(stateRows) > 0 {
			if err := tx.Create(&stateRows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrRoundActive) {
			return err
		}
		return r.logError("engine_repo_create_round_failed", err, "round_id", round.RoundID)
	}
	return nil
}

func (r *Repository) GetRound(ctx context.Context, roundID string) (entities.DistributionRound, error) {
	var row roundModel
	err := r.db.WithContext(ctx).
		Where("round_id = ?", strings.TrimSpace(roundID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRound{}, domainerrors.ErrRoundNotFound
		}
		return entities.DistributionRound{}, r.logError("engine_repo_get_round_failed", err, "round_id", roundID)
	}
	return roundFromModel(row)
}

func (r *Repository) LatestRound(ctx context.Context) (entities.DistributionRound, bool, error) {
	var row roundModel
	err := r.db.WithContext(ctx).
		Order("sequence DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRound{}, false, nil
		}
		return entities.DistributionRound{}, false, r.logError("engine_repo_latest_round_failed", err)
	}
	round, err := roundFromModel(row)
	if err != nil {
		return entities.DistributionRound{}, false, err
	}
	return round, true, nil
}

func (r *Repository) SaveRound(ctx context.Context, round entities.DistributionRound) error {
	row := roundToModel(round)
	result := r.db.WithContext(ctx).
		Model(&roundModel{}).
		Where("round_id = ?", round.RoundID).
		Updates(map[string]any{
			"amount":          row.Amount,
			"bond_returned":   row.BondReturned,
			"phase":           row.Phase,
			"executed_at":     row.ExecutedAt,
			"objection_power": row.ObjectionPower,
			"claimed_total":   row.ClaimedTotal,
		})
	if result.Error != nil {
		return r.logError("engine_repo_save_round_failed", result.Error, "round_id", round.RoundID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRoundNotFound
	}
	return nil
}

func (r *Repository) ListRounds(ctx context.Context, offset, limit int) ([]entities.DistributionRound, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []roundModel
	err := r.db.WithContext(ctx).
		Order("sequence ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_rounds_failed", err)
	}
	rounds := make([]entities.DistributionRound, 0, len(rows))
	for _, row := range rows {
		round, err := roundFromModel(row)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func (r *Repository) GetSnapshot(ctx context.Context, roundID string) (entities.RoundSnapshot, error) {
	var row roundSnapshotModel
	err := r.db.WithContext(ctx).
		Where("round_id = ?", strings.TrimSpace(roundID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RoundSnapshot{}, domainerrors.ErrRoundNotFound
		}
		return entities.RoundSnapshot{}, r.logError("engine_repo_get_snapshot_failed", err, "round_id", roundID)
	}
	return snapshotFromModel(row)
}

func (r *Repository) ListTrancheStates(ctx context.Context, roundID string) ([]entities.TrancheRoundState, error) {
	var rows []trancheStateModel
	err := r.db.WithContext(ctx).
		Where("round_id = ?", strings.TrimSpace(roundID)).
		Order("tranche_index ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_tranche_states_failed", err, "round_id", roundID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.ErrRoundNotFound
	}
	states := make([]entities.TrancheRoundState, 0, len(rows))
	for _, row := range rows {
		state, err := trancheStateFromModel(row)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (r *Repository) SaveTrancheStates(ctx context.Context, states []entities.TrancheRoundState) error {
	if len(states) == 0 {
		return nil
	}
	rows := make([]trancheStateModel, 0, len(states))
	for _, state := range states {
		rows = append(rows, trancheStateToModel(state))
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "round_id"}, {Name: "tranche_index"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return r.logError("engine_repo_save_tranche_states_failed", err, "round_id", states[0].RoundID)
	}
	return nil
}

func (r *Repository) HasObjected(ctx context.Context, roundID, identity string) (bool, error) {
	return r.flagExists(ctx, &objectionModel{}, roundID, identity, "engine_repo_has_objected_failed")
}

func (r *Repository) MarkObjected(ctx context.Context, roundID, identity string) error {
	row := objectionModel{RoundID: roundID, Identity: identity}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyObjected
		}
		return r.logError("engine_repo_mark_objected_failed", err, "round_id", roundID)
	}
	return nil
}

func (r *Repository) HasClaimed(ctx context.Context, roundID, identity string) (bool, error) {
	return r.flagExists(ctx, &claimModel{}, roundID, identity, "engine_repo_has_claimed_failed")
}

func (r *Repository) MarkClaimed(ctx context.Context, roundID, identity string) error {
	row := claimModel{RoundID: roundID, Identity: identity}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyClaimed
		}
		return r.logError("engine_repo_mark_claimed_failed", err, "round_id", roundID)
	}
	return nil
}

func (r *Repository) HasClaimedOffLedger(ctx context.Context, roundID, claimant string, trancheIndex int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&offLedgerClaimModel{}).
		Where("round_id = ?", strings.TrimSpace(roundID)).
		Where("claimant = ?", strings.TrimSpace(claimant)).
		Where("tranche_index = ?", trancheIndex).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("engine_repo_has_claimed_off_ledger_failed", err, "round_id", roundID)
	}
	return count > 0, nil
}

func (r *Repository) MarkClaimedOffLedger(ctx context.Context, roundID, claimant string, trancheIndex int) error {
	row := offLedgerClaimModel{RoundID: roundID, Claimant: claimant, TrancheIndex: trancheIndex}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyClaimed
		}
		return r.logError("engine_repo_mark_claimed_off_ledger_failed", err, "round_id", roundID)
	}
	return nil
}

func (r *Repository) LifetimeClaimed(ctx context.Context, identity string) (*big.Int, error) {
	var row lifetimeClaimModel
	err := r.db.WithContext(ctx).
		Where("identity = ?", strings.TrimSpace(identity)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, r.logError("engine_repo_lifetime_claimed_failed", err, "identity", identity)
	}
	return parseNumeric(row.Total)
}

func (r *Repository) AddLifetimeClaimed(ctx context.Context, identity string, amount *big.Int) error {
	identity = strings.TrimSpace(identity)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row lifetimeClaimModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("identity = ?", identity).
			First(&row).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&lifetimeClaimModel{Identity: identity, Total: amount.String()}).Error
		}
		if err != nil {
			return err
		}
		total, err := parseNumeric(row.Total)
		if err != nil {
			return err
		}
		total.Add(total, amount)
		return tx.Model(&lifetimeClaimModel{}).
			Where("identity = ?", identity).
			Update("total", total.String()).
			Error
	})
}

func (r *Repository) HasRedeemedResidual(ctx context.Context, identity string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&residualRedemptionModel{}).
		Where("identity = ?", strings.TrimSpace(identity)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("engine_repo_has_redeemed_residual_failed", err, "identity", identity)
	}
	return count > 0, nil
}

func (r *Repository) MarkRedeemedResidual(ctx context.Context, identity string) error {
	row := residualRedemptionModel{Identity: strings.TrimSpace(identity)}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyRedeemed
		}
		return r.logError("engine_repo_mark_redeemed_residual_failed", err, "identity", identity)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, event events.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return r.logError("engine_repo_append_outbox_marshal_failed", err,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	row := engineOutboxModel{
		OutboxID:     strings.TrimSpace(event.EventID),
		EventType:    strings.TrimSpace(event.EventType),
		PartitionKey: strings.TrimSpace(event.EntityID),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    event.OccurredAtUTC.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return r.logError("engine_repo_append_outbox_insert_failed", err,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []engineOutboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("engine_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, outbox.Message{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	publishedAt = publishedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&engineOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &publishedAt,
		})
	if result.Error != nil {
		return r.logError("engine_repo_mark_outbox_published_failed", result.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) flagExists(ctx context.Context, model any, roundID, identity, event string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(model).
		Where("round_id = ?", strings.TrimSpace(roundID)).
		Where("identity = ?", strings.TrimSpace(identity)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError(event, err, "round_id", roundID, "identity", identity)
	}
	return count > 0, nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "recovery-core/distribution-engine",
		"layer", "adapters",
		"error", err.Error(),
	}, args...)
	r.logger.Error("repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.VaultRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
