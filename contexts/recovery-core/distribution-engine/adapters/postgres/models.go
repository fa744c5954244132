package postgresadapter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
)

type vaultStateModel struct {
	VaultID                 string     `gorm:"column:vault_id;primaryKey"`
	PendingPool             string     `gorm:"column:pending_pool"`
	DepositsClosed          bool       `gorm:"column:deposits_closed"`
	FirstExecutedAt         *time.Time `gorm:"column:first_executed_at"`
	LastVetoAt              *time.Time `gorm:"column:last_veto_at"`
	LastVetoInitiator       string     `gorm:"column:last_veto_initiator"`
	TotalClaimedAllRounds   string     `gorm:"column:total_claimed_all_rounds"`
	RedistributionActivated bool       `gorm:"column:redistribution_activated"`
	RedistributionPool      string     `gorm:"column:redistribution_pool"`
	RedistributionRemaining string     `gorm:"column:redistribution_remaining"`
	UpdatedAt               time.Time  `gorm:"column:updated_at"`
}

func (vaultStateModel) TableName() string {
	return "vault_states"
}

type roundModel struct {
	RoundID        string     `gorm:"column:round_id;primaryKey"`
	Sequence       int        `gorm:"column:sequence;uniqueIndex"`
	ProofRoot      []byte     `gorm:"column:proof_root"`
	SnapshotAt     time.Time  `gorm:"column:snapshot_at"`
	Amount         string     `gorm:"column:amount"`
	Initiator      string     `gorm:"column:initiator"`
	Bond           string     `gorm:"column:bond"`
	BondReturned   bool       `gorm:"column:bond_returned"`
	Phase          string     `gorm:"column:phase"`
	InitiatedAt    time.Time  `gorm:"column:initiated_at"`
	ExecutedAt     *time.Time `gorm:"column:executed_at"`
	ObjectionPower string     `gorm:"column:objection_power"`
	TotalPower     string     `gorm:"column:total_power"`
	ClaimedTotal   string     `gorm:"column:claimed_total"`
}

func (roundModel) TableName() string {
	return "distribution_rounds"
}

type roundSnapshotModel struct {
	RoundID      string    `gorm:"column:round_id;primaryKey"`
	SnapshotAt   time.Time `gorm:"column:snapshot_at"`
	Prices       []byte    `gorm:"column:prices"`
	ClaimSupply  []byte    `gorm:"column:claim_supply"`
	BurnedSupply []byte    `gorm:"column:burned_supply"`
	AssetSupply  []byte    `gorm:"column:asset_supply"`
}

func (roundSnapshotModel) TableName() string {
	return "round_snapshots"
}

type trancheStateModel struct {
	RoundID        string `gorm:"column:round_id;primaryKey"`
	TrancheIndex   int    `gorm:"column:tranche_index;primaryKey"`
	Denominator    string `gorm:"column:denominator"`
	Paid           string `gorm:"column:paid"`
	RedemptionRate string `gorm:"column:redemption_rate"`
}

func (trancheStateModel) TableName() string {
	return "tranche_round_states"
}

type objectionModel struct {
	RoundID  string `gorm:"column:round_id;primaryKey"`
	Identity string `gorm:"column:identity;primaryKey"`
}

func (objectionModel) TableName() string {
	return "round_objections"
}

type claimModel struct {
	RoundID  string `gorm:"column:round_id;primaryKey"`
	Identity string `gorm:"column:identity;primaryKey"`
}

func (claimModel) TableName() string {
	return "round_claims"
}

type offLedgerClaimModel struct {
	RoundID      string `gorm:"column:round_id;primaryKey"`
	Claimant     string `gorm:"column:claimant;primaryKey"`
	TrancheIndex int    `gorm:"column:tranche_index;primaryKey"`
}

func (offLedgerClaimModel) TableName() string {
	return "off_ledger_claims"
}

type lifetimeClaimModel struct {
	Identity string `gorm:"column:identity;primaryKey"`
	Total    string `gorm:"column:total"`
}

func (lifetimeClaimModel) TableName() string {
	return "lifetime_claims"
}

type residualRedemptionModel struct {
	Identity string `gorm:"column:identity;primaryKey"`
}

func (residualRedemptionModel) TableName() string {
	return "residual_redemptions"
}

type engineOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (engineOutboxModel) TableName() string {
	return "engine_outbox"
}

func vaultStateToModel(vaultID string, state entities.VaultState) vaultStateModel {
	return vaultStateModel{
		VaultID:                 vaultID,
		PendingPool:             numericString(state.PendingPool),
		DepositsClosed:          state.DepositsClosed,
		FirstExecutedAt:         normalizeOptionalTime(state.FirstExecutedAt),
		LastVetoAt:              normalizeOptionalTime(state.LastVetoAt),
		LastVetoInitiator:       state.LastVetoInitiator,
		TotalClaimedAllRounds:   numericString(state.TotalClaimedAllRounds),
		RedistributionActivated: state.RedistributionActivated,
		RedistributionPool:      numericString(state.RedistributionPool),
		RedistributionRemaining: numericString(state.RedistributionRemaining),
		UpdatedAt:               time.Now().UTC(),
	}
}

func vaultStateFromModel(row vaultStateModel) (entities.VaultState, error) {
	pendingPool, err := parseNumeric(row.PendingPool)
	if err != nil {
		return entities.VaultState{}, err
	}
	totalClaimed, err := parseNumeric(row.TotalClaimedAllRounds)
	if err != nil {
		return entities.VaultState{}, err
	}
	pool, err := parseNumeric(row.RedistributionPool)
	if err != nil {
		return entities.VaultState{}, err
	}
	remaining, err := parseNumeric(row.RedistributionRemaining)
	if err != nil {
		return entities.VaultState{}, err
	}
	return entities.VaultState{
		PendingPool:             pendingPool,
		DepositsClosed:          row.DepositsClosed,
		FirstExecutedAt:         normalizeOptionalTime(row.FirstExecutedAt),
		LastVetoAt:              normalizeOptionalTime(row.LastVetoAt),
		LastVetoInitiator:       row.LastVetoInitiator,
		TotalClaimedAllRounds:   totalClaimed,
		RedistributionActivated: row.RedistributionActivated,
		RedistributionPool:      pool,
		RedistributionRemaining: remaining,
	}, nil
}

func roundToModel(round entities.DistributionRound) roundModel {
	return roundModel{
		RoundID:        round.RoundID,
		Sequence:       round.Sequence,
		ProofRoot:      append([]byte(nil), round.ProofRoot...),
		SnapshotAt:     round.SnapshotAt.UTC(),
		Amount:         numericString(round.Amount),
		Initiator:      round.Initiator,
		Bond:           numericString(round.Bond),
		BondReturned:   round.BondReturned,
		Phase:          string(round.Phase),
		InitiatedAt:    round.InitiatedAt.UTC(),
		ExecutedAt:     normalizeOptionalTime(round.ExecutedAt),
		ObjectionPower: numericString(round.ObjectionPower),
		TotalPower:     numericString(round.TotalPower),
		ClaimedTotal:   numericString(round.ClaimedTotal),
	}
}

func roundFromModel(row roundModel) (entities.DistributionRound, error) {
	amount, err := parseNumeric(row.Amount)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	bond, err := parseNumeric(row.Bond)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	objectionPower, err := parseNumeric(row.ObjectionPower)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	totalPower, err := parseNumeric(row.TotalPower)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	claimedTotal, err := parseNumeric(row.ClaimedTotal)
	if err != nil {
		return entities.DistributionRound{}, err
	}
	return entities.DistributionRound{
		RoundID:        row.RoundID,
		Sequence:       row.Sequence,
		ProofRoot:      append([]byte(nil), row.ProofRoot...),
		SnapshotAt:     row.SnapshotAt.UTC(),
		Amount:         amount,
		Initiator:      row.Initiator,
		Bond:           bond,
		BondReturned:   row.BondReturned,
		Phase:          entities.RoundPhase(row.Phase),
		InitiatedAt:    row.InitiatedAt.UTC(),
		ExecutedAt:     normalizeOptionalTime(row.ExecutedAt),
		ObjectionPower: objectionPower,
		TotalPower:     totalPower,
		ClaimedTotal:   claimedTotal,
	}, nil
}

func snapshotToModel(snapshot entities.RoundSnapshot) (roundSnapshotModel, error) {
	prices, err := json.Marshal(encodeBigMap(snapshot.Prices))
	if err != nil {
		return roundSnapshotModel{}, err
	}
	claimSupply, err := json.Marshal(encodeIntKeyedBigMap(snapshot.ClaimSupply))
	if err != nil {
		return roundSnapshotModel{}, err
	}
	burnedSupply, err := json.Marshal(encodeIntKeyedBigMap(snapshot.BurnedSupply))
	if err != nil {
		return roundSnapshotModel{}, err
	}
	assetSupply, err := json.Marshal(encodeBigMap(snapshot.AssetSupply))
	if err != nil {
		return roundSnapshotModel{}, err
	}
	return roundSnapshotModel{
		RoundID:      snapshot.RoundID,
		SnapshotAt:   snapshot.SnapshotAt.UTC(),
		Prices:       prices,
		ClaimSupply:  claimSupply,
		BurnedSupply: burnedSupply,
		AssetSupply:  assetSupply,
	}, nil
}

func snapshotFromModel(row roundSnapshotModel) (entities.RoundSnapshot, error) {
	prices, err := decodeBigMap(row.Prices)
	if err != nil {
		return entities.RoundSnapshot{}, err
	}
	claimSupply, err := decodeIntKeyedBigMap(row.ClaimSupply)
	if err != nil {
		return entities.RoundSnapshot{}, err
	}
	burnedSupply, err := decodeIntKeyedBigMap(row.BurnedSupply)
	if err != nil {
		return entities.RoundSnapshot{}, err
	}
	assetSupply, err := decodeBigMap(row.AssetSupply)
	if err != nil {
		return entities.RoundSnapshot{}, err
	}
	return entities.RoundSnapshot{
		RoundID:      row.RoundID,
		SnapshotAt:   row.SnapshotAt.UTC(),
		Prices:       prices,
		ClaimSupply:  claimSupply,
		BurnedSupply: burnedSupply,
		AssetSupply:  assetSupply,
	}, nil
}

func trancheStateToModel(state entities.TrancheRoundState) trancheStateModel {
	return trancheStateModel{
		RoundID:        state.RoundID,
		TrancheIndex:   state.TrancheIndex,
		Denominator:    numericString(state.Denominator),
		Paid:           numericString(state.Paid),
		RedemptionRate: numericString(state.RedemptionRate),
	}
}

func trancheStateFromModel(row trancheStateModel) (entities.TrancheRoundState, error) {
	denominator, err := parseNumeric(row.Denominator)
	if err != nil {
		return entities.TrancheRoundState{}, err
	}
	paid, err := parseNumeric(row.Paid)
	if err != nil {
		return entities.TrancheRoundState{}, err
	}
	rate, err := parseNumeric(row.RedemptionRate)
	if err != nil {
		return entities.TrancheRoundState{}, err
	}
	return entities.TrancheRoundState{
		RoundID:        row.RoundID,
		TrancheIndex:   row.TrancheIndex,
		Denominator:    denominator,
		Paid:           paid,
		RedemptionRate: rate,
	}, nil
}

func encodeBigMap(in map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = numericString(value)
	}
	return out
}

func decodeBigMap(raw []byte) (map[string]*big.Int, error) {
	if len(raw) == 0 {
		return map[string]*big.Int{}, nil
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	out := make(map[string]*big.Int, len(encoded))
	for key, value := range encoded {
		parsed, err := parseNumeric(value)
		if err != nil {
			return nil, err
		}
		out[key] = parsed
	}
	return out, nil
}

func encodeIntKeyedBigMap(in map[int]*big.Int) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[strconv.Itoa(key)] = numericString(value)
	}
	return out
}

func decodeIntKeyedBigMap(raw []byte) (map[int]*big.Int, error) {
	encoded, err := decodeBigMap(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[int]*big.Int, len(encoded))
	for key, value := range encoded {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, err
		}
		out[index] = value
	}
	return out, nil
}

func numericString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric column value %q", raw)
	}
	return value, nil
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := value.UTC()
	return &t
}
