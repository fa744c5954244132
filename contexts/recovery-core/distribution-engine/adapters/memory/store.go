package memory

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/internal/shared/events"
	"remnant/internal/shared/outbox"
)

// Seed primes external balances for a fresh store.
type Seed struct {
	Now              time.Time
	RecoveryBalances map[string]*big.Int
	AssetHoldings    map[string]map[string]*big.Int
	AssetSupplies    map[string]*big.Int
}

type roundRecord struct {
	round    entities.DistributionRound
	snapshot entities.RoundSnapshot
	states   []entities.TrancheRoundState
}

// Store is the single-ledger in-memory adapter. One mutex serializes every
// state transition, standing in for the atomic serially-ordered execution
// model: no operation can observe another mid-flight.
type Store struct {
	mu sync.Mutex

	now time.Time

	state  entities.VaultState
	rounds map[string]*roundRecord
	order  []string

	objected         map[string]map[string]bool
	claimed          map[string]map[string]bool
	offLedgerClaimed map[string]bool
	lifetime         map[string]*big.Int
	residualRedeemed map[string]bool

	balances        map[int]map[string]*big.Int
	supplies        map[int]*big.Int
	burnedSupplies  map[int]*big.Int
	transfersPaused bool

	recoveryAccounts map[string]*big.Int
	vaultBalance     *big.Int

	assetHoldings map[string]map[string]*big.Int
	assetVault    map[string]*big.Int
	assetSupplies map[string]*big.Int

	outboxRows map[string]outbox.Message
	outboxIDs  []string
}

func NewStore(seed Seed) *Store {
	s := &Store{
		now:              seed.Now,
		state:            entities.NewVaultState(),
		rounds:           make(map[string]*roundRecord),
		objected:         make(map[string]map[string]bool),
		claimed:          make(map[string]map[string]bool),
		offLedgerClaimed: make(map[string]bool),
		lifetime:         make(map[string]*big.Int),
		residualRedeemed: make(map[string]bool),
		balances:         make(map[int]map[string]*big.Int),
		supplies:         make(map[int]*big.Int),
		burnedSupplies:   make(map[int]*big.Int),
		recoveryAccounts: make(map[string]*big.Int),
		vaultBalance:     big.NewInt(0),
		assetHoldings:    make(map[string]map[string]*big.Int),
		assetVault:       make(map[string]*big.Int),
		assetSupplies:    make(map[string]*big.Int),
		outboxRows:       make(map[string]outbox.Message),
	}
	for account, balance := range seed.RecoveryBalances {
		s.recoveryAccounts[account] = new(big.Int).Set(balance)
	}
	for assetID, holders := range seed.AssetHoldings {
		s.assetHoldings[assetID] = make(map[string]*big.Int, len(holders))
		for holder, balance := range holders {
			s.assetHoldings[assetID][holder] = new(big.Int).Set(balance)
		}
	}
	for assetID, supply := range seed.AssetSupplies {
		s.assetSupplies[assetID] = new(big.Int).Set(supply)
	}
	return s
}

// Clock

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

// SetNow pins the store clock; Advance moves it forward. Test hooks.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

// IDGenerator

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// VaultRepository

func (s *Store) GetVaultState(_ context.Context) (entities.VaultState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state), nil
}

func (s *Store) SaveVaultState(_ context.Context, state entities.VaultState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = copyState(state)
	return nil
}

func (s *Store) CreateRound(
	_ context.Context,
	round entities.DistributionRound,
	snapshot entities.RoundSnapshot,
	states []entities.TrancheRoundState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rounds[round.RoundID]; exists {
		return domainerrors.ErrRoundActive
	}
	s.rounds[round.RoundID] = &roundRecord{
		round:    copyRound(round),
		snapshot: copySnapshot(snapshot),
		states:   copyStates(states),
	}
	s.order = append(s.order, round.RoundID)
	return nil
}

func (s *Store) GetRound(_ context.Context, roundID string) (entities.DistributionRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.rounds[strings.TrimSpace(roundID)]
	if !exists {
		return entities.DistributionRound{}, domainerrors.ErrRoundNotFound
	}
	return copyRound(record.round), nil
}

func (s *Store) LatestRound(_ context.Context) (entities.DistributionRound, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return entities.DistributionRound{}, false, nil
	}
	return copyRound(s.rounds[s.order[len(s.order)-1]].round), true, nil
}

func (s *Store) SaveRound(_ context.Context, round entities.DistributionRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.rounds[round.RoundID]
	if !exists {
		return domainerrors.ErrRoundNotFound
	}
	record.round = copyRound(round)
	return nil
}

func (s *Store) ListRounds(_ context.Context, offset, limit int) ([]entities.DistributionRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.order) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(s.order) {
		end = len(s.order)
	}
	rounds := make([]entities.DistributionRound, 0, end-offset)
	for _, roundID := range s.order[offset:end] {
		rounds = append(rounds, copyRound(s.rounds[roundID].round))
	}
	return rounds, nil
}

func (s *Store) GetSnapshot(_ context.Context, roundID string) (entities.RoundSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.rounds[strings.TrimSpace(roundID)]
	if !exists {
		return entities.RoundSnapshot{}, domainerrors.ErrRoundNotFound
	}
	return copySnapshot(record.snapshot), nil
}

func (s *Store) ListTrancheStates(_ context.Context, roundID string) ([]entities.TrancheRoundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.rounds[strings.TrimSpace(roundID)]
	if !exists {
		return nil, domainerrors.ErrRoundNotFound
	}
	states := copyStates(record.states)
	sort.Slice(states, func(i, j int) bool { return states[i].TrancheIndex < states[j].TrancheIndex })
	return states, nil
}

func (s *Store) SaveTrancheStates(_ context.Context, states []entities.TrancheRoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(states) == 0 {
		return nil
	}
	record, exists := s.rounds[states[0].RoundID]
	if !exists {
		return domainerrors.ErrRoundNotFound
	}
	record.states = copyStates(states)
	return nil
}

func (s *Store) HasObjected(_ context.Context, roundID, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objected[roundID][identity], nil
}

func (s *Store) MarkObjected(_ context.Context, roundID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objected[roundID] == nil {
		s.objected[roundID] = make(map[string]bool)
	}
	s.objected[roundID][identity] = true
	return nil
}

func (s *Store) HasClaimed(_ context.Context, roundID, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed[roundID][identity], nil
}

func (s *Store) MarkClaimed(_ context.Context, roundID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[roundID] == nil {
		s.claimed[roundID] = make(map[string]bool)
	}
	s.claimed[roundID][identity] = true
	return nil
}

func offLedgerKey(roundID, claimant string, trancheIndex int) string {
	return roundID + "|" + claimant + "|" + strconv.Itoa(trancheIndex)
}

func (s *Store) HasClaimedOffLedger(_ context.Context, roundID, claimant string, trancheIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offLedgerClaimed[offLedgerKey(roundID, claimant, trancheIndex)], nil
}

func (s *Store) MarkClaimedOffLedger(_ context.Context, roundID, claimant string, trancheIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offLedgerClaimed[offLedgerKey(roundID, claimant, trancheIndex)] = true
	return nil
}

func (s *Store) LifetimeClaimed(_ context.Context, identity string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total, ok := s.lifetime[identity]; ok {
		return new(big.Int).Set(total), nil
	}
	return big.NewInt(0), nil
}

func (s *Store) AddLifetimeClaimed(_ context.Context, identity string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, ok := s.lifetime[identity]
	if !ok {
		total = big.NewInt(0)
	}
	s.lifetime[identity] = new(big.Int).Add(total, amount)
	return nil
}

func (s *Store) HasRedeemedResidual(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.residualRedeemed[identity], nil
}

func (s *Store) MarkRedeemedResidual(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.residualRedeemed[identity] = true
	return nil
}

// ClaimRecordLedger

func (s *Store) Mint(_ context.Context, trancheIndex int, holder string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}
	if s.balances[trancheIndex] == nil {
		s.balances[trancheIndex] = make(map[string]*big.Int)
	}
	balance := s.balances[trancheIndex][holder]
	if balance == nil {
		balance = big.NewInt(0)
	}
	s.balances[trancheIndex][holder] = new(big.Int).Add(balance, amount)
	supply := s.supplies[trancheIndex]
	if supply == nil {
		supply = big.NewInt(0)
	}
	s.supplies[trancheIndex] = new(big.Int).Add(supply, amount)
	return nil
}

func (s *Store) Burn(_ context.Context, trancheIndex int, holder string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}
	balance := s.balances[trancheIndex][holder]
	if balance == nil || balance.Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	s.balances[trancheIndex][holder] = new(big.Int).Sub(balance, amount)
	s.supplies[trancheIndex] = new(big.Int).Sub(s.supplies[trancheIndex], amount)
	burned := s.burnedSupplies[trancheIndex]
	if burned == nil {
		burned = big.NewInt(0)
	}
	s.burnedSupplies[trancheIndex] = new(big.Int).Add(burned, amount)
	return nil
}

func (s *Store) BalanceOf(_ context.Context, trancheIndex int, holder string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance, ok := s.balances[trancheIndex][holder]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (s *Store) TotalSupply(_ context.Context, trancheIndex int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if supply, ok := s.supplies[trancheIndex]; ok {
		return new(big.Int).Set(supply), nil
	}
	return big.NewInt(0), nil
}

func (s *Store) TotalBurned(_ context.Context, trancheIndex int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if burned, ok := s.burnedSupplies[trancheIndex]; ok {
		return new(big.Int).Set(burned), nil
	}
	return big.NewInt(0), nil
}

func (s *Store) SetTransfersPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfersPaused = paused
	return nil
}

// TransfersPaused exposes the pause switch for issuer integrations.
func (s *Store) TransfersPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfersPaused
}

// RecoveryFunds

func (s *Store) Deposit(_ context.Context, from string, amount *big.Int) error {
	return s.moveIntoVault(from, amount)
}

func (s *Store) Collect(ctx context.Context, from string, amount *big.Int) error {
	return s.moveIntoVault(from, amount)
}

func (s *Store) moveIntoVault(from string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}
	balance := s.recoveryAccounts[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	s.recoveryAccounts[from] = new(big.Int).Sub(balance, amount)
	s.vaultBalance = new(big.Int).Add(s.vaultBalance, amount)
	return nil
}

func (s *Store) Transfer(_ context.Context, to string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}
	if s.vaultBalance.Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	s.vaultBalance = new(big.Int).Sub(s.vaultBalance, amount)
	balance := s.recoveryAccounts[to]
	if balance == nil {
		balance = big.NewInt(0)
	}
	s.recoveryAccounts[to] = new(big.Int).Add(balance, amount)
	return nil
}

func (s *Store) VaultBalance(_ context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.vaultBalance), nil
}

// RecoveryBalance reads an external account's recovery-asset balance.
func (s *Store) RecoveryBalance(account string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance, ok := s.recoveryAccounts[account]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// UnderlyingAssets. Collect and TotalSupply clash with the recovery-funds
// and claim-ledger method sets, so the asset side lives behind a view.

type AssetLedger struct {
	store *Store
}

// Assets returns the store's underlying-asset face.
func (s *Store) Assets() *AssetLedger {
	return &AssetLedger{store: s}
}

func (a *AssetLedger) Collect(ctx context.Context, assetID, from string, amount *big.Int) error {
	return a.store.collectAsset(assetID, from, amount)
}

func (a *AssetLedger) TotalSupply(ctx context.Context, assetID string) (*big.Int, error) {
	return a.store.assetSupply(assetID)
}

func (s *Store) collectAsset(assetID, from string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return domainerrors.ErrZeroAmount
	}
	holders := s.assetHoldings[assetID]
	balance := holders[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return domainerrors.ErrInsufficientFunds
	}
	holders[from] = new(big.Int).Sub(balance, amount)
	vault := s.assetVault[assetID]
	if vault == nil {
		vault = big.NewInt(0)
	}
	s.assetVault[assetID] = new(big.Int).Add(vault, amount)
	return nil
}

func (s *Store) assetSupply(assetID string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if supply, ok := s.assetSupplies[assetID]; ok {
		return new(big.Int).Set(supply), nil
	}
	return big.NewInt(0), nil
}

// OutboxWriter / OutboxRepository

func (s *Store) AppendOutbox(_ context.Context, event events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := outbox.Message{
		OutboxID:     uuid.NewString(),
		EventType:    event.EventType,
		PartitionKey: event.EntityID,
		Payload:      payload,
		CreatedAt:    event.OccurredAtUTC,
	}
	s.outboxRows[row.OutboxID] = row
	s.outboxIDs = append(s.outboxIDs, row.OutboxID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make([]outbox.Message, 0, limit)
	for _, id := range s.outboxIDs {
		row := s.outboxRows[id]
		if row.PublishedAt != nil {
			continue
		}
		pending = append(pending, row)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, exists := s.outboxRows[outboxID]
	if !exists {
		return domainerrors.ErrRoundNotFound
	}
	row.PublishedAt = &publishedAt
	s.outboxRows[outboxID] = row
	return nil
}

// copy helpers keep callers from aliasing internal big.Int state.

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func copyState(state entities.VaultState) entities.VaultState {
	out := state
	out.PendingPool = copyBig(state.PendingPool)
	out.TotalClaimedAllRounds = copyBig(state.TotalClaimedAllRounds)
	out.RedistributionPool = copyBig(state.RedistributionPool)
	out.RedistributionRemaining = copyBig(state.RedistributionRemaining)
	return out
}

func copyRound(round entities.DistributionRound) entities.DistributionRound {
	out := round
	out.ProofRoot = append([]byte(nil), round.ProofRoot...)
	out.Amount = copyBig(round.Amount)
	out.Bond = copyBig(round.Bond)
	out.ObjectionPower = copyBig(round.ObjectionPower)
	out.TotalPower = copyBig(round.TotalPower)
	out.ClaimedTotal = copyBig(round.ClaimedTotal)
	return out
}

func copySnapshot(snapshot entities.RoundSnapshot) entities.RoundSnapshot {
	out := snapshot
	out.Prices = make(map[string]*big.Int, len(snapshot.Prices))
	for key, value := range snapshot.Prices {
		out.Prices[key] = copyBig(value)
	}
	out.ClaimSupply = make(map[int]*big.Int, len(snapshot.ClaimSupply))
	for key, value := range snapshot.ClaimSupply {
		out.ClaimSupply[key] = copyBig(value)
	}
	out.BurnedSupply = make(map[int]*big.Int, len(snapshot.BurnedSupply))
	for key, value := range snapshot.BurnedSupply {
		out.BurnedSupply[key] = copyBig(value)
	}
	out.AssetSupply = make(map[string]*big.Int, len(snapshot.AssetSupply))
	for key, value := range snapshot.AssetSupply {
		out.AssetSupply[key] = copyBig(value)
	}
	return out
}

func copyStates(states []entities.TrancheRoundState) []entities.TrancheRoundState {
	out := make([]entities.TrancheRoundState, len(states))
	for i, state := range states {
		copied := state
		copied.Denominator = copyBig(state.Denominator)
		copied.Paid = copyBig(state.Paid)
		copied.RedemptionRate = copyBig(state.RedemptionRate)
		out[i] = copied
	}
	return out
}
