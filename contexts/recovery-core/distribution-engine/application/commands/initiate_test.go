package commands_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/adapters/memory"
	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
)

func TestInitiateOpensRoundAndFreezesSnapshot(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	if round.Sequence != 0 || round.Phase != entities.PhaseInitiated {
		t.Fatalf("round = seq %d phase %s", round.Sequence, round.Phase)
	}
	if round.Amount.Int64() != 400_000 {
		t.Fatalf("round amount = %s, want 400000", round.Amount)
	}
	if round.TotalPower.Int64() != 1_000_000 {
		t.Fatalf("total objection power = %s, want 1000000", round.TotalPower)
	}
	if !bytes.Equal(round.ProofRoot, testProofRoot()) {
		t.Fatalf("proof root not carried")
	}

	state, err := store.GetVaultState(ctx)
	if err != nil {
		t.Fatalf("vault state failed: %v", err)
	}
	if state.PendingPool.Sign() != 0 {
		t.Fatalf("pending pool = %s after initiation, want 0", state.PendingPool)
	}
	if !state.DepositsClosed {
		t.Fatalf("wrapped-only initiation must close deposits")
	}
	if !store.TransfersPaused() {
		t.Fatalf("claim-record transfers must pause for the objection window")
	}
	// Bond left the initiator's account.
	if balance := store.RecoveryBalance(initiator); balance.Int64() != 9_000 {
		t.Fatalf("initiator balance = %s, want 9000", balance)
	}

	snapshot, err := store.GetSnapshot(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Prices["bond-sr"].Cmp(unit(1)) != 0 {
		t.Fatalf("snapshotted price = %s", snapshot.Prices["bond-sr"])
	}
	if snapshot.ClaimSupply[0].Int64() != 800_000 || snapshot.ClaimSupply[1].Int64() != 200_000 {
		t.Fatalf("snapshotted supplies = %s / %s", snapshot.ClaimSupply[0], snapshot.ClaimSupply[1])
	}
	if len(snapshot.AssetSupply) != 0 {
		t.Fatalf("wrapped-only snapshot should not record asset supplies")
	}

	states, err := store.ListTrancheStates(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("tranche states failed: %v", err)
	}
	if states[0].Denominator.Int64() != 800_000 || states[1].Denominator.Int64() != 200_000 {
		t.Fatalf("denominators = %s / %s", states[0].Denominator, states[1].Denominator)
	}
	if states[0].Paid.Sign() != 0 || states[0].RedemptionRate.Sign() != 0 {
		t.Fatalf("fresh round should start unpaid")
	}
}

func TestInitiateValidation(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()
	now := store.Now()

	valid := commands.InitiateCommand{
		Initiator:  initiator,
		ProofRoot:  testProofRoot(),
		SnapshotAt: now,
		Bond:       big.NewInt(1_000),
	}

	cmd := valid
	cmd.Initiator = " "
	if _, err := uc.Initiate(ctx, cmd); !errors.Is(err, domainerrors.ErrZeroAmount) {
		t.Fatalf("blank initiator: got %v", err)
	}
	cmd = valid
	cmd.ProofRoot = nil
	if _, err := uc.Initiate(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidProofRoot) {
		t.Fatalf("empty root: got %v", err)
	}
	cmd = valid
	cmd.SnapshotAt = now.Add(time.Hour)
	if _, err := uc.Initiate(ctx, cmd); !errors.Is(err, domainerrors.ErrInvalidSnapshotRef) {
		t.Fatalf("future snapshot: got %v", err)
	}
	cmd = valid
	cmd.Bond = big.NewInt(999)
	if _, err := uc.Initiate(ctx, cmd); !errors.Is(err, domainerrors.ErrInsufficientBond) {
		t.Fatalf("under-bonded: got %v", err)
	}
	// Nothing recovered yet.
	if _, err := uc.Initiate(ctx, valid); !errors.Is(err, domainerrors.ErrNoPendingFunds) {
		t.Fatalf("empty pool: got %v", err)
	}

	openRound(t, uc, store, 400_000, testProofRoot())
	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(50_000)); err != nil {
		t.Fatalf("recovery deposit failed: %v", err)
	}
	if _, err := uc.Initiate(ctx, valid); !errors.Is(err, domainerrors.ErrRoundActive) {
		t.Fatalf("concurrent round: got %v", err)
	}
}

func TestInitiateAfterVetoEnforcesCooldownAndBan(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	result, err := uc.Object(ctx, round.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("objection failed: %v", err)
	}
	if !result.Vetoed {
		t.Fatalf("80%% objection weight should veto")
	}

	retry := commands.InitiateCommand{
		Initiator:  initiator,
		ProofRoot:  testProofRoot(),
		SnapshotAt: store.Now(),
		Bond:       big.NewInt(1_000),
	}
	if _, err := uc.Initiate(ctx, retry); !errors.Is(err, domainerrors.ErrVetoCooldownActive) {
		t.Fatalf("inside cooldown: got %v", err)
	}

	store.Advance(25 * time.Hour)
	retry.SnapshotAt = store.Now()
	if _, err := uc.Initiate(ctx, retry); !errors.Is(err, domainerrors.ErrVetoedInitiator) {
		t.Fatalf("vetoed initiator retried: got %v", err)
	}

	// Anyone else may reopen once the cooldown has lapsed.
	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(1_000)); err != nil {
		t.Fatalf("recovery deposit failed: %v", err)
	}
	retry.Initiator = recoverer
	next, err := uc.Initiate(ctx, retry)
	if err != nil {
		t.Fatalf("post-cooldown initiation failed: %v", err)
	}
	if next.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", next.Sequence)
	}
	// The vetoed amount rejoined the pool and rides along with new funds.
	if next.Amount.Int64() != 401_000 {
		t.Fatalf("reopened amount = %s, want 401000", next.Amount)
	}
}

func TestInitiateWholeSupplyDenominators(t *testing.T) {
	config := testConfig()
	config.Mode = entities.ModeWholeSupply
	seed := testSeed()
	seed.AssetSupplies = map[string]*big.Int{
		"bond-sr": big.NewInt(1_600_000),
		"bond-jr": big.NewInt(400_000),
	}
	uc, store := newEngine(t, config, commands.DefaultParams(), seed)
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	states, err := store.ListTrancheStates(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("tranche states failed: %v", err)
	}
	// Full outstanding supply counts, not just what was wrapped.
	if states[0].Denominator.Int64() != 1_600_000 || states[1].Denominator.Int64() != 400_000 {
		t.Fatalf("denominators = %s / %s", states[0].Denominator, states[1].Denominator)
	}

	state, err := store.GetVaultState(ctx)
	if err != nil {
		t.Fatalf("vault state failed: %v", err)
	}
	if state.DepositsClosed {
		t.Fatalf("whole-supply mode keeps deposits open")
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: smallHolder, AssetID: "bond-sr", Amount: big.NewInt(10_000),
	}); err != nil {
		t.Fatalf("post-initiation deposit should stay open: %v", err)
	}
}

func TestInitiateCountsOffLedgerClaimsInDenominator(t *testing.T) {
	config := testConfig()
	config.OffLedgerClaims = []entities.OffLedgerClaim{{
		ClaimID:      "olc-1",
		Claimant:     "estate-17",
		TrancheIndex: 0,
		Amount:       big.NewInt(100_000),
		LegalHash:    bytes.Repeat([]byte{0x5C}, 32),
	}}
	uc, store := newEngine(t, config, commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)

	round := openRound(t, uc, store, 400_000, testProofRoot())
	states, err := store.ListTrancheStates(context.Background(), round.RoundID)
	if err != nil {
		t.Fatalf("tranche states failed: %v", err)
	}
	if states[0].Denominator.Int64() != 900_000 {
		t.Fatalf("senior denominator = %s, want 900000", states[0].Denominator)
	}
}

func TestInitiateRejectsUnfundedBond(t *testing.T) {
	seed := memory.Seed{
		Now: baseTime,
		RecoveryBalances: map[string]*big.Int{
			recoverer: big.NewInt(500_000),
		},
		AssetHoldings: testSeed().AssetHoldings,
	}
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), seed)
	depositStandardHoldings(t, uc)
	if err := uc.DepositRecovery(context.Background(), recoverer, big.NewInt(400_000)); err != nil {
		t.Fatalf("recovery deposit failed: %v", err)
	}

	_, err := uc.Initiate(context.Background(), commands.InitiateCommand{
		Initiator:  "penniless",
		ProofRoot:  testProofRoot(),
		SnapshotAt: store.Now(),
		Bond:       big.NewInt(1_000),
	})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
