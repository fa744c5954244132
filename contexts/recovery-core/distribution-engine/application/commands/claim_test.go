package commands_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/internal/shared/merkle"
)

func TestClaimBurnsRecordsAndPaysOut(t *testing.T) {
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	executeAfterWindow(t, uc, store, round.RoundID)

	result, err := uc.Claim(ctx, round.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if result.Payout.Int64() != 400_000 {
		t.Fatalf("payout = %s, want 400000", result.Payout)
	}
	if result.Burned[0].Int64() != 400_000 {
		t.Fatalf("burned = %s, want 400000", result.Burned[0])
	}
	if balance := store.RecoveryBalance(seniorHolder); balance.Int64() != 400_000 {
		t.Fatalf("holder recovery balance = %s, want 400000", balance)
	}
	remaining, err := store.BalanceOf(ctx, 0, seniorHolder)
	if err != nil || remaining.Int64() != 400_000 {
		t.Fatalf("remaining claim records = %s, err %v", remaining, err)
	}

	claimed, err := store.GetRound(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("round read failed: %v", err)
	}
	if claimed.ClaimedTotal.Int64() != 400_000 {
		t.Fatalf("round claimed total = %s", claimed.ClaimedTotal)
	}

	if _, err := uc.Claim(ctx, round.RoundID, seniorHolder); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("double claim: got %v", err)
	}
	// Junior tranche received nothing this round.
	if _, err := uc.Claim(ctx, round.RoundID, juniorHolder); !errors.Is(err, domainerrors.ErrNothingToRedeem) {
		t.Fatalf("junior claim: got %v", err)
	}
}

func TestClaimRequiresExecutedRound(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	if _, err := uc.Claim(ctx, round.RoundID, seniorHolder); !errors.Is(err, domainerrors.ErrRoundNotExecuted) {
		t.Fatalf("claim before execution: got %v", err)
	}
	if _, err := uc.Claim(ctx, "no-such-round", seniorHolder); !errors.Is(err, domainerrors.ErrRoundNotFound) {
		t.Fatalf("unknown round: got %v", err)
	}
	if _, err := uc.Claim(ctx, round.RoundID, ""); !errors.Is(err, domainerrors.ErrZeroAmount) {
		t.Fatalf("blank holder: got %v", err)
	}
}

func TestClaimCapsTheBurnAtTheBalance(t *testing.T) {
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), testSeed())
	ctx := context.Background()
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: seniorHolder, AssetID: "bond-sr", Amount: big.NewInt(100_000),
	}); err != nil {
		t.Fatalf("senior deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: juniorHolder, AssetID: "bond-jr", Amount: big.NewInt(100_000),
	}); err != nil {
		t.Fatalf("junior deposit failed: %v", err)
	}

	round := openRound(t, uc, store, 300_000, testProofRoot())
	executeAfterWindow(t, uc, store, round.RoundID)

	// Junior rate is 2.0 after the bonus: payout doubles the balance, the
	// burn cannot.
	result, err := uc.Claim(ctx, round.RoundID, juniorHolder)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if result.Payout.Int64() != 200_000 {
		t.Fatalf("payout = %s, want 200000", result.Payout)
	}
	if result.Burned[1].Int64() != 100_000 {
		t.Fatalf("burned = %s, want 100000", result.Burned[1])
	}
	balance, err := store.BalanceOf(ctx, 1, juniorHolder)
	if err != nil || balance.Sign() != 0 {
		t.Fatalf("junior balance = %s, err %v", balance, err)
	}
}

func TestClaimBatchSkipsSettledRounds(t *testing.T) {
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	first := openRound(t, uc, store, 400_000, testProofRoot())
	executeAfterWindow(t, uc, store, first.RoundID)
	second := openRound(t, uc, store, 500_000, testProofRoot())
	executeAfterWindow(t, uc, store, second.RoundID)

	if _, err := uc.Claim(ctx, first.RoundID, seniorHolder); err != nil {
		t.Fatalf("direct claim failed: %v", err)
	}

	// Round one is already settled for this holder; round two still pays.
	results, err := uc.ClaimBatch(ctx, []string{first.RoundID, second.RoundID}, seniorHolder)
	if err != nil {
		t.Fatalf("claim batch failed: %v", err)
	}
	if len(results) != 1 || results[0].RoundID != second.RoundID {
		t.Fatalf("batch results = %+v", results)
	}
	// Rate reached 1.0 in round two; the remaining 400k of records redeem
	// at par.
	if results[0].Payout.Int64() != 400_000 {
		t.Fatalf("batch payout = %s, want 400000", results[0].Payout)
	}

	if _, err := uc.ClaimBatch(ctx, []string{first.RoundID, second.RoundID}, seniorHolder); !errors.Is(err, domainerrors.ErrNothingToRedeem) {
		t.Fatalf("exhausted batch: got %v", err)
	}
}

func TestClaimOffLedgerWithMembershipProof(t *testing.T) {
	legalHash := bytes.Repeat([]byte{0x5C}, 32)
	config := testConfig()
	config.OffLedgerClaims = []entities.OffLedgerClaim{{
		ClaimID:      "olc-1",
		Claimant:     "estate-17",
		TrancheIndex: 0,
		Amount:       big.NewInt(100_000),
		LegalHash:    legalHash,
	}}
	uc, store := newEngine(t, config, zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	snapshotAt := store.Now()
	offLedgerLeaf := merkle.LeafOffLedger("estate-17", 0, big.NewInt(100_000), legalHash, snapshotAt)
	tree := merkle.NewTree([][]byte{
		offLedgerLeaf,
		merkle.LeafOnLedger(seniorHolder, 0, big.NewInt(800_000), snapshotAt),
	})
	proof, ok := tree.Prove(offLedgerLeaf)
	if !ok {
		t.Fatalf("off-ledger leaf missing from tree")
	}

	// Senior denominator is 900k with the off-ledger claim; 450k recovers
	// half of it.
	round := openRound(t, uc, store, 450_000, tree.Root())
	executeAfterWindow(t, uc, store, round.RoundID)

	payout, err := uc.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID:      round.RoundID,
		Claimant:     "estate-17",
		TrancheIndex: 0,
		Amount:       big.NewInt(100_000),
		LegalHash:    legalHash,
		Proof:        proof,
	})
	if err != nil {
		t.Fatalf("off-ledger claim failed: %v", err)
	}
	if payout.Int64() != 50_000 {
		t.Fatalf("payout = %s, want 50000", payout)
	}
	if balance := store.RecoveryBalance("estate-17"); balance.Int64() != 50_000 {
		t.Fatalf("claimant balance = %s, want 50000", balance)
	}
	// No claim records existed for the claim, so none were burned.
	supply, err := store.TotalSupply(ctx, 0)
	if err != nil || supply.Int64() != 800_000 {
		t.Fatalf("claim supply = %s, err %v", supply, err)
	}

	if _, err := uc.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID: round.RoundID, Claimant: "estate-17", TrancheIndex: 0,
		Amount: big.NewInt(100_000), LegalHash: legalHash, Proof: proof,
	}); !errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		t.Fatalf("repeat off-ledger claim: got %v", err)
	}
}

func TestClaimOffLedgerRejectsMismatchedContents(t *testing.T) {
	legalHash := bytes.Repeat([]byte{0x5C}, 32)
	config := testConfig()
	config.OffLedgerClaims = []entities.OffLedgerClaim{{
		ClaimID:      "olc-1",
		Claimant:     "estate-17",
		TrancheIndex: 0,
		Amount:       big.NewInt(100_000),
		LegalHash:    legalHash,
	}}
	uc, store := newEngine(t, config, zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	snapshotAt := store.Now()
	offLedgerLeaf := merkle.LeafOffLedger("estate-17", 0, big.NewInt(100_000), legalHash, snapshotAt)
	tree := merkle.NewTree([][]byte{
		offLedgerLeaf,
		merkle.LeafOnLedger(seniorHolder, 0, big.NewInt(800_000), snapshotAt),
	})
	proof, _ := tree.Prove(offLedgerLeaf)

	round := openRound(t, uc, store, 450_000, tree.Root())
	executeAfterWindow(t, uc, store, round.RoundID)

	// Inflated amount breaks the leaf encoding, so the proof fails.
	if _, err := uc.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID: round.RoundID, Claimant: "estate-17", TrancheIndex: 0,
		Amount: big.NewInt(200_000), LegalHash: legalHash, Proof: proof,
	}); !errors.Is(err, domainerrors.ErrProofInvalid) {
		t.Fatalf("inflated amount: got %v", err)
	}
	if _, err := uc.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID: round.RoundID, Claimant: "estate-17", TrancheIndex: 9,
		Amount: big.NewInt(100_000), LegalHash: legalHash, Proof: proof,
	}); !errors.Is(err, domainerrors.ErrInvalidTrancheIndex) {
		t.Fatalf("out-of-range tranche: got %v", err)
	}
	if _, err := uc.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID: round.RoundID, Claimant: "estate-17", TrancheIndex: 0,
		Amount: big.NewInt(0), LegalHash: legalHash, Proof: proof,
	}); !errors.Is(err, domainerrors.ErrZeroAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
}

func TestClaimAcrossTwoTranches(t *testing.T) {
	seed := testSeed()
	seed.AssetHoldings["bond-jr"][seniorHolder] = big.NewInt(100_000)
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), seed)
	ctx := context.Background()
	// One holder wraps into both tranches.
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: seniorHolder, AssetID: "bond-sr", Amount: big.NewInt(800_000),
	}); err != nil {
		t.Fatalf("senior deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: juniorHolder, AssetID: "bond-jr", Amount: big.NewInt(100_000),
	}); err != nil {
		t.Fatalf("junior deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: seniorHolder, AssetID: "bond-jr", Amount: big.NewInt(100_000),
	}); err != nil {
		t.Fatalf("cross-tranche deposit failed: %v", err)
	}

	// 1,000,000 covers both tranches in full.
	round := openRound(t, uc, store, 1_000_000, testProofRoot())
	executeAfterWindow(t, uc, store, round.RoundID)

	result, err := uc.Claim(ctx, round.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if result.Payout.Int64() != 900_000 {
		t.Fatalf("cross-tranche payout = %s, want 900000", result.Payout)
	}
	if result.Burned[0].Int64() != 800_000 || result.Burned[1].Int64() != 100_000 {
		t.Fatalf("burned = %s / %s", result.Burned[0], result.Burned[1])
	}
}

func TestClaimPreservesRecordsWhenVaultUnderfunded(t *testing.T) {
	config := testConfig()
	config.Policy = entities.PolicyDonate
	config.TreasuryID = treasury
	uc, store := newEngine(t, config, zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	executeAfterWindow(t, uc, store, round.RoundID)

	// Donating the residual after the deadline empties the vault while the
	// senior entitlement is still outstanding.
	store.Advance(uc.Params.UnclaimedDeadline + time.Hour)
	if _, err := uc.DistributeUnclaimed(ctx); err != nil {
		t.Fatalf("redistribution failed: %v", err)
	}

	if _, err := uc.Claim(ctx, round.RoundID, seniorHolder); !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("underfunded claim: got %v", err)
	}
	balance, err := store.BalanceOf(ctx, 0, seniorHolder)
	if err != nil || balance.Int64() != 800_000 {
		t.Fatalf("balance after failed claim = %s, err %v, want 800000 intact", balance, err)
	}
	if _, err := uc.Claim(ctx, round.RoundID, seniorHolder); !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("retry must not hit the claimed flag: got %v", err)
	}

	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(500_000)); err != nil {
		t.Fatalf("refunding deposit failed: %v", err)
	}
	result, err := uc.Claim(ctx, round.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("claim after refunding failed: %v", err)
	}
	if result.Payout.Int64() != 400_000 {
		t.Fatalf("payout = %s, want 400000", result.Payout)
	}
}

func TestClaimBatchSkipsUnfundedRounds(t *testing.T) {
	config := testConfig()
	config.Policy = entities.PolicyDonate
	config.TreasuryID = treasury
	uc, store := newEngine(t, config, zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	first := openRound(t, uc, store, 100_000, testProofRoot())
	executeAfterWindow(t, uc, store, first.RoundID)
	second := openRound(t, uc, store, 700_000, testProofRoot())
	executeAfterWindow(t, uc, store, second.RoundID)

	store.Advance(uc.Params.UnclaimedDeadline + time.Hour)
	if _, err := uc.DistributeUnclaimed(ctx); err != nil {
		t.Fatalf("redistribution failed: %v", err)
	}
	// Enough for the first round's 100k entitlement, not the second's 700k.
	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(150_000)); err != nil {
		t.Fatalf("partial refunding deposit failed: %v", err)
	}

	results, err := uc.ClaimBatch(ctx, []string{first.RoundID, second.RoundID}, seniorHolder)
	if err != nil {
		t.Fatalf("batch claim failed: %v", err)
	}
	if len(results) != 1 || results[0].RoundID != first.RoundID {
		t.Fatalf("settled rounds = %d, want only the funded first round", len(results))
	}
	if results[0].Payout.Int64() != 100_000 {
		t.Fatalf("payout = %s, want 100000", results[0].Payout)
	}
	balance, err := store.BalanceOf(ctx, 0, seniorHolder)
	if err != nil || balance.Int64() != 700_000 {
		t.Fatalf("balance = %s, err %v, want only the first round burned", balance, err)
	}

	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(700_000)); err != nil {
		t.Fatalf("second refunding deposit failed: %v", err)
	}
	results, err = uc.ClaimBatch(ctx, []string{first.RoundID, second.RoundID}, seniorHolder)
	if err != nil {
		t.Fatalf("second batch claim failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("second batch settled %d rounds, want the skipped round settled", len(results))
	}
	if results[0].Payout.Int64() != 700_000 {
		t.Fatalf("second batch payout = %s, want 700000", results[0].Payout)
	}
}
