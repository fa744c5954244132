package commands_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

func TestExecutePaysFeeAndRunsWaterfall(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	result := executeAfterWindow(t, uc, store, round.RoundID)

	if result.Fee.Int64() != 2_000 {
		t.Fatalf("fee = %s, want 2000 (50bps of 400000)", result.Fee)
	}
	if result.Payments[0].Amount.Int64() != 398_000 {
		t.Fatalf("senior allocation = %s, want 398000", result.Payments[0].Amount)
	}
	wantRate := waterfall.Rate(big.NewInt(398_000), big.NewInt(800_000))
	if result.Payments[0].RedemptionRate.Cmp(wantRate) != 0 {
		t.Fatalf("senior rate = %s, want %s", result.Payments[0].RedemptionRate, wantRate)
	}
	if result.Payments[1].Amount.Sign() != 0 {
		t.Fatalf("junior allocation = %s, want 0", result.Payments[1].Amount)
	}

	total := new(big.Int).Set(result.Fee)
	for _, payment := range result.Payments {
		total.Add(total, payment.Amount)
	}
	if total.Int64() != 400_000 {
		t.Fatalf("fee plus allocations = %s, want the full round amount", total)
	}

	executed, err := store.GetRound(ctx, round.RoundID)
	if err != nil {
		t.Fatalf("round read failed: %v", err)
	}
	if executed.Phase != entities.PhaseExecuted || executed.ExecutedAt == nil {
		t.Fatalf("round = phase %s executedAt %v", executed.Phase, executed.ExecutedAt)
	}
	state, err := store.GetVaultState(ctx)
	if err != nil {
		t.Fatalf("vault state failed: %v", err)
	}
	if state.FirstExecutedAt == nil {
		t.Fatalf("first execution must anchor the unclaimed deadline")
	}
	if store.TransfersPaused() {
		t.Fatalf("transfers must resume after execution")
	}
	// 10000 seed, minus 1000 bond, plus 2000 fee.
	if balance := store.RecoveryBalance(initiator); balance.Int64() != 11_000 {
		t.Fatalf("initiator balance = %s, want 11000", balance)
	}
}

func TestExecuteGuards(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	if _, err := uc.Execute(ctx, "no-such-round"); !errors.Is(err, domainerrors.ErrRoundNotFound) {
		t.Fatalf("unknown round: got %v", err)
	}

	round := openRound(t, uc, store, 400_000, testProofRoot())
	if _, err := uc.Execute(ctx, round.RoundID); !errors.Is(err, domainerrors.ErrObjectionWindowOpen) {
		t.Fatalf("execute inside window: got %v", err)
	}

	executeAfterWindow(t, uc, store, round.RoundID)
	if _, err := uc.Execute(ctx, round.RoundID); !errors.Is(err, domainerrors.ErrRoundAlreadyExecuted) {
		t.Fatalf("double execute: got %v", err)
	}
}

func TestExecuteRefusesVetoedRound(t *testing.T) {
	uc, store := newEngine(t, testConfig(), commands.DefaultParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	round := openRound(t, uc, store, 400_000, testProofRoot())
	if _, err := uc.Object(ctx, round.RoundID, seniorHolder); err != nil {
		t.Fatalf("objection failed: %v", err)
	}
	store.Advance(uc.Params.ObjectionWindow + time.Minute)
	if _, err := uc.Execute(ctx, round.RoundID); !errors.Is(err, domainerrors.ErrRoundVetoed) {
		t.Fatalf("execute vetoed round: got %v", err)
	}
}

func TestExecuteCarriesPaidAcrossRounds(t *testing.T) {
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)

	first := openRound(t, uc, store, 400_000, testProofRoot())
	firstResult := executeAfterWindow(t, uc, store, first.RoundID)
	if firstResult.Payments[0].RedemptionRate.Cmp(halfUnit()) != 0 {
		t.Fatalf("round-1 senior rate = %s, want 0.5", firstResult.Payments[0].RedemptionRate)
	}

	second := openRound(t, uc, store, 500_000, testProofRoot())
	secondResult := executeAfterWindow(t, uc, store, second.RoundID)

	if secondResult.Payments[0].Amount.Int64() != 400_000 {
		t.Fatalf("round-2 senior top-up = %s, want 400000", secondResult.Payments[0].Amount)
	}
	if secondResult.Payments[0].RedemptionRate.Cmp(unit(1)) != 0 {
		t.Fatalf("senior rate = %s, want full redemption", secondResult.Payments[0].RedemptionRate)
	}
	if secondResult.Payments[1].Amount.Int64() != 100_000 {
		t.Fatalf("round-2 junior spillover = %s, want 100000", secondResult.Payments[1].Amount)
	}
	if secondResult.Payments[1].RedemptionRate.Cmp(halfUnit()) != 0 {
		t.Fatalf("junior rate = %s, want 0.5", secondResult.Payments[1].RedemptionRate)
	}
}

func TestExecuteKeepsDenominatorBasisAfterClaims(t *testing.T) {
	uc, store := newEngine(t, testConfig(), zeroFeeParams(), testSeed())
	depositStandardHoldings(t, uc)
	ctx := context.Background()

	first := openRound(t, uc, store, 400_000, testProofRoot())
	executeAfterWindow(t, uc, store, first.RoundID)
	claimed, err := uc.Claim(ctx, first.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("round-1 senior claim failed: %v", err)
	}
	if claimed.Payout.Int64() != 400_000 {
		t.Fatalf("round-1 senior payout = %s, want 400000", claimed.Payout)
	}

	// The burn shrank live supply to 400k; the next round's denominator
	// must still be measured against the 800k originally issued.
	second := openRound(t, uc, store, 500_000, testProofRoot())
	snapshot, err := store.GetSnapshot(ctx, second.RoundID)
	if err != nil {
		t.Fatalf("snapshot read failed: %v", err)
	}
	if snapshot.ClaimSupply[0].Int64() != 400_000 || snapshot.BurnedSupply[0].Int64() != 400_000 {
		t.Fatalf("senior snapshot = supply %s burned %s, want 400000 each",
			snapshot.ClaimSupply[0], snapshot.BurnedSupply[0])
	}
	states, err := store.ListTrancheStates(ctx, second.RoundID)
	if err != nil {
		t.Fatalf("tranche states read failed: %v", err)
	}
	if states[0].Denominator.Int64() != 800_000 || states[0].Paid.Int64() != 400_000 {
		t.Fatalf("round-2 senior state = denominator %s paid %s, want 800000 / 400000",
			states[0].Denominator, states[0].Paid)
	}

	result := executeAfterWindow(t, uc, store, second.RoundID)
	if result.Payments[0].Amount.Int64() != 400_000 {
		t.Fatalf("round-2 senior top-up = %s, want 400000", result.Payments[0].Amount)
	}
	if result.Payments[0].RedemptionRate.Cmp(unit(1)) != 0 {
		t.Fatalf("senior rate = %s, want full redemption", result.Payments[0].RedemptionRate)
	}
	if result.Payments[1].Amount.Int64() != 100_000 {
		t.Fatalf("round-2 junior spillover = %s, want 100000", result.Payments[1].Amount)
	}

	seniorSecond, err := uc.Claim(ctx, second.RoundID, seniorHolder)
	if err != nil {
		t.Fatalf("round-2 senior claim failed: %v", err)
	}
	if seniorSecond.Payout.Int64() != 400_000 {
		t.Fatalf("round-2 senior payout = %s, want 400000", seniorSecond.Payout)
	}
	junior, err := uc.Claim(ctx, second.RoundID, juniorHolder)
	if err != nil {
		t.Fatalf("round-2 junior claim failed: %v", err)
	}
	if junior.Payout.Int64() != 100_000 {
		t.Fatalf("round-2 junior payout = %s, want 100000", junior.Payout)
	}

	// Every allocation settled in full; only the two unreturned bonds stay.
	vault, err := store.VaultBalance(ctx)
	if err != nil {
		t.Fatalf("vault balance failed: %v", err)
	}
	if vault.Int64() != 2_000 {
		t.Fatalf("vault residual = %s, want 2000", vault)
	}
}

func TestExecuteRoutesOverflowToJuniorTranche(t *testing.T) {
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
	result := executeAfterWindow(t, uc, store, round.RoundID)

	if result.Payments[0].RedemptionRate.Cmp(unit(1)) != 0 {
		t.Fatalf("senior rate = %s, want full redemption", result.Payments[0].RedemptionRate)
	}
	if result.Payments[1].Paid.Int64() != 200_000 {
		t.Fatalf("junior paid = %s, want 200000", result.Payments[1].Paid)
	}
	if result.Payments[1].RedemptionRate.Cmp(unit(2)) != 0 {
		t.Fatalf("junior bonus rate = %s, want 2.0", result.Payments[1].RedemptionRate)
	}
}
