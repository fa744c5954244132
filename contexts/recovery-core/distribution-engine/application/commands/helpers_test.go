package commands_test

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/adapters/memory"
	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	seniorHolder = "holder-sr"
	juniorHolder = "holder-jr"
	smallHolder  = "holder-small"
	recoverer    = "estate-liquidator"
	initiator    = "submitter-1"
	challenger   = "watchdog-1"
	treasury     = "treasury-dao"
)

// unit returns a whole-number price or rate at fixed-point precision.
func unit(n int64) *big.Int {
	return new(big.Int).Mul(waterfall.RateScale, big.NewInt(n))
}

func halfUnit() *big.Int {
	return new(big.Int).Quo(unit(1), big.NewInt(2))
}

func testProofRoot() []byte {
	return bytes.Repeat([]byte{0xAB}, 32)
}

func testConfig() entities.VaultConfig {
	return entities.VaultConfig{
		VaultID:       "vault-omega",
		Name:          "Omega Recovery Vault",
		Mode:          entities.ModeWrappedOnly,
		RecoveryAsset: "usd",
		Policy:        entities.PolicyPool,
		Tranches: []entities.Tranche{
			{Index: 0, Name: "senior", IssuerID: "issuer-sr", AcceptedAssets: []string{"bond-sr"}},
			{Index: 1, Name: "junior", IssuerID: "issuer-jr", AcceptedAssets: []string{"bond-jr"}},
		},
		Assets: []entities.AssetConfig{
			{AssetID: "bond-sr", TrancheIndex: 0, StaticPrice: unit(1)},
			{AssetID: "bond-jr", TrancheIndex: 1, StaticPrice: unit(1)},
		},
	}
}

func testSeed() memory.Seed {
	return memory.Seed{
		Now: baseTime,
		RecoveryBalances: map[string]*big.Int{
			recoverer: big.NewInt(2_000_000),
			initiator: big.NewInt(10_000),
		},
		AssetHoldings: map[string]map[string]*big.Int{
			"bond-sr": {
				seniorHolder: big.NewInt(1_000_000),
				smallHolder:  big.NewInt(100_000),
			},
			"bond-jr": {
				juniorHolder: big.NewInt(500_000),
			},
		},
	}
}

func newEngine(t *testing.T, config entities.VaultConfig, params commands.Params, seed memory.Seed) (commands.UseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore(seed)
	uc := commands.UseCase{
		Config: config,
		Params: params,
		Repo:   store,
		Ledger: store,
		Funds:  store,
		Assets: store.Assets(),
		Clock:  store,
		IDGen:  store,
		Outbox: store,
	}
	return uc, store
}

func zeroFeeParams() commands.Params {
	params := commands.DefaultParams()
	params.ExecutionFeeBps = 0
	return params
}

// depositStandardHoldings mints the 800k/200k senior/junior claim split used
// by most scenarios.
func depositStandardHoldings(t *testing.T, uc commands.UseCase) {
	t.Helper()
	ctx := context.Background()
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder:  seniorHolder,
		AssetID: "bond-sr",
		Amount:  big.NewInt(800_000),
	}); err != nil {
		t.Fatalf("senior deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder:  juniorHolder,
		AssetID: "bond-jr",
		Amount:  big.NewInt(200_000),
	}); err != nil {
		t.Fatalf("junior deposit failed: %v", err)
	}
}

// openRound funds the pending pool and opens a round over it.
func openRound(t *testing.T, uc commands.UseCase, store *memory.Store, amount int64, root []byte) entities.DistributionRound {
	t.Helper()
	ctx := context.Background()
	if err := uc.DepositRecovery(ctx, recoverer, big.NewInt(amount)); err != nil {
		t.Fatalf("recovery deposit failed: %v", err)
	}
	round, err := uc.Initiate(ctx, commands.InitiateCommand{
		Initiator:  initiator,
		ProofRoot:  root,
		SnapshotAt: store.Now(),
		Bond:       big.NewInt(1_000),
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	return round
}

// executeAfterWindow advances the clock past the objection window and
// settles the round.
func executeAfterWindow(t *testing.T, uc commands.UseCase, store *memory.Store, roundID string) commands.ExecuteResult {
	t.Helper()
	store.Advance(uc.Params.ObjectionWindow + time.Minute)
	result, err := uc.Execute(context.Background(), roundID)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	return result
}
