package queries_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/adapters/memory"
	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/application/queries"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	"remnant/contexts/recovery-core/distribution-engine/domain/waterfall"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func unit(n int64) *big.Int {
	return new(big.Int).Mul(waterfall.RateScale, big.NewInt(n))
}

func fixtureConfig() entities.VaultConfig {
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

// fixture seeds a store with one initiated round plus an objection, driven
// through the command side so reads see realistic state.
func fixture(t *testing.T) (queries.UseCase, *memory.Store, entities.DistributionRound) {
	t.Helper()
	config := fixtureConfig()
	store := memory.NewStore(memory.Seed{
		Now: baseTime,
		RecoveryBalances: map[string]*big.Int{
			"liquidator":  big.NewInt(500_000),
			"submitter-1": big.NewInt(5_000),
		},
		AssetHoldings: map[string]map[string]*big.Int{
			"bond-sr": {
				"holder-sr":    big.NewInt(800_000),
				"holder-small": big.NewInt(40_000),
			},
			"bond-jr": {"holder-jr": big.NewInt(200_000)},
		},
	})
	uc := commands.UseCase{
		Config: config,
		Params: commands.DefaultParams(),
		Repo:   store,
		Ledger: store,
		Funds:  store,
		Assets: store.Assets(),
		Clock:  store,
		IDGen:  store,
		Outbox: store,
	}
	ctx := context.Background()
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: "holder-sr", AssetID: "bond-sr", Amount: big.NewInt(800_000),
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: "holder-small", AssetID: "bond-sr", Amount: big.NewInt(40_000),
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := uc.Deposit(ctx, commands.DepositCommand{
		Holder: "holder-jr", AssetID: "bond-jr", Amount: big.NewInt(200_000),
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := uc.DepositRecovery(ctx, "liquidator", big.NewInt(400_000)); err != nil {
		t.Fatalf("recovery deposit failed: %v", err)
	}
	round, err := uc.Initiate(ctx, commands.InitiateCommand{
		Initiator:  "submitter-1",
		ProofRoot:  []byte{0xAB, 0xCD},
		SnapshotAt: store.Now(),
		Bond:       big.NewInt(1_000),
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	// Small enough to miss the participation quorum, so the round stays
	// pending for the read-side assertions.
	if _, err := uc.Object(ctx, round.RoundID, "holder-small"); err != nil {
		t.Fatalf("objection failed: %v", err)
	}
	return queries.UseCase{Config: config, Repo: store, Ledger: store}, store, round
}

func TestGetRoundJoinsTrancheStates(t *testing.T) {
	reads, _, round := fixture(t)

	view, err := reads.GetRound(context.Background(), round.RoundID)
	if err != nil {
		t.Fatalf("get round failed: %v", err)
	}
	if view.Round.RoundID != round.RoundID || len(view.Tranches) != 2 {
		t.Fatalf("view = round %s with %d tranches", view.Round.RoundID, len(view.Tranches))
	}
	if view.Tranches[0].Denominator.Int64() != 840_000 {
		t.Fatalf("senior denominator = %s", view.Tranches[0].Denominator)
	}

	if _, err := reads.GetRound(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrRoundNotFound) {
		t.Fatalf("missing round: got %v", err)
	}
}

func TestGetSnapshotExposesFrozenValues(t *testing.T) {
	reads, _, round := fixture(t)

	snapshot, err := reads.GetSnapshot(context.Background(), round.RoundID)
	if err != nil {
		t.Fatalf("get snapshot failed: %v", err)
	}
	if snapshot.Prices["bond-sr"].Cmp(unit(1)) != 0 {
		t.Fatalf("snapshot price = %s", snapshot.Prices["bond-sr"])
	}
	if snapshot.ClaimSupply[1].Int64() != 200_000 {
		t.Fatalf("snapshot junior supply = %s", snapshot.ClaimSupply[1])
	}
}

func TestListRoundsClampsPagination(t *testing.T) {
	reads, _, round := fixture(t)

	rounds, err := reads.ListRounds(context.Background(), -5, -1)
	if err != nil {
		t.Fatalf("list rounds failed: %v", err)
	}
	if len(rounds) != 1 || rounds[0].RoundID != round.RoundID {
		t.Fatalf("rounds = %+v", rounds)
	}
}

func TestTrancheViews(t *testing.T) {
	reads, _, _ := fixture(t)
	ctx := context.Background()

	views, err := reads.ListTranches(ctx)
	if err != nil {
		t.Fatalf("list tranches failed: %v", err)
	}
	if len(views) != 2 || views[0].ClaimSupply.Int64() != 840_000 {
		t.Fatalf("tranche views = %+v", views)
	}
	if _, err := reads.GetTranche(ctx, 7); !errors.Is(err, domainerrors.ErrInvalidTrancheIndex) {
		t.Fatalf("out-of-range tranche: got %v", err)
	}
}

func TestListAssetsPages(t *testing.T) {
	reads, _, _ := fixture(t)

	assets := reads.ListAssets(1, 1)
	if len(assets) != 1 || assets[0].AssetID != "bond-jr" {
		t.Fatalf("asset page = %+v", assets)
	}
	if out := reads.ListAssets(9, 10); out != nil {
		t.Fatalf("out-of-range asset page = %+v", out)
	}
}

func TestGetClaimStatus(t *testing.T) {
	reads, _, round := fixture(t)

	status, err := reads.GetClaimStatus(context.Background(), round.RoundID, "holder-small")
	if err != nil {
		t.Fatalf("claim status failed: %v", err)
	}
	if !status.Objected || status.Claimed {
		t.Fatalf("status = objected %v claimed %v", status.Objected, status.Claimed)
	}
	if status.Balances[0].Int64() != 40_000 {
		t.Fatalf("senior balance = %s", status.Balances[0])
	}

	if _, err := reads.GetClaimStatus(context.Background(), "missing", "holder-jr"); !errors.Is(err, domainerrors.ErrRoundNotFound) {
		t.Fatalf("missing round: got %v", err)
	}
}

func TestPendingPoolAndVaultState(t *testing.T) {
	reads, _, _ := fixture(t)
	ctx := context.Background()

	pool, err := reads.PendingPool(ctx)
	if err != nil || pool.Sign() != 0 {
		t.Fatalf("pending pool = %s, err %v", pool, err)
	}
	state, err := reads.VaultState(ctx)
	if err != nil {
		t.Fatalf("vault state failed: %v", err)
	}
	if !state.DepositsClosed {
		t.Fatalf("deposits should be closed after the wrapped-mode initiation")
	}
}
