package entities

import (
	"math/big"
	"time"
)

type RoundPhase string

const (
	PhaseInitiated    RoundPhase = "initiated"
	PhaseVetoed       RoundPhase = "vetoed"
	PhaseExecuted     RoundPhase = "executed"
	PhaseChallenged   RoundPhase = "challenged"
	PhaseBondReturned RoundPhase = "bond_returned"
)

// Terminal reports whether a round can no longer transition.
func (p RoundPhase) Terminal() bool {
	return p == PhaseVetoed || p == PhaseChallenged || p == PhaseBondReturned
}

// DistributionRound is one recovery-distribution attempt. Its amount is
// fixed at initiation; objection, execution, challenge and bond return are
// the only mutations.
type DistributionRound struct {
	RoundID        string
	Sequence       int
	ProofRoot      []byte
	SnapshotAt     time.Time
	Amount         *big.Int
	Initiator      string
	Bond           *big.Int
	BondReturned   bool
	Phase          RoundPhase
	InitiatedAt    time.Time
	ExecutedAt     *time.Time
	ObjectionPower *big.Int
	TotalPower     *big.Int
	ClaimedTotal   *big.Int
}

// TrancheRoundState is the cumulative per-tranche accounting as of one
// round. Paid and RedemptionRate are monotonically non-decreasing across
// rounds; Denominator is frozen from that round's snapshot.
type TrancheRoundState struct {
	RoundID        string
	TrancheIndex   int
	Denominator    *big.Int
	Paid           *big.Int
	RedemptionRate *big.Int
}

// RoundSnapshot freezes every value a round's allocation and objection
// weighting depend on. Written once at initiation, never amended.
// BurnedSupply records the claim records already burned by settlement per
// tranche; adding it back to ClaimSupply reconstructs the supply originally
// issued, which is the basis every round's denominator is measured against.
type RoundSnapshot struct {
	RoundID      string
	SnapshotAt   time.Time
	Prices       map[string]*big.Int
	ClaimSupply  map[int]*big.Int
	BurnedSupply map[int]*big.Int
	AssetSupply  map[string]*big.Int
}
