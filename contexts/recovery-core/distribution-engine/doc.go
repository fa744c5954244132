// Package distributionengine implements the recovery distribution engine
// inside the recovery-core context.
//
// The module owns the full lifecycle of recovered-value distribution: deposit
// intake and claim-record minting, round initiation with snapshot freezing
// and submitter bonds, weighted objection voting with veto, priority
// waterfall execution, proof-backed challenges, claim settlement for both
// on-ledger holders and off-ledger legal claims, and unclaimed-residual
// redistribution. Business rules live in the application and domain layers;
// infrastructure sits behind ports and adapters.
package distributionengine
