package http

// Amounts, prices and rates travel as decimal strings so integer precision
// survives JSON; proof roots, leaves and proof nodes are lowercase hex.

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DepositRequest struct {
	Holder  string `json:"holder"`
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

type DepositResponse struct {
	AssetID      string `json:"asset_id"`
	TrancheIndex int    `json:"tranche_index"`
	Minted       string `json:"minted"`
}

type RecoveryDepositRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type PendingPoolResponse struct {
	PendingPool string `json:"pending_pool"`
}

type InitiateRequest struct {
	Initiator  string `json:"initiator"`
	ProofRoot  string `json:"proof_root"`
	SnapshotAt string `json:"snapshot_at"`
	Bond       string `json:"bond"`
}

type TrancheStateItem struct {
	TrancheIndex   int    `json:"tranche_index"`
	Denominator    string `json:"denominator"`
	Paid           string `json:"paid"`
	RedemptionRate string `json:"redemption_rate"`
}

type RoundResponse struct {
	RoundID        string             `json:"round_id"`
	Sequence       int                `json:"sequence"`
	ProofRoot      string             `json:"proof_root"`
	SnapshotAt     string             `json:"snapshot_at"`
	Amount         string             `json:"amount"`
	Initiator      string             `json:"initiator"`
	Bond           string             `json:"bond"`
	BondReturned   bool               `json:"bond_returned"`
	Phase          string             `json:"phase"`
	InitiatedAt    string             `json:"initiated_at"`
	ExecutedAt     string             `json:"executed_at,omitempty"`
	ObjectionPower string             `json:"objection_power"`
	TotalPower     string             `json:"total_power"`
	ClaimedTotal   string             `json:"claimed_total"`
	Tranches       []TrancheStateItem `json:"tranches,omitempty"`
}

type RoundListResponse struct {
	Items []RoundResponse `json:"items"`
}

type SnapshotResponse struct {
	RoundID      string            `json:"round_id"`
	SnapshotAt   string            `json:"snapshot_at"`
	Prices       map[string]string `json:"prices"`
	ClaimSupply  map[string]string `json:"claim_supply"`
	BurnedSupply map[string]string `json:"burned_supply"`
	AssetSupply  map[string]string `json:"asset_supply,omitempty"`
}

type ObjectRequest struct {
	Identity string `json:"identity"`
}

type ObjectResponse struct {
	RoundID           string `json:"round_id"`
	Weight            string `json:"weight"`
	AccumulatedWeight string `json:"accumulated_weight"`
	TotalWeight       string `json:"total_weight"`
	Vetoed            bool   `json:"vetoed"`
}

type AllocationItem struct {
	TrancheIndex   int    `json:"tranche_index"`
	Amount         string `json:"amount"`
	Paid           string `json:"paid"`
	RedemptionRate string `json:"redemption_rate"`
}

type ExecuteResponse struct {
	RoundID     string           `json:"round_id"`
	Fee         string           `json:"fee"`
	Allocations []AllocationItem `json:"allocations"`
}

type ChallengeRequest struct {
	Challenger string   `json:"challenger"`
	Leaf       string   `json:"leaf"`
	Proof      []string `json:"proof"`
}

type ClaimRequest struct {
	Holder string `json:"holder"`
}

type ClaimBatchRequest struct {
	Holder   string   `json:"holder"`
	RoundIDs []string `json:"round_ids"`
}

type ClaimResponse struct {
	RoundID string            `json:"round_id"`
	Payout  string            `json:"payout"`
	Burned  map[string]string `json:"burned,omitempty"`
}

type ClaimBatchResponse struct {
	Items []ClaimResponse `json:"items"`
	Total string          `json:"total"`
}

type OffLedgerClaimRequest struct {
	Claimant     string   `json:"claimant"`
	TrancheIndex int      `json:"tranche_index"`
	Amount       string   `json:"amount"`
	LegalHash    string   `json:"legal_hash"`
	Proof        []string `json:"proof"`
}

type OffLedgerClaimResponse struct {
	RoundID string `json:"round_id"`
	Payout  string `json:"payout"`
}

type RedistributeResponse struct {
	Residual string `json:"residual"`
	Policy   string `json:"policy"`
}

type ResidualRedeemRequest struct {
	Identity string `json:"identity"`
}

type ResidualRedeemResponse struct {
	Identity string `json:"identity"`
	Share    string `json:"share"`
}

type TrancheResponse struct {
	Index          int      `json:"index"`
	Name           string   `json:"name"`
	IssuerID       string   `json:"issuer_id"`
	AcceptedAssets []string `json:"accepted_assets"`
	ClaimSupply    string   `json:"claim_supply"`
	OffLedgerTotal string   `json:"off_ledger_total"`
}

type TrancheListResponse struct {
	Items []TrancheResponse `json:"items"`
}

type AssetResponse struct {
	AssetID       string `json:"asset_id"`
	TrancheIndex  int    `json:"tranche_index"`
	PriceSourceID string `json:"price_source_id,omitempty"`
	StaticPrice   string `json:"static_price"`
}

type AssetListResponse struct {
	Items []AssetResponse `json:"items"`
}

type OffLedgerClaimItem struct {
	ClaimID      string `json:"claim_id"`
	Claimant     string `json:"claimant"`
	TrancheIndex int    `json:"tranche_index"`
	Amount       string `json:"amount"`
	LegalHash    string `json:"legal_hash"`
}

type OffLedgerClaimListResponse struct {
	Items []OffLedgerClaimItem `json:"items"`
}

type ClaimStatusResponse struct {
	RoundID  string            `json:"round_id"`
	Identity string            `json:"identity"`
	Objected bool              `json:"objected"`
	Claimed  bool              `json:"claimed"`
	Balances map[string]string `json:"balances"`
}

type VaultStateResponse struct {
	PendingPool             string `json:"pending_pool"`
	DepositsClosed          bool   `json:"deposits_closed"`
	FirstExecutedAt         string `json:"first_executed_at,omitempty"`
	TotalClaimedAllRounds   string `json:"total_claimed_all_rounds"`
	RedistributionActivated bool   `json:"redistribution_activated"`
	RedistributionPool      string `json:"redistribution_pool"`
	RedistributionRemaining string `json:"redistribution_remaining"`
}
