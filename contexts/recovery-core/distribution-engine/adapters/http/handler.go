package httpadapter

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/application/queries"
	domainerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	httptransport "remnant/contexts/recovery-core/distribution-engine/transport/http"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) DepositHandler(ctx context.Context, req httptransport.DepositRequest) (httptransport.DepositResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return httptransport.DepositResponse{}, err
	}
	result, err := h.Commands.Deposit(ctx, commands.DepositCommand{
		Holder:  req.Holder,
		AssetID: req.AssetID,
		Amount:  amount,
	})
	if err != nil {
		return httptransport.DepositResponse{}, err
	}
	return httptransport.DepositResponse{
		AssetID:      req.AssetID,
		TrancheIndex: result.TrancheIndex,
		Minted:       bigString(result.Minted),
	}, nil
}

func (h Handler) RecoveryDepositHandler(ctx context.Context, req httptransport.RecoveryDepositRequest) (httptransport.PendingPoolResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return httptransport.PendingPoolResponse{}, err
	}
	if err := h.Commands.DepositRecovery(ctx, req.From, amount); err != nil {
		return httptransport.PendingPoolResponse{}, err
	}
	pool, err := h.Queries.PendingPool(ctx)
	if err != nil {
		return httptransport.PendingPoolResponse{}, err
	}
	return httptransport.PendingPoolResponse{PendingPool: bigString(pool)}, nil
}

func (h Handler) InitiateHandler(ctx context.Context, req httptransport.InitiateRequest) (httptransport.RoundResponse, error) {
	root, err := parseHex(req.ProofRoot)
	if err != nil {
		return httptransport.RoundResponse{}, domainerrors.ErrInvalidProofRoot
	}
	snapshotAt, err := time.Parse(time.RFC3339, req.SnapshotAt)
	if err != nil {
		return httptransport.RoundResponse{}, domainerrors.ErrInvalidSnapshotRef
	}
	bond, err := parseAmount(req.Bond)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	round, err := h.Commands.Initiate(ctx, commands.InitiateCommand{
		Initiator:  req.Initiator,
		ProofRoot:  root,
		SnapshotAt: snapshotAt,
		Bond:       bond,
	})
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	view, err := h.Queries.GetRound(ctx, round.RoundID)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	return mapRoundView(view), nil
}

func (h Handler) ObjectHandler(ctx context.Context, roundID string, req httptransport.ObjectRequest) (httptransport.ObjectResponse, error) {
	result, err := h.Commands.Object(ctx, roundID, req.Identity)
	if err != nil {
		return httptransport.ObjectResponse{}, err
	}
	return httptransport.ObjectResponse{
		RoundID:           roundID,
		Weight:            bigString(result.Weight),
		AccumulatedWeight: bigString(result.AccumulatedWeight),
		TotalWeight:       bigString(result.TotalWeight),
		Vetoed:            result.Vetoed,
	}, nil
}

func (h Handler) ExecuteHandler(ctx context.Context, roundID string) (httptransport.ExecuteResponse, error) {
	result, err := h.Commands.Execute(ctx, roundID)
	if err != nil {
		return httptransport.ExecuteResponse{}, err
	}
	allocations := make([]httptransport.AllocationItem, 0, len(result.Payments))
	for _, payment := range result.Payments {
		allocations = append(allocations, httptransport.AllocationItem{
			TrancheIndex:   payment.TrancheIndex,
			Amount:         bigString(payment.Amount),
			Paid:           bigString(payment.Paid),
			RedemptionRate: bigString(payment.RedemptionRate),
		})
	}
	return httptransport.ExecuteResponse{
		RoundID:     roundID,
		Fee:         bigString(result.Fee),
		Allocations: allocations,
	}, nil
}

func (h Handler) ChallengeHandler(ctx context.Context, roundID string, req httptransport.ChallengeRequest) error {
	leaf, err := parseHex(req.Leaf)
	if err != nil {
		return domainerrors.ErrProofInvalid
	}
	proof, err := parseHexSlice(req.Proof)
	if err != nil {
		return domainerrors.ErrProofInvalid
	}
	return h.Commands.Challenge(ctx, commands.ChallengeCommand{
		RoundID:    roundID,
		Challenger: req.Challenger,
		Leaf:       leaf,
		Proof:      proof,
	})
}

func (h Handler) ReturnBondHandler(ctx context.Context, roundID string) error {
	return h.Commands.ReturnBond(ctx, roundID)
}

func (h Handler) ClaimHandler(ctx context.Context, roundID string, req httptransport.ClaimRequest) (httptransport.ClaimResponse, error) {
	result, err := h.Commands.Claim(ctx, roundID, req.Holder)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	return mapClaimResult(result), nil
}

func (h Handler) ClaimBatchHandler(ctx context.Context, req httptransport.ClaimBatchRequest) (httptransport.ClaimBatchResponse, error) {
	results, err := h.Commands.ClaimBatch(ctx, req.RoundIDs, req.Holder)
	if err != nil {
		return httptransport.ClaimBatchResponse{}, err
	}
	items := make([]httptransport.ClaimResponse, 0, len(results))
	total := big.NewInt(0)
	for _, result := range results {
		items = append(items, mapClaimResult(result))
		total.Add(total, result.Payout)
	}
	return httptransport.ClaimBatchResponse{Items: items, Total: bigString(total)}, nil
}

func (h Handler) OffLedgerClaimHandler(ctx context.Context, roundID string, req httptransport.OffLedgerClaimRequest) (httptransport.OffLedgerClaimResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return httptransport.OffLedgerClaimResponse{}, err
	}
	legalHash, err := parseHex(req.LegalHash)
	if err != nil {
		return httptransport.OffLedgerClaimResponse{}, domainerrors.ErrProofInvalid
	}
	proof, err := parseHexSlice(req.Proof)
	if err != nil {
		return httptransport.OffLedgerClaimResponse{}, domainerrors.ErrProofInvalid
	}
	payout, err := h.Commands.ClaimOffLedger(ctx, commands.OffLedgerClaimCommand{
		RoundID:      roundID,
		Claimant:     req.Claimant,
		TrancheIndex: req.TrancheIndex,
		Amount:       amount,
		LegalHash:    legalHash,
		Proof:        proof,
	})
	if err != nil {
		return httptransport.OffLedgerClaimResponse{}, err
	}
	return httptransport.OffLedgerClaimResponse{RoundID: roundID, Payout: bigString(payout)}, nil
}

func (h Handler) RedistributeHandler(ctx context.Context) (httptransport.RedistributeResponse, error) {
	residual, err := h.Commands.DistributeUnclaimed(ctx)
	if err != nil {
		return httptransport.RedistributeResponse{}, err
	}
	return httptransport.RedistributeResponse{
		Residual: bigString(residual),
		Policy:   string(h.Commands.Config.Policy),
	}, nil
}

func (h Handler) ResidualRedeemHandler(ctx context.Context, req httptransport.ResidualRedeemRequest) (httptransport.ResidualRedeemResponse, error) {
	share, err := h.Commands.RedeemResidual(ctx, req.Identity)
	if err != nil {
		return httptransport.ResidualRedeemResponse{}, err
	}
	return httptransport.ResidualRedeemResponse{
		Identity: req.Identity,
		Share:    bigString(share),
	}, nil
}

func (h Handler) GetRoundHandler(ctx context.Context, roundID string) (httptransport.RoundResponse, error) {
	view, err := h.Queries.GetRound(ctx, roundID)
	if err != nil {
		return httptransport.RoundResponse{}, err
	}
	return mapRoundView(view), nil
}

func (h Handler) ListRoundsHandler(ctx context.Context, offset, limit int) (httptransport.RoundListResponse, error) {
	rounds, err := h.Queries.ListRounds(ctx, offset, limit)
	if err != nil {
		return httptransport.RoundListResponse{}, err
	}
	items := make([]httptransport.RoundResponse, 0, len(rounds))
	for _, round := range rounds {
		items = append(items, mapRoundView(queries.RoundView{Round: round}))
	}
	return httptransport.RoundListResponse{Items: items}, nil
}

func (h Handler) GetSnapshotHandler(ctx context.Context, roundID string) (httptransport.SnapshotResponse, error) {
	snapshot, err := h.Queries.GetSnapshot(ctx, roundID)
	if err != nil {
		return httptransport.SnapshotResponse{}, err
	}
	prices := make(map[string]string, len(snapshot.Prices))
	for assetID, price := range snapshot.Prices {
		prices[assetID] = bigString(price)
	}
	claimSupply := make(map[string]string, len(snapshot.ClaimSupply))
	for index, supply := range snapshot.ClaimSupply {
		claimSupply[strconv.Itoa(index)] = bigString(supply)
	}
	burnedSupply := make(map[string]string, len(snapshot.BurnedSupply))
	for index, burned := range snapshot.BurnedSupply {
		burnedSupply[strconv.Itoa(index)] = bigString(burned)
	}
	var assetSupply map[string]string
	if len(snapshot.AssetSupply) > 0 {
		assetSupply = make(map[string]string, len(snapshot.AssetSupply))
		for assetID, supply := range snapshot.AssetSupply {
			assetSupply[assetID] = bigString(supply)
		}
	}
	return httptransport.SnapshotResponse{
		RoundID:      snapshot.RoundID,
		SnapshotAt:   snapshot.SnapshotAt.UTC().Format(time.RFC3339),
		Prices:       prices,
		ClaimSupply:  claimSupply,
		BurnedSupply: burnedSupply,
		AssetSupply:  assetSupply,
	}, nil
}

func (h Handler) ListTranchesHandler(ctx context.Context) (httptransport.TrancheListResponse, error) {
	views, err := h.Queries.ListTranches(ctx)
	if err != nil {
		return httptransport.TrancheListResponse{}, err
	}
	items := make([]httptransport.TrancheResponse, 0, len(views))
	for _, view := range views {
		items = append(items, mapTrancheView(view))
	}
	return httptransport.TrancheListResponse{Items: items}, nil
}

func (h Handler) GetTrancheHandler(ctx context.Context, index int) (httptransport.TrancheResponse, error) {
	view, err := h.Queries.GetTranche(ctx, index)
	if err != nil {
		return httptransport.TrancheResponse{}, err
	}
	return mapTrancheView(view), nil
}

func (h Handler) ListAssetsHandler(_ context.Context, offset, limit int) httptransport.AssetListResponse {
	assets := h.Queries.ListAssets(offset, limit)
	items := make([]httptransport.AssetResponse, 0, len(assets))
	for _, asset := range assets {
		items = append(items, httptransport.AssetResponse{
			AssetID:       asset.AssetID,
			TrancheIndex:  asset.TrancheIndex,
			PriceSourceID: asset.PriceSourceID,
			StaticPrice:   bigString(asset.StaticPrice),
		})
	}
	return httptransport.AssetListResponse{Items: items}
}

func (h Handler) ListOffLedgerClaimsHandler(_ context.Context, offset, limit int) httptransport.OffLedgerClaimListResponse {
	claims := h.Queries.ListOffLedgerClaims(offset, limit)
	items := make([]httptransport.OffLedgerClaimItem, 0, len(claims))
	for _, claim := range claims {
		items = append(items, httptransport.OffLedgerClaimItem{
			ClaimID:      claim.ClaimID,
			Claimant:     claim.Claimant,
			TrancheIndex: claim.TrancheIndex,
			Amount:       bigString(claim.Amount),
			LegalHash:    hex.EncodeToString(claim.LegalHash),
		})
	}
	return httptransport.OffLedgerClaimListResponse{Items: items}
}

func (h Handler) ClaimStatusHandler(ctx context.Context, roundID, identity string) (httptransport.ClaimStatusResponse, error) {
	status, err := h.Queries.GetClaimStatus(ctx, roundID, identity)
	if err != nil {
		return httptransport.ClaimStatusResponse{}, err
	}
	balances := make(map[string]string, len(status.Balances))
	for index, balance := range status.Balances {
		balances[strconv.Itoa(index)] = bigString(balance)
	}
	return httptransport.ClaimStatusResponse{
		RoundID:  status.RoundID,
		Identity: status.Identity,
		Objected: status.Objected,
		Claimed:  status.Claimed,
		Balances: balances,
	}, nil
}

func (h Handler) VaultStateHandler(ctx context.Context) (httptransport.VaultStateResponse, error) {
	state, err := h.Queries.VaultState(ctx)
	if err != nil {
		return httptransport.VaultStateResponse{}, err
	}
	resp := httptransport.VaultStateResponse{
		PendingPool:             bigString(state.PendingPool),
		DepositsClosed:          state.DepositsClosed,
		TotalClaimedAllRounds:   bigString(state.TotalClaimedAllRounds),
		RedistributionActivated: state.RedistributionActivated,
		RedistributionPool:      bigString(state.RedistributionPool),
		RedistributionRemaining: bigString(state.RedistributionRemaining),
	}
	if state.FirstExecutedAt != nil {
		resp.FirstExecutedAt = state.FirstExecutedAt.UTC().Format(time.RFC3339)
	}
	return resp, nil
}

func mapRoundView(view queries.RoundView) httptransport.RoundResponse {
	round := view.Round
	resp := httptransport.RoundResponse{
		RoundID:        round.RoundID,
		Sequence:       round.Sequence,
		ProofRoot:      hex.EncodeToString(round.ProofRoot),
		SnapshotAt:     round.SnapshotAt.UTC().Format(time.RFC3339),
		Amount:         bigString(round.Amount),
		Initiator:      round.Initiator,
		Bond:           bigString(round.Bond),
		BondReturned:   round.BondReturned,
		Phase:          string(round.Phase),
		InitiatedAt:    round.InitiatedAt.UTC().Format(time.RFC3339),
		ObjectionPower: bigString(round.ObjectionPower),
		TotalPower:     bigString(round.TotalPower),
		ClaimedTotal:   bigString(round.ClaimedTotal),
	}
	if round.ExecutedAt != nil {
		resp.ExecutedAt = round.ExecutedAt.UTC().Format(time.RFC3339)
	}
	for _, state := range view.Tranches {
		resp.Tranches = append(resp.Tranches, httptransport.TrancheStateItem{
			TrancheIndex:   state.TrancheIndex,
			Denominator:    bigString(state.Denominator),
			Paid:           bigString(state.Paid),
			RedemptionRate: bigString(state.RedemptionRate),
		})
	}
	return resp
}

func mapTrancheView(view queries.TrancheView) httptransport.TrancheResponse {
	return httptransport.TrancheResponse{
		Index:          view.Tranche.Index,
		Name:           view.Tranche.Name,
		IssuerID:       view.Tranche.IssuerID,
		AcceptedAssets: view.Tranche.AcceptedAssets,
		ClaimSupply:    bigString(view.ClaimSupply),
		OffLedgerTotal: bigString(view.OffLedgerTotal),
	}
}

func mapClaimResult(result commands.ClaimResult) httptransport.ClaimResponse {
	var burned map[string]string
	if len(result.Burned) > 0 {
		burned = make(map[string]string, len(result.Burned))
		for index, amount := range result.Burned {
			burned[strconv.Itoa(index)] = bigString(amount)
		}
	}
	return httptransport.ClaimResponse{
		RoundID: result.RoundID,
		Payout:  bigString(result.Payout),
		Burned:  burned,
	}
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, domainerrors.ErrZeroAmount
	}
	return amount, nil
}

func parseHex(raw string) ([]byte, error) {
	return hex.DecodeString(raw)
}

func parseHexSlice(raws []string) ([][]byte, error) {
	out := make([][]byte, 0, len(raws))
	for _, raw := range raws {
		node, err := hex.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
