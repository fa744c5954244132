package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	distributionengine "remnant/contexts/recovery-core/distribution-engine"
	enginerrors "remnant/contexts/recovery-core/distribution-engine/domain/errors"
	enginehttp "remnant/contexts/recovery-core/distribution-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "remnant/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	engine distributionengine.Module
}

func New(engine distributionengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		engine: engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/vault/deposits", s.handleDeposit)
	s.mux.HandleFunc("POST /v1/vault/recoveries", s.handleRecoveryDeposit)
	s.mux.HandleFunc("GET /v1/vault/state", s.handleVaultState)

	s.mux.HandleFunc("POST /v1/rounds", s.handleInitiate)
	s.mux.HandleFunc("GET /v1/rounds", s.handleListRounds)
	s.mux.HandleFunc("GET /v1/rounds/{round_id}", s.handleGetRound)
	s.mux.HandleFunc("GET /v1/rounds/{round_id}/snapshot", s.handleGetSnapshot)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/objections", s.handleObject)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/execute", s.handleExecute)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/challenges", s.handleChallenge)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/bond-return", s.handleReturnBond)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/claims", s.handleClaim)
	s.mux.HandleFunc("POST /v1/rounds/{round_id}/off-ledger-claims", s.handleOffLedgerClaim)
	s.mux.HandleFunc("GET /v1/rounds/{round_id}/claims/{identity}", s.handleClaimStatus)
	s.mux.HandleFunc("POST /v1/claims/batch", s.handleClaimBatch)

	s.mux.HandleFunc("GET /v1/tranches", s.handleListTranches)
	s.mux.HandleFunc("GET /v1/tranches/{index}", s.handleGetTranche)
	s.mux.HandleFunc("GET /v1/assets", s.handleListAssets)
	s.mux.HandleFunc("GET /v1/off-ledger-claims", s.handleListOffLedgerClaims)

	s.mux.HandleFunc("POST /v1/redistribution", s.handleRedistribute)
	s.mux.HandleFunc("POST /v1/redistribution/redemptions", s.handleResidualRedeem)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.DepositHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRecoveryDeposit(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.RecoveryDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.RecoveryDepositHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleVaultState(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.VaultStateHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.InitiateHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	resp, err := s.engine.Handler.ListRoundsHandler(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.GetRoundHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.GetSnapshotHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.ObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.ObjectHandler(r.Context(), r.PathValue("round_id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.ExecuteHandler(r.Context(), r.PathValue("round_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.engine.Handler.ChallengeHandler(r.Context(), r.PathValue("round_id"), req); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "challenged"})
}

func (s *Server) handleReturnBond(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Handler.ReturnBondHandler(r.Context(), r.PathValue("round_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bond_returned"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.ClaimHandler(r.Context(), r.PathValue("round_id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimBatch(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.ClaimBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.ClaimBatchHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOffLedgerClaim(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.OffLedgerClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.OffLedgerClaimHandler(r.Context(), r.PathValue("round_id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.ClaimStatusHandler(r.Context(), r.PathValue("round_id"), r.PathValue("identity"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTranches(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.ListTranchesHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTranche(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tranche_index", "tranche index must be an integer")
		return
	}
	resp, err := s.engine.Handler.GetTrancheHandler(r.Context(), index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	writeJSON(w, http.StatusOK, s.engine.Handler.ListAssetsHandler(r.Context(), offset, limit))
}

func (s *Server) handleListOffLedgerClaims(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	writeJSON(w, http.StatusOK, s.engine.Handler.ListOffLedgerClaimsHandler(r.Context(), offset, limit))
}

func (s *Server) handleRedistribute(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.RedistributeHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResidualRedeem(w http.ResponseWriter, r *http.Request) {
	var req enginehttp.ResidualRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.engine.Handler.ResidualRedeemHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func pagination(r *http.Request) (int, int) {
	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("offset"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	return offset, limit
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enginerrors.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, "round_not_found", err.Error())
	case errors.Is(err, enginerrors.ErrInvalidVaultConfig),
		errors.Is(err, enginerrors.ErrInvalidTrancheIndex),
		errors.Is(err, enginerrors.ErrZeroAmount),
		errors.Is(err, enginerrors.ErrAssetNotAccepted),
		errors.Is(err, enginerrors.ErrInvalidSnapshotRef),
		errors.Is(err, enginerrors.ErrInvalidProofRoot):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, enginerrors.ErrRoundActive),
		errors.Is(err, enginerrors.ErrRoundAlreadyExecuted),
		errors.Is(err, enginerrors.ErrAlreadyObjected),
		errors.Is(err, enginerrors.ErrAlreadyClaimed),
		errors.Is(err, enginerrors.ErrAlreadyChallenged),
		errors.Is(err, enginerrors.ErrBondAlreadyReturned),
		errors.Is(err, enginerrors.ErrAlreadyRedeemed),
		errors.Is(err, enginerrors.ErrRedistributionDone):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, enginerrors.ErrRoundNotPending),
		errors.Is(err, enginerrors.ErrRoundVetoed),
		errors.Is(err, enginerrors.ErrRoundNotExecuted),
		errors.Is(err, enginerrors.ErrObjectionWindowOpen),
		errors.Is(err, enginerrors.ErrObjectionWindowOver),
		errors.Is(err, enginerrors.ErrChallengeWindowOpen),
		errors.Is(err, enginerrors.ErrChallengeWindowOver),
		errors.Is(err, enginerrors.ErrDepositsClosed),
		errors.Is(err, enginerrors.ErrVetoCooldownActive),
		errors.Is(err, enginerrors.ErrVetoedInitiator),
		errors.Is(err, enginerrors.ErrRedistributionClosed),
		errors.Is(err, enginerrors.ErrDeadlineNotReached):
		writeError(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())
	case errors.Is(err, enginerrors.ErrProofInvalid):
		writeError(w, http.StatusForbidden, "proof_invalid", err.Error())
	case errors.Is(err, enginerrors.ErrInsufficientBond),
		errors.Is(err, enginerrors.ErrNoPendingFunds),
		errors.Is(err, enginerrors.ErrNothingToRedeem),
		errors.Is(err, enginerrors.ErrNoVotingPower),
		errors.Is(err, enginerrors.ErrPoolExhausted),
		errors.Is(err, enginerrors.ErrNoResidualFunds),
		errors.Is(err, enginerrors.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "economic_precondition_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, enginehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
