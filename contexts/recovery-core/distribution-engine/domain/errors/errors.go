package errors

import "errors"

// Validation failures.
var (
	ErrInvalidVaultConfig  = errors.New("invalid vault configuration")
	ErrInvalidTrancheIndex = errors.New("tranche index out of range")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrAssetNotAccepted    = errors.New("asset is not accepted by this vault")
	ErrInvalidSnapshotRef  = errors.New("snapshot reference is in the future")
	ErrInvalidProofRoot    = errors.New("membership proof root is required")
)

// State and phase failures.
var (
	ErrRoundNotFound        = errors.New("distribution round not found")
	ErrRoundActive          = errors.New("a distribution round is already pending")
	ErrRoundNotPending      = errors.New("round is not awaiting execution")
	ErrRoundVetoed          = errors.New("round has been vetoed")
	ErrRoundNotExecuted     = errors.New("round has not been executed")
	ErrRoundAlreadyExecuted = errors.New("round has already been executed")
	ErrObjectionWindowOpen  = errors.New("objection window has not elapsed")
	ErrObjectionWindowOver  = errors.New("objection window has elapsed")
	ErrAlreadyObjected      = errors.New("identity has already objected to this round")
	ErrAlreadyClaimed       = errors.New("identity has already claimed this round")
	ErrChallengeWindowOpen  = errors.New("challenge window has not elapsed")
	ErrChallengeWindowOver  = errors.New("challenge window has elapsed")
	ErrAlreadyChallenged    = errors.New("round bond has already been challenged")
	ErrBondAlreadyReturned  = errors.New("round bond has already been returned")
	ErrDepositsClosed       = errors.New("deposits are closed for this vault")
	ErrVetoCooldownActive   = errors.New("veto cooldown has not elapsed")
	ErrVetoedInitiator      = errors.New("initiator of the vetoed round may not resubmit")
	ErrRedistributionDone   = errors.New("unclaimed funds have already been distributed")
	ErrRedistributionClosed = errors.New("redistribution pool is not open")
	ErrDeadlineNotReached   = errors.New("unclaimed-funds deadline has not been reached")
	ErrAlreadyRedeemed      = errors.New("identity has already redeemed from the pool")
)

// Proof failures.
var (
	ErrProofInvalid = errors.New("membership proof verification failed")
)

// Economic failures.
var (
	ErrInsufficientBond  = errors.New("submitter bond is below the required minimum")
	ErrNoPendingFunds    = errors.New("pending recovery pool is empty")
	ErrNothingToRedeem   = errors.New("nothing to redeem")
	ErrNoVotingPower     = errors.New("identity has no objection weight")
	ErrPoolExhausted     = errors.New("redistribution pool is exhausted")
	ErrNoResidualFunds   = errors.New("vault holds no residual recovery funds")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
