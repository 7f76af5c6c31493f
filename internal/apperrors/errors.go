package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrCompanyNotFound indicates that a company with the given ID does not exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrShareClassNotFound indicates that a share class with the given ID or name does not exist.
	ErrShareClassNotFound = errors.New("share class not found")

	// ErrComputationNotFound indicates that a dividend computation with the given ID does not exist.
	ErrComputationNotFound = errors.New("dividend computation not found")

	// ErrTenderOfferNotFound indicates that a tender offer with the given ID does not exist.
	ErrTenderOfferNotFound = errors.New("tender offer not found")

	// ErrBidNotFound indicates that a tender offer bid with the given ID does not exist.
	ErrBidNotFound = errors.New("tender offer bid not found")

	// ErrPaymentNotFound indicates that a payment with the given ID does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrPaymentNotFoundForTransfer indicates no payment matches a provider transfer id.
	// Webhook handlers log and ignore these rather than failing the delivery.
	ErrPaymentNotFoundForTransfer = errors.New("no payment for provider transfer id")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrIssuanceDateTooSoon indicates a dividend computation's issuance date is
	// inside the mandatory ten-day correction window.
	ErrIssuanceDateTooSoon = errors.New("issuance date must be at least 10 days out")

	// ErrComputationFinalized indicates an attempt to rerun or mutate a computation
	// that has already been finalized.
	ErrComputationFinalized = errors.New("dividend computation already finalized")

	// ErrComputationInFlight indicates a computation is already being processed;
	// concurrent runs over the same computation are rejected.
	ErrComputationInFlight = errors.New("dividend computation already in flight")

	// ErrOfferClosed indicates a bid was submitted or withdrawn outside the
	// offer's open window.
	ErrOfferClosed = errors.New("tender offer is not open")

	// ErrOfferCleared indicates an attempt to bid, withdraw, or recompute after
	// the clearing price was set. The accepted price is immutable.
	ErrOfferCleared = errors.New("tender offer has already been cleared")

	// ErrBidPriceMismatch indicates a single_stock bid priced away from the
	// fixed starting price.
	ErrBidPriceMismatch = errors.New("bid price must equal the fixed starting price")

	// ErrBidExceedsBudget indicates a single_stock bid that would push cumulative
	// bid value past the offer's total amount.
	ErrBidExceedsBudget = errors.New("cumulative bid value exceeds offer budget")

	// ErrInsufficientShares indicates the bidder does not hold enough shares of
	// the named class to cover the bid.
	ErrInsufficientShares = errors.New("insufficient shares for bid")

	// ErrNonPositiveAmount indicates an amount that must be strictly positive.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrPaymentTerminal indicates an attempted transition out of a terminal
	// payment state. These are idempotent no-ops at the state machine level;
	// the sentinel exists for callers that need to distinguish them.
	ErrPaymentTerminal = errors.New("payment already in terminal state")

	// ErrPayableInFlight indicates another transfer attempt for the same payable
	// is in progress; payable lifecycles are serialized.
	ErrPayableInFlight = errors.New("payable already has a transfer attempt in flight")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")
)

// Invariant violations are fatal: the enclosing transaction is aborted, nothing
// is committed, and the error is surfaced to an operator-visible alert.
var (
	// ErrSumInvariantViolated indicates allocation rows do not sum to the
	// computation total. Finalization rolls back entirely.
	ErrSumInvariantViolated = errors.New("allocation sum invariant violated")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data.
var (
	// Computation operation errors
	ErrFailedToRetrieveComputations = errors.New("failed to retrieve dividend computations")
	ErrFailedToRetrieveOutputs      = errors.New("failed to retrieve computation outputs")

	// Cap table operation errors
	ErrFailedToRetrieveCapTable = errors.New("failed to retrieve cap table snapshot")

	// Tender operation errors
	ErrFailedToRetrieveOffers = errors.New("failed to retrieve tender offers")
	ErrFailedToRetrieveBids   = errors.New("failed to retrieve tender offer bids")

	// Settlement operation errors
	ErrFailedToRetrievePayments = errors.New("failed to retrieve payments")
	ErrFailedToCreateTransfer   = errors.New("failed to create provider transfer")
)
