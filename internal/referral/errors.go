package referral

import "errors"

// Authorization failures.
var (
	ErrAccessDenied = errors.New("referral: access denied")
)

// Validation failures.
var (
	ErrPartnerNameTooLong    = errors.New("referral: partner name too long")
	ErrInvalidPayoutOwner    = errors.New("referral: payout account not owned by partner")
	ErrInvalidPayoutMint     = errors.New("referral: payout account mint mismatch")
	ErrFeeOverMax            = errors.New("referral: fee over max")
	ErrInvalidNetStakeConfig = errors.New("referral: zero max net stake requires base fee == max fee")
	ErrInvalidOperatorConfig = errors.New("referral: invalid operator configuration")
	ErrInvalidTreasury       = errors.New("referral: invalid treasury account")
	ErrInvalidConfig         = errors.New("referral: invalid engine configuration")
	ErrInvalidAddress        = errors.New("referral: invalid address")
	ErrInsufficientBalance   = errors.New("referral: source balance below requested amount")
)

// State failures.
var (
	ErrPaused                 = errors.New("referral: partner paused")
	ErrTransferNotAvailable   = errors.New("referral: transfer not available yet")
	ErrAlreadyInitialized     = errors.New("referral: already initialized")
	ErrRegistryNotInitialized = errors.New("referral: registry not initialized")
)

// Lookup failures.
var (
	ErrPartnerNotFound = errors.New("referral: partner not found")
	ErrAccountNotFound = errors.New("referral: token account not found")
)

// Arithmetic failures.
var (
	ErrCalculationFailure = errors.New("referral: calculation failure")
)

// Ledger and protocol failures. Protocol errors are wrapped with ErrUpstream
// and keep their original chain.
var (
	ErrUpstream          = errors.New("referral: staking protocol failure")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrMintMismatch      = errors.New("ledger: mint mismatch")
	ErrUnauthorized      = errors.New("ledger: signer is neither owner nor delegate")
)

// Kind groups errors for transports that map them to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthorization
	KindValidation
	KindState
	KindNotFound
	KindArithmetic
	KindUpstream
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAccessDenied):
		return KindAuthorization
	case errors.Is(err, ErrPartnerNameTooLong),
		errors.Is(err, ErrInvalidPayoutOwner),
		errors.Is(err, ErrInvalidPayoutMint),
		errors.Is(err, ErrFeeOverMax),
		errors.Is(err, ErrInvalidNetStakeConfig),
		errors.Is(err, ErrInvalidOperatorConfig),
		errors.Is(err, ErrInvalidTreasury),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInsufficientBalance):
		return KindValidation
	case errors.Is(err, ErrPaused),
		errors.Is(err, ErrTransferNotAvailable),
		errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, ErrRegistryNotInitialized):
		return KindState
	case errors.Is(err, ErrPartnerNotFound), errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrCalculationFailure):
		return KindArithmetic
	case errors.Is(err, ErrUpstream),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrMintMismatch),
		errors.Is(err, ErrUnauthorized):
		return KindUpstream
	default:
		return KindInternal
	}
}

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindArithmetic:
		return "arithmetic"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}
