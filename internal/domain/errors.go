package domain

import "errors"

// Validación: input mal formado, se rechaza antes de tocar estado.
var (
	ErrInvalidQuestion       = errors.New("question must be 1..500 bytes")
	ErrInvalidOutcomeCount   = errors.New("outcome count out of range")
	ErrInvalidOutcomeLabel   = errors.New("outcome label must be 1..100 bytes")
	ErrInvalidDeadline       = errors.New("deadline must be in the future")
	ErrDeadlinesNotAscending = errors.New("period deadlines must be strictly ascending")
	ErrInvalidPeriodCount    = errors.New("period count out of range")
	ErrInvalidPeriod         = errors.New("period index out of range")
	ErrInvalidRange          = errors.New("upper bound must exceed lower bound")
	ErrInvalidSide           = errors.New("side index out of range")
	ErrInvalidOutcome        = errors.New("oracle outcome out of range")
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrInvalidFeeRate        = errors.New("fee rate exceeds maximum")
	ErrInvalidParent         = errors.New("invalid parent market")
	ErrInvalidConfidence     = errors.New("confidence must be 1..100")
	ErrInvalidBatch          = errors.New("batch size out of range")
	ErrInvalidVariant        = errors.New("unknown market variant")
	ErrInvalidPaymentID      = errors.New("payment id is required")
	ErrInvalidIdentity       = errors.New("identity is required")
	ErrMissingQuestion       = errors.New("oracle question id is required")
)

// Precondición: la operación llega fuera de su ventana de estado o tiempo.
var (
	ErrMarketNotActive     = errors.New("market not active")
	ErrMarketExpired       = errors.New("market no longer accepts stakes")
	ErrTooEarly            = errors.New("too early")
	ErrAlreadyResolved     = errors.New("already resolved")
	ErrOracleNotAnswered   = errors.New("oracle has not answered")
	ErrOracleAnswered      = errors.New("oracle already answered")
	ErrParentNotResolved   = errors.New("parent market not resolved")
	ErrConditionNotChecked = errors.New("parent condition not checked")
	ErrNotSettled          = errors.New("market not settled")
	ErrNotWinner           = errors.New("no stake on the winning side")
	ErrNoPosition          = errors.New("no position")
	ErrNoFees              = errors.New("no fees to withdraw")
	ErrNoBalance           = errors.New("no balance to withdraw")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrAlreadyRefunded     = errors.New("question already refunded")
	ErrNotCancellable      = errors.New("variant does not support cancellation")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

var ErrOverflow = errors.New("arithmetic overflow")

var ErrUnauthorized = errors.New("unauthorized")

// Idempotencia.
var (
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrPaymentUsed    = errors.New("payment id already used")
)

// Record store.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)

// ErrorKind clasifica un error según la taxonomía del motor.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindPrecondition
	KindArithmetic
	KindAuthorization
	KindIdempotency
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindArithmetic:
		return "arithmetic"
	case KindAuthorization:
		return "authorization"
	case KindIdempotency:
		return "idempotency"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

var kinds = map[error]ErrorKind{
	ErrInvalidQuestion:       KindValidation,
	ErrInvalidOutcomeCount:   KindValidation,
	ErrInvalidOutcomeLabel:   KindValidation,
	ErrInvalidDeadline:       KindValidation,
	ErrDeadlinesNotAscending: KindValidation,
	ErrInvalidPeriodCount:    KindValidation,
	ErrInvalidPeriod:         KindValidation,
	ErrInvalidRange:          KindValidation,
	ErrInvalidSide:           KindValidation,
	ErrInvalidOutcome:        KindValidation,
	ErrZeroAmount:            KindValidation,
	ErrInvalidFeeRate:        KindValidation,
	ErrInvalidParent:         KindValidation,
	ErrInvalidConfidence:     KindValidation,
	ErrInvalidBatch:          KindValidation,
	ErrInvalidVariant:        KindValidation,
	ErrInvalidPaymentID:      KindValidation,
	ErrInvalidIdentity:       KindValidation,
	ErrMissingQuestion:       KindValidation,

	ErrMarketNotActive:     KindPrecondition,
	ErrMarketExpired:       KindPrecondition,
	ErrTooEarly:            KindPrecondition,
	ErrAlreadyResolved:     KindPrecondition,
	ErrOracleNotAnswered:   KindPrecondition,
	ErrOracleAnswered:      KindPrecondition,
	ErrParentNotResolved:   KindPrecondition,
	ErrConditionNotChecked: KindPrecondition,
	ErrNotSettled:          KindPrecondition,
	ErrNotWinner:           KindPrecondition,
	ErrNoPosition:          KindPrecondition,
	ErrNoFees:              KindPrecondition,
	ErrNoBalance:           KindPrecondition,
	ErrAlreadyAnswered:     KindPrecondition,
	ErrAlreadyRefunded:     KindPrecondition,
	ErrNotCancellable:      KindPrecondition,
	ErrInsufficientFunds:   KindPrecondition,

	ErrOverflow:     KindArithmetic,
	ErrUnauthorized: KindAuthorization,

	ErrAlreadyClaimed: KindIdempotency,
	ErrPaymentUsed:    KindIdempotency,

	ErrNotFound:      KindStorage,
	ErrAlreadyExists: KindStorage,
	ErrLockHeld:      KindStorage,
}

// KindOf devuelve la categoría del primer sentinel encontrado en la cadena de err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
