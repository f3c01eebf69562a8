package purchase

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable identifier from the closed error taxonomy. New codes must
// not be invented at call sites; anything unmapped becomes CodeUnknown.
type Code string

const (
	CodePurchaseCancelled  Code = "PURCHASE_CANCELLED"
	CodePurchaseNotAllowed Code = "PURCHASE_NOT_ALLOWED"
	CodePurchaseInvalid    Code = "PURCHASE_INVALID"
	CodeAlreadyPurchased   Code = "PRODUCT_ALREADY_PURCHASED"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeStoreProblem       Code = "STORE_PROBLEM_ERROR"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeDBError            Code = "DB_ERROR"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnknown            Code = "UNKNOWN_ERROR"
)

// Reasons refine CodePurchaseInvalid and CodePurchaseNotAllowed errors without
// widening the taxonomy.
const (
	ReasonNotSigned           = "not_signed"
	ReasonOperationInProgress = "operation_in_progress"
)

// Error is the typed failure value surfaced by every purchasekit boundary.
// Retryable is never left ambiguous: each constructor fixes it per the
// taxonomy, and DB errors use a message heuristic (see NewDB).
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Reason    string   // set for purchase-invalid class failures
	Platform  Platform // set for store-problem failures
	cause     error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the underlying error for errors.Is/As chains.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func NewCancelled(message string) *Error {
	return &Error{Code: CodePurchaseCancelled, Message: message}
}

func NewNotAllowed(message, reason string) *Error {
	return &Error{Code: CodePurchaseNotAllowed, Message: message, Reason: reason}
}

// NewInvalid builds a PURCHASE_INVALID error. The reason is a short machine
// tag such as ReasonNotSigned; the message is the diagnosable detail.
func NewInvalid(reason, format string, args ...any) *Error {
	return &Error{
		Code:    CodePurchaseInvalid,
		Message: fmt.Sprintf(format, args...),
		Reason:  reason,
	}
}

func NewAlreadyPurchased(productID string) *Error {
	return &Error{
		Code:    CodeAlreadyPurchased,
		Message: fmt.Sprintf("product %s is already purchased", productID),
	}
}

func NewNetwork(message string) *Error {
	return &Error{Code: CodeNetworkError, Message: message, Retryable: true}
}

// NewStoreProblem reports an unavailable or misbehaving store front. The
// originating platform tag travels with the error.
func NewStoreProblem(platform Platform, message string) *Error {
	return &Error{
		Code:      CodeStoreProblem,
		Message:   message,
		Retryable: true,
		Platform:  platform,
	}
}

func NewConfiguration(message string) *Error {
	return &Error{Code: CodeConfigurationError, Message: message}
}

func NewInvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func NewUnknown(message string) *Error {
	return &Error{Code: CodeUnknown, Message: message}
}

// NewDB classifies a datastore failure. Transient conditions (timeouts,
// broken connections, a busy or locked database file) are retryable; anything
// else is not.
func NewDB(err error) *Error {
	msg := "database failure"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:      CodeDBError,
		Message:   msg,
		Retryable: dbRetryable(msg),
		cause:     err,
	}
}

func dbRetryable(message string) bool {
	m := strings.ToLower(message)
	for _, hint := range []string{"timeout", "timed out", "connection", "busy", "locked"} {
		if strings.Contains(m, hint) {
			return true
		}
	}
	return false
}

// AsError unwraps err through its chain to the first *Error.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// IsRetryable reports the Retryable flag of a typed error chain.
// Untyped errors are conservatively non-retryable.
func IsRetryable(err error) bool {
	if perr, ok := AsError(err); ok {
		return perr.Retryable
	}
	return false
}

// FromAny decodes an arbitrary failure value into the taxonomy. It accepts
// typed errors, plain errors and recovered panic values, and never returns
// nil, so boundary recover blocks can rely on it unconditionally.
func FromAny(v any) *Error {
	switch e := v.(type) {
	case nil:
		return NewUnknown("unknown failure")
	case *Error:
		return e
	case error:
		if perr, ok := AsError(e); ok {
			return perr
		}
		return NewUnknown(e.Error()).WithCause(e)
	default:
		return NewUnknown(fmt.Sprint(v))
	}
}
