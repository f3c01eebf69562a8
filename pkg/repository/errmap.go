package repository

import (
	"errors"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// mapClientError decodes a platform capability failure into the taxonomy.
// The switch is closed: unrecognized codes land on UNKNOWN_ERROR rather than
// inventing new classes at the boundary.
func (r *Repository) mapClientError(err error) *purchase.Error {
	if perr, ok := purchase.AsError(err); ok {
		return perr
	}

	var cerr *ClientError
	if !errors.As(err, &cerr) {
		return purchase.FromAny(err)
	}

	switch cerr.Code {
	case ClientCodeUserCancelled:
		return purchase.NewCancelled(cerr.Message).WithCause(cerr)
	case ClientCodeUserError:
		return purchase.NewNotAllowed(cerr.Message, "").WithCause(cerr)
	case ClientCodeDeferredPayment:
		return purchase.NewNotAllowed(cerr.Message, "deferred").WithCause(cerr)
	case ClientCodeAlreadyPrepared:
		// Another purchase operation is in flight. Surfaced as a distinct
		// non-retryable error instead of silently queueing behind it.
		return purchase.NewNotAllowed(cerr.Message, purchase.ReasonOperationInProgress).WithCause(cerr)
	case ClientCodeAlreadyOwned:
		return purchase.NewAlreadyPurchased(cerr.Message).WithCause(cerr)
	case ClientCodeItemUnavailable:
		return purchase.NewNotFound(cerr.Message).WithCause(cerr)
	case ClientCodeNetwork:
		return purchase.NewNetwork(cerr.Message).WithCause(cerr)
	case ClientCodeServiceError, ClientCodeRemoteError, ClientCodeNotAvailable:
		return purchase.NewStoreProblem(r.platform, cerr.Message).WithCause(cerr)
	case ClientCodeDeveloperError:
		return purchase.NewConfiguration(cerr.Message).WithCause(cerr)
	default:
		return purchase.NewUnknown(cerr.Message).WithCause(cerr)
	}
}

// mapAggregatorError decodes an aggregator rejection into the taxonomy.
func (r *Repository) mapAggregatorError(err error) *purchase.Error {
	if perr, ok := purchase.AsError(err); ok {
		return perr
	}

	var aerr *AggregatorError
	if !errors.As(err, &aerr) {
		return purchase.FromAny(err)
	}

	switch aerr.Code {
	case AggregatorCodeCancelled:
		return purchase.NewCancelled(aerr.Message).WithCause(aerr)
	case AggregatorCodeStoreProblem:
		return purchase.NewStoreProblem(r.platform, aerr.Message).WithCause(aerr)
	case AggregatorCodeNotAllowed:
		return purchase.NewNotAllowed(aerr.Message, "").WithCause(aerr)
	case AggregatorCodeInvalid:
		return purchase.NewInvalid("aggregator_rejected", "%s", aerr.Message).WithCause(aerr)
	case AggregatorCodeAlreadyPurchased:
		return purchase.NewAlreadyPurchased(aerr.Message).WithCause(aerr)
	case AggregatorCodeNetwork:
		return purchase.NewNetwork(aerr.Message).WithCause(aerr)
	case AggregatorCodeInvalidCredentials:
		return purchase.NewConfiguration(aerr.Message).WithCause(aerr)
	default:
		return purchase.NewUnknown(aerr.Message).WithCause(aerr)
	}
}
