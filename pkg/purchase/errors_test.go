package purchase_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

func TestNewDBRetryableHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"timeout", errors.New("query timeout exceeded"), true},
		{"timed out", errors.New("write timed out"), true},
		{"connection", errors.New("connection reset by peer"), true},
		{"busy", errors.New("database is busy"), true},
		{"locked", errors.New("database table is locked"), true},
		{"constraint", errors.New("NOT NULL constraint failed"), false},
		{"syntax", errors.New("near \"SELEC\": syntax error"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			perr := purchase.NewDB(tt.err)
			assert.Equal(t, purchase.CodeDBError, perr.Code)
			assert.Equal(t, tt.retryable, perr.Retryable)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	perr := purchase.NewInvalid(purchase.ReasonNotSigned, "receipt has %d segments", 2)
	assert.Equal(t, "PURCHASE_INVALID (not_signed): receipt has 2 segments", perr.Error())
	assert.False(t, perr.Retryable)

	plain := purchase.NewNotFound("no purchase with transaction id tx-1")
	assert.Equal(t, "NOT_FOUND: no purchase with transaction id tx-1", plain.Error())
}

func TestAsErrorUnwrapsChains(t *testing.T) {
	t.Parallel()

	inner := purchase.NewNetwork("store front unreachable")
	wrapped := fmt.Errorf("loading products: %w", inner)

	perr, ok := purchase.AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, purchase.CodeNetworkError, perr.Code)
	assert.True(t, purchase.IsRetryable(wrapped))

	_, ok = purchase.AsError(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, purchase.IsRetryable(errors.New("plain")))
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	t.Run("typed error passes through", func(t *testing.T) {
		t.Parallel()

		perr := purchase.NewCancelled("user dismissed the sheet")
		assert.Same(t, perr, purchase.FromAny(perr))
	})

	t.Run("wrapped typed error is recovered", func(t *testing.T) {
		t.Parallel()

		inner := purchase.NewStoreProblem(purchase.PlatformAppStore, "storefront 503")
		got := purchase.FromAny(fmt.Errorf("history: %w", inner))
		assert.Equal(t, purchase.CodeStoreProblem, got.Code)
		assert.Equal(t, purchase.PlatformAppStore, got.Platform)
	})

	t.Run("plain error becomes unknown", func(t *testing.T) {
		t.Parallel()

		got := purchase.FromAny(errors.New("boom"))
		assert.Equal(t, purchase.CodeUnknown, got.Code)
		assert.False(t, got.Retryable)
	})

	t.Run("panic value becomes unknown", func(t *testing.T) {
		t.Parallel()

		got := purchase.FromAny("runtime error: index out of range")
		assert.Equal(t, purchase.CodeUnknown, got.Code)
		assert.False(t, got.Retryable)
	})

	t.Run("nil becomes unknown", func(t *testing.T) {
		t.Parallel()

		got := purchase.FromAny(nil)
		require.NotNil(t, got)
		assert.Equal(t, purchase.CodeUnknown, got.Code)
	})
}
