package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
	"github.com/dmitrymomot/purchasekit/pkg/reconcile"
	"github.com/dmitrymomot/purchasekit/pkg/store"
)

type fakeHistory struct {
	transactions []purchase.Transaction
	err          error
	panicWith    any
}

func (f *fakeHistory) RequestAllPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.transactions, f.err
}

// fakeStore is an in-memory PurchaseStore with per-transaction error
// injection, ordered by insertion like the real datastore.
type fakeStore struct {
	order      []string
	rows       map[string]purchase.Purchase
	queryErr   error
	recordErr  map[string]error
	deleteErr  map[string]error
	recorded   []string
	deleted    []string
	syncMarked []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:      make(map[string]purchase.Purchase),
		recordErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeStore) GetAllPurchases(ctx context.Context) ([]purchase.Purchase, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]purchase.Purchase, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rows[id])
	}
	return out, nil
}

func (f *fakeStore) RecordPurchase(ctx context.Context, p store.NewPurchase) error {
	if err := f.recordErr[p.TransactionID]; err != nil {
		return err
	}
	if _, exists := f.rows[p.TransactionID]; exists {
		return purchase.NewDB(nil)
	}
	f.order = append(f.order, p.TransactionID)
	f.rows[p.TransactionID] = purchase.Purchase{
		ID:            uuid.New(),
		TransactionID: p.TransactionID,
		ProductID:     p.ProductID,
		PurchasedAt:   p.PurchasedAt,
		Price:         p.Price,
		Verified:      p.Verified,
	}
	f.recorded = append(f.recorded, p.TransactionID)
	return nil
}

func (f *fakeStore) UpdateSyncStatus(ctx context.Context, transactionID string, synced bool) error {
	row, ok := f.rows[transactionID]
	if !ok {
		return purchase.NewNotFound("purchase not found")
	}
	row.Synced = synced
	f.rows[transactionID] = row
	f.syncMarked = append(f.syncMarked, transactionID)
	return nil
}

func (f *fakeStore) DeletePurchase(ctx context.Context, transactionID string) error {
	if err := f.deleteErr[transactionID]; err != nil {
		return err
	}
	if _, ok := f.rows[transactionID]; !ok {
		return purchase.NewNotFound("purchase not found")
	}
	delete(f.rows, transactionID)
	for i, id := range f.order {
		if id == transactionID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, transactionID)
	return nil
}

func platformTx(id string) purchase.Transaction {
	return purchase.Transaction{
		TransactionID: id,
		ProductID:     "premium.monthly",
		PurchaseDate:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		ReceiptData:   "header.payload.signature",
	}
}

func seedLocal(s *fakeStore, id string) {
	s.order = append(s.order, id)
	s.rows[id] = purchase.Purchase{
		ID:            uuid.New(),
		TransactionID: id,
		ProductID:     "premium.monthly",
		PurchasedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestReconcileRecordsNewPurchases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := &fakeHistory{transactions: []purchase.Transaction{
		platformTx("tx-1"), platformTx("tx-2"), platformTx("tx-3"),
	}}
	s := newFakeStore()

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NewCount)
	assert.Zero(t, result.UpdatedCount)
	assert.Zero(t, result.DeletedCount)
	assert.Zero(t, result.FailedOperations)

	for _, id := range []string{"tx-1", "tx-2", "tx-3"} {
		row, ok := s.rows[id]
		require.True(t, ok, id)
		assert.True(t, row.Synced, "platform-sourced record starts synced")
		assert.False(t, row.Verified, "history entries are unverified")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := &fakeHistory{transactions: []purchase.Transaction{
		platformTx("tx-1"), platformTx("tx-2"),
	}}
	s := newFakeStore()

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	first, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.NewCount)

	second, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, second, "converged state produces an all-zero result")
	assert.Len(t, s.recorded, 2, "no duplicate inserts")
}

func TestReconcileDeletesOrphans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFakeStore()
	seedLocal(s, "tx-kept")
	seedLocal(s, "tx-orphan")
	history := &fakeHistory{transactions: []purchase.Transaction{platformTx("tx-kept")}}

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, []string{"tx-orphan"}, s.deleted)

	_, kept := s.rows["tx-kept"]
	assert.True(t, kept)
}

func TestReconcileDedupesPlatformHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := &fakeHistory{transactions: []purchase.Transaction{
		platformTx("tx-1"), platformTx("tx-1"), platformTx("tx-1"),
	}}
	s := newFakeStore()

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewCount)
	assert.Len(t, s.recorded, 1)
}

func TestReconcileSkipsMalformedTransactions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	missingProduct := platformTx("tx-bad")
	missingProduct.ProductID = ""
	history := &fakeHistory{transactions: []purchase.Transaction{
		platformTx("tx-good"), missingProduct,
	}}
	s := newFakeStore()

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewCount)
	assert.Equal(t, 1, result.FailedOperations)
	assert.Equal(t, []string{"tx-good"}, s.recorded)
}

func TestReconcilePartialWriteFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := &fakeHistory{transactions: []purchase.Transaction{
		platformTx("tx-1"), platformTx("tx-2"), platformTx("tx-3"),
	}}
	s := newFakeStore()
	s.recordErr["tx-2"] = purchase.NewDB(assert.AnError)

	r, err := reconcile.New(history, s)
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewCount)
	assert.Equal(t, 1, result.FailedOperations)
	assert.Equal(t, []string{"tx-1", "tx-3"}, s.recorded)
}

func TestReconcileQueryFailurePassesThrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("history failure", func(t *testing.T) {
		t.Parallel()

		upstream := purchase.NewNetwork("store front unreachable")
		history := &fakeHistory{err: upstream}
		r, err := reconcile.New(history, newFakeStore())
		require.NoError(t, err)

		result, err := r.Reconcile(ctx)
		assert.Zero(t, result)
		perr, ok := purchase.AsError(err)
		require.True(t, ok)
		assert.Equal(t, purchase.CodeNetworkError, perr.Code)
		assert.True(t, perr.Retryable, "retryability survives the passthrough")
	})

	t.Run("datastore failure", func(t *testing.T) {
		t.Parallel()

		s := newFakeStore()
		s.queryErr = purchase.NewDB(assert.AnError)
		r, err := reconcile.New(&fakeHistory{}, s)
		require.NoError(t, err)

		result, err := r.Reconcile(ctx)
		assert.Zero(t, result)
		perr, ok := purchase.AsError(err)
		require.True(t, ok)
		assert.Equal(t, purchase.CodeDBError, perr.Code)
	})
}

func TestReconcilePanicMapsToUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := &fakeHistory{panicWith: "unexpected platform payload"}
	r, err := reconcile.New(history, newFakeStore())
	require.NoError(t, err)

	result, err := r.Reconcile(ctx)
	assert.Zero(t, result)
	perr, ok := purchase.AsError(err)
	require.True(t, ok)
	assert.Equal(t, purchase.CodeUnknown, perr.Code)
	assert.False(t, perr.Retryable)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := reconcile.New(nil, newFakeStore())
	require.Error(t, err)

	_, err = reconcile.New(&fakeHistory{}, nil)
	require.Error(t, err)
}
