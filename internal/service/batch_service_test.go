package service

import (
	"context"
	"sync"
	"testing"

	"constructlink/internal/model"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchFixture struct {
	store   *fakeStore
	service BatchService
	ledger  LedgerService

	maker      workflow.Actor
	clerk      workflow.Actor
	director   workflow.Actor
	warehouse  workflow.Actor
	projectMgr workflow.Actor
}

func newBatchFixture() *batchFixture {
	store := newFakeStore()
	consumableRepo := &fakeConsumableRepo{store: store}
	stockTxRepo := &fakeStockTxRepo{store: store}
	ledger := NewLedgerService(consumableRepo, stockTxRepo)

	svc := NewBatchService(
		&fakeBatchRepo{store: store},
		consumableRepo,
		&fakeAuditRepo{store: store},
		ledger,
		workflow.DefaultStaticPolicy(),
		&fakeTxManager{store: store},
		nil,
	)

	return &batchFixture{
		store:      store,
		service:    svc,
		ledger:     ledger,
		maker:      workflow.Actor{ID: uuid.New(), Role: model.RoleSiteInventoryClerk},
		clerk:      workflow.Actor{ID: uuid.New(), Role: model.RoleSiteInventoryClerk},
		director:   workflow.Actor{ID: uuid.New(), Role: model.RoleAssetDirector},
		warehouse:  workflow.Actor{ID: uuid.New(), Role: model.RoleWarehouseman},
		projectMgr: workflow.Actor{ID: uuid.New(), Role: model.RoleProjectManager},
	}
}

func (f *batchFixture) createBatch(t *testing.T, items []BatchItemRequest) *BatchView {
	t.Helper()
	view, err := f.service.CreateBatch(context.Background(), f.maker, CreateBatchRequest{
		ReceiverFirstName: "Juan",
		ReceiverLastName:  "Dela Cruz",
		Purpose:           "Foundation pour",
		Items:             items,
	})
	require.NoError(t, err)
	return view
}

func (f *batchFixture) consumable(t *testing.T, id uuid.UUID) model.Consumable {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	c, ok := f.store.consumables[id]
	require.True(t, ok)
	return c
}

func TestCreateBatch(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")
	nails := seedConsumable(f.store, "NAIL-002", "kg", "5")

	view := f.createBatch(t, []BatchItemRequest{
		{ConsumableID: cement.String(), Quantity: "50"},
		{ConsumableID: nails.String(), Quantity: "2.5"},
	})

	assert.Equal(t, model.StatusPendingVerification, view.Status)
	assert.Regexp(t, `^WB-\d{8}-\d{5}$`, view.BatchReference)
	assert.Equal(t, "52.5", view.TotalQuantity.String())
	assert.Equal(t, 2, view.TotalItems)

	// Creation never touches the ledger.
	c := f.consumable(t, cement)
	assert.True(t, c.Reserved.IsZero())

	// Availability snapshot taken per line.
	for _, item := range view.Items {
		if item.ConsumableID == cement {
			assert.Equal(t, "60", item.AvailableBefore.String())
		}
	}
}

func TestCreateBatch_Validation(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")

	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.service.CreateBatch(context.Background(), f.maker, CreateBatchRequest{
			ReceiverFirstName: "Juan", ReceiverLastName: "Dela Cruz", Purpose: "x",
			Items: []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "0"}},
		})
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := f.service.CreateBatch(context.Background(), f.maker, CreateBatchRequest{
			ReceiverFirstName: "Juan", ReceiverLastName: "Dela Cruz", Purpose: "x",
			Items: []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "-3"}},
		})
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})

	t.Run("duplicate line", func(t *testing.T) {
		_, err := f.service.CreateBatch(context.Background(), f.maker, CreateBatchRequest{
			ReceiverFirstName: "Juan", ReceiverLastName: "Dela Cruz", Purpose: "x",
			Items: []BatchItemRequest{
				{ConsumableID: cement.String(), Quantity: "1"},
				{ConsumableID: cement.String(), Quantity: "2"},
			},
		})
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})

	t.Run("unknown consumable", func(t *testing.T) {
		_, err := f.service.CreateBatch(context.Background(), f.maker, CreateBatchRequest{
			ReceiverFirstName: "Juan", ReceiverLastName: "Dela Cruz", Purpose: "x",
			Items: []BatchItemRequest{{ConsumableID: uuid.NewString(), Quantity: "1"}},
		})
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})
}

func TestBatchWorkflow_HappyPath(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")
	ctx := context.Background()

	view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "50"}})
	id := view.ID.String()

	view, err := f.service.Verify(ctx, f.clerk, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, view.Status)

	view, err = f.service.Approve(ctx, f.director, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, view.Status)

	c := f.consumable(t, cement)
	assert.Equal(t, "60", c.OnHand.String())
	assert.Equal(t, "50", c.Reserved.String())
	assert.Equal(t, "10", c.OnHand.Sub(c.Reserved).String())

	view, err = f.service.Release(ctx, f.warehouse, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReleased, view.Status)

	c = f.consumable(t, cement)
	assert.Equal(t, "10", c.OnHand.String())
	assert.True(t, c.Reserved.IsZero())

	// Item statuses follow the batch.
	for _, item := range view.Items {
		assert.Equal(t, model.StatusReleased, item.Status)
	}
}

func TestApprove_AllOrNothing(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")
	nails := seedConsumable(f.store, "NAIL-002", "kg", "5")
	ctx := context.Background()

	view := f.createBatch(t, []BatchItemRequest{
		{ConsumableID: cement.String(), Quantity: "50"},
		{ConsumableID: nails.String(), Quantity: "10"},
	})
	id := view.ID.String()

	_, err := f.service.Verify(ctx, f.clerk, id)
	require.NoError(t, err)

	// Cement would fit but nails are short, so the whole approval fails.
	_, err = f.service.Approve(ctx, f.director, id)
	assert.ErrorIs(t, err, workflow.ErrInsufficientStock)

	// Batch is left in Pending Approval for the director to retry or cancel.
	view, err = f.service.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, view.Status)

	// The cement reservation made before the failing line was rolled back.
	assert.True(t, f.consumable(t, cement).Reserved.IsZero())
	assert.True(t, f.consumable(t, nails).Reserved.IsZero())
}

func TestApprove_ConcurrentBatchesExactlyOneWins(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "50")
	ctx := context.Background()

	ids := make([]string, 2)
	for i := range ids {
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "30"}})
		ids[i] = view.ID.String()
		_, err := f.service.Verify(ctx, f.clerk, ids[i])
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Approve(ctx, f.director, ids[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, workflow.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two racing approvals must win")

	c := f.consumable(t, cement)
	assert.Equal(t, "30", c.Reserved.String())
	assert.False(t, c.OnHand.Sub(c.Reserved).IsNegative())
}

func TestBatchTransition_Permissions(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")
	ctx := context.Background()

	view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "5"}})
	id := view.ID.String()

	t.Run("clerk cannot approve", func(t *testing.T) {
		_, err := f.service.Verify(ctx, f.clerk, id)
		require.NoError(t, err)
		_, err = f.service.Approve(ctx, f.clerk, id)
		assert.ErrorIs(t, err, workflow.ErrUnauthorized)
	})

	t.Run("warehouseman cannot approve", func(t *testing.T) {
		_, err := f.service.Approve(ctx, f.warehouse, id)
		assert.ErrorIs(t, err, workflow.ErrUnauthorized)
	})

	t.Run("director cannot release", func(t *testing.T) {
		_, err := f.service.Approve(ctx, f.director, id)
		require.NoError(t, err)
		_, err = f.service.Release(ctx, f.director, id)
		assert.ErrorIs(t, err, workflow.ErrUnauthorized)
	})

	t.Run("approving twice conflicts", func(t *testing.T) {
		_, err := f.service.Approve(ctx, f.director, id)
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})
}

func TestCancelBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("creator may cancel own pending batch", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "5"}})

		view, err := f.service.Cancel(ctx, f.maker, view.ID.String(), CancelRequest{Reason: model.CancelReasonNoLongerNeeded})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, view.Status)
	})

	t.Run("other reason requires detail", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "5"}})

		_, err := f.service.Cancel(ctx, f.maker, view.ID.String(), CancelRequest{Reason: model.CancelReasonOther})
		assert.ErrorIs(t, err, workflow.ErrValidation)

		_, err = f.service.Cancel(ctx, f.maker, view.ID.String(), CancelRequest{
			Reason: model.CancelReasonOther, Detail: "ordered by mistake",
		})
		assert.NoError(t, err)
	})

	t.Run("cancel after approval releases the reservation", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "50"}})
		id := view.ID.String()

		_, err := f.service.Verify(ctx, f.clerk, id)
		require.NoError(t, err)
		_, err = f.service.Approve(ctx, f.director, id)
		require.NoError(t, err)
		require.Equal(t, "50", f.consumable(t, cement).Reserved.String())

		view, err = f.service.Cancel(ctx, f.director, id, CancelRequest{Reason: model.CancelReasonWrongItems})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, view.Status)

		c := f.consumable(t, cement)
		assert.True(t, c.Reserved.IsZero())
		assert.Equal(t, "60", c.OnHand.String())
	})

	t.Run("cancel after release requires a return declaration", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "50"}})
		id := view.ID.String()

		_, err := f.service.Verify(ctx, f.clerk, id)
		require.NoError(t, err)
		_, err = f.service.Approve(ctx, f.director, id)
		require.NoError(t, err)
		_, err = f.service.Release(ctx, f.warehouse, id)
		require.NoError(t, err)
		require.Equal(t, "10", f.consumable(t, cement).OnHand.String())

		_, err = f.service.Cancel(ctx, f.director, id, CancelRequest{Reason: model.CancelReasonWrongItems})
		assert.ErrorIs(t, err, workflow.ErrValidation)

		view, err = f.service.Cancel(ctx, f.director, id, CancelRequest{
			Reason:            model.CancelReasonWrongItems,
			AssetReturnStatus: model.ReturnStatusReturned,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, view.Status)
		assert.False(t, view.PendingReconciliation)

		// Items came back, stock restored.
		assert.Equal(t, "60", f.consumable(t, cement).OnHand.String())
	})

	t.Run("cancel after release with pending return flags reconciliation", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "50"}})
		id := view.ID.String()

		_, err := f.service.Verify(ctx, f.clerk, id)
		require.NoError(t, err)
		_, err = f.service.Approve(ctx, f.director, id)
		require.NoError(t, err)
		_, err = f.service.Release(ctx, f.warehouse, id)
		require.NoError(t, err)

		view, err = f.service.Cancel(ctx, f.director, id, CancelRequest{
			Reason:            model.CancelReasonOther,
			Detail:            "released to the wrong site",
			AssetReturnStatus: model.ReturnStatusPendingReturn,
		})
		require.NoError(t, err)
		assert.True(t, view.PendingReconciliation)

		// Stock is not restored until the physical return is reconciled.
		assert.Equal(t, "10", f.consumable(t, cement).OnHand.String())
	})

	t.Run("canceled batch is terminal", func(t *testing.T) {
		f := newBatchFixture()
		cement := seedConsumable(f.store, "CEM-001", "bags", "60")
		view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "5"}})
		id := view.ID.String()

		_, err := f.service.Cancel(ctx, f.maker, id, CancelRequest{Reason: model.CancelReasonDuplicate})
		require.NoError(t, err)

		_, err = f.service.Cancel(ctx, f.director, id, CancelRequest{Reason: model.CancelReasonDuplicate})
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
		_, err = f.service.Verify(ctx, f.clerk, id)
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})
}

func TestBatchStockTransactionTrail(t *testing.T) {
	f := newBatchFixture()
	cement := seedConsumable(f.store, "CEM-001", "bags", "60")
	ctx := context.Background()

	view := f.createBatch(t, []BatchItemRequest{{ConsumableID: cement.String(), Quantity: "50"}})
	id := view.ID.String()

	_, err := f.service.Verify(ctx, f.clerk, id)
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, f.director, id)
	require.NoError(t, err)
	_, err = f.service.Release(ctx, f.warehouse, id)
	require.NoError(t, err)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	require.Len(t, f.store.stockTxs, 2)
	assert.Equal(t, model.StockTxReserve, f.store.stockTxs[0].TransactionType)
	assert.Equal(t, model.StockTxRelease, f.store.stockTxs[1].TransactionType)
	assert.Equal(t, decimal.RequireFromString("10"), f.store.stockTxs[1].OnHandAfter)
}
