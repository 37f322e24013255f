package service

import (
	"context"
	"testing"
	"time"

	"constructlink/internal/model"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withdrawalFixture struct {
	store   *fakeStore
	service WithdrawalService

	maker     workflow.Actor
	clerk     workflow.Actor
	director  workflow.Actor
	warehouse workflow.Actor
}

func newWithdrawalFixture() *withdrawalFixture {
	store := newFakeStore()

	svc := NewWithdrawalService(
		&fakeWithdrawalRepo{store: store},
		&fakeAssetRepo{store: store},
		&fakeAuditRepo{store: store},
		workflow.DefaultStaticPolicy(),
		&fakeTxManager{store: store},
		nil,
	)

	return &withdrawalFixture{
		store:     store,
		service:   svc,
		maker:     workflow.Actor{ID: uuid.New(), Role: model.RoleSiteInventoryClerk},
		clerk:     workflow.Actor{ID: uuid.New(), Role: model.RoleSiteInventoryClerk},
		director:  workflow.Actor{ID: uuid.New(), Role: model.RoleAssetDirector},
		warehouse: workflow.Actor{ID: uuid.New(), Role: model.RoleWarehouseman},
	}
}

func (f *withdrawalFixture) create(t *testing.T, assetID uuid.UUID) *WithdrawalView {
	t.Helper()
	view, err := f.service.Create(context.Background(), f.maker, CreateWithdrawalRequest{
		AssetID:           assetID.String(),
		ReceiverFirstName: "Maria",
		ReceiverLastName:  "Santos",
		Purpose:           "Excavation works",
	})
	require.NoError(t, err)
	return view
}

func (f *withdrawalFixture) asset(t *testing.T, id uuid.UUID) model.Asset {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	a, ok := f.store.assets[id]
	require.True(t, ok)
	return a
}

func (f *withdrawalFixture) advanceToReleased(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.service.Verify(ctx, f.clerk, id)
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, f.director, id)
	require.NoError(t, err)
	_, err = f.service.Release(ctx, f.warehouse, id)
	require.NoError(t, err)
}

func TestCreateWithdrawal(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)

	view := f.create(t, excavator)
	assert.Equal(t, model.StatusPendingVerification, view.Status)
	assert.Equal(t, f.maker.ID, view.CreatedBy)
	assert.False(t, view.Overdue)

	// A pending request does not change the asset status.
	assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)
}

func TestCreateWithdrawal_AssetMustBeAvailable(t *testing.T) {
	f := newWithdrawalFixture()
	ctx := context.Background()

	for _, status := range []string{
		model.AssetStatusWithdrawn, model.AssetStatusReturnPending, model.AssetStatusRetired,
	} {
		asset := seedAsset(f.store, "EQ-"+status, status)
		_, err := f.service.Create(ctx, f.maker, CreateWithdrawalRequest{
			AssetID:           asset.String(),
			ReceiverFirstName: "Maria",
			ReceiverLastName:  "Santos",
			Purpose:           "x",
		})
		assert.ErrorIs(t, err, workflow.ErrValidation, "asset in status %s", status)
	}

	_, err := f.service.Create(ctx, f.maker, CreateWithdrawalRequest{
		AssetID:           uuid.NewString(),
		ReceiverFirstName: "Maria",
		ReceiverLastName:  "Santos",
		Purpose:           "x",
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestWithdrawalWorkflow_HappyPath(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
	ctx := context.Background()

	view := f.create(t, excavator)
	id := view.ID.String()

	view, err := f.service.Verify(ctx, f.clerk, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, view.Status)
	assert.Equal(t, f.clerk.ID, *view.VerifiedBy)

	view, err = f.service.Approve(ctx, f.director, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, view.Status)
	// Approval alone does not hand the asset over.
	assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)

	view, err = f.service.Release(ctx, f.warehouse, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReleased, view.Status)
	assert.Equal(t, model.AssetStatusWithdrawn, f.asset(t, excavator).Status)

	view, err = f.service.Return(ctx, f.director, id, ReturnRequest{Condition: model.ReturnConditionGood})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, view.Status)
	assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)
}

func TestReturn_DamagedRequiresDescription(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
	ctx := context.Background()

	view := f.create(t, excavator)
	f.advanceToReleased(t, view.ID.String())

	_, err := f.service.Return(ctx, f.director, view.ID.String(), ReturnRequest{Condition: model.ReturnConditionDamaged})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.service.Return(ctx, f.director, view.ID.String(), ReturnRequest{Condition: "BROKEN"})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	returned, err := f.service.Return(ctx, f.director, view.ID.String(), ReturnRequest{
		Condition:         model.ReturnConditionDamaged,
		DamageDescription: "hydraulic hose split",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReturnConditionDamaged, returned.ReturnCondition)
	assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)
}

func TestCancelWithdrawal_AfterRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a return declaration", func(t *testing.T) {
		f := newWithdrawalFixture()
		excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
		view := f.create(t, excavator)
		f.advanceToReleased(t, view.ID.String())

		_, err := f.service.Cancel(ctx, f.director, view.ID.String(), CancelRequest{Reason: model.CancelReasonWrongItems})
		assert.ErrorIs(t, err, workflow.ErrValidation)
	})

	t.Run("returned asset becomes available again", func(t *testing.T) {
		f := newWithdrawalFixture()
		excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
		view := f.create(t, excavator)
		f.advanceToReleased(t, view.ID.String())

		canceled, err := f.service.Cancel(ctx, f.director, view.ID.String(), CancelRequest{
			Reason:            model.CancelReasonWrongItems,
			AssetReturnStatus: model.ReturnStatusReturned,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, canceled.Status)
		assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)
	})

	t.Run("pending return parks the asset", func(t *testing.T) {
		f := newWithdrawalFixture()
		excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
		view := f.create(t, excavator)
		f.advanceToReleased(t, view.ID.String())

		canceled, err := f.service.Cancel(ctx, f.director, view.ID.String(), CancelRequest{
			Reason:            model.CancelReasonOther,
			Detail:            "crew reassigned mid-job",
			AssetReturnStatus: model.ReturnStatusPendingReturn,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCanceled, canceled.Status)
		assert.Equal(t, model.AssetStatusReturnPending, f.asset(t, excavator).Status)
	})
}

func TestCancelWithdrawal_OwnerOverride(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
	ctx := context.Background()

	view := f.create(t, excavator)

	// Another clerk may not cancel someone else's request.
	_, err := f.service.Cancel(ctx, f.clerk, view.ID.String(), CancelRequest{Reason: model.CancelReasonDuplicate})
	assert.ErrorIs(t, err, workflow.ErrUnauthorized)

	// The creator may, whatever their role grants.
	canceled, err := f.service.Cancel(ctx, f.maker, view.ID.String(), CancelRequest{Reason: model.CancelReasonDuplicate})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)
}

func TestWithdrawal_OverdueFlag(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour).Format("2006-01-02")
	view, err := f.service.Create(ctx, f.maker, CreateWithdrawalRequest{
		AssetID:           excavator.String(),
		ReceiverFirstName: "Maria",
		ReceiverLastName:  "Santos",
		Purpose:           "x",
		ExpectedReturn:    past,
	})
	require.NoError(t, err)

	// Not overdue while still pending.
	assert.False(t, view.Overdue)

	f.advanceToReleased(t, view.ID.String())

	view, err = f.service.Get(ctx, view.ID.String())
	require.NoError(t, err)
	assert.True(t, view.Overdue)

	// Returning clears the flag.
	view, err = f.service.Return(ctx, f.director, view.ID.String(), ReturnRequest{Condition: model.ReturnConditionGood})
	require.NoError(t, err)
	assert.False(t, view.Overdue)
}

func TestWithdrawal_SkippingStepsConflicts(t *testing.T) {
	f := newWithdrawalFixture()
	excavator := seedAsset(f.store, "EQ-0001", model.AssetStatusAvailable)
	ctx := context.Background()

	view := f.create(t, excavator)
	id := view.ID.String()

	_, err := f.service.Approve(ctx, f.director, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = f.service.Release(ctx, f.warehouse, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = f.service.Return(ctx, f.director, id, ReturnRequest{Condition: model.ReturnConditionGood})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// Asset untouched by the failed attempts.
	assert.Equal(t, model.AssetStatusAvailable, f.asset(t, excavator).Status)
}
