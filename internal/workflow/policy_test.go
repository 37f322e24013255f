package workflow

import (
	"context"
	"testing"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticPolicy_RoleGating(t *testing.T) {
	policy := DefaultStaticPolicy()
	ctx := context.Background()
	owner := uuid.New()

	cases := []struct {
		role       string
		transition Transition
		allowed    bool
	}{
		{model.RoleSiteInventoryClerk, TransitionVerify, true},
		{model.RoleSiteInventoryClerk, TransitionApprove, false},
		{model.RoleProjectManager, TransitionVerify, true},
		{model.RoleProjectManager, TransitionCancel, true},
		{model.RoleProjectManager, TransitionRelease, false},
		{model.RoleAssetDirector, TransitionApprove, true},
		{model.RoleAssetDirector, TransitionReturn, true},
		{model.RoleAssetDirector, TransitionVerify, false},
		{model.RoleWarehouseman, TransitionRelease, true},
		{model.RoleWarehouseman, TransitionApprove, false},
	}

	for _, tc := range cases {
		actor := Actor{ID: uuid.New(), Role: tc.role}
		allowed, err := policy.IsAllowed(ctx, actor, tc.transition, owner)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, allowed, "%s attempting %s", tc.role, tc.transition)
	}
}

func TestStaticPolicy_SystemAdminOverride(t *testing.T) {
	policy := DefaultStaticPolicy()
	ctx := context.Background()
	admin := Actor{ID: uuid.New(), Role: model.RoleSystemAdmin}

	for _, tr := range []Transition{
		TransitionVerify, TransitionApprove, TransitionRelease, TransitionReturn, TransitionCancel,
	} {
		allowed, err := policy.IsAllowed(ctx, admin, tr, uuid.New())
		require.NoError(t, err)
		assert.True(t, allowed, "System Admin must be allowed to %s", tr)
	}
}

func TestStaticPolicy_OwnerCancelOverride(t *testing.T) {
	policy := DefaultStaticPolicy()
	ctx := context.Background()

	// A clerk cannot normally cancel, but may cancel their own request.
	owner := Actor{ID: uuid.New(), Role: model.RoleSiteInventoryClerk}

	allowed, err := policy.IsAllowed(ctx, owner, TransitionCancel, owner.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	// The override only applies to cancel.
	allowed, err = policy.IsAllowed(ctx, owner, TransitionApprove, owner.ID)
	require.NoError(t, err)
	assert.False(t, allowed)

	// And only to the creator.
	allowed, err = policy.IsAllowed(ctx, owner, TransitionCancel, uuid.New())
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestStaticPolicy_UnknownRoleDeniedEverything(t *testing.T) {
	policy := DefaultStaticPolicy()
	ctx := context.Background()
	actor := Actor{ID: uuid.New(), Role: "Visitor"}

	for _, tr := range []Transition{TransitionVerify, TransitionApprove, TransitionRelease} {
		allowed, err := policy.IsAllowed(ctx, actor, tr, uuid.New())
		require.NoError(t, err)
		assert.False(t, allowed)
	}
}
