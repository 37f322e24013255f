package workflow

import (
	"testing"

	"constructlink/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_HappyPath(t *testing.T) {
	steps := []struct {
		from       string
		transition Transition
		to         string
	}{
		{model.StatusPendingVerification, TransitionVerify, model.StatusPendingApproval},
		{model.StatusPendingApproval, TransitionApprove, model.StatusApproved},
		{model.StatusApproved, TransitionRelease, model.StatusReleased},
		{model.StatusReleased, TransitionReturn, model.StatusReturned},
	}

	for _, step := range steps {
		next, err := Next(AssetWorkflow, step.from, step.transition)
		require.NoError(t, err, "from %s via %s", step.from, step.transition)
		assert.Equal(t, step.to, next)
	}
}

func TestNext_IllegalEdges(t *testing.T) {
	cases := []struct {
		name       string
		from       string
		transition Transition
	}{
		{"approve before verify", model.StatusPendingVerification, TransitionApprove},
		{"release before approve", model.StatusPendingApproval, TransitionRelease},
		{"verify twice", model.StatusPendingApproval, TransitionVerify},
		{"approve an approved withdrawal", model.StatusApproved, TransitionApprove},
		{"release twice", model.StatusReleased, TransitionRelease},
		{"return before release", model.StatusApproved, TransitionReturn},
		{"verify a returned withdrawal", model.StatusReturned, TransitionVerify},
		{"approve a canceled withdrawal", model.StatusCanceled, TransitionApprove},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Next(AssetWorkflow, tc.from, tc.transition)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestNext_CancelFromEveryNonTerminalStatus(t *testing.T) {
	for _, status := range []string{
		model.StatusPendingVerification,
		model.StatusPendingApproval,
		model.StatusApproved,
		model.StatusReleased,
	} {
		next, err := Next(AssetWorkflow, status, TransitionCancel)
		require.NoError(t, err, "cancel from %s", status)
		assert.Equal(t, model.StatusCanceled, next)
	}
}

func TestNext_TerminalStatusesAreFinal(t *testing.T) {
	for _, status := range []string{model.StatusReturned, model.StatusCanceled} {
		assert.True(t, IsTerminal(status))
		for _, tr := range []Transition{
			TransitionVerify, TransitionApprove, TransitionRelease, TransitionReturn, TransitionCancel,
		} {
			_, err := Next(AssetWorkflow, status, tr)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", tr, status)
		}
	}
}

func TestNext_BatchVariantHasNoReturn(t *testing.T) {
	_, err := Next(BatchWorkflow, model.StatusReleased, TransitionReturn)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Everything else matches the asset variant.
	next, err := Next(BatchWorkflow, model.StatusPendingApproval, TransitionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, next)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(AssetWorkflow, model.StatusReleased, TransitionReturn))
	assert.False(t, CanTransition(BatchWorkflow, model.StatusReleased, TransitionReturn))
	assert.True(t, CanTransition(BatchWorkflow, model.StatusReleased, TransitionCancel))
	assert.False(t, CanTransition(AssetWorkflow, model.StatusCanceled, TransitionCancel))
}
