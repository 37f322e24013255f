package workflow

import (
	"fmt"

	"constructlink/internal/model"
)

// Transition names a workflow action. The string values double as the
// permission codes the role configuration is keyed by.
type Transition string

const (
	TransitionVerify  Transition = model.PermWithdrawalsVerify
	TransitionApprove Transition = model.PermWithdrawalsApprove
	TransitionRelease Transition = model.PermWithdrawalsRelease
	TransitionReturn  Transition = model.PermWithdrawalsReturn
	TransitionCancel  Transition = model.PermWithdrawalsCancel
)

// Variant selects the transition table. Durable assets support Return;
// consumable batches do not (withdrawn consumables are consumed).
type Variant int

const (
	AssetWorkflow Variant = iota
	BatchWorkflow
)

// edges maps current status -> transition -> next status. Cancel is handled
// separately because it is legal from every non-terminal status.
var edges = map[string]map[Transition]string{
	model.StatusPendingVerification: {TransitionVerify: model.StatusPendingApproval},
	model.StatusPendingApproval:     {TransitionApprove: model.StatusApproved},
	model.StatusApproved:            {TransitionRelease: model.StatusReleased},
	model.StatusReleased:            {TransitionReturn: model.StatusReturned},
}

// IsTerminal reports whether no transition may leave the given status.
func IsTerminal(status string) bool {
	return status == model.StatusReturned || status == model.StatusCanceled
}

// Cancelable reports whether a cancel is still legal from the given status.
func Cancelable(status string) bool {
	return !IsTerminal(status)
}

// Next returns the status reached by applying transition to current, or
// ErrInvalidTransition naming both when the edge does not exist. The variant
// removes the Return edge for consumable batches.
func Next(variant Variant, current string, transition Transition) (string, error) {
	if transition == TransitionCancel {
		if !Cancelable(current) {
			return "", fmt.Errorf("%w: cannot cancel a %s withdrawal", ErrInvalidTransition, current)
		}
		return model.StatusCanceled, nil
	}

	if variant == BatchWorkflow && transition == TransitionReturn {
		return "", fmt.Errorf("%w: consumable batches are not returnable", ErrInvalidTransition)
	}

	next, ok := edges[current][transition]
	if !ok {
		return "", fmt.Errorf("%w: %s is not legal from status %s", ErrInvalidTransition, transition, current)
	}
	return next, nil
}

// CanTransition is the single authoritative guard the API layer consults to
// decide which action buttons a status permits. It never errors; illegal edges
// simply return false.
func CanTransition(variant Variant, current string, transition Transition) bool {
	_, err := Next(variant, current, transition)
	return err == nil
}
