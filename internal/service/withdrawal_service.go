package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"
	ws "constructlink/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateWithdrawalRequest struct {
	AssetID           string `json:"asset_id" binding:"required"`
	ProjectID         string `json:"project_id"`
	ReceiverFirstName string `json:"receiver_first_name" binding:"required"`
	ReceiverLastName  string `json:"receiver_last_name" binding:"required"`
	ReceiverContact   string `json:"receiver_contact"`
	Purpose           string `json:"purpose" binding:"required"`
	Notes             string `json:"notes"`
	ExpectedReturn    string `json:"expected_return"` // optional, YYYY-MM-DD
}

// ReturnRequest carries the asset-return inputs. A damaged return must say
// what is damaged.
type ReturnRequest struct {
	Condition         string `json:"condition" binding:"required"`
	DamageDescription string `json:"damage_description"`
}

// WithdrawalView augments the request entity with the computed overdue flag.
type WithdrawalView struct {
	model.WithdrawalRequest
	Overdue bool `json:"overdue"`
}

// --- Interface ---

type WithdrawalService interface {
	Create(ctx context.Context, actor workflow.Actor, req CreateWithdrawalRequest) (*WithdrawalView, error)
	Get(ctx context.Context, id string) (*WithdrawalView, error)
	List(ctx context.Context, filter repository.WithdrawalFilter) ([]WithdrawalView, int64, error)
	Verify(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error)
	Approve(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error)
	Release(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error)
	Return(ctx context.Context, actor workflow.Actor, id string, req ReturnRequest) (*WithdrawalView, error)
	Cancel(ctx context.Context, actor workflow.Actor, id string, req CancelRequest) (*WithdrawalView, error)
}

type withdrawalService struct {
	withdrawalRepo repository.WithdrawalRepository
	assetRepo      repository.AssetRepository
	auditRepo      repository.AuditRepository
	policy         workflow.PermissionPolicy
	txManager      repository.TransactionManager
	hub            *ws.Hub
}

func NewWithdrawalService(
	withdrawalRepo repository.WithdrawalRepository,
	assetRepo repository.AssetRepository,
	auditRepo repository.AuditRepository,
	policy workflow.PermissionPolicy,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) WithdrawalService {
	return &withdrawalService{
		withdrawalRepo: withdrawalRepo,
		assetRepo:      assetRepo,
		auditRepo:      auditRepo,
		policy:         policy,
		txManager:      txManager,
		hub:            hub,
	}
}

// --- Implementation ---

func (s *withdrawalService) Create(ctx context.Context, actor workflow.Actor, req CreateWithdrawalRequest) (*WithdrawalView, error) {
	assetID, err := uuid.Parse(req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid asset_id", workflow.ErrValidation)
	}

	var projectID *uuid.UUID
	if req.ProjectID != "" {
		parsed, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid project_id", workflow.ErrValidation)
		}
		projectID = &parsed
	}

	var expectedReturn *time.Time
	if req.ExpectedReturn != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpectedReturn)
		if err != nil {
			return nil, fmt.Errorf("%w: expected_return must be YYYY-MM-DD", workflow.ErrValidation)
		}
		expectedReturn = &parsed
	}

	var withdrawal model.WithdrawalRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		asset, err := s.assetRepo.FindByIDForUpdate(txCtx, assetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: asset %s", workflow.ErrNotFound, req.AssetID)
			}
			return err
		}
		if asset.Status != model.AssetStatusAvailable {
			return fmt.Errorf("%w: asset %s is %s, not available for withdrawal",
				workflow.ErrValidation, asset.Ref, asset.Status)
		}

		withdrawal = model.WithdrawalRequest{
			AssetID:           asset.ID,
			ProjectID:         projectID,
			ReceiverFirstName: req.ReceiverFirstName,
			ReceiverLastName:  req.ReceiverLastName,
			ReceiverContact:   req.ReceiverContact,
			Purpose:           req.Purpose,
			Notes:             req.Notes,
			ExpectedReturn:    expectedReturn,
			Status:            model.StatusPendingVerification,
			CreatedBy:         actor.ID,
		}
		if err := s.withdrawalRepo.Create(txCtx, &withdrawal); err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}

		return s.audit(txCtx, actor, model.ActionCreateWithdrawal, &withdrawal, asset.Ref, map[string]interface{}{
			"asset_ref": asset.Ref,
			"purpose":   req.Purpose,
		})
	})
	if err != nil {
		return nil, err
	}

	broadcastEvent(s.hub, "withdrawal.created", map[string]interface{}{
		"withdrawal_id": withdrawal.ID.String(),
	})

	return s.Get(ctx, withdrawal.ID.String())
}

func (s *withdrawalService) Get(ctx context.Context, id string) (*WithdrawalView, error) {
	withdrawalID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid withdrawal id", workflow.ErrValidation)
	}

	w, err := s.withdrawalRepo.FindByID(ctx, withdrawalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: withdrawal %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	return toWithdrawalView(w), nil
}

func (s *withdrawalService) List(ctx context.Context, filter repository.WithdrawalFilter) ([]WithdrawalView, int64, error) {
	list, total, err := s.withdrawalRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]WithdrawalView, 0, len(list))
	for i := range list {
		views = append(views, *toWithdrawalView(&list[i]))
	}
	return views, total, nil
}

func (s *withdrawalService) Verify(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionVerify, model.ActionVerifyWithdrawal, "withdrawal.verified",
		func(txCtx context.Context, w *model.WithdrawalRequest) error {
			now := time.Now()
			w.VerifiedBy = &actor.ID
			w.VerifiedAt = &now
			return nil
		})
}

func (s *withdrawalService) Approve(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionApprove, model.ActionApproveWithdrawal, "withdrawal.approved",
		func(txCtx context.Context, w *model.WithdrawalRequest) error {
			now := time.Now()
			w.ApprovedBy = &actor.ID
			w.ApprovedAt = &now
			return nil
		})
}

// Release marks the physical hand-off and flips the asset to WITHDRAWN.
func (s *withdrawalService) Release(ctx context.Context, actor workflow.Actor, id string) (*WithdrawalView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionRelease, model.ActionReleaseWithdrawal, "withdrawal.released",
		func(txCtx context.Context, w *model.WithdrawalRequest) error {
			if err := s.assetRepo.UpdateStatus(txCtx, w.AssetID, model.AssetStatusWithdrawn); err != nil {
				return fmt.Errorf("failed to update asset status: %w", err)
			}
			now := time.Now()
			w.ReleasedBy = &actor.ID
			w.ReleasedAt = &now
			return nil
		})
}

func (s *withdrawalService) Return(ctx context.Context, actor workflow.Actor, id string, req ReturnRequest) (*WithdrawalView, error) {
	if req.Condition != model.ReturnConditionGood && req.Condition != model.ReturnConditionDamaged {
		return nil, fmt.Errorf("%w: condition must be %s or %s",
			workflow.ErrValidation, model.ReturnConditionGood, model.ReturnConditionDamaged)
	}
	if req.Condition == model.ReturnConditionDamaged && req.DamageDescription == "" {
		return nil, fmt.Errorf("%w: damage description is required when return condition is damaged", workflow.ErrValidation)
	}

	return s.transition(ctx, actor, id, workflow.TransitionReturn, model.ActionReturnWithdrawal, "withdrawal.returned",
		func(txCtx context.Context, w *model.WithdrawalRequest) error {
			if err := s.assetRepo.UpdateStatus(txCtx, w.AssetID, model.AssetStatusAvailable); err != nil {
				return fmt.Errorf("failed to update asset status: %w", err)
			}
			now := time.Now()
			w.ReturnedAt = &now
			w.ReturnCondition = req.Condition
			w.DamageDescription = req.DamageDescription
			return nil
		})
}

func (s *withdrawalService) Cancel(ctx context.Context, actor workflow.Actor, id string, req CancelRequest) (*WithdrawalView, error) {
	if req.Reason == model.CancelReasonOther && req.Detail == "" {
		return nil, fmt.Errorf("%w: a custom reason is required when cancellation reason is 'other'", workflow.ErrValidation)
	}

	return s.transition(ctx, actor, id, workflow.TransitionCancel, model.ActionCancelWithdrawal, "withdrawal.canceled",
		func(txCtx context.Context, w *model.WithdrawalRequest) error {
			if w.Status == model.StatusReleased {
				// The asset left the warehouse; the actor must declare whether
				// it physically came back.
				switch req.AssetReturnStatus {
				case model.ReturnStatusReturned:
					if err := s.assetRepo.UpdateStatus(txCtx, w.AssetID, model.AssetStatusAvailable); err != nil {
						return fmt.Errorf("failed to update asset status: %w", err)
					}
				case model.ReturnStatusPendingReturn:
					if err := s.assetRepo.UpdateStatus(txCtx, w.AssetID, model.AssetStatusReturnPending); err != nil {
						return fmt.Errorf("failed to update asset status: %w", err)
					}
				case "":
					return fmt.Errorf("%w: asset_return_status is required when canceling a released withdrawal", workflow.ErrValidation)
				default:
					return fmt.Errorf("%w: asset_return_status must be %s or %s",
						workflow.ErrValidation, model.ReturnStatusReturned, model.ReturnStatusPendingReturn)
				}
			}

			now := time.Now()
			w.CanceledBy = &actor.ID
			w.CanceledAt = &now
			w.CancelReason = req.Reason
			w.CancelDetail = req.Detail
			w.AssetReturnStatus = req.AssetReturnStatus
			return nil
		})
}

// transition is the shared skeleton of every workflow step; see the batch
// service counterpart.
func (s *withdrawalService) transition(
	ctx context.Context,
	actor workflow.Actor,
	id string,
	t workflow.Transition,
	auditAction string,
	event string,
	sideEffects func(txCtx context.Context, w *model.WithdrawalRequest) error,
) (*WithdrawalView, error) {
	withdrawalID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid withdrawal id", workflow.ErrValidation)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		w, err := s.withdrawalRepo.FindByIDForUpdate(txCtx, withdrawalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: withdrawal %s", workflow.ErrNotFound, id)
			}
			return err
		}

		allowed, err := s.policy.IsAllowed(txCtx, actor, t, w.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to check permissions: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: role %s may not %s", workflow.ErrUnauthorized, actor.Role, t)
		}

		next, err := workflow.Next(workflow.AssetWorkflow, w.Status, t)
		if err != nil {
			return err
		}

		if err := sideEffects(txCtx, w); err != nil {
			return err
		}

		w.Status = next
		if err := s.withdrawalRepo.Update(txCtx, w); err != nil {
			return fmt.Errorf("failed to update withdrawal: %w", err)
		}

		return s.audit(txCtx, actor, auditAction, w, "", map[string]interface{}{
			"status": next,
		})
	})
	if err != nil {
		return nil, err
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	broadcastEvent(s.hub, event, map[string]interface{}{
		"withdrawal_id": view.ID.String(),
		"status":        view.Status,
	})

	return view, nil
}

func (s *withdrawalService) audit(ctx context.Context, actor workflow.Actor, action string, w *model.WithdrawalRequest, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		EntityID:   w.ID.String(),
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers ---

func toWithdrawalView(w *model.WithdrawalRequest) *WithdrawalView {
	return &WithdrawalView{
		WithdrawalRequest: *w,
		Overdue:           w.Overdue(time.Now()),
	}
}
