package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"
	ws "constructlink/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type BatchItemRequest struct {
	ConsumableID string `json:"consumable_id" binding:"required"`
	Quantity     string `json:"quantity" binding:"required"`
}

// CreateBatchRequest is the cart payload the create-batch screen submits.
type CreateBatchRequest struct {
	ProjectID         string             `json:"project_id"`
	ReceiverFirstName string             `json:"receiver_first_name" binding:"required"`
	ReceiverLastName  string             `json:"receiver_last_name" binding:"required"`
	ReceiverContact   string             `json:"receiver_contact"`
	Purpose           string             `json:"purpose" binding:"required"`
	Notes             string             `json:"notes"`
	Items             []BatchItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CancelRequest carries the cancellation inputs. AssetReturnStatus is required
// when the withdrawal being canceled was already released.
type CancelRequest struct {
	Reason            string `json:"reason" binding:"required"`
	Detail            string `json:"detail"`
	AssetReturnStatus string `json:"asset_return_status"`
}

// BatchView augments the batch entity with computed aggregates for listings.
type BatchView struct {
	model.WithdrawalBatch
	TotalItems int `json:"total_items"`
}

// BatchPrintLine is one row of the print-formatted rendering
type BatchPrintLine struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
}

// BatchPrintView is the flattened payload behind the batch-print screen
type BatchPrintView struct {
	BatchReference string           `json:"batch_reference"`
	Status         string           `json:"status"`
	Project        string           `json:"project"`
	Receiver       string           `json:"receiver"`
	Contact        string           `json:"contact"`
	Purpose        string           `json:"purpose"`
	RequestedBy    string           `json:"requested_by"`
	CreatedAt      string           `json:"created_at"`
	ReleaseDate    string           `json:"release_date,omitempty"`
	TotalQuantity  string           `json:"total_quantity"`
	Lines          []BatchPrintLine `json:"lines"`
}

// --- Interface ---

type BatchService interface {
	CreateBatch(ctx context.Context, actor workflow.Actor, req CreateBatchRequest) (*BatchView, error)
	GetBatch(ctx context.Context, id string) (*BatchView, error)
	PrintView(ctx context.Context, id string) (*BatchPrintView, error)
	ListBatches(ctx context.Context, filter repository.BatchFilter) ([]BatchView, int64, error)
	Verify(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error)
	Approve(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error)
	Release(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error)
	Cancel(ctx context.Context, actor workflow.Actor, id string, req CancelRequest) (*BatchView, error)
}

type batchService struct {
	batchRepo      repository.BatchRepository
	consumableRepo repository.ConsumableRepository
	auditRepo      repository.AuditRepository
	ledger         LedgerService
	policy         workflow.PermissionPolicy
	txManager      repository.TransactionManager
	hub            *ws.Hub
}

func NewBatchService(
	batchRepo repository.BatchRepository,
	consumableRepo repository.ConsumableRepository,
	auditRepo repository.AuditRepository,
	ledger LedgerService,
	policy workflow.PermissionPolicy,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) BatchService {
	return &batchService{
		batchRepo:      batchRepo,
		consumableRepo: consumableRepo,
		auditRepo:      auditRepo,
		ledger:         ledger,
		policy:         policy,
		txManager:      txManager,
		hub:            hub,
	}
}

// --- Implementation ---

func (s *batchService) CreateBatch(ctx context.Context, actor workflow.Actor, req CreateBatchRequest) (*BatchView, error) {
	var projectID *uuid.UUID
	if req.ProjectID != "" {
		parsed, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid project_id", workflow.ErrValidation)
		}
		projectID = &parsed
	}

	type line struct {
		consumableID uuid.UUID
		quantity     decimal.Decimal
	}
	lines := make([]line, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		cid, err := uuid.Parse(item.ConsumableID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid consumable_id %q", workflow.ErrValidation, item.ConsumableID)
		}
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil || qty.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: quantity must be a positive number", workflow.ErrValidation)
		}
		if seen[cid] {
			return nil, fmt.Errorf("%w: duplicate consumable in cart", workflow.ErrValidation)
		}
		seen[cid] = true
		lines = append(lines, line{consumableID: cid, quantity: qty})
	}

	var batch model.WithdrawalBatch
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ref, err := s.batchRepo.NextBatchReference(txCtx)
		if err != nil {
			return fmt.Errorf("failed to generate batch reference: %w", err)
		}

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.quantity)
		}

		batch = model.WithdrawalBatch{
			BatchReference:    ref,
			ProjectID:         projectID,
			ReceiverFirstName: req.ReceiverFirstName,
			ReceiverLastName:  req.ReceiverLastName,
			ReceiverContact:   req.ReceiverContact,
			Purpose:           req.Purpose,
			Notes:             req.Notes,
			Status:            model.StatusPendingVerification,
			TotalQuantity:     total,
			CreatedBy:         actor.ID,
		}
		if err := s.batchRepo.Create(txCtx, &batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		// Snapshot availability per line. Informational only, pending batches
		// hold no stock and the approval guard re-reads live availability.
		for _, l := range lines {
			consumable, err := s.consumableRepo.FindByID(txCtx, l.consumableID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: consumable %s", workflow.ErrNotFound, l.consumableID)
				}
				return fmt.Errorf("failed to load consumable %s: %w", l.consumableID, err)
			}

			item := &model.BatchItem{
				BatchID:         batch.ID,
				ConsumableID:    consumable.ID,
				Quantity:        l.quantity,
				Unit:            consumable.Unit,
				Category:        consumable.Category,
				AvailableBefore: consumable.Available(),
				Status:          model.StatusPendingVerification,
			}
			if err := s.batchRepo.CreateItem(txCtx, item); err != nil {
				return fmt.Errorf("failed to create batch item: %w", err)
			}
		}

		return s.audit(txCtx, actor, model.ActionCreateBatch, &batch, map[string]interface{}{
			"batch_reference": ref,
			"total_quantity":  total.String(),
			"item_count":      len(lines),
		})
	})
	if err != nil {
		return nil, err
	}

	broadcastEvent(s.hub, "batch.created", map[string]interface{}{
		"batch_id":        batch.ID.String(),
		"batch_reference": batch.BatchReference,
	})

	return s.GetBatch(ctx, batch.ID.String())
}

func (s *batchService) GetBatch(ctx context.Context, id string) (*BatchView, error) {
	batchID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid batch id", workflow.ErrValidation)
	}

	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: batch %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	return toBatchView(batch), nil
}

func (s *batchService) PrintView(ctx context.Context, id string) (*BatchPrintView, error) {
	view, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	print := &BatchPrintView{
		BatchReference: view.BatchReference,
		Status:         view.Status,
		Receiver:       view.ReceiverLastName + ", " + view.ReceiverFirstName,
		Contact:        view.ReceiverContact,
		Purpose:        view.Purpose,
		CreatedAt:      view.CreatedAt.Format("2006-01-02 15:04"),
		TotalQuantity:  view.TotalQuantity.String(),
	}
	if view.Project != nil {
		print.Project = view.Project.Name
	}
	if view.Creator != nil {
		print.RequestedBy = view.Creator.Username
	}
	if view.ReleaseDate != nil {
		print.ReleaseDate = view.ReleaseDate.Format("2006-01-02 15:04")
	}
	for _, item := range view.Items {
		print.Lines = append(print.Lines, BatchPrintLine{
			SKU:      item.Consumable.SKU,
			Name:     item.Consumable.Name,
			Quantity: item.Quantity.String(),
			Unit:     item.Unit,
			Category: item.Category,
		})
	}

	return print, nil
}

func (s *batchService) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]BatchView, int64, error) {
	batches, total, err := s.batchRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]BatchView, 0, len(batches))
	for i := range batches {
		views = append(views, *toBatchView(&batches[i]))
	}
	return views, total, nil
}

func (s *batchService) Verify(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionVerify, model.ActionVerifyBatch, "batch.verified",
		func(txCtx context.Context, batch *model.WithdrawalBatch) error {
			now := time.Now()
			batch.VerifiedBy = &actor.ID
			batch.VerifiedAt = &now
			return nil
		})
}

// Approve is the reservation point: every line's quantity is held against the
// ledger inside the same transaction that flips the status. Any line failing
// the availability check aborts the whole transaction, no partial approval.
func (s *batchService) Approve(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionApprove, model.ActionApproveBatch, "batch.approved",
		func(txCtx context.Context, batch *model.WithdrawalBatch) error {
			// Lock consumable rows in a stable order so overlapping batches
			// cannot deadlock.
			items := make([]model.BatchItem, len(batch.Items))
			copy(items, batch.Items)
			sort.Slice(items, func(i, j int) bool {
				return items[i].ConsumableID.String() < items[j].ConsumableID.String()
			})

			for _, item := range items {
				if err := s.ledger.Reserve(txCtx, item.ConsumableID, item.Quantity, &batch.ID); err != nil {
					return err
				}
			}

			now := time.Now()
			batch.ApprovedBy = &actor.ID
			batch.ApprovedAt = &now
			return nil
		})
}

func (s *batchService) Release(ctx context.Context, actor workflow.Actor, id string) (*BatchView, error) {
	return s.transition(ctx, actor, id, workflow.TransitionRelease, model.ActionReleaseBatch, "batch.released",
		func(txCtx context.Context, batch *model.WithdrawalBatch) error {
			for _, item := range batch.Items {
				if err := s.ledger.CommitRelease(txCtx, item.ConsumableID, item.Quantity, &batch.ID); err != nil {
					return err
				}
			}

			now := time.Now()
			batch.ReleasedBy = &actor.ID
			batch.ReleaseDate = &now
			return nil
		})
}

func (s *batchService) Cancel(ctx context.Context, actor workflow.Actor, id string, req CancelRequest) (*BatchView, error) {
	if req.Reason == model.CancelReasonOther && req.Detail == "" {
		return nil, fmt.Errorf("%w: a custom reason is required when cancellation reason is 'other'", workflow.ErrValidation)
	}

	return s.transition(ctx, actor, id, workflow.TransitionCancel, model.ActionCancelBatch, "batch.canceled",
		func(txCtx context.Context, batch *model.WithdrawalBatch) error {
			switch batch.Status {
			case model.StatusApproved:
				// Reserved but not handed off, so give the holds back.
				for _, item := range batch.Items {
					if err := s.ledger.ReleaseReservation(txCtx, item.ConsumableID, item.Quantity, &batch.ID); err != nil {
						return err
					}
				}
			case model.StatusReleased:
				// Stock already left the warehouse; the actor must declare
				// whether it physically came back.
				switch req.AssetReturnStatus {
				case model.ReturnStatusReturned:
					for _, item := range batch.Items {
						if err := s.ledger.Restock(txCtx, item.ConsumableID, item.Quantity, &batch.ID,
							"canceled after release, items returned"); err != nil {
							return err
						}
					}
				case model.ReturnStatusPendingReturn:
					batch.PendingReconciliation = true
				case "":
					return fmt.Errorf("%w: asset_return_status is required when canceling a released withdrawal", workflow.ErrValidation)
				default:
					return fmt.Errorf("%w: asset_return_status must be %s or %s",
						workflow.ErrValidation, model.ReturnStatusReturned, model.ReturnStatusPendingReturn)
				}
			}

			now := time.Now()
			batch.CanceledBy = &actor.ID
			batch.CanceledAt = &now
			batch.CancelReason = req.Reason
			batch.CancelDetail = req.Detail
			batch.AssetReturnStatus = req.AssetReturnStatus
			return nil
		})
}

// transition runs the shared skeleton of every workflow step: lock the batch,
// consult the permission policy, compute the next status, run the
// transition-specific side effects, persist, audit, all in one transaction.
func (s *batchService) transition(
	ctx context.Context,
	actor workflow.Actor,
	id string,
	t workflow.Transition,
	auditAction string,
	event string,
	sideEffects func(txCtx context.Context, batch *model.WithdrawalBatch) error,
) (*BatchView, error) {
	batchID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid batch id", workflow.ErrValidation)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		batch, err := s.batchRepo.FindByIDForUpdate(txCtx, batchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: batch %s", workflow.ErrNotFound, id)
			}
			return err
		}

		allowed, err := s.policy.IsAllowed(txCtx, actor, t, batch.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to check permissions: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: role %s may not %s", workflow.ErrUnauthorized, actor.Role, t)
		}

		next, err := workflow.Next(workflow.BatchWorkflow, batch.Status, t)
		if err != nil {
			return err
		}

		if err := sideEffects(txCtx, batch); err != nil {
			return err
		}

		batch.Status = next
		if err := s.batchRepo.Update(txCtx, batch); err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}
		if err := s.batchRepo.UpdateItemStatuses(txCtx, batch.ID, next); err != nil {
			return fmt.Errorf("failed to update batch items: %w", err)
		}

		return s.audit(txCtx, actor, auditAction, batch, map[string]interface{}{
			"batch_reference": batch.BatchReference,
			"status":          next,
		})
	})
	if err != nil {
		return nil, err
	}

	view, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	broadcastEvent(s.hub, event, map[string]interface{}{
		"batch_id":        view.ID.String(),
		"batch_reference": view.BatchReference,
		"status":          view.Status,
	})

	return view, nil
}

func (s *batchService) audit(ctx context.Context, actor workflow.Actor, action string, batch *model.WithdrawalBatch, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		EntityID:   batch.ID.String(),
		EntityName: batch.BatchReference,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Helpers ---

func toBatchView(b *model.WithdrawalBatch) *BatchView {
	return &BatchView{
		WithdrawalBatch: *b,
		TotalItems:      len(b.Items),
	}
}
