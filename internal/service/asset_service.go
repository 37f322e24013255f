package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateAssetRequest struct {
	Ref             string `json:"ref" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Category        string `json:"category"`
	ProjectID       string `json:"project_id"`
	AcquisitionCost string `json:"acquisition_cost"`
}

type UpdateAssetRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	ProjectID       string `json:"project_id"`
	AcquisitionCost string `json:"acquisition_cost"`
	Status          string `json:"status"`
}

type AssetService interface {
	Create(ctx context.Context, actor workflow.Actor, req CreateAssetRequest) (*model.Asset, error)
	Update(ctx context.Context, actor workflow.Actor, id string, req UpdateAssetRequest) (*model.Asset, error)
	Delete(ctx context.Context, actor workflow.Actor, id string) error
	Get(ctx context.Context, id string) (*model.Asset, error)
	List(ctx context.Context, filter repository.AssetFilter) ([]model.Asset, int64, error)
}

type assetService struct {
	repo      repository.AssetRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewAssetService(repo repository.AssetRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) AssetService {
	return &assetService{repo: repo, auditRepo: auditRepo, txManager: txManager}
}

func (s *assetService) Create(ctx context.Context, actor workflow.Actor, req CreateAssetRequest) (*model.Asset, error) {
	projectID, err := parseOptionalProjectID(req.ProjectID)
	if err != nil {
		return nil, err
	}

	cost := decimal.Zero
	if req.AcquisitionCost != "" {
		cost, err = decimal.NewFromString(req.AcquisitionCost)
		if err != nil || cost.IsNegative() {
			return nil, fmt.Errorf("%w: acquisition_cost must be a non-negative decimal", workflow.ErrValidation)
		}
	}

	if _, err := s.repo.FindByRef(ctx, req.Ref); err == nil {
		return nil, fmt.Errorf("%w: asset ref %s already exists", workflow.ErrValidation, req.Ref)
	}

	asset := &model.Asset{
		Ref:             req.Ref,
		Name:            req.Name,
		Category:        req.Category,
		Status:          model.AssetStatusAvailable,
		ProjectID:       projectID,
		AcquisitionCost: cost,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, asset); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionCreateAsset, asset, map[string]interface{}{"ref": asset.Ref})
	})
	if err != nil {
		return nil, err
	}

	return asset, nil
}

func (s *assetService) Update(ctx context.Context, actor workflow.Actor, id string, req UpdateAssetRequest) (*model.Asset, error) {
	assetID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid asset id", workflow.ErrValidation)
	}

	var asset *model.Asset
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		asset, err = s.repo.FindByIDForUpdate(txCtx, assetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: asset %s", workflow.ErrNotFound, id)
			}
			return err
		}

		if req.Name != "" {
			asset.Name = req.Name
		}
		if req.Category != "" {
			asset.Category = req.Category
		}
		if req.ProjectID != "" {
			projectID, err := parseOptionalProjectID(req.ProjectID)
			if err != nil {
				return err
			}
			asset.ProjectID = projectID
		}
		if req.AcquisitionCost != "" {
			cost, err := decimal.NewFromString(req.AcquisitionCost)
			if err != nil || cost.IsNegative() {
				return fmt.Errorf("%w: acquisition_cost must be a non-negative decimal", workflow.ErrValidation)
			}
			asset.AcquisitionCost = cost
		}
		if req.Status != "" {
			// Manual status edits are limited to retiring and un-retiring; the
			// withdrawal workflow owns the other statuses.
			switch req.Status {
			case model.AssetStatusRetired:
				if asset.Status == model.AssetStatusWithdrawn {
					return fmt.Errorf("%w: a withdrawn asset cannot be retired", workflow.ErrValidation)
				}
			case model.AssetStatusAvailable:
				if asset.Status != model.AssetStatusRetired && asset.Status != model.AssetStatusReturnPending {
					return fmt.Errorf("%w: status can only be reset from RETIRED or RETURN_PENDING", workflow.ErrValidation)
				}
			default:
				return fmt.Errorf("%w: status %s is managed by the withdrawal workflow", workflow.ErrValidation, req.Status)
			}
			asset.Status = req.Status
		}

		if err := s.repo.Update(txCtx, asset); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionUpdateAsset, asset, nil)
	})
	if err != nil {
		return nil, err
	}

	return asset, nil
}

func (s *assetService) Delete(ctx context.Context, actor workflow.Actor, id string) error {
	assetID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid asset id", workflow.ErrValidation)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		asset, err := s.repo.FindByIDForUpdate(txCtx, assetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: asset %s", workflow.ErrNotFound, id)
			}
			return err
		}
		if asset.Status == model.AssetStatusWithdrawn || asset.Status == model.AssetStatusReturnPending {
			return fmt.Errorf("%w: asset %s is out on a withdrawal", workflow.ErrValidation, asset.Ref)
		}
		if err := s.repo.Delete(txCtx, assetID); err != nil {
			return err
		}
		return s.audit(txCtx, actor, model.ActionDeleteAsset, asset, nil)
	})
}

func (s *assetService) Get(ctx context.Context, id string) (*model.Asset, error) {
	assetID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid asset id", workflow.ErrValidation)
	}
	asset, err := s.repo.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: asset %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return asset, nil
}

func (s *assetService) List(ctx context.Context, filter repository.AssetFilter) ([]model.Asset, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *assetService) audit(ctx context.Context, actor workflow.Actor, action string, asset *model.Asset, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	return s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		EntityID:   asset.ID.String(),
		EntityName: asset.Ref,
		Details:    string(payload),
	})
}
