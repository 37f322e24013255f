package service

import (
	"context"
	"errors"
	"fmt"

	"constructlink/internal/model"
	"constructlink/internal/repository"
	"constructlink/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateRoleRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

type UpdateRoleRequest struct {
	Description   string    `json:"description"`
	PermissionIDs *[]string `json:"permission_ids"` // nil means leave unchanged
}

type RoleService interface {
	Create(ctx context.Context, req CreateRoleRequest) (*model.Role, error)
	Update(ctx context.Context, id string, req UpdateRoleRequest) (*model.Role, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}

type roleService struct {
	repo      repository.RoleRepository
	policy    *workflow.DBPolicy
	txManager repository.TransactionManager
}

// NewRoleService wires the role CRUD to the permission policy cache so edits
// take effect immediately. policy may be nil in tests.
func NewRoleService(repo repository.RoleRepository, policy *workflow.DBPolicy, txManager repository.TransactionManager) RoleService {
	return &roleService{repo: repo, policy: policy, txManager: txManager}
}

func parsePermissionIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid permission id %q", workflow.ErrValidation, r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *roleService) Create(ctx context.Context, req CreateRoleRequest) (*model.Role, error) {
	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("%w: role %q already exists", workflow.ErrValidation, req.Name)
	}

	permIDs, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &model.Role{Name: req.Name, Description: req.Description}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, role); err != nil {
			return err
		}
		return s.repo.ReplacePermissions(txCtx, role, permIDs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(role.Name)
	return s.repo.FindByID(ctx, role.ID)
}

func (s *roleService) Update(ctx context.Context, id string, req UpdateRoleRequest) (*model.Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id", workflow.ErrValidation)
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: role %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}

	if req.Description != "" {
		role.Description = req.Description
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, role); err != nil {
			return err
		}
		if req.PermissionIDs != nil {
			permIDs, err := parsePermissionIDs(*req.PermissionIDs)
			if err != nil {
				return err
			}
			if err := s.repo.ReplacePermissions(txCtx, role, permIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(role.Name)
	return s.repo.FindByID(ctx, role.ID)
}

func (s *roleService) Delete(ctx context.Context, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid role id", workflow.ErrValidation)
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: role %s", workflow.ErrNotFound, id)
		}
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: built-in roles cannot be deleted", workflow.ErrValidation)
	}

	if err := s.repo.Delete(ctx, roleID); err != nil {
		return err
	}
	s.invalidate(role.Name)
	return nil
}

func (s *roleService) Get(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id", workflow.ErrValidation)
	}
	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: role %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return role, nil
}

func (s *roleService) List(ctx context.Context) ([]model.Role, error) {
	return s.repo.List(ctx)
}

func (s *roleService) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *roleService) invalidate(name string) {
	if s.policy != nil {
		s.policy.InvalidateRole(name)
	}
}
