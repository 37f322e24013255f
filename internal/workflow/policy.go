package workflow

import (
	"context"
	"sync"
	"time"

	"constructlink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated identity attempting a transition.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// PermissionPolicy decides whether an actor may trigger a transition on a
// withdrawal owned by ownerID. Implementations must honor two overrides:
// System Admin is permitted everywhere, and the original creator may cancel
// their own request regardless of role.
type PermissionPolicy interface {
	IsAllowed(ctx context.Context, actor Actor, transition Transition, ownerID uuid.UUID) (bool, error)
}

// StaticPolicy is a fixed role -> permitted transitions table, used by tests
// and as the seed shape for the DB-backed policy.
type StaticPolicy struct {
	Roles map[string][]Transition
}

func (p StaticPolicy) IsAllowed(_ context.Context, actor Actor, transition Transition, ownerID uuid.UUID) (bool, error) {
	if actor.Role == model.RoleSystemAdmin {
		return true, nil
	}
	if transition == TransitionCancel && actor.ID == ownerID {
		return true, nil
	}
	for _, t := range p.Roles[actor.Role] {
		if t == transition {
			return true, nil
		}
	}
	return false, nil
}

// DefaultStaticPolicy mirrors the seeded role configuration.
func DefaultStaticPolicy() StaticPolicy {
	return StaticPolicy{Roles: map[string][]Transition{
		model.RoleSiteInventoryClerk: {TransitionVerify},
		model.RoleProjectManager:     {TransitionVerify, TransitionCancel},
		model.RoleAssetDirector:      {TransitionApprove, TransitionReturn, TransitionCancel},
		model.RoleWarehouseman:       {TransitionRelease},
	}}
}

// permCacheEntry stores cached transition codes for a role with TTL
type permCacheEntry struct {
	codes     map[string]bool
	expiresAt time.Time
}

// DBPolicy resolves role permissions from the roles/permissions tables with a
// short-lived cache, so role edits take effect without a restart but each
// transition does not cost a join.
type DBPolicy struct {
	db    *gorm.DB
	cache sync.Map // role name -> permCacheEntry
	ttl   time.Duration
}

func NewDBPolicy(db *gorm.DB) *DBPolicy {
	return &DBPolicy{db: db, ttl: 5 * time.Minute}
}

func (p *DBPolicy) IsAllowed(ctx context.Context, actor Actor, transition Transition, ownerID uuid.UUID) (bool, error) {
	if actor.Role == model.RoleSystemAdmin {
		return true, nil
	}
	if transition == TransitionCancel && actor.ID == ownerID {
		return true, nil
	}

	codes, err := p.codesForRole(ctx, actor.Role)
	if err != nil {
		return false, err
	}
	return codes[string(transition)], nil
}

// HasPermission checks an arbitrary permission code (resource-management
// routes), with the same System Admin override.
func (p *DBPolicy) HasPermission(ctx context.Context, role, code string) (bool, error) {
	if role == model.RoleSystemAdmin {
		return true, nil
	}
	codes, err := p.codesForRole(ctx, role)
	if err != nil {
		return false, err
	}
	return codes[code], nil
}

// InvalidateRole drops the cached codes for one role, or every role if name is empty.
func (p *DBPolicy) InvalidateRole(name string) {
	if name == "" {
		p.cache.Range(func(key, _ interface{}) bool {
			p.cache.Delete(key)
			return true
		})
		return
	}
	p.cache.Delete(name)
}

func (p *DBPolicy) codesForRole(ctx context.Context, roleName string) (map[string]bool, error) {
	if entry, ok := p.cache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	var codes []string
	err := p.db.WithContext(ctx).Raw(`
		SELECT p.code FROM permissions p
		INNER JOIN role_permissions rp ON rp.permission_id = p.id
		INNER JOIN roles r ON r.id = rp.role_id
		WHERE r.name = ?
	`, roleName).Pluck("code", &codes).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}

	p.cache.Store(roleName, permCacheEntry{codes: set, expiresAt: time.Now().Add(p.ttl)})
	return set, nil
}
