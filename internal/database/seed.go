package database

import (
	"errors"

	"constructlink/internal/model"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type seedPermission struct {
	Code  string
	Name  string
	Group string
}

var seedPermissions = []seedPermission{
	{model.PermWithdrawalsVerify, "Verify withdrawals", "withdrawals"},
	{model.PermWithdrawalsApprove, "Approve withdrawals", "withdrawals"},
	{model.PermWithdrawalsRelease, "Release withdrawals", "withdrawals"},
	{model.PermWithdrawalsReturn, "Process asset returns", "withdrawals"},
	{model.PermWithdrawalsCancel, "Cancel withdrawals", "withdrawals"},
	{model.PermUsersRead, "View users", "users"},
	{model.PermUsersWrite, "Manage users", "users"},
	{model.PermRolesWrite, "Manage roles", "roles"},
	{model.PermProjectsWrite, "Manage projects", "projects"},
	{model.PermAssetsWrite, "Manage assets", "assets"},
	{model.PermConsumablesWrite, "Manage consumables", "consumables"},
	{model.PermAuditRead, "View audit logs", "audit"},
	{model.PermReportsRead, "View reports", "reports"},
}

// seedRoles maps each built-in role to its permission codes. System Admin gets
// every permission for visibility even though the policy short-circuits it.
var seedRoles = map[string][]string{
	model.RoleSystemAdmin: nil, // filled with every code below
	model.RoleAssetDirector: {
		model.PermWithdrawalsApprove, model.PermWithdrawalsReturn, model.PermWithdrawalsCancel,
		model.PermAssetsWrite, model.PermConsumablesWrite, model.PermProjectsWrite,
		model.PermAuditRead, model.PermReportsRead,
	},
	model.RoleProjectManager: {
		model.PermWithdrawalsVerify, model.PermWithdrawalsCancel,
		model.PermProjectsWrite, model.PermReportsRead,
	},
	model.RoleWarehouseman: {
		model.PermWithdrawalsRelease,
		model.PermConsumablesWrite, model.PermReportsRead,
	},
	model.RoleSiteInventoryClerk: {
		model.PermWithdrawalsVerify,
	},
}

var roleDescriptions = map[string]string{
	model.RoleSystemAdmin:        "Full access to every operation",
	model.RoleAssetDirector:      "Authorizes withdrawals and manages the asset catalog",
	model.RoleProjectManager:     "Verifies site requests and manages projects",
	model.RoleWarehouseman:       "Releases approved withdrawals from the warehouse",
	model.RoleSiteInventoryClerk: "Verifies withdrawal requests on site",
}

// Seed creates the built-in permissions and roles if missing. Safe to run on
// every startup; existing rows are left untouched so admin edits survive.
func Seed(db *gorm.DB) error {
	permsByCode := make(map[string]model.Permission, len(seedPermissions))
	for _, sp := range seedPermissions {
		perm := model.Permission{Code: sp.Code, Name: sp.Name, Group: sp.Group}
		if err := db.Where("code = ?", sp.Code).FirstOrCreate(&perm).Error; err != nil {
			return err
		}
		permsByCode[sp.Code] = perm
	}

	allCodes := make([]string, 0, len(seedPermissions))
	for _, sp := range seedPermissions {
		allCodes = append(allCodes, sp.Code)
	}
	seedRoles[model.RoleSystemAdmin] = allCodes

	for name, codes := range seedRoles {
		var role model.Role
		err := db.Where("name = ?", name).First(&role).Error
		if err == nil {
			continue // role exists, leave its permission set alone
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		role = model.Role{
			Name:        name,
			Description: roleDescriptions[name],
			IsSystem:    true,
		}
		if err := db.Create(&role).Error; err != nil {
			return err
		}

		perms := make([]model.Permission, 0, len(codes))
		for _, code := range codes {
			perms = append(perms, permsByCode[code])
		}
		if err := db.Model(&role).Association("Permissions").Replace(perms); err != nil {
			return err
		}
		log.WithField("role", name).Info("Seeded built-in role")
	}

	return nil
}
