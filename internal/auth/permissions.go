package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermFactoryDataRead   Permission = "factory_data:read"
	PermFactoryDataCreate Permission = "factory_data:create"
	PermVehicleManage     Permission = "vehicle:manage"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermFactoryDataRead,
	},
	RoleOperator: {
		PermFactoryDataRead,
		PermFactoryDataCreate,
	},
	RoleAdmin: {
		PermFactoryDataRead,
		PermFactoryDataCreate,
		PermVehicleManage,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
