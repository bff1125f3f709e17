package shared

// Core platform permissions.
const (
	PermCreateUser = "create_user"
	PermEditUser   = "edit_user"
	PermDeleteUser = "delete_user"

	PermManageUsers   = "manage_users"
	PermViewDashboard = "view_dashboard"
)

// RoleAdmin is excluded from the standard edit-role listing.
const RoleAdmin = "admin"

// CoreScopes lists all permissions seeded for the platform.
func CoreScopes() []string {
	return []string{
		PermCreateUser,
		PermEditUser,
		PermDeleteUser,
		PermManageUsers,
		PermViewDashboard,
	}
}
