package auth

const (
	RoleEmployee    = "employee"
	RoleManager     = "manager"
	RoleHR          = "hr_admin"
	RoleSystemAdmin = "system_admin"
)

var DefaultRoles = []string{RoleEmployee, RoleManager, RoleHR, RoleSystemAdmin}

type UserContext struct {
	UserID   string
	RoleID   string
	RoleName string
}
