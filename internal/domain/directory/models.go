package directory

import "time"

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	RoleID         string    `json:"roleId,omitempty"`
	RoleName       string    `json:"roleName,omitempty"`
	DepartmentCode string    `json:"departmentCode,omitempty"`
	EmploymentType string    `json:"employmentType,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewUser struct {
	Username       string
	Email          string
	PasswordHash   string
	RoleID         string
	DepartmentCode string
	EmploymentType string
	Status         string
}
