package domain

import "time"

// Role scopes what a user may see on the dashboard.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleCourier    Role = "courier"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSupervisor, RoleCourier:
		return true
	default:
		return false
	}
}

// User represents an entry of the credential directory.
type User struct {
	ID          int64
	LoginID     string
	SecretHash  string
	DisplayName string
	Role        Role
	CourierID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) IsCourier() bool {
	return u != nil && u.Role == RoleCourier
}
