package domain

import "time"

// SessionUser is the user shape persisted with a session. It never carries secrets.
type SessionUser struct {
	LoginID     string `json:"loginId"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	CourierID   string `json:"courierId,omitempty"`
}

func NewSessionUser(u *User) SessionUser {
	return SessionUser{
		LoginID:     u.LoginID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CourierID:   u.CourierID,
	}
}

func (u SessionUser) IsCourier() bool {
	return u.Role == RoleCourier
}

// Name falls back to the login id when no display name was recorded.
func (u SessionUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.LoginID != "" {
		return u.LoginID
	}
	return "User"
}

// Session is an authenticated login with a fixed expiry.
type Session struct {
	ID        string
	User      SessionUser
	ExpiresAt time.Time
}
