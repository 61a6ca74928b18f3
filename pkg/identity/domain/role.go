package domain

import "time"

type Role[K comparable] struct {
	ID               K
	Name             string
	NormalizedName   string
	ConcurrencyStamp string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserRole links a user to a role. The pair is unique.
type UserRole[K comparable] struct {
	UserID K
	RoleID K
}
