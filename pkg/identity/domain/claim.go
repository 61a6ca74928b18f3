package domain

// Claim is a (type, value) pair asserted about a user or a role.
type Claim struct {
	Type  string
	Value string
}

func (c Claim) String() string { return c.Type + "=" + c.Value }

// UserClaim is a claim row owned by a user.
type UserClaim[K comparable] struct {
	ID     int64
	UserID K
	Claim
}

// RoleClaim is a claim row owned by a role.
type RoleClaim[K comparable] struct {
	ID     int64
	RoleID K
	Claim
}
