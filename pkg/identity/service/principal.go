package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/policy"
)

// Principal is the claim set describing a signed-in user.
type Principal struct {
	Claims []domain.Claim

	types policy.ClaimsIdentityOptions
}

func (p *Principal) FindFirst(claimType string) (domain.Claim, bool) {
	if p == nil {
		return domain.Claim{}, false
	}
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return domain.Claim{}, false
}

func (p *Principal) HasClaim(claimType, value string) bool {
	return p != nil && slices.Contains(p.Claims, domain.Claim{Type: claimType, Value: value})
}

func (p *Principal) IsInRole(role string) bool {
	return p.HasClaim(p.types.RoleClaimType, role)
}

func (p *Principal) UserID() string {
	c, _ := p.FindFirst(p.types.UserIDClaimType)
	return c.Value
}

func (p *Principal) UserName() string {
	c, _ := p.FindFirst(p.types.UserNameClaimType)
	return c.Value
}

// Roles returns the role claim values in principal order.
func (p *Principal) Roles() []string {
	var roles []string
	if p == nil {
		return roles
	}
	for _, c := range p.Claims {
		if c.Type == p.types.RoleClaimType {
			roles = append(roles, c.Value)
		}
	}
	return roles
}

// PrincipalFactory assembles principals from the store.
type PrincipalFactory[K comparable] struct {
	users *UserManager[K]
}

func NewPrincipalFactory[K comparable](users *UserManager[K]) *PrincipalFactory[K] {
	return &PrincipalFactory[K]{users: users}
}

// CreatePrincipal builds the identity claims for u, then every stored user
// claim, then one role claim per role followed by that role's claims.
func (f *PrincipalFactory[K]) CreatePrincipal(ctx context.Context, u *domain.User[K]) (*Principal, error) {
	if u == nil {
		return nil, ErrNilUser
	}
	types := f.users.cfg.Options.ClaimsIdentity
	p := &Principal{types: types}

	p.Claims = append(p.Claims,
		domain.Claim{Type: types.UserIDClaimType, Value: keyString(u.ID)},
		domain.Claim{Type: types.UserNameClaimType, Value: u.UserName},
	)
	if u.Email != "" {
		p.Claims = append(p.Claims, domain.Claim{Type: types.EmailClaimType, Value: u.Email})
	}
	if u.SecurityStamp != "" {
		p.Claims = append(p.Claims, domain.Claim{Type: types.SecurityStampClaimType, Value: u.SecurityStamp})
	}

	claims, err := f.users.GetClaims(ctx, u)
	if err != nil {
		return nil, err
	}
	p.Claims = append(p.Claims, claims...)

	roles, err := f.users.Store.UserRoles().RolesForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	for _, r := range roles {
		p.Claims = append(p.Claims, domain.Claim{Type: types.RoleClaimType, Value: r.Name})
		rc, err := f.users.roles.GetClaims(ctx, &r)
		if err != nil {
			return nil, err
		}
		p.Claims = append(p.Claims, rc...)
	}
	return p, nil
}
