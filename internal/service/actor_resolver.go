package service

import (
	"errors"
	"strings"

	"github.com/noah-isme/docflow-api/internal/models"
)

// ErrForbidden indicates the principal may not act on the artifact or role.
var ErrForbidden = errors.New("forbidden")

// ErrOverrideNotPermitted indicates a non-admin tried to set actorIsAdmin explicitly.
var ErrOverrideNotPermitted = errors.New("actor authority override not permitted")

// Principal roles carried by bearer tokens.
const (
	PrincipalRoleAdmin    = "admin"
	PrincipalRoleClient   = "client"
	PrincipalRoleReviewer = "reviewer"
)

// Principal is the authenticated caller.
type Principal struct {
	ID       uint
	Role     string
	ClientID uint
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(p.Role), PrincipalRoleAdmin)
}

// ResolveActorIsAdmin computes the actorIsAdmin flag of an audit entry. An explicit
// override always wins; otherwise the principal's own role decides.
func ResolveActorIsAdmin(principal Principal, override *bool) bool {
	if override != nil {
		return *override
	}
	return principal.IsAdmin()
}

// CanAccessTenant reports whether the principal may read data of clientID.
func CanAccessTenant(principal Principal, clientID uint) bool {
	if principal.IsAdmin() || principal.isGlobalReviewer() {
		return true
	}
	return principal.ClientID != 0 && principal.ClientID == clientID
}

// TenantScope returns the tenant a listing must be restricted to, or nil when the
// principal may see every tenant.
func TenantScope(principal Principal) (*uint, error) {
	if principal.IsAdmin() || principal.isGlobalReviewer() {
		return nil, nil
	}
	if principal.ClientID == 0 {
		return nil, ErrForbidden
	}
	clientID := principal.ClientID
	return &clientID, nil
}

func (p Principal) isGlobalReviewer() bool {
	return strings.EqualFold(strings.TrimSpace(p.Role), PrincipalRoleReviewer) && p.ClientID == 0
}

// AuthorizeApprover checks that the principal may act as role on an artifact owned
// by ownerClientID. Admins may act for any role.
func AuthorizeApprover(principal Principal, role models.ApproverRole, ownerClientID uint) error {
	if principal.IsAdmin() {
		return nil
	}

	switch role {
	case models.RoleClient:
		if strings.EqualFold(principal.Role, PrincipalRoleClient) && principal.ClientID == ownerClientID {
			return nil
		}
	case models.RoleReviewer:
		// Reviewers without a tenant claim review for every client.
		if principal.isGlobalReviewer() ||
			(strings.EqualFold(principal.Role, PrincipalRoleReviewer) && principal.ClientID == ownerClientID) {
			return nil
		}
	}

	return ErrForbidden
}
