package models

import "strings"

// ArtifactKind distinguishes the approvable artifact types.
type ArtifactKind string

const (
	ArtifactDocument ArtifactKind = "document"
	ArtifactForm     ArtifactKind = "form"
)

// ApproverRole is a party whose approval an artifact may require.
type ApproverRole string

const (
	RoleReviewer ApproverRole = "reviewer"
	RoleClient   ApproverRole = "client"
	RoleAdmin    ApproverRole = "admin"
)

// ParseApproverRole normalises a role string. The boolean is false for unknown roles.
func ParseApproverRole(value string) (ApproverRole, bool) {
	switch ApproverRole(strings.ToLower(strings.TrimSpace(value))) {
	case RoleReviewer:
		return RoleReviewer, true
	case RoleClient:
		return RoleClient, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// RequiredRoles returns the fixed approver roles of an artifact kind.
func RequiredRoles(kind ArtifactKind) []ApproverRole {
	switch kind {
	case ArtifactDocument:
		return []ApproverRole{RoleReviewer}
	case ArtifactForm:
		return []ApproverRole{RoleClient, RoleAdmin}
	default:
		return nil
	}
}

// Requires reports whether role is one of the kind's required roles.
func Requires(kind ArtifactKind, role ApproverRole) bool {
	for _, required := range RequiredRoles(kind) {
		if required == role {
			return true
		}
	}
	return false
}

// Approvals maps each required role to its current approval flag.
type Approvals map[ApproverRole]bool

// AnyApproved reports whether at least one role has approved.
func (a Approvals) AnyApproved() bool {
	for _, approved := range a {
		if approved {
			return true
		}
	}
	return false
}

// ArtifactRef identifies an approvable artifact.
type ArtifactRef struct {
	Kind ArtifactKind
	ID   uint
}

// ArtifactState is the approval view of a document or form.
type ArtifactState struct {
	Kind          ArtifactKind `json:"kind"`
	ID            uint         `json:"id"`
	OwnerClientID uint         `json:"ownerClientId"`
	Approvals     Approvals    `json:"approvals"`
}

// Ref returns the reference of the state's artifact.
func (s ArtifactState) Ref() ArtifactRef {
	return ArtifactRef{Kind: s.Kind, ID: s.ID}
}

// IsFullyApproved is true only when every required role approved.
func (s ArtifactState) IsFullyApproved() bool {
	roles := RequiredRoles(s.Kind)
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !s.Approvals[role] {
			return false
		}
	}
	return true
}
