package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Form is a structured cell-grid form requiring client and admin approval.
type Form struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerClientID  uint           `gorm:"not null;index" json:"ownerClientId"`
	DocumentID     *uint          `gorm:"index" json:"documentId"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Content        datatypes.JSON `gorm:"type:json" json:"content"`
	ClientApproved bool           `gorm:"not null;default:false" json:"clientApproved"`
	AdminApproved  bool           `gorm:"not null;default:false" json:"adminApproved"`
	CreatedBy      uint           `json:"createdBy"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// FormApprovalColumn maps a form approver role to its column.
func FormApprovalColumn(role ApproverRole) (string, bool) {
	switch role {
	case RoleClient:
		return "client_approved", true
	case RoleAdmin:
		return "admin_approved", true
	default:
		return "", false
	}
}

// State returns the approval view of the form.
func (f Form) State() ArtifactState {
	return ArtifactState{
		Kind:          ArtifactForm,
		ID:            f.ID,
		OwnerClientID: f.OwnerClientID,
		Approvals: Approvals{
			RoleClient: f.ClientApproved,
			RoleAdmin:  f.AdminApproved,
		},
	}
}
