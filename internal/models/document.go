package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentStatus tracks the reviewer approval of a document.
type DocumentStatus string

const (
	DocumentStatusNone     DocumentStatus = "NONE"
	DocumentStatusApproved DocumentStatus = "APPROVED"
)

// Document is a controlled binary document owned by a client organisation.
type Document struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	OwnerClientID uint           `gorm:"not null;index:idx_documents_owner_path,priority:1" json:"ownerClientId"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Path          string         `gorm:"size:512;not null;index:idx_documents_owner_path,priority:2" json:"path"`
	ContentURL    string         `gorm:"size:1024" json:"contentUrl"`
	MimeType      string         `gorm:"size:128" json:"mimeType"`
	Checksum      string         `gorm:"size:64" json:"checksum"`
	SizeBytes     int64          `json:"sizeBytes"`
	Revision      int            `gorm:"not null;default:1" json:"revision"`
	Status        DocumentStatus `gorm:"size:32;not null;default:'NONE'" json:"status"`
	UploadedBy    uint           `json:"uploadedBy"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// State returns the approval view of the document.
func (d Document) State() ArtifactState {
	return ArtifactState{
		Kind:          ArtifactDocument,
		ID:            d.ID,
		OwnerClientID: d.OwnerClientID,
		Approvals: Approvals{
			RoleReviewer: d.Status == DocumentStatusApproved,
		},
	}
}
