package dto

import (
	"time"

	"github.com/noah-isme/docflow-api/internal/models"
)

// DocumentCreateRequest registers a document at a directory path.
type DocumentCreateRequest struct {
	OwnerClientID uint   `json:"ownerClientId" validate:"required"`
	Title         string `json:"title" validate:"required,min=1,max=255"`
	Path          string `json:"path" validate:"required,max=512"`
	ContentURL    string `json:"contentUrl" validate:"omitempty,url"`
	MimeType      string `json:"mimeType" validate:"omitempty,max=128"`
}

// DocumentStatusRequest is the payload of PUT /documents/:id.
type DocumentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DirectoryRequest is the payload of POST /documents/paginated/path.
type DirectoryRequest struct {
	Value string `json:"value" validate:"required,max=512"`
}

// DocumentResponse serialises a document and its approval state.
type DocumentResponse struct {
	ID            uint      `json:"id"`
	OwnerClientID uint      `json:"ownerClientId"`
	Title         string    `json:"title"`
	Path          string    `json:"path"`
	ContentURL    string    `json:"contentUrl"`
	MimeType      string    `json:"mimeType"`
	Checksum      string    `json:"checksum"`
	SizeBytes     int64     `json:"sizeBytes"`
	Revision      int       `json:"revision"`
	Status        string    `json:"status"`
	FullyApproved bool      `json:"fullyApproved"`
	UploadedBy    uint      `json:"uploadedBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DocumentPage is one page of a directory listing.
type DocumentPage struct {
	Documents []DocumentResponse `json:"documents"`
	PageCount int                `json:"pageCount"`
	Page      int                `json:"page"`
	PerPage   int                `json:"perPage"`
	Total     int64              `json:"total"`
}

// NewDocumentResponse converts a document model into a DTO.
func NewDocumentResponse(document models.Document) DocumentResponse {
	return DocumentResponse{
		ID:            document.ID,
		OwnerClientID: document.OwnerClientID,
		Title:         document.Title,
		Path:          document.Path,
		ContentURL:    document.ContentURL,
		MimeType:      document.MimeType,
		Checksum:      document.Checksum,
		SizeBytes:     document.SizeBytes,
		Revision:      document.Revision,
		Status:        string(document.Status),
		FullyApproved: document.State().IsFullyApproved(),
		UploadedBy:    document.UploadedBy,
		CreatedAt:     document.CreatedAt,
		UpdatedAt:     document.UpdatedAt,
	}
}
