package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/docflow-api/internal/models"
)

// FormCreateRequest captures a new form.
type FormCreateRequest struct {
	OwnerClientID uint            `json:"ownerClientId" validate:"required"`
	DocumentID    *uint           `json:"documentId"`
	Title         string          `json:"title" validate:"required,min=1,max=255"`
	Content       json.RawMessage `json:"content" validate:"required"`
}

// FormUpdateRequest replaces a form's content. Any content change revokes approvals.
type FormUpdateRequest struct {
	Title   string          `json:"title" validate:"omitempty,max=255"`
	Content json.RawMessage `json:"content" validate:"required"`
}

// FormApprovalsResponse lists the approval flag of each required role.
type FormApprovalsResponse struct {
	Client bool `json:"client"`
	Admin  bool `json:"admin"`
}

// FormResponse serialises a form and its approval state.
type FormResponse struct {
	ID             uint                  `json:"id"`
	OwnerClientID  uint                  `json:"ownerClientId"`
	DocumentID     *uint                 `json:"documentId,omitempty"`
	Title          string                `json:"title"`
	Content        json.RawMessage       `json:"content"`
	ClientApproved bool                  `json:"clientApproved"`
	AdminApproved  bool                  `json:"adminApproved"`
	Approvals      FormApprovalsResponse `json:"approvals"`
	FullyApproved  bool                  `json:"fullyApproved"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// NewFormResponse converts a form model into a DTO.
func NewFormResponse(form models.Form) FormResponse {
	content := json.RawMessage(form.Content)
	if len(content) == 0 {
		content = json.RawMessage("null")
	}

	return FormResponse{
		ID:             form.ID,
		OwnerClientID:  form.OwnerClientID,
		DocumentID:     form.DocumentID,
		Title:          form.Title,
		Content:        content,
		ClientApproved: form.ClientApproved,
		AdminApproved:  form.AdminApproved,
		Approvals: FormApprovalsResponse{
			Client: form.ClientApproved,
			Admin:  form.AdminApproved,
		},
		FullyApproved: form.State().IsFullyApproved(),
		CreatedAt:     form.CreatedAt,
		UpdatedAt:     form.UpdatedAt,
	}
}
