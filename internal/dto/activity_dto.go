package dto

import (
	"time"

	"github.com/noah-isme/docflow-api/internal/models"
)

// ActivityLogCreateRequest is the payload of POST /documentActivityLogs.
// Exactly one of DocumentID and FormID must be set.
type ActivityLogCreateRequest struct {
	Action       string `json:"action" validate:"required"`
	ActorIsAdmin *bool  `json:"actorIsAdmin"`
	ActorID      uint   `json:"actorID"`
	ClientID     uint   `json:"clientID" validate:"required"`
	DocumentID   *uint  `json:"documentID"`
	FormID       *uint  `json:"formID"`
}

// ActivityLogResponse serialises an activity entry.
type ActivityLogResponse struct {
	ID            uint      `json:"id"`
	Action        string    `json:"action"`
	ActorID       uint      `json:"actorID"`
	ActorIsAdmin  bool      `json:"actorIsAdmin"`
	ClientID      uint      `json:"clientID"`
	DocumentID    *uint     `json:"documentID,omitempty"`
	FormID        *uint     `json:"formID,omitempty"`
	ActionDate    time.Time `json:"actionDate"`
	CorrelationID string    `json:"correlationID,omitempty"`
	PrevHash      string    `json:"prevHash"`
	RecordHash    string    `json:"recordHash"`
}

// ActivityLogPage is the paginated listing of a client's entries, newest first.
type ActivityLogPage struct {
	Logs      []ActivityLogResponse `json:"logs"`
	PageCount int                   `json:"pageCount"`
	Page      int                   `json:"page"`
	PerPage   int                   `json:"perPage"`
	Total     int64                 `json:"total"`
}

// ChainVerification reports the integrity of a client's hash chain.
type ChainVerification struct {
	ClientID uint   `json:"clientID"`
	Entries  int    `json:"entries"`
	Valid    bool   `json:"valid"`
	BrokenAt *uint  `json:"brokenAt,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// NewActivityLogResponse converts a model into its response form.
func NewActivityLogResponse(entry models.ActivityLog) ActivityLogResponse {
	return ActivityLogResponse{
		ID:            entry.ID,
		Action:        string(entry.Action),
		ActorID:       entry.ActorID,
		ActorIsAdmin:  entry.ActorIsAdmin,
		ClientID:      entry.ClientID,
		DocumentID:    entry.DocumentID,
		FormID:        entry.FormID,
		ActionDate:    entry.ActionDate,
		CorrelationID: entry.CorrelationID,
		PrevHash:      entry.PrevHash,
		RecordHash:    entry.RecordHash,
	}
}

// NewActivityLogResponseSlice converts a list of models.
func NewActivityLogResponseSlice(entries []models.ActivityLog) []ActivityLogResponse {
	responses := make([]ActivityLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewActivityLogResponse(entry))
	}
	return responses
}
