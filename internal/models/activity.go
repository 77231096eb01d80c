package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrActivityLogImmutable is returned by the persistence hooks when an entry is modified.
var ErrActivityLogImmutable = errors.New("activity log entries are immutable")

// ActivityAction enumerates the lifecycle events recorded in the audit trail.
type ActivityAction string

const (
	ActionCreation      ActivityAction = "Creation"
	ActionModification  ActivityAction = "Modification"
	ActionApprobation   ActivityAction = "Approbation"
	ActionVisualisation ActivityAction = "Visualisation"
	ActionLoaded        ActivityAction = "Loaded"
	ActionDeletion      ActivityAction = "Deletion"
	ActionSignature     ActivityAction = "Signature"
)

var activityActions = []ActivityAction{
	ActionCreation,
	ActionModification,
	ActionApprobation,
	ActionVisualisation,
	ActionLoaded,
	ActionDeletion,
	ActionSignature,
}

// ParseActivityAction matches an action name case-insensitively.
func ParseActivityAction(value string) (ActivityAction, bool) {
	trimmed := strings.TrimSpace(value)
	for _, action := range activityActions {
		if strings.EqualFold(string(action), trimmed) {
			return action, true
		}
	}
	return "", false
}

// ActivityLog captures an auditable event on a document or a form.
// Entries of one client form a hash chain through PrevHash and RecordHash.
type ActivityLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Action        ActivityAction `gorm:"size:32;not null" json:"action"`
	ActorID       uint           `gorm:"not null" json:"actorId"`
	ActorIsAdmin  bool           `gorm:"not null" json:"actorIsAdmin"`
	ClientID      uint           `gorm:"not null;index:idx_activity_client_date,priority:1" json:"clientId"`
	DocumentID    *uint          `gorm:"index" json:"documentId,omitempty"`
	FormID        *uint          `gorm:"index" json:"formId,omitempty"`
	ActionDate    time.Time      `gorm:"not null;index:idx_activity_client_date,priority:2" json:"actionDate"`
	CorrelationID string         `gorm:"size:64" json:"correlationId,omitempty"`
	PrevHash      string         `gorm:"size:64" json:"prevHash"`
	RecordHash    string         `gorm:"size:64;not null" json:"recordHash"`
}

// BeforeUpdate rejects any attempt to rewrite an entry.
func (ActivityLog) BeforeUpdate(*gorm.DB) error {
	return ErrActivityLogImmutable
}

// BeforeDelete rejects any attempt to remove an entry.
func (ActivityLog) BeforeDelete(*gorm.DB) error {
	return ErrActivityLogImmutable
}

// ComputeHash derives the record hash from the entry fields and PrevHash.
func (l ActivityLog) ComputeHash() string {
	payload := fmt.Sprintf("%s|%d|%t|%d|%s|%s|%s|%s|%s",
		l.Action,
		l.ActorID,
		l.ActorIsAdmin,
		l.ClientID,
		optionalID(l.DocumentID),
		optionalID(l.FormID),
		l.ActionDate.UTC().Format(time.RFC3339Nano),
		l.CorrelationID,
		l.PrevHash,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func optionalID(id *uint) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
