package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/observability"
	"github.com/noah-isme/docflow-api/internal/repository"
)

// AuditPolicy decides how a failed audit write affects the operation it describes.
type AuditPolicy int

const (
	// AuditMandatory commits the entry with the state change or not at all.
	AuditMandatory AuditPolicy = iota
	// AuditBestEffort keeps the operation's result when the entry cannot be written.
	AuditBestEffort
)

func (p AuditPolicy) String() string {
	if p == AuditBestEffort {
		return "best_effort"
	}
	return "mandatory"
}

// AuditPolicyFor returns the policy applied to action. Reads are best effort.
func AuditPolicyFor(action models.ActivityAction) AuditPolicy {
	switch action {
	case models.ActionVisualisation, models.ActionLoaded:
		return AuditBestEffort
	default:
		return AuditMandatory
	}
}

// AuditedOperation performs the work of an operation and returns the entry describing it.
type AuditedOperation func(ctx context.Context) (ActivityEntry, error)

// AuditRunner sequences an operation with its activity entry according to the
// action's policy.
type AuditRunner struct {
	tx       repository.Transactor
	activity ActivityService
	logger   zerolog.Logger
}

// NewAuditRunner builds a runner.
func NewAuditRunner(tx repository.Transactor, activity ActivityService, logger zerolog.Logger) *AuditRunner {
	return &AuditRunner{
		tx:       tx,
		activity: activity,
		logger:   logger.With().Str("component", "audit_runner").Logger(),
	}
}

// Run executes op and records its entry under action.
func (r *AuditRunner) Run(ctx context.Context, action models.ActivityAction, op AuditedOperation) error {
	if AuditPolicyFor(action) == AuditBestEffort {
		entry, err := op(ctx)
		if err != nil {
			return err
		}
		entry.Action = action
		r.recordBestEffort(ctx, entry)
		return nil
	}

	var logged models.ActivityLog
	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		entry, err := op(txCtx)
		if err != nil {
			return err
		}
		entry.Action = action
		logged, err = r.activity.Append(txCtx, entry)
		return err
	})
	if err != nil {
		return err
	}

	r.activity.Announce(ctx, logged)
	return nil
}

func (r *AuditRunner) recordBestEffort(ctx context.Context, entry ActivityEntry) {
	if _, err := r.activity.RecordLog(ctx, entry); err != nil {
		observability.AuditBestEffortFailures().WithLabelValues(string(entry.Action)).Inc()
		r.logger.Warn().
			Err(err).
			Str("action", string(entry.Action)).
			Uint("client_id", entry.ClientID).
			Msg("activity entry not recorded")
	}
}
