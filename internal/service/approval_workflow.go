package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/observability"
)

var (
	// ErrArtifactNotFound indicates the referenced document or form does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrRoleNotRequired indicates the role is not an approver of the artifact kind.
	ErrRoleNotRequired = errors.New("role is not a required approver for this artifact")
	// ErrUnknownArtifactKind indicates no approval store is registered for the kind.
	ErrUnknownArtifactKind = errors.New("unknown artifact kind")
)

// ApprovalWorkflow is the only writer of approval state. It does not record
// activity entries; callers sequence those explicitly.
type ApprovalWorkflow interface {
	// ToggleApproval flips the role's flag and returns the resulting state.
	ToggleApproval(ctx context.Context, ref models.ArtifactRef, role models.ApproverRole) (models.ArtifactState, error)
	// SetApproval writes an explicit value; repeating it is a no-op beyond the write.
	SetApproval(ctx context.Context, ref models.ArtifactRef, role models.ApproverRole, approved bool) (models.ArtifactState, error)
	// OnContentMutated revokes every approval when at least one is granted.
	OnContentMutated(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error)
	// UnapproveAll revokes every approval unconditionally.
	UnapproveAll(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error)
	// State reads the current approval state.
	State(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error)
}

type approvalWorkflow struct {
	stores map[models.ArtifactKind]ApprovalStore
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewApprovalWorkflow constructs the workflow over the document and form stores.
func NewApprovalWorkflow(documents ApprovalStore, forms ApprovalStore, logger zerolog.Logger) ApprovalWorkflow {
	return &approvalWorkflow{
		stores: map[models.ArtifactKind]ApprovalStore{
			models.ArtifactDocument: documents,
			models.ArtifactForm:     forms,
		},
		logger: logger.With().Str("component", "approval_workflow").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/docflow-api/internal/service/approval"),
	}
}

func (w *approvalWorkflow) ToggleApproval(ctx context.Context, ref models.ArtifactRef, role models.ApproverRole) (models.ArtifactState, error) {
	ctx, span := w.start(ctx, "approval.toggle", ref, role)
	defer span.End()

	store, err := w.storeFor(ref, role)
	if err != nil {
		return w.fail(span, ref, role, "toggle", err)
	}

	state, err := store.Toggle(ctx, ref.ID, role)
	if err != nil {
		return w.fail(span, ref, role, "toggle", err)
	}

	span.SetAttributes(attribute.Bool("approval.value", state.Approvals[role]))
	w.succeed(ref, role, "toggle")
	return state, nil
}

func (w *approvalWorkflow) SetApproval(ctx context.Context, ref models.ArtifactRef, role models.ApproverRole, approved bool) (models.ArtifactState, error) {
	ctx, span := w.start(ctx, "approval.set", ref, role)
	span.SetAttributes(attribute.Bool("approval.value", approved))
	defer span.End()

	store, err := w.storeFor(ref, role)
	if err != nil {
		return w.fail(span, ref, role, "set", err)
	}

	state, err := store.Set(ctx, ref.ID, role, approved)
	if err != nil {
		return w.fail(span, ref, role, "set", err)
	}

	w.succeed(ref, role, "set")
	return state, nil
}

func (w *approvalWorkflow) OnContentMutated(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
	ctx, span := w.start(ctx, "approval.cascade", ref, "")
	defer span.End()

	store, err := w.storeFor(ref, "")
	if err != nil {
		return w.fail(span, ref, "", "cascade", err)
	}

	current, err := store.Load(ctx, ref.ID)
	if err != nil {
		return w.fail(span, ref, "", "cascade", err)
	}

	if !current.Approvals.AnyApproved() {
		span.SetAttributes(attribute.Bool("approval.cascade_skipped", true))
		return current, nil
	}

	state, err := store.ResetAll(ctx, ref.ID)
	if err != nil {
		return w.fail(span, ref, "", "cascade", err)
	}

	observability.CascadeResets().WithLabelValues(string(ref.Kind)).Inc()
	w.logger.Info().
		Str("kind", string(ref.Kind)).
		Uint("artifact_id", ref.ID).
		Msg("content changed, approvals revoked")
	w.succeed(ref, "", "cascade")
	return state, nil
}

func (w *approvalWorkflow) UnapproveAll(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
	ctx, span := w.start(ctx, "approval.unapprove_all", ref, "")
	defer span.End()

	store, err := w.storeFor(ref, "")
	if err != nil {
		return w.fail(span, ref, "", "unapprove_all", err)
	}

	state, err := store.ResetAll(ctx, ref.ID)
	if err != nil {
		return w.fail(span, ref, "", "unapprove_all", err)
	}

	w.succeed(ref, "", "unapprove_all")
	return state, nil
}

func (w *approvalWorkflow) State(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
	store, err := w.storeFor(ref, "")
	if err != nil {
		return models.ArtifactState{}, err
	}

	state, err := store.Load(ctx, ref.ID)
	if err != nil {
		return models.ArtifactState{}, translateStoreError(err)
	}
	return state, nil
}

func (w *approvalWorkflow) storeFor(ref models.ArtifactRef, role models.ApproverRole) (ApprovalStore, error) {
	store, ok := w.stores[ref.Kind]
	if !ok || store == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArtifactKind, ref.Kind)
	}
	if role != "" && !models.Requires(ref.Kind, role) {
		return nil, ErrRoleNotRequired
	}
	return store, nil
}

func (w *approvalWorkflow) start(ctx context.Context, name string, ref models.ArtifactRef, role models.ApproverRole) (context.Context, trace.Span) {
	ctx, span := w.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("approval.kind", string(ref.Kind)),
		attribute.Int64("approval.artifact_id", int64(ref.ID)),
	)
	if role != "" {
		span.SetAttributes(attribute.String("approval.role", string(role)))
	}
	return ctx, span
}

func (w *approvalWorkflow) succeed(ref models.ArtifactRef, role models.ApproverRole, operation string) {
	observability.ApprovalTransitions().WithLabelValues(string(ref.Kind), roleLabel(role), operation, "ok").Inc()
}

// fail records the error and returns it unchanged, except for missing rows.
func (w *approvalWorkflow) fail(span trace.Span, ref models.ArtifactRef, role models.ApproverRole, operation string, err error) (models.ArtifactState, error) {
	err = translateStoreError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, operation+"_failed")
	observability.ApprovalTransitions().WithLabelValues(string(ref.Kind), roleLabel(role), operation, "error").Inc()
	return models.ArtifactState{}, err
}

func translateStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrArtifactNotFound
	}
	return err
}

func roleLabel(role models.ApproverRole) string {
	if role == "" {
		return "all"
	}
	return string(role)
}
