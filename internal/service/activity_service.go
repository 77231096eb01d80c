package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/observability"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

const (
	maxActivityPerPage = 500
	artifactRefKey     = "errors.validation.artifact_reference"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Action       models.ActivityAction
	ActorID      uint
	ActorIsAdmin bool
	ClientID     uint
	DocumentID   *uint
	FormID       *uint
}

// Validate checks that the entry names a known action, a tenant and exactly one artifact.
func (e ActivityEntry) Validate() error {
	if _, ok := models.ParseActivityAction(string(e.Action)); !ok {
		return apperror.NewValidation("action", fmt.Sprintf("unknown action %q", e.Action))
	}
	if e.ClientID == 0 {
		return apperror.NewValidation("clientID", "is required")
	}
	if (e.DocumentID == nil) == (e.FormID == nil) {
		return &apperror.ValidationError{
			Field:  "documentID/formID",
			Reason: "exactly one of documentID and formID must be set",
			Key:    artifactRefKey,
		}
	}
	return nil
}

// EntryFor builds the audit entry of principal performing action on an artifact.
func EntryFor(principal Principal, action models.ActivityAction, state models.ArtifactState) ActivityEntry {
	entry := ActivityEntry{
		Action:       action,
		ActorID:      principal.ID,
		ActorIsAdmin: ResolveActorIsAdmin(principal, nil),
		ClientID:     state.OwnerClientID,
	}
	id := state.ID
	switch state.Kind {
	case models.ArtifactDocument:
		entry.DocumentID = &id
	case models.ArtifactForm:
		entry.FormID = &id
	}
	return entry
}

// ActivityRecorder records a single audit entry and announces it.
type ActivityRecorder interface {
	RecordLog(ctx context.Context, entry ActivityEntry) (dto.ActivityLogResponse, error)
}

// ArtifactLocator resolves the owner of a referenced artifact.
type ArtifactLocator interface {
	State(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	// Append persists the entry using the transaction bound to ctx, if any. The
	// caller must Announce the result once that transaction has committed.
	Append(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error)
	Announce(ctx context.Context, entry models.ActivityLog)
	Create(ctx context.Context, principal Principal, payload dto.ActivityLogCreateRequest) (dto.ActivityLogResponse, error)
	ListForClient(ctx context.Context, principal Principal, clientID uint) ([]dto.ActivityLogResponse, error)
	PaginateForClient(ctx context.Context, principal Principal, clientID uint, page, perPage int) (dto.ActivityLogPage, error)
	VerifyChain(ctx context.Context, clientID uint) (dto.ChainVerification, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	locator   ArtifactLocator
	cache     *redis.Client
	ttl       time.Duration
	stream    AuditStream
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// ActivityServiceOptions carries the optional collaborators of the activity service.
type ActivityServiceOptions struct {
	Locator  ArtifactLocator
	Cache    *redis.Client
	CacheTTL time.Duration
	Stream   AuditStream
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, validate *validator.Validate, opts ActivityServiceOptions, logger zerolog.Logger) ActivityService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &activityService{
		repo:      repo,
		locator:   opts.Locator,
		cache:     opts.Cache,
		ttl:       ttl,
		stream:    opts.Stream,
		validator: validate,
		logger:    logger.With().Str("component", "activity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/docflow-api/internal/service/activity"),
		now:       time.Now,
	}
}

func (s *activityService) Create(ctx context.Context, principal Principal, payload dto.ActivityLogCreateRequest) (dto.ActivityLogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityLogResponse{}, err
	}

	action, ok := models.ParseActivityAction(payload.Action)
	if !ok {
		return dto.ActivityLogResponse{}, apperror.NewValidation("action", fmt.Sprintf("unknown action %q", payload.Action))
	}

	if payload.ActorIsAdmin != nil && !principal.IsAdmin() && *payload.ActorIsAdmin {
		return dto.ActivityLogResponse{}, ErrOverrideNotPermitted
	}
	if !CanAccessTenant(principal, payload.ClientID) {
		return dto.ActivityLogResponse{}, ErrForbidden
	}

	actorID := payload.ActorID
	if actorID == 0 {
		actorID = principal.ID
	}
	if actorID != principal.ID && !principal.IsAdmin() {
		return dto.ActivityLogResponse{}, ErrForbidden
	}

	entry := ActivityEntry{
		Action:       action,
		ActorID:      actorID,
		ActorIsAdmin: ResolveActorIsAdmin(principal, payload.ActorIsAdmin),
		ClientID:     payload.ClientID,
		DocumentID:   payload.DocumentID,
		FormID:       payload.FormID,
	}
	if err := entry.Validate(); err != nil {
		return dto.ActivityLogResponse{}, err
	}
	if err := s.checkOwnership(ctx, entry); err != nil {
		return dto.ActivityLogResponse{}, err
	}

	return s.RecordLog(ctx, entry)
}

func (s *activityService) RecordLog(ctx context.Context, entry ActivityEntry) (dto.ActivityLogResponse, error) {
	model, err := s.Append(ctx, entry)
	if err != nil {
		return dto.ActivityLogResponse{}, err
	}
	s.Announce(ctx, model)
	return dto.NewActivityLogResponse(model), nil
}

func (s *activityService) Append(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error) {
	if err := entry.Validate(); err != nil {
		return models.ActivityLog{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "activity.append", trace.WithAttributes(
		attribute.String("activity.action", string(entry.Action)),
		attribute.Int64("activity.client_id", int64(entry.ClientID)),
	))
	defer span.End()

	model := models.ActivityLog{
		Action:        entry.Action,
		ActorID:       entry.ActorID,
		ActorIsAdmin:  entry.ActorIsAdmin,
		ClientID:      entry.ClientID,
		DocumentID:    entry.DocumentID,
		FormID:        entry.FormID,
		ActionDate:    s.now().UTC().Truncate(time.Microsecond),
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
	}

	if err := s.repo.Append(spanCtx, &model); err != nil {
		span.RecordError(err)
		observability.AuditWrites().WithLabelValues(string(entry.Action), "error").Inc()
		return models.ActivityLog{}, err
	}

	observability.AuditWrites().WithLabelValues(string(entry.Action), "ok").Inc()
	return model, nil
}

func (s *activityService) Announce(ctx context.Context, entry models.ActivityLog) {
	if s.cache != nil {
		if err := s.cache.Incr(ctx, s.versionKey(entry.ClientID)).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("client_id", entry.ClientID).Msg("failed to bump activity cache version")
		}
	}
	if s.stream != nil {
		s.stream.Publish(ctx, dto.NewActivityLogResponse(entry))
	}
}

func (s *activityService) ListForClient(ctx context.Context, principal Principal, clientID uint) ([]dto.ActivityLogResponse, error) {
	if !CanAccessTenant(principal, clientID) {
		return nil, ErrForbidden
	}

	key := s.listKey(ctx, clientID, "all")
	var cached []dto.ActivityLogResponse
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		observability.AuditCacheRequests().WithLabelValues("error").Inc()
		return nil, err
	}

	response := dto.NewActivityLogResponseSlice(entries)
	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *activityService) PaginateForClient(ctx context.Context, principal Principal, clientID uint, page, perPage int) (dto.ActivityLogPage, error) {
	if page < 1 {
		return dto.ActivityLogPage{}, apperror.NewInvalidArgument("page", page, "must be at least 1")
	}
	if perPage < 1 || perPage > maxActivityPerPage {
		return dto.ActivityLogPage{}, apperror.NewInvalidArgument("perPage", perPage, fmt.Sprintf("must be between 1 and %d", maxActivityPerPage))
	}
	if !CanAccessTenant(principal, clientID) {
		return dto.ActivityLogPage{}, ErrForbidden
	}

	key := s.listKey(ctx, clientID, fmt.Sprintf("page:%d:%d", page, perPage))
	var cached dto.ActivityLogPage
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	entries, total, err := s.repo.PaginateByClient(ctx, clientID, page, perPage)
	if err != nil {
		observability.AuditCacheRequests().WithLabelValues("error").Inc()
		return dto.ActivityLogPage{}, err
	}

	response := dto.ActivityLogPage{
		Logs:      dto.NewActivityLogResponseSlice(entries),
		PageCount: int(math.Ceil(float64(total) / float64(perPage))),
		Page:      page,
		PerPage:   perPage,
		Total:     total,
	}
	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *activityService) VerifyChain(ctx context.Context, clientID uint) (dto.ChainVerification, error) {
	if clientID == 0 {
		return dto.ChainVerification{}, apperror.NewInvalidArgument("clientID", clientID, "must be positive")
	}

	entries, err := s.repo.ChainByClient(ctx, clientID)
	if err != nil {
		return dto.ChainVerification{}, err
	}

	result := dto.ChainVerification{ClientID: clientID, Entries: len(entries), Valid: true}
	previous := ""
	for _, entry := range entries {
		reason := ""
		switch {
		case entry.PrevHash != previous:
			reason = "previous hash does not match the preceding entry"
		case entry.ComputeHash() != entry.RecordHash:
			reason = "record hash does not match the entry contents"
		}
		if reason != "" {
			id := entry.ID
			result.Valid = false
			result.BrokenAt = &id
			result.Reason = reason
			s.logger.Error().Uint("client_id", clientID).Uint("entry_id", id).Str("reason", reason).Msg("activity chain broken")
			break
		}
		previous = entry.RecordHash
	}

	return result, nil
}

func (s *activityService) checkOwnership(ctx context.Context, entry ActivityEntry) error {
	if s.locator == nil {
		return nil
	}

	ref := models.ArtifactRef{Kind: models.ArtifactForm}
	if entry.DocumentID != nil {
		ref = models.ArtifactRef{Kind: models.ArtifactDocument, ID: *entry.DocumentID}
	} else {
		ref.ID = *entry.FormID
	}

	state, err := s.locator.State(ctx, ref)
	if err != nil {
		return err
	}
	if state.OwnerClientID != entry.ClientID {
		return &apperror.ValidationError{
			Field:  "clientID",
			Reason: "referenced artifact belongs to another client",
			Key:    artifactRefKey,
		}
	}
	return nil
}

func (s *activityService) versionKey(clientID uint) string {
	return fmt.Sprintf("docflow:activity:v1:%d:version", clientID)
}

// listKey embeds the client's current version so that a new entry orphans
// every cached listing of that client.
func (s *activityService) listKey(ctx context.Context, clientID uint, suffix string) string {
	if s.cache == nil {
		return ""
	}
	version, err := s.cache.Get(ctx, s.versionKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read activity cache version")
		return ""
	}
	return fmt.Sprintf("docflow:activity:v1:%d:%s:%s", clientID, version, suffix)
}

func (s *activityService) readCache(ctx context.Context, key string, target interface{}) bool {
	if key == "" {
		return false
	}
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil || cached == "" {
		return false
	}
	if err := json.Unmarshal([]byte(cached), target); err != nil {
		return false
	}
	observability.AuditCacheRequests().WithLabelValues("hit").Inc()
	return true
}

func (s *activityService) writeCache(ctx context.Context, key string, value interface{}) {
	observability.AuditCacheRequests().WithLabelValues("miss").Inc()
	if key == "" {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write activity cache")
	}
}
