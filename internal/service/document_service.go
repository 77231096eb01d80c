package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/observability"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

var (
	// ErrInvalidStatus indicates a document status other than APPROVED or NONE.
	ErrInvalidStatus = errors.New("document status must be APPROVED or NONE")
	// ErrStorageUnavailable indicates no revision storage is configured.
	ErrStorageUnavailable = errors.New("document storage is not configured")
	// ErrUploadTooLarge indicates the revision exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the revision's detected type is not accepted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedRevisionTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/msword":       {},
	"application/vnd.ms-excel": {},
	"text/plain":               {},
	"text/csv":                 {},
	"image/png":                {},
	"image/jpeg":               {},
}

// FileStorage keeps document binaries and returns a URL for the stored object.
type FileStorage interface {
	Put(ctx context.Context, key string, body io.Reader) (string, error)
}

// DocumentService manages documents and their reviewer approval.
type DocumentService interface {
	Create(ctx context.Context, principal Principal, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error)
	Get(ctx context.Context, principal Principal, id uint) (dto.DocumentResponse, error)
	SetStatus(ctx context.Context, principal Principal, id uint, status string) (dto.DocumentResponse, error)
	UploadRevision(ctx context.Context, principal Principal, id uint, file *multipart.FileHeader) (dto.DocumentResponse, error)
	Delete(ctx context.Context, principal Principal, id uint) error
}

type documentService struct {
	repo      repository.DocumentRepository
	workflow  ApprovalWorkflow
	audit     *AuditRunner
	storage   FileStorage
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	maxSize   int64
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDocumentService constructs the document service. storage may be nil, in
// which case revision uploads fail with ErrStorageUnavailable.
func NewDocumentService(repo repository.DocumentRepository, workflow ApprovalWorkflow, audit *AuditRunner, storage FileStorage, maxSizeMB int, validate *validator.Validate, logger zerolog.Logger) DocumentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &documentService{
		repo:      repo,
		workflow:  workflow,
		audit:     audit,
		storage:   storage,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		logger:    logger.With().Str("component", "document_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/docflow-api/internal/service/document"),
	}
}

func (s *documentService) Create(ctx context.Context, principal Principal, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}
	if !CanAccessTenant(principal, payload.OwnerClientID) {
		return dto.DocumentResponse{}, ErrForbidden
	}

	title, err := plainTextField(s.sanitizer, "title", payload.Title, maxTitleLength)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	if title == "" {
		return dto.DocumentResponse{}, apperror.NewValidation("title", "empty after sanitization")
	}
	dir, err := plainTextField(s.sanitizer, "path", payload.Path, maxPathLength)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	document := models.Document{
		OwnerClientID: payload.OwnerClientID,
		Title:         title,
		Path:          NormalizeDirectoryPath(dir),
		ContentURL:    strings.TrimSpace(payload.ContentURL),
		MimeType:      strings.TrimSpace(payload.MimeType),
		UploadedBy:    principal.ID,
	}

	err = s.audit.Run(ctx, models.ActionCreation, func(ctx context.Context) (ActivityEntry, error) {
		if err := s.repo.Create(ctx, &document); err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionCreation, document.State()), nil
	})
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(document), nil
}

func (s *documentService) Get(ctx context.Context, principal Principal, id uint) (dto.DocumentResponse, error) {
	var document models.Document
	err := s.audit.Run(ctx, models.ActionVisualisation, func(ctx context.Context) (ActivityEntry, error) {
		var err error
		document, err = s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionVisualisation, document.State()), nil
	})
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	return dto.NewDocumentResponse(document), nil
}

// SetStatus applies the directional reviewer approval. Repeating a status is a
// plain rewrite of the same value.
func (s *documentService) SetStatus(ctx context.Context, principal Principal, id uint, status string) (dto.DocumentResponse, error) {
	var approved bool
	switch models.DocumentStatus(strings.ToUpper(strings.TrimSpace(status))) {
	case models.DocumentStatusApproved:
		approved = true
	case models.DocumentStatusNone:
		approved = false
	default:
		return dto.DocumentResponse{}, ErrInvalidStatus
	}

	var updated models.Document
	err := s.audit.Run(ctx, models.ActionApprobation, func(ctx context.Context) (ActivityEntry, error) {
		document, err := s.load(ctx, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if err := AuthorizeApprover(principal, models.RoleReviewer, document.OwnerClientID); err != nil {
			return ActivityEntry{}, err
		}

		state, err := s.workflow.SetApproval(ctx, document.State().Ref(), models.RoleReviewer, approved)
		if err != nil {
			return ActivityEntry{}, err
		}
		if updated, err = s.load(ctx, id); err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionApprobation, state), nil
	})
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(updated), nil
}

// UploadRevision stores a new binary and then, in one transaction, revokes the
// reviewer approval, bumps the revision and records the Modification entry.
func (s *documentService) UploadRevision(ctx context.Context, principal Principal, id uint, file *multipart.FileHeader) (dto.DocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "document.upload_revision", trace.WithAttributes(
		attribute.Int64("document.id", int64(id)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	if s.storage == nil {
		span.SetStatus(codes.Error, "storage unavailable")
		return dto.DocumentResponse{}, ErrStorageUnavailable
	}
	if file == nil {
		return dto.DocumentResponse{}, apperror.NewValidation("file", "is required")
	}

	current, err := s.accessible(ctx, principal, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	payload, err := s.readRevision(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload rejected")
		return dto.DocumentResponse{}, err
	}

	mimeType := baseMime(mimetype.Detect(payload).String())
	span.SetAttributes(attribute.String("upload.detected_mime", mimeType))
	if _, ok := allowedRevisionTypes[mimeType]; !ok {
		observability.RevisionUploadsRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.DocumentResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(payload)
	key := fmt.Sprintf("clients/%d/documents/%d/rev-%d-%s", current.OwnerClientID, current.ID, current.Revision+1, filepath.Base(file.Filename))
	url, err := s.storage.Put(ctx, key, bytes.NewReader(payload))
	if err != nil {
		observability.RevisionUploadsRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.DocumentResponse{}, err
	}

	content := repository.DocumentContent{
		ContentURL: url,
		MimeType:   mimeType,
		Checksum:   hex.EncodeToString(checksum[:]),
		SizeBytes:  int64(len(payload)),
	}

	var updated models.Document
	err = s.audit.Run(ctx, models.ActionModification, func(ctx context.Context) (ActivityEntry, error) {
		document, err := s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if _, err := s.workflow.OnContentMutated(ctx, document.State().Ref()); err != nil {
			return ActivityEntry{}, err
		}
		updated, err = s.repo.UpdateContent(ctx, id, content)
		if err != nil {
			return ActivityEntry{}, translateStoreError(err)
		}
		return EntryFor(principal, models.ActionModification, updated.State()), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "revision not applied")
		s.logger.Warn().Err(err).Str("content_url", url).Uint("document_id", id).Msg("revision stored but not applied")
		return dto.DocumentResponse{}, err
	}

	span.SetStatus(codes.Ok, "revised")
	return dto.NewDocumentResponse(updated), nil
}

func (s *documentService) Delete(ctx context.Context, principal Principal, id uint) error {
	return s.audit.Run(ctx, models.ActionDeletion, func(ctx context.Context) (ActivityEntry, error) {
		document, err := s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return ActivityEntry{}, translateStoreError(err)
		}
		return EntryFor(principal, models.ActionDeletion, document.State()), nil
	})
}

func (s *documentService) readRevision(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > s.maxSize {
		observability.RevisionUploadsRejected().WithLabelValues("size").Inc()
		return nil, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.RevisionUploadsRejected().WithLabelValues("size").Inc()
		return nil, ErrUploadTooLarge
	}
	if buf.Len() == 0 {
		observability.RevisionUploadsRejected().WithLabelValues("empty").Inc()
		return nil, apperror.NewValidation("file", "is empty")
	}
	return buf.Bytes(), nil
}

func (s *documentService) accessible(ctx context.Context, principal Principal, id uint) (models.Document, error) {
	document, err := s.load(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	if !CanAccessTenant(principal, document.OwnerClientID) {
		return models.Document{}, ErrForbidden
	}
	return document, nil
}

func (s *documentService) load(ctx context.Context, id uint) (models.Document, error) {
	document, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Document{}, translateStoreError(err)
	}
	return document, nil
}

func baseMime(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}
