package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

// FormService manages forms and routes every approval change through the workflow.
type FormService interface {
	Create(ctx context.Context, principal Principal, payload dto.FormCreateRequest) (dto.FormResponse, error)
	Get(ctx context.Context, principal Principal, id uint) (dto.FormResponse, error)
	UpdateContent(ctx context.Context, principal Principal, id uint, payload dto.FormUpdateRequest) (dto.FormResponse, error)
	Delete(ctx context.Context, principal Principal, id uint) error
	ToggleApproval(ctx context.Context, principal Principal, id uint, role models.ApproverRole) (dto.FormResponse, error)
	SetApproval(ctx context.Context, principal Principal, id uint, role models.ApproverRole, approved bool) (dto.FormResponse, error)
	UnapproveAll(ctx context.Context, principal Principal, id uint) (dto.FormResponse, error)
}

type formService struct {
	repo      repository.FormRepository
	workflow  ApprovalWorkflow
	audit     *AuditRunner
	content   *FormContentNormalizer
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewFormService constructs the form service.
func NewFormService(repo repository.FormRepository, workflow ApprovalWorkflow, audit *AuditRunner, content *FormContentNormalizer, validate *validator.Validate, logger zerolog.Logger) FormService {
	return &formService{
		repo:      repo,
		workflow:  workflow,
		audit:     audit,
		content:   content,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "form_service").Logger(),
	}
}

func (s *formService) Create(ctx context.Context, principal Principal, payload dto.FormCreateRequest) (dto.FormResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FormResponse{}, err
	}
	if !CanAccessTenant(principal, payload.OwnerClientID) {
		return dto.FormResponse{}, ErrForbidden
	}

	title, err := plainTextField(s.sanitizer, "title", payload.Title, maxTitleLength)
	if err != nil {
		return dto.FormResponse{}, err
	}
	if title == "" {
		return dto.FormResponse{}, apperror.NewValidation("title", "empty after sanitization")
	}
	content, err := s.content.Normalize(payload.Content)
	if err != nil {
		return dto.FormResponse{}, err
	}

	form := models.Form{
		OwnerClientID: payload.OwnerClientID,
		DocumentID:    payload.DocumentID,
		Title:         title,
		Content:       content,
		CreatedBy:     principal.ID,
	}

	err = s.audit.Run(ctx, models.ActionCreation, func(ctx context.Context) (ActivityEntry, error) {
		if err := s.repo.Create(ctx, &form); err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionCreation, form.State()), nil
	})
	if err != nil {
		return dto.FormResponse{}, err
	}

	s.logger.Info().Uint("form_id", form.ID).Uint("client_id", form.OwnerClientID).Msg("form created")
	return dto.NewFormResponse(form), nil
}

func (s *formService) Get(ctx context.Context, principal Principal, id uint) (dto.FormResponse, error) {
	var form models.Form
	err := s.audit.Run(ctx, models.ActionVisualisation, func(ctx context.Context) (ActivityEntry, error) {
		var err error
		form, err = s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionVisualisation, form.State()), nil
	})
	if err != nil {
		return dto.FormResponse{}, err
	}
	return dto.NewFormResponse(form), nil
}

// UpdateContent replaces the cell grid. The cascade, the write and the
// Modification entry commit together.
func (s *formService) UpdateContent(ctx context.Context, principal Principal, id uint, payload dto.FormUpdateRequest) (dto.FormResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FormResponse{}, err
	}
	content, err := s.content.Normalize(payload.Content)
	if err != nil {
		return dto.FormResponse{}, err
	}
	title, err := plainTextField(s.sanitizer, "title", payload.Title, maxTitleLength)
	if err != nil {
		return dto.FormResponse{}, err
	}

	var updated models.Form
	err = s.audit.Run(ctx, models.ActionModification, func(ctx context.Context) (ActivityEntry, error) {
		form, err := s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if _, err := s.workflow.OnContentMutated(ctx, form.State().Ref()); err != nil {
			return ActivityEntry{}, err
		}
		updated, err = s.repo.UpdateContent(ctx, id, title, content)
		if err != nil {
			return ActivityEntry{}, translateStoreError(err)
		}
		return EntryFor(principal, models.ActionModification, updated.State()), nil
	})
	if err != nil {
		return dto.FormResponse{}, err
	}

	return dto.NewFormResponse(updated), nil
}

func (s *formService) Delete(ctx context.Context, principal Principal, id uint) error {
	return s.audit.Run(ctx, models.ActionDeletion, func(ctx context.Context) (ActivityEntry, error) {
		form, err := s.accessible(ctx, principal, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return ActivityEntry{}, translateStoreError(err)
		}
		return EntryFor(principal, models.ActionDeletion, form.State()), nil
	})
}

func (s *formService) ToggleApproval(ctx context.Context, principal Principal, id uint, role models.ApproverRole) (dto.FormResponse, error) {
	return s.changeApproval(ctx, principal, id, role, func(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
		return s.workflow.ToggleApproval(ctx, ref, role)
	})
}

func (s *formService) SetApproval(ctx context.Context, principal Principal, id uint, role models.ApproverRole, approved bool) (dto.FormResponse, error) {
	return s.changeApproval(ctx, principal, id, role, func(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
		return s.workflow.SetApproval(ctx, ref, role, approved)
	})
}

// UnapproveAll revokes both roles in one statement. Admin only.
func (s *formService) UnapproveAll(ctx context.Context, principal Principal, id uint) (dto.FormResponse, error) {
	if !principal.IsAdmin() {
		return dto.FormResponse{}, ErrForbidden
	}
	return s.changeApproval(ctx, principal, id, "", func(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error) {
		return s.workflow.UnapproveAll(ctx, ref)
	})
}

type approvalChange func(ctx context.Context, ref models.ArtifactRef) (models.ArtifactState, error)

func (s *formService) changeApproval(ctx context.Context, principal Principal, id uint, role models.ApproverRole, change approvalChange) (dto.FormResponse, error) {
	if role != "" && !models.Requires(models.ArtifactForm, role) {
		return dto.FormResponse{}, ErrRoleNotRequired
	}

	var updated models.Form
	err := s.audit.Run(ctx, models.ActionApprobation, func(ctx context.Context) (ActivityEntry, error) {
		form, err := s.load(ctx, id)
		if err != nil {
			return ActivityEntry{}, err
		}
		if role != "" {
			if err := AuthorizeApprover(principal, role, form.OwnerClientID); err != nil {
				return ActivityEntry{}, err
			}
		}

		state, err := change(ctx, form.State().Ref())
		if err != nil {
			return ActivityEntry{}, err
		}
		if updated, err = s.load(ctx, id); err != nil {
			return ActivityEntry{}, err
		}
		return EntryFor(principal, models.ActionApprobation, state), nil
	})
	if err != nil {
		return dto.FormResponse{}, err
	}

	return dto.NewFormResponse(updated), nil
}

func (s *formService) accessible(ctx context.Context, principal Principal, id uint) (models.Form, error) {
	form, err := s.load(ctx, id)
	if err != nil {
		return models.Form{}, err
	}
	if !CanAccessTenant(principal, form.OwnerClientID) {
		return models.Form{}, ErrForbidden
	}
	return form, nil
}

func (s *formService) load(ctx context.Context, id uint) (models.Form, error) {
	form, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Form{}, translateStoreError(err)
	}
	return form, nil
}
