package service

import (
	"context"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
)

// ApprovalStore holds the approval flags of one artifact kind. Only the
// approval workflow writes through it.
type ApprovalStore interface {
	Load(ctx context.Context, id uint) (models.ArtifactState, error)
	Toggle(ctx context.Context, id uint, role models.ApproverRole) (models.ArtifactState, error)
	Set(ctx context.Context, id uint, role models.ApproverRole, approved bool) (models.ArtifactState, error)
	ResetAll(ctx context.Context, id uint) (models.ArtifactState, error)
}

type documentApprovalStore struct {
	repo repository.DocumentRepository
}

// NewDocumentApprovalStore exposes document statuses as reviewer approvals.
func NewDocumentApprovalStore(repo repository.DocumentRepository) ApprovalStore {
	return &documentApprovalStore{repo: repo}
}

func (s *documentApprovalStore) Load(ctx context.Context, id uint) (models.ArtifactState, error) {
	return documentState(s.repo.GetByID(ctx, id))
}

func (s *documentApprovalStore) Toggle(ctx context.Context, id uint, _ models.ApproverRole) (models.ArtifactState, error) {
	return documentState(s.repo.ToggleStatus(ctx, id))
}

func (s *documentApprovalStore) Set(ctx context.Context, id uint, _ models.ApproverRole, approved bool) (models.ArtifactState, error) {
	status := models.DocumentStatusNone
	if approved {
		status = models.DocumentStatusApproved
	}
	return documentState(s.repo.SetStatus(ctx, id, status))
}

func (s *documentApprovalStore) ResetAll(ctx context.Context, id uint) (models.ArtifactState, error) {
	return documentState(s.repo.SetStatus(ctx, id, models.DocumentStatusNone))
}

func documentState(document models.Document, err error) (models.ArtifactState, error) {
	if err != nil {
		return models.ArtifactState{}, err
	}
	return document.State(), nil
}

type formApprovalStore struct {
	repo repository.FormRepository
}

// NewFormApprovalStore exposes the client and admin flags of forms.
func NewFormApprovalStore(repo repository.FormRepository) ApprovalStore {
	return &formApprovalStore{repo: repo}
}

func (s *formApprovalStore) Load(ctx context.Context, id uint) (models.ArtifactState, error) {
	return formState(s.repo.GetByID(ctx, id))
}

func (s *formApprovalStore) Toggle(ctx context.Context, id uint, role models.ApproverRole) (models.ArtifactState, error) {
	return formState(s.repo.ToggleApproval(ctx, id, role))
}

func (s *formApprovalStore) Set(ctx context.Context, id uint, role models.ApproverRole, approved bool) (models.ArtifactState, error) {
	return formState(s.repo.SetApproval(ctx, id, role, approved))
}

// ResetAll clears both roles in one statement, leaving no partially unapproved window.
func (s *formApprovalStore) ResetAll(ctx context.Context, id uint) (models.ArtifactState, error) {
	return formState(s.repo.UnapproveAllRoles(ctx, id))
}

func formState(form models.Form, err error) (models.ArtifactState, error) {
	if err != nil {
		return models.ArtifactState{}, err
	}
	return form.State(), nil
}
