package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
)

func seedForm(t *testing.T, stack *serviceStack, client, admin bool) models.Form {
	t.Helper()
	form := models.Form{OwnerClientID: 7, Title: "Batch record", Content: datatypes.JSON(`{"rows":[["a"]]}`)}
	require.NoError(t, stack.forms.Create(context.Background(), &form))
	if client {
		_, err := stack.forms.SetApproval(context.Background(), form.ID, models.RoleClient, true)
		require.NoError(t, err)
	}
	if admin {
		_, err := stack.forms.SetApproval(context.Background(), form.ID, models.RoleAdmin, true)
		require.NoError(t, err)
	}
	return form
}

func seedDocument(t *testing.T, stack *serviceStack, status models.DocumentStatus) models.Document {
	t.Helper()
	document := models.Document{OwnerClientID: 7, Title: "SOP-001", Path: "/qa", Status: status}
	require.NoError(t, stack.documents.Create(context.Background(), &document))
	return document
}

func TestToggleApprovalIsItsOwnInverse(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()

	form := seedForm(t, stack, false, true)
	ref := models.ArtifactRef{Kind: models.ArtifactForm, ID: form.ID}

	for _, role := range []models.ApproverRole{models.RoleClient, models.RoleAdmin} {
		before, err := stack.workflow.State(ctx, ref)
		require.NoError(t, err)

		once, err := stack.workflow.ToggleApproval(ctx, ref, role)
		require.NoError(t, err)
		require.Equal(t, !before.Approvals[role], once.Approvals[role])

		twice, err := stack.workflow.ToggleApproval(ctx, ref, role)
		require.NoError(t, err)
		require.Equal(t, before.Approvals, twice.Approvals)
	}

	document := seedDocument(t, stack, models.DocumentStatusNone)
	docRef := models.ArtifactRef{Kind: models.ArtifactDocument, ID: document.ID}
	once, err := stack.workflow.ToggleApproval(ctx, docRef, models.RoleReviewer)
	require.NoError(t, err)
	require.True(t, once.Approvals[models.RoleReviewer])
	twice, err := stack.workflow.ToggleApproval(ctx, docRef, models.RoleReviewer)
	require.NoError(t, err)
	require.False(t, twice.Approvals[models.RoleReviewer])
}

func TestSetApprovalIsIdempotent(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()

	document := seedDocument(t, stack, models.DocumentStatusApproved)
	ref := models.ArtifactRef{Kind: models.ArtifactDocument, ID: document.ID}

	first, err := stack.workflow.SetApproval(ctx, ref, models.RoleReviewer, true)
	require.NoError(t, err)
	second, err := stack.workflow.SetApproval(ctx, ref, models.RoleReviewer, true)
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored, err := stack.documents.GetByID(ctx, document.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusApproved, stored.Status)
}

func TestOnContentMutatedRevokesEveryRole(t *testing.T) {
	cases := []struct {
		name          string
		client, admin bool
	}{
		{name: "client only", client: true},
		{name: "admin only", admin: true},
		{name: "both", client: true, admin: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stack := newServiceStack(t)
			form := seedForm(t, stack, tc.client, tc.admin)

			state, err := stack.workflow.OnContentMutated(context.Background(), models.ArtifactRef{Kind: models.ArtifactForm, ID: form.ID})
			require.NoError(t, err)
			require.False(t, state.Approvals[models.RoleClient])
			require.False(t, state.Approvals[models.RoleAdmin])
			require.False(t, state.IsFullyApproved())
		})
	}
}

type countingStore struct {
	state   models.ArtifactState
	resets  int
	loadErr error
	err     error
}

func (s *countingStore) Load(context.Context, uint) (models.ArtifactState, error) {
	return s.state, s.loadErr
}

func (s *countingStore) Toggle(_ context.Context, _ uint, role models.ApproverRole) (models.ArtifactState, error) {
	if s.err != nil {
		return models.ArtifactState{}, s.err
	}
	s.state.Approvals[role] = !s.state.Approvals[role]
	return s.state, nil
}

func (s *countingStore) Set(_ context.Context, _ uint, role models.ApproverRole, approved bool) (models.ArtifactState, error) {
	if s.err != nil {
		return models.ArtifactState{}, s.err
	}
	s.state.Approvals[role] = approved
	return s.state, nil
}

func (s *countingStore) ResetAll(context.Context, uint) (models.ArtifactState, error) {
	s.resets++
	if s.err != nil {
		return models.ArtifactState{}, s.err
	}
	for role := range s.state.Approvals {
		s.state.Approvals[role] = false
	}
	return s.state, nil
}

func newCountingFormStore() *countingStore {
	return &countingStore{state: models.ArtifactState{
		Kind:      models.ArtifactForm,
		ID:        1,
		Approvals: models.Approvals{models.RoleClient: false, models.RoleAdmin: false},
	}}
}

func TestOnContentMutatedSkipsWriteWhenNothingApproved(t *testing.T) {
	store := newCountingFormStore()
	workflow := NewApprovalWorkflow(nil, store, testLogger())
	ref := models.ArtifactRef{Kind: models.ArtifactForm, ID: 1}

	_, err := workflow.OnContentMutated(context.Background(), ref)
	require.NoError(t, err)
	require.Zero(t, store.resets)

	store.state.Approvals[models.RoleAdmin] = true
	_, err = workflow.OnContentMutated(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, 1, store.resets)

	// UnapproveAll always writes.
	_, err = workflow.UnapproveAll(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, 2, store.resets)
}

func TestWorkflowSurfacesStoreErrorsUnchanged(t *testing.T) {
	errBoom := errors.New("connection reset")
	store := newCountingFormStore()
	store.err = errBoom
	store.state.Approvals[models.RoleClient] = true
	workflow := NewApprovalWorkflow(nil, store, testLogger())
	ref := models.ArtifactRef{Kind: models.ArtifactForm, ID: 1}

	_, err := workflow.ToggleApproval(context.Background(), ref, models.RoleClient)
	require.ErrorIs(t, err, errBoom)

	_, err = workflow.SetApproval(context.Background(), ref, models.RoleAdmin, true)
	require.ErrorIs(t, err, errBoom)

	_, err = workflow.OnContentMutated(context.Background(), ref)
	require.ErrorIs(t, err, errBoom)

	store.err = gorm.ErrRecordNotFound
	_, err = workflow.UnapproveAll(context.Background(), ref)
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestWorkflowRejectsRoleOutsideRequiredSet(t *testing.T) {
	stack := newServiceStack(t)
	form := seedForm(t, stack, false, false)

	_, err := stack.workflow.ToggleApproval(context.Background(), models.ArtifactRef{Kind: models.ArtifactForm, ID: form.ID}, models.RoleReviewer)
	require.ErrorIs(t, err, ErrRoleNotRequired)

	_, err = stack.workflow.SetApproval(context.Background(), models.ArtifactRef{Kind: models.ArtifactDocument, ID: 1}, models.RoleClient, true)
	require.ErrorIs(t, err, ErrRoleNotRequired)

	_, err = stack.workflow.State(context.Background(), models.ArtifactRef{Kind: "binder", ID: 1})
	require.ErrorIs(t, err, ErrUnknownArtifactKind)

	_, err = stack.workflow.ToggleApproval(context.Background(), models.ArtifactRef{Kind: models.ArtifactForm, ID: 9999}, models.RoleClient)
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestFullyApprovedRequiresBothFormRoles(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()
	form := seedForm(t, stack, false, false)
	ref := models.ArtifactRef{Kind: models.ArtifactForm, ID: form.ID}

	state, err := stack.workflow.SetApproval(ctx, ref, models.RoleClient, true)
	require.NoError(t, err)
	require.False(t, state.IsFullyApproved())

	state, err = stack.workflow.SetApproval(ctx, ref, models.RoleAdmin, true)
	require.NoError(t, err)
	require.True(t, state.IsFullyApproved())

	state, err = stack.workflow.ToggleApproval(ctx, ref, models.RoleClient)
	require.NoError(t, err)
	require.False(t, state.IsFullyApproved())
}
