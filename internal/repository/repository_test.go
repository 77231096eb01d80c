package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.Form{}, &models.ActivityLog{}))
	return db
}

func TestFormRepositoryToggleIsSelfInverse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFormRepository(db)
	ctx := context.Background()

	form := models.Form{OwnerClientID: 1, Title: "Batch record", Content: datatypes.JSON(`{"rows":[]}`)}
	require.NoError(t, repo.Create(ctx, &form))

	toggled, err := repo.ToggleApproval(ctx, form.ID, models.RoleClient)
	require.NoError(t, err)
	require.True(t, toggled.ClientApproved)
	require.False(t, toggled.AdminApproved)

	restored, err := repo.ToggleApproval(ctx, form.ID, models.RoleClient)
	require.NoError(t, err)
	require.False(t, restored.ClientApproved)

	_, err = repo.ToggleApproval(ctx, form.ID, models.RoleReviewer)
	require.Error(t, err)
}

func TestFormRepositoryUnapproveAllRoles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFormRepository(db)
	ctx := context.Background()

	form := models.Form{OwnerClientID: 1, Title: "Deviation", Content: datatypes.JSON(`{"rows":[]}`)}
	require.NoError(t, repo.Create(ctx, &form))
	_, err := repo.SetApproval(ctx, form.ID, models.RoleClient, true)
	require.NoError(t, err)
	_, err = repo.SetApproval(ctx, form.ID, models.RoleAdmin, true)
	require.NoError(t, err)

	cleared, err := repo.UnapproveAllRoles(ctx, form.ID)
	require.NoError(t, err)
	require.False(t, cleared.ClientApproved)
	require.False(t, cleared.AdminApproved)

	_, err = repo.UnapproveAllRoles(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDocumentRepositoryStatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	doc := models.Document{OwnerClientID: 2, Title: "SOP-001", Path: "/sops"}
	require.NoError(t, repo.Create(ctx, &doc))
	require.Equal(t, models.DocumentStatusNone, doc.Status)

	approved, err := repo.SetStatus(ctx, doc.ID, models.DocumentStatusApproved)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusApproved, approved.Status)

	again, err := repo.SetStatus(ctx, doc.ID, models.DocumentStatusApproved)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusApproved, again.Status)

	toggled, err := repo.ToggleStatus(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, models.DocumentStatusNone, toggled.Status)

	revised, err := repo.UpdateContent(ctx, doc.ID, DocumentContent{ContentURL: "https://files/sop.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, 2, revised.Revision)
	require.Equal(t, "application/pdf", revised.MimeType)
}

func TestDocumentRepositoryListByPathIsStable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &models.Document{OwnerClientID: 1, Title: fmt.Sprintf("doc-%d", i), Path: "/qa"}))
	}
	require.NoError(t, repo.Create(ctx, &models.Document{OwnerClientID: 2, Title: "other tenant", Path: "/qa"}))
	require.NoError(t, repo.Create(ctx, &models.Document{OwnerClientID: 1, Title: "other path", Path: "/hr"}))

	owner := uint(1)
	first, total, err := repo.ListByPath(ctx, DocumentFilter{OwnerClientID: &owner, Path: "/qa", Page: 1, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, first, 3)

	second, _, err := repo.ListByPath(ctx, DocumentFilter{OwnerClientID: &owner, Path: "/qa", Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Less(t, first[2].ID, second[0].ID)
}

func TestActivityLogRepositoryBuildsHashChain(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	docID := uint(10)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := models.ActivityLog{
			Action:     models.ActionVisualisation,
			ActorID:    5,
			ClientID:   3,
			DocumentID: &docID,
			ActionDate: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(ctx, &entry))
	}

	chain, err := repo.ChainByClient(ctx, 3)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.Empty(t, chain[0].PrevHash)
	require.Equal(t, chain[0].RecordHash, chain[1].PrevHash)
	require.Equal(t, chain[1].RecordHash, chain[2].PrevHash)

	newest, err := repo.ListByClient(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, chain[2].ID, newest[0].ID)

	page, total, err := repo.PaginateByClient(ctx, 3, 2, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	require.Equal(t, chain[0].ID, page[0].ID)

	beyond, _, err := repo.PaginateByClient(ctx, 3, 5, 2)
	require.NoError(t, err)
	require.Empty(t, beyond)
}

func TestActivityLogEntriesAreImmutable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	formID := uint(1)
	entry := models.ActivityLog{Action: models.ActionCreation, ActorID: 1, ClientID: 1, FormID: &formID, ActionDate: time.Now().UTC()}
	require.NoError(t, repo.Append(ctx, &entry))

	err := db.Model(&entry).Update("actor_id", 99).Error
	require.True(t, errors.Is(err, models.ErrActivityLogImmutable))

	err = db.Delete(&entry).Error
	require.True(t, errors.Is(err, models.ErrActivityLogImmutable))
}

func TestTransactorRollsBackAllRepositories(t *testing.T) {
	db := setupTestDB(t)
	forms := NewFormRepository(db)
	tx := NewTransactor(db)
	ctx := context.Background()

	form := models.Form{OwnerClientID: 1, Title: "Change control", Content: datatypes.JSON(`{"rows":[]}`)}
	require.NoError(t, forms.Create(ctx, &form))

	failure := errors.New("audit write failed")
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := forms.SetApproval(ctx, form.ID, models.RoleAdmin, true); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	reloaded, err := forms.GetByID(ctx, form.ID)
	require.NoError(t, err)
	require.False(t, reloaded.AdminApproved)
}
