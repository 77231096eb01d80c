package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/database"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// serviceStack wires every service over one sqlite database.
type serviceStack struct {
	db        *gorm.DB
	documents repository.DocumentRepository
	forms     repository.FormRepository
	logs      repository.ActivityLogRepository
	workflow  ApprovalWorkflow
	activity  ActivityService
	audit     *AuditRunner
	formSvc   FormService
	docSvc    DocumentService
	directory DirectoryService
}

type stackOption func(*stackConfig)

type stackConfig struct {
	logs    repository.ActivityLogRepository
	storage FileStorage
	opts    ActivityServiceOptions
}

func withActivityRepo(repo repository.ActivityLogRepository) stackOption {
	return func(c *stackConfig) { c.logs = repo }
}

func withStorage(storage FileStorage) stackOption {
	return func(c *stackConfig) { c.storage = storage }
}

func withActivityOptions(opts ActivityServiceOptions) stackOption {
	return func(c *stackConfig) { c.opts = opts }
}

func newServiceStack(t *testing.T, options ...stackOption) *serviceStack {
	t.Helper()
	db := setupServiceDB(t)

	cfg := stackConfig{logs: repository.NewActivityLogRepository(db)}
	for _, option := range options {
		option(&cfg)
	}

	documents := repository.NewDocumentRepository(db)
	forms := repository.NewFormRepository(db)
	workflow := NewApprovalWorkflow(NewDocumentApprovalStore(documents), NewFormApprovalStore(forms), testLogger())

	activityOpts := cfg.opts
	if activityOpts.Locator == nil {
		activityOpts.Locator = workflow
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	activity := NewActivityService(cfg.logs, validate, activityOpts, testLogger())
	audit := NewAuditRunner(repository.NewTransactor(db), activity, testLogger())

	normalizer, err := NewFormContentNormalizer()
	require.NoError(t, err)

	return &serviceStack{
		db:        db,
		documents: documents,
		forms:     forms,
		logs:      cfg.logs,
		workflow:  workflow,
		activity:  activity,
		audit:     audit,
		formSvc:   NewFormService(forms, workflow, audit, normalizer, validate, testLogger()),
		docSvc:    NewDocumentService(documents, workflow, audit, cfg.storage, 1, validate, testLogger()),
		directory: NewDirectoryService(documents, testLogger()),
	}
}

func (s *serviceStack) entries(t *testing.T, clientID uint) []models.ActivityLog {
	t.Helper()
	var entries []models.ActivityLog
	require.NoError(t, s.db.Where("client_id = ?", clientID).Order("id ASC").Find(&entries).Error)
	return entries
}

var (
	adminPrincipal    = Principal{ID: 1, Role: PrincipalRoleAdmin}
	clientPrincipal   = Principal{ID: 20, Role: PrincipalRoleClient, ClientID: 7}
	reviewerPrincipal = Principal{ID: 30, Role: PrincipalRoleReviewer}
)

// failingActivityRepo fails every append.
type failingActivityRepo struct {
	repository.ActivityLogRepository
	err error
}

func (r failingActivityRepo) Append(context.Context, *models.ActivityLog) error {
	return r.err
}
