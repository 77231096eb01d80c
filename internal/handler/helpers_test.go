package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/docflow-api/internal/config"
	"github.com/noah-isme/docflow-api/internal/database"
	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/handler"
	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/internal/router"
	"github.com/noah-isme/docflow-api/internal/service"
)

const jwtSecret = "handler-secret"

type memoryStorage struct {
	keys []string
}

func (m *memoryStorage) Put(_ context.Context, key string, body io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return "https://files.example.com/" + key, nil
}

// signalStream reports each new subscriber so tests can wait for the socket
// to be attached before publishing.
type signalStream struct {
	service.AuditStream
	subscribed chan uint
}

func (s *signalStream) Subscribe(clientID uint) (<-chan dto.ActivityLogResponse, func()) {
	entries, cancel := s.AuditStream.Subscribe(clientID)
	s.subscribed <- clientID
	return entries, cancel
}

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	storage *memoryStorage
	stream  *signalStream
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	translator, err := i18n.NewTranslator("en")
	require.NoError(t, err)
	validate := validator.New(validator.WithRequiredStructEnabled())

	documents := repository.NewDocumentRepository(db)
	forms := repository.NewFormRepository(db)
	workflow := service.NewApprovalWorkflow(service.NewDocumentApprovalStore(documents), service.NewFormApprovalStore(forms), logger)

	stream := &signalStream{
		AuditStream: service.NewAuditStream(nil, nil, "", logger),
		subscribed:  make(chan uint, 4),
	}
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), validate, service.ActivityServiceOptions{
		Locator: workflow,
		Stream:  stream,
	}, logger)
	audit := service.NewAuditRunner(repository.NewTransactor(db), activity, logger)
	normalizer, err := service.NewFormContentNormalizer()
	require.NoError(t, err)
	storage := &memoryStorage{}

	formService := service.NewFormService(forms, workflow, audit, normalizer, validate, logger)
	documentService := service.NewDocumentService(documents, workflow, audit, storage, 1, validate, logger)
	directoryService := service.NewDirectoryService(documents, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Docflow API", AppEnv: "test", RateLimitPerMinute: 1000}, router.Dependencies{
		FormHandler:        handler.NewFormHandler(formService, validate, translator, logger),
		DocumentHandler:    handler.NewDocumentHandler(documentService, directoryService, validate, translator, logger),
		ActivityLogHandler: handler.NewActivityLogHandler(activity, stream, translator, logger),
		JWTMiddleware:      middleware.JWTProtected(jwtSecret),
		HealthProbes:       []handler.HealthProbe{handler.DatabaseProbe(db)},
	})

	return &testEnv{app: app, db: db, storage: storage, stream: stream}
}

func token(t *testing.T, sub uint, role string, clientID uint) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": fmt.Sprint(sub), "role": role}
	if clientID != 0 {
		claims["client_id"] = clientID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

var (
	adminToken    = func(t *testing.T) string { return token(t, 1, "admin", 0) }
	clientToken   = func(t *testing.T) string { return token(t, 20, "client", 7) }
	reviewerToken = func(t *testing.T) string { return token(t, 30, "reviewer", 0) }
)

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func (e *testEnv) entries(t *testing.T, clientID uint) []models.ActivityLog {
	t.Helper()
	var entries []models.ActivityLog
	require.NoError(t, e.db.Where("client_id = ?", clientID).Order("id ASC").Find(&entries).Error)
	return entries
}

func newRequest(t *testing.T, method, path, bearer string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	return req
}
