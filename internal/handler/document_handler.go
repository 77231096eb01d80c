package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/service"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

// DocumentHandler serves documents, their reviewer approval and directory listings.
type DocumentHandler struct {
	documents service.DocumentService
	directory service.DirectoryService
	validator *validator.Validate
	respond   responder
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents service.DocumentService, directory service.DirectoryService, validator *validator.Validate, translator *i18n.Translator, logger zerolog.Logger) *DocumentHandler {
	scoped := logger.With().Str("component", "document_handler").Logger()
	return &DocumentHandler{
		documents: documents,
		directory: directory,
		validator: validator,
		respond:   responder{translator: translator, logger: scoped},
	}
}

// Register wires routes for documents.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/paginated/path", h.listByPath)
	router.Get("/:id", h.get)
	router.Put("/:id", h.setStatus)
	router.Delete("/:id", h.delete)
	router.Post("/:id/revision", h.uploadRevision)
}

func (h *DocumentHandler) create(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}

	var payload dto.DocumentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.respond.failWith(c, err)
	}

	document, err := h.documents.Create(requestContext(c), principal, payload)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusCreated, "messages.document.created", document)
}

func (h *DocumentHandler) get(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	document, err := h.documents.Get(requestContext(c), principal, id)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.document.fetched", document)
}

func (h *DocumentHandler) setStatus(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	var payload dto.DocumentStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidStatus)
	}

	document, err := h.documents.SetStatus(requestContext(c), principal, id, payload.Status)
	if err != nil {
		return h.respond.failWith(c, err)
	}

	key := "messages.document.deapproved"
	if document.Status == string(models.DocumentStatusApproved) {
		key = "messages.document.approved"
	}
	return h.respond.success(c, fiber.StatusOK, key, document)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	if err := h.documents.Delete(requestContext(c), principal, id); err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.document.deleted", nil)
}

func (h *DocumentHandler) uploadRevision(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return h.respond.failWith(c, apperror.NewValidation("file", "multipart field file is required"))
	}

	document, err := h.documents.UploadRevision(requestContext(c), principal, id, file)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.document.revised", document)
}

func (h *DocumentHandler) listByPath(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}

	page, perPage, err := parsePaging(c)
	if err != nil {
		return h.respond.failWith(c, err)
	}

	var payload dto.DirectoryRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.respond.failWith(c, err)
	}

	query := service.DirectoryQuery{Path: payload.Value, Page: page, PerPage: perPage}
	if raw := strings.TrimSpace(c.Query("clientId")); raw != "" {
		clientID, err := parseQueryInt(c, "clientId")
		if err != nil || clientID <= 0 {
			return h.respond.failWith(c, apperror.NewInvalidArgument("clientId", raw, "must be a positive integer"))
		}
		scoped := uint(clientID)
		query.ClientID = &scoped
	}

	result, err := h.directory.List(requestContext(c), principal, query)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.documents.listed", result)
}
