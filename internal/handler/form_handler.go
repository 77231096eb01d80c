package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/internal/service"
)

// FormHandler serves form CRUD and the client/admin approval endpoints.
type FormHandler struct {
	service   service.FormService
	validator *validator.Validate
	respond   responder
}

// NewFormHandler constructs the handler.
func NewFormHandler(service service.FormService, validator *validator.Validate, translator *i18n.Translator, logger zerolog.Logger) *FormHandler {
	scoped := logger.With().Str("component", "form_handler").Logger()
	return &FormHandler{
		service:   service,
		validator: validator,
		respond:   responder{translator: translator, logger: scoped},
	}
}

// Register wires routes for forms.
func (h *FormHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Put("/:formID/unapprove-all", middleware.WithAuth(h.unapproveAll, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Get("/:formID", h.get)
	router.Put("/:formID", h.update)
	router.Delete("/:formID", h.delete)
	router.Put("/:role/:formID/approval", h.toggle)
	router.Put("/:role/:formID/approve", h.approve)
	router.Put("/:role/:formID/deapprove", h.deapprove)
}

func (h *FormHandler) create(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}

	var payload dto.FormCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.respond.failWith(c, err)
	}

	form, err := h.service.Create(requestContext(c), principal, payload)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusCreated, "messages.form.created", form)
}

func (h *FormHandler) get(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "formID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	form, err := h.service.Get(requestContext(c), principal, id)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.form.fetched", form)
}

func (h *FormHandler) update(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "formID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	var payload dto.FormUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.respond.failWith(c, err)
	}

	form, err := h.service.UpdateContent(requestContext(c), principal, id, payload)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.form.updated", form)
}

func (h *FormHandler) delete(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "formID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	if err := h.service.Delete(requestContext(c), principal, id); err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.form.deleted", nil)
}

func (h *FormHandler) toggle(c *fiber.Ctx) error {
	return h.changeApproval(c, func(principal service.Principal, id uint, role models.ApproverRole) (dto.FormResponse, error) {
		return h.service.ToggleApproval(requestContext(c), principal, id, role)
	})
}

func (h *FormHandler) approve(c *fiber.Ctx) error {
	return h.changeApproval(c, func(principal service.Principal, id uint, role models.ApproverRole) (dto.FormResponse, error) {
		return h.service.SetApproval(requestContext(c), principal, id, role, true)
	})
}

func (h *FormHandler) deapprove(c *fiber.Ctx) error {
	return h.changeApproval(c, func(principal service.Principal, id uint, role models.ApproverRole) (dto.FormResponse, error) {
		return h.service.SetApproval(requestContext(c), principal, id, role, false)
	})
}

type approvalCall func(principal service.Principal, id uint, role models.ApproverRole) (dto.FormResponse, error)

func (h *FormHandler) changeApproval(c *fiber.Ctx, call approvalCall) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	role, ok := models.ParseApproverRole(c.Params("role"))
	if !ok {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidRole)
	}
	id, err := parseIDParam(c, "formID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	form, err := call(principal, id, role)
	if err != nil {
		return h.respond.failWith(c, err)
	}

	approved := form.Approvals.Client
	if role == models.RoleAdmin {
		approved = form.Approvals.Admin
	}
	key := "messages.form.deapproved"
	if approved {
		key = "messages.form.approved"
	}
	return h.respond.success(c, fiber.StatusOK, key, form)
}

func (h *FormHandler) unapproveAll(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	id, err := parseIDParam(c, "formID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	form, err := h.service.UnapproveAll(requestContext(c), principal, id)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.form.unapproved_all", form)
}
