package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/service"
	"github.com/noah-isme/docflow-api/internal/utils"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

// Message keys of failures that do not carry their own key.
const (
	keyNotFound             = "errors.not_found"
	keyForbidden            = "errors.forbidden"
	keyUnauthorized         = "errors.unauthorized"
	keyInvalidPayload       = "errors.invalid_payload"
	keyInvalidRole          = "errors.invalid_role"
	keyInvalidStatus        = "errors.invalid_status"
	keyStorageUnavailable   = "errors.storage_unavailable"
	keyUploadRejected       = "errors.upload_rejected"
	keyOverrideNotPermitted = "errors.override_not_permitted"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parsePaging reads page and perPage. Absent values take the defaults; present
// values are passed through so the service can reject them.
func parsePaging(c *fiber.Ctx) (int, int, error) {
	page := defaultPage
	if strings.TrimSpace(c.Query("page")) != "" {
		parsed, err := parseQueryInt(c, "page")
		if err != nil {
			return 0, 0, apperror.NewInvalidArgument("page", c.Query("page"), "must be a number")
		}
		page = parsed
	}

	perPage := defaultPerPage
	if strings.TrimSpace(c.Query("perPage")) != "" {
		parsed, err := parseQueryInt(c, "perPage")
		if err != nil {
			return 0, 0, apperror.NewInvalidArgument("perPage", c.Query("perPage"), "must be a number")
		}
		perPage = parsed
	}

	return page, perPage, nil
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, apperror.NewInvalidArgument(name, c.Params(name), "must be a positive integer")
	}
	return uint(parsed), nil
}

func uintFromLocals(value interface{}) uint {
	switch v := value.(type) {
	case uint:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint(v)
	case float64:
		if v < 0 {
			return 0
		}
		return uint(v)
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return uint(parsed)
	default:
		return 0
	}
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}

func principalFromContext(c *fiber.Ctx) (service.Principal, bool) {
	id := uintFromLocals(c.Locals("user_id"))
	if id == 0 {
		return service.Principal{}, false
	}
	return service.Principal{
		ID:       id,
		Role:     userRoleFromContext(c),
		ClientID: uintFromLocals(c.Locals("client_id")),
	}, true
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.RequestCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.RequestCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// responder localises success and failure envelopes for one handler.
type responder struct {
	translator *i18n.Translator
	logger     zerolog.Logger
}

func (r responder) message(c *fiber.Ctx, key string) string {
	if r.translator == nil {
		return key
	}
	return r.translator.Translate(c.Get(fiber.HeaderAcceptLanguage), key)
}

func (r responder) success(c *fiber.Ctx, status int, key string, data interface{}) error {
	return utils.SendSuccessWithStatus(c, status, r.message(c, key), data)
}

func (r responder) fail(c *fiber.Ctx, status int, key string) error {
	return utils.FailWithKey(c, status, r.message(c, key), key)
}

// failWith maps err onto a status code and a localised message.
func (r responder) failWith(c *fiber.Ctx, err error) error {
	status, key := classifyError(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(r.logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return r.fail(c, status, key)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrArtifactNotFound):
		return fiber.StatusNotFound, keyNotFound
	case errors.Is(err, service.ErrOverrideNotPermitted):
		return fiber.StatusForbidden, keyOverrideNotPermitted
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, keyForbidden
	case errors.Is(err, service.ErrRoleNotRequired), errors.Is(err, service.ErrUnknownArtifactKind):
		return fiber.StatusBadRequest, keyInvalidRole
	case errors.Is(err, service.ErrInvalidStatus):
		return fiber.StatusBadRequest, keyInvalidStatus
	case errors.Is(err, service.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable, keyStorageUnavailable
	case errors.Is(err, service.ErrUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge, keyUploadRejected
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return fiber.StatusUnsupportedMediaType, keyUploadRejected
	case apperror.IsValidation(err), apperror.IsInvalidArgument(err):
		return fiber.StatusBadRequest, apperror.MessageKeyOf(err)
	case isValidationError(err):
		return fiber.StatusBadRequest, apperror.KeyValidation
	default:
		return fiber.StatusInternalServerError, apperror.KeyUnexpected
	}
}
