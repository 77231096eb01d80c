package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/i18n"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/service"
)

const streamPingInterval = 30 * time.Second

// ActivityLogHandler exposes the audit trail of a client.
type ActivityLogHandler struct {
	service service.ActivityService
	stream  service.AuditStream
	respond responder
	logger  zerolog.Logger
}

// NewActivityLogHandler constructs the handler. stream may be nil, in which case
// the live endpoint is not registered.
func NewActivityLogHandler(service service.ActivityService, stream service.AuditStream, translator *i18n.Translator, logger zerolog.Logger) *ActivityLogHandler {
	scoped := logger.With().Str("component", "activity_log_handler").Logger()
	return &ActivityLogHandler{
		service: service,
		stream:  stream,
		respond: responder{translator: translator, logger: scoped},
		logger:  scoped,
	}
}

// Register wires routes for activity logs.
func (h *ActivityLogHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	if h.stream != nil {
		router.Get("/:clientID/stream", h.upgrade, websocket.New(h.handleStream))
	}
	router.Get("/:clientID/paginate", h.paginate)
	router.Get("/:clientID/verify", middleware.WithAuth(h.verify, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
	router.Get("/:clientID", h.list)
}

func (h *ActivityLogHandler) create(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}

	var payload dto.ActivityLogCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.respond.fail(c, fiber.StatusBadRequest, keyInvalidPayload)
	}

	entry, err := h.service.Create(requestContext(c), principal, payload)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusCreated, "messages.logs.recorded", entry)
}

func (h *ActivityLogHandler) list(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	clientID, err := parseIDParam(c, "clientID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	logs, err := h.service.ListForClient(requestContext(c), principal, clientID)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.logs.listed", logs)
}

func (h *ActivityLogHandler) paginate(c *fiber.Ctx) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	clientID, err := parseIDParam(c, "clientID")
	if err != nil {
		return h.respond.failWith(c, err)
	}
	page, perPage, err := parsePaging(c)
	if err != nil {
		return h.respond.failWith(c, err)
	}

	result, err := h.service.PaginateForClient(requestContext(c), principal, clientID, page, perPage)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.logs.listed", result)
}

func (h *ActivityLogHandler) verify(c *fiber.Ctx) error {
	clientID, err := parseIDParam(c, "clientID")
	if err != nil {
		return h.respond.failWith(c, err)
	}

	result, err := h.service.VerifyChain(requestContext(c), clientID)
	if err != nil {
		return h.respond.failWith(c, err)
	}
	return h.respond.success(c, fiber.StatusOK, "messages.logs.chain_verified", result)
}

func (h *ActivityLogHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, ok := principalFromContext(c)
	if !ok {
		return h.respond.fail(c, fiber.StatusUnauthorized, keyUnauthorized)
	}
	clientID, err := parseIDParam(c, "clientID")
	if err != nil {
		return h.respond.failWith(c, err)
	}
	if !service.CanAccessTenant(principal, clientID) {
		return h.respond.failWith(c, service.ErrForbidden)
	}

	c.Locals("stream_client_id", clientID)
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

func (h *ActivityLogHandler) handleStream(conn *websocket.Conn) {
	clientID, _ := conn.Locals("stream_client_id").(uint)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	entries, unsubscribe := h.stream.Subscribe(clientID)
	defer unsubscribe()

	logger := h.logger.With().
		Uint("client_id", clientID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()
	logger.Info().Msg("activity stream connected")
	defer logger.Info().Msg("activity stream disconnected")

	// reader detects the peer closing the socket
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				logger.Debug().Err(err).Msg("failed to write activity entry")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
