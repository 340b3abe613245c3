package handler

import (
	"candidate-collab/internal/controller"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/service"
	internalWS "candidate-collab/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	service service.INotificationService
	hub     *internalWS.Hub
	tokens  *serverutils.TokenIssuer
	logger  logger.ILogger
}

func NewNotificationHandler(service service.INotificationService, hub *internalWS.Hub, tokens *serverutils.TokenIssuer, log logger.ILogger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		hub:     hub,
		tokens:  tokens,
		logger:  log,
	}
}

// ServeWs authenticates the handshake and hands the connection to the hub.
// A bad token is refused with 401 before the upgrade so clients can tell it
// apart from a network failure.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	// Priority 1: Query Param (Browser standard)
	tokenStr := c.Query("token")

	// Priority 2: Authorization Header (Tooling/Non-browser standard)
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c)
	}
	if tokenStr == "" {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')")
	}

	claims, err := h.tokens.Parse(tokenStr)
	if err != nil {
		h.logger.Warn("NotificationHandler", "Invalid Token in WS Handshake", map[string]interface{}{"error": err.Error()})
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Invalid user ID format in token")
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("NotificationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID, claims.Username)
			h.logger.Info("NotificationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// GetNotifications returns the user's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	notifications, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return controller.Failure(c, err)
	}
	return c.JSON(notifications)
}

// MarkAsRead acknowledges one notification. Repeating it is harmless.
func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := serverutils.UserID(c)
	if !ok {
		return serverutils.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	noteID, err := uuid.Parse(c.Params("noteId"))
	if err != nil {
		return serverutils.Fail(c, fiber.StatusBadRequest, "Invalid ID")
	}

	if err := h.service.MarkRead(c.UserContext(), userID, noteID); err != nil {
		return controller.Failure(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// RegisterRoutes registers the notification routes and the websocket endpoint.
func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	notif := router.Group("/notifications")
	notif.Use(serverutils.JwtMiddleware(h.tokens))
	notif.Get("/", h.GetNotifications)
	notif.Patch("/:noteId/read", h.MarkAsRead)

	// WebSocket
	router.Get("/ws", h.ServeWs)
}
