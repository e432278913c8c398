package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"school-service/internal/middleware"
	"school-service/internal/observability"
)

// NotificationWebSocketHandler serves /ws/notifications. It must run behind
// middleware.AuthMiddleware.
type NotificationWebSocketHandler struct {
	hub       *Hub
	publisher Publisher
}

// NewNotificationWebSocketHandler constructs a NotificationWebSocketHandler.
func NewNotificationWebSocketHandler(hub *Hub, publisher Publisher) *NotificationWebSocketHandler {
	return &NotificationWebSocketHandler{hub: hub, publisher: publisher}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the caller for notifications.
func (h *NotificationWebSocketHandler) Handle(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, span := otel.Tracer("school-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		Role:        c.GetString(middleware.RoleKey),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromContext(ctx),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)
	observability.IncWSActive("notifications")
	publishWSEvent(ctx, h.publisher, info, "ws_connect", "")

	// Clients only listen; reads exist to notice the close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(userID, conn)
			observability.DecWSActive("notifications")
			publishWSEvent(ctx, h.publisher, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(ctx, h.publisher, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}
