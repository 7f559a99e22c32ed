package handler

import (
	"net/http"

	"github.com/spirittours/contact-router/internal/channel"
	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/gateway"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var webchatUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The widget is served from the same site's static assets; origin
	// checking is delegated to the reverse proxy in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// webChatHandler upgrades /ws/chat, validates the widget's session token,
// registers the live socket with the WebChat connector, and pumps inbound
// frames into the Gateway until the connection closes.
func webChatHandler(gw *gateway.Gateway, wc *channel.WebChat, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		conversationID, err := wc.VerifySessionToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		userID := r.URL.Query().Get("user_id")

		conn, err := webchatUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("webchat upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		wc.Register(conversationID, conn)
		defer wc.Unregister(conversationID)

		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				logger.Debug("webchat socket closed", zap.String("conversation_id", conversationID), zap.Error(err))
				return
			}
			frame["conversation_id"] = conversationID
			if frame["user_id"] == nil || frame["user_id"] == "" {
				frame["user_id"] = userID
			}
			if err := gw.HandleInbound(r.Context(), domain.ChannelWebChat, frame); err != nil {
				logger.Error("webchat inbound processing failed", zap.String("conversation_id", conversationID), zap.Error(err))
			}
		}
	}
}
