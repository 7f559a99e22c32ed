package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spirittours/contact-router/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebChatConfig holds the secret the website widget's session JWT is signed
// with (spec §6).
type WebChatConfig struct {
	JWTSecret string
}

// webchatFrame is the wire shape pushed to (and parsed from) a widget socket.
type webchatFrame struct {
	Type        string `json:"type"` // "message" | "quick_replies" | "typing"
	Text        string `json:"text,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
}

// WebChat implements port.Connector for the embedded website widget. Unlike
// the other transports it has no external Send API: delivery means writing
// a JSON frame directly to the customer's live websocket connection, held
// in a registry this connector owns.
type WebChat struct {
	cfg    WebChatConfig
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn // conversationID -> live socket
}

// NewWebChat builds a WebChat connector.
func NewWebChat(cfg WebChatConfig, logger *zap.Logger) *WebChat {
	return &WebChat{cfg: cfg, logger: logger, conns: make(map[string]*websocket.Conn)}
}

func (w *WebChat) Channel() domain.Channel { return domain.ChannelWebChat }

// Register attaches a live socket to a conversation id. Called by the
// handler layer once it has upgraded an incoming /ws/chat request and
// validated the session JWT.
func (w *WebChat) Register(conversationID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conns[conversationID] = conn
}

// Unregister drops a socket, e.g. on disconnect.
func (w *WebChat) Unregister(conversationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.conns, conversationID)
}

// Normalize expects raw to already be the decoded JSON frame the widget
// sent over its websocket connection (text + the conversation id the
// handler attached after verifying the session JWT).
func (w *WebChat) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	_, span := tracer.Start(ctx, "WebChat.Normalize")
	defer span.End()

	conversationID, _ := raw["conversation_id"].(string)
	userID, _ := raw["user_id"].(string)
	text, _ := raw["text"].(string)
	if conversationID == "" || text == "" {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: "webchat", Reason: "missing conversation_id or text"}
	}

	return domain.NormalizedMessage{
		MessageID:             fmt.Sprintf("%s-%d", conversationID, time.Now().UnixNano()),
		Channel:               domain.ChannelWebChat,
		UserID:                userID,
		Text:                  text,
		TimestampMS:           time.Now().UnixMilli(),
		RawPayload:            raw,
		ChannelUserID:         userID,
		ChannelConversationID: conversationID,
	}, nil
}

func (w *WebChat) conn(recipientID string) (*websocket.Conn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.conns[recipientID]
	return c, ok
}

func (w *WebChat) SendText(ctx context.Context, recipientID, text string) error {
	conn, ok := w.conn(recipientID)
	if !ok {
		return &domain.ErrTransport{Channel: "webchat", Op: "send", Err: fmt.Errorf("no live connection for %s", recipientID)}
	}
	if err := conn.WriteJSON(webchatFrame{Type: "message", Text: text}); err != nil {
		return &domain.ErrTransport{Channel: "webchat", Op: "send", Err: err}
	}
	return nil
}

func (w *WebChat) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	conn, ok := w.conn(recipientID)
	if !ok {
		return &domain.ErrTransport{Channel: "webchat", Op: "send_media", Err: fmt.Errorf("no live connection for %s", recipientID)}
	}
	if err := conn.WriteJSON(webchatFrame{Type: "message", Text: caption, MediaURL: mediaURL, AttachmentType: string(kind)}); err != nil {
		return &domain.ErrTransport{Channel: "webchat", Op: "send_media", Err: err}
	}
	return nil
}

func (w *WebChat) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	conn, ok := w.conn(recipientID)
	if !ok {
		return &domain.ErrTransport{Channel: "webchat", Op: "send_quick_replies", Err: fmt.Errorf("no live connection for %s", recipientID)}
	}
	if err := conn.WriteJSON(webchatFrame{Type: "quick_replies", Text: text, Choices: choices}); err != nil {
		return &domain.ErrTransport{Channel: "webchat", Op: "send_quick_replies", Err: err}
	}
	return nil
}

func (w *WebChat) SendTyping(ctx context.Context, recipientID string) error {
	conn, ok := w.conn(recipientID)
	if !ok {
		return nil // no socket, nothing to animate
	}
	return conn.WriteJSON(webchatFrame{Type: "typing"})
}

// MarkRead is a no-op: the widget has no read-receipt concept.
func (w *WebChat) MarkRead(ctx context.Context, messageID string) error {
	return nil
}

// VerifyWebhook is unused for WebChat (there is no webhook handshake); the
// widget authenticates via the session JWT instead. See VerifySessionToken.
func (w *WebChat) VerifyWebhook(challenge map[string]string) (string, error) {
	return "", nil
}

// VerifySessionToken validates the JWT the widget presents when opening its
// websocket connection and returns the conversation id it was issued for.
func (w *WebChat) VerifySessionToken(tokenString string) (conversationID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(w.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", &domain.ErrUnauthorized{Channel: "webchat", Reason: "invalid session token"}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &domain.ErrUnauthorized{Channel: "webchat", Reason: "malformed claims"}
	}
	conversationID, _ = claims["conversation_id"].(string)
	if conversationID == "" {
		return "", &domain.ErrUnauthorized{Channel: "webchat", Reason: "token missing conversation_id claim"}
	}
	return conversationID, nil
}
