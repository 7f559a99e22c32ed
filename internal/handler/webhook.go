package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/gateway"
	"github.com/spirittours/contact-router/internal/port"

	"go.uber.org/zap"
)

// signatureVerifier is implemented by connectors whose platform signs
// webhook bodies (WhatsApp, Messenger, Instagram all share the Meta/Graph
// X-Hub-Signature-256 convention) — asserted for optionally, not part of
// port.Connector, since WebChat and Telegram verify inbound traffic a
// different way.
type signatureVerifier interface {
	VerifySignature(body []byte, header string) bool
}

// webhookHandler builds the GET (platform verification handshake) + POST
// (inbound event) pair for one channel connector.
func webhookHandler(gw *gateway.Gateway, channel domain.Channel, connector port.Connector, sigHeader string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleWebhookVerification(w, r, connector)
		case http.MethodPost:
			handleWebhookEvent(w, r, gw, channel, connector, sigHeader, logger)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func handleWebhookVerification(w http.ResponseWriter, r *http.Request, connector port.Connector) {
	q := r.URL.Query()
	challenge := map[string]string{
		"hub.mode":         q.Get("hub.mode"),
		"hub.verify_token": q.Get("hub.verify_token"),
		"hub.challenge":    q.Get("hub.challenge"),
	}
	resp, err := connector.VerifyWebhook(challenge)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(resp))
}

func handleWebhookEvent(w http.ResponseWriter, r *http.Request, gw *gateway.Gateway, channel domain.Channel, connector port.Connector, sigHeader string, logger *zap.Logger) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if sv, ok := connector.(signatureVerifier); ok && sigHeader != "" {
		if !sv.VerifySignature(body, r.Header.Get(sigHeader)) {
			logger.Warn("webhook signature verification failed", zap.String("channel", string(channel)))
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	// Every platform here expects a fast 200 regardless of how processing
	// turns out internally — slow/erroring webhook responses trigger
	// upstream retries and, eventually, automatic unsubscription.
	if err := gw.HandleInbound(r.Context(), channel, raw); err != nil {
		logger.Error("inbound message processing failed",
			zap.String("channel", string(channel)), zap.Error(err))
	}
	w.WriteHeader(http.StatusOK)
}

// telegramWebhookHandler is a thin variant of webhookHandler: Telegram signs
// requests with a secret header rather than an HMAC body signature, and its
// VerifyWebhook never returns a handshake challenge (GET is unused).
func telegramWebhookHandler(gw *gateway.Gateway, connector port.Connector, webhookSecret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if webhookSecret != "" {
			if _, err := connector.VerifyWebhook(map[string]string{
				"secret_token": r.Header.Get("X-Telegram-Bot-Api-Secret-Token"),
			}); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}
		}

		var raw map[string]any
		if err := decodeJSON(r, &raw); err != nil {
			writeError(w, http.StatusBadRequest, "malformed JSON payload")
			return
		}
		if err := gw.HandleInbound(r.Context(), domain.ChannelTelegram, raw); err != nil {
			logger.Error("inbound message processing failed", zap.String("channel", "telegram"), zap.Error(err))
		}
		w.WriteHeader(http.StatusOK)
	}
}
