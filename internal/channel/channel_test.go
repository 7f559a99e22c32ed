package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyMetaSignature(t *testing.T) {
	secret := "shh"
	body := []byte(`{"hello":"world"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !verifyMetaSignature(secret, body, sig) {
		t.Fatalf("expected valid signature to verify")
	}
	if verifyMetaSignature(secret, body, "sha256=deadbeef") {
		t.Fatalf("expected tampered signature to fail")
	}
	if !verifyMetaSignature("", body, "anything") {
		t.Fatalf("expected signature check to pass-through when no secret configured")
	}
}

func TestWhatsApp_NormalizeTextMessage(t *testing.T) {
	w := NewWhatsApp(WhatsAppConfig{PhoneID: "123", AccessToken: "tok"}, nil)

	var raw map[string]any
	body := `{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [{"id":"wamid.1","from":"5215512345678","timestamp":"1700000000","type":"text","text":{"body":"Hola"}}],
					"contacts": [{"profile":{"name":"Juan"}}]
				}
			}]
		}]
	}`
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	msg, err := w.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "Hola" || msg.UserID != "5215512345678" || msg.Username != "Juan" {
		t.Errorf("unexpected normalization: %+v", msg)
	}
	if msg.ChannelConversationID != "5215512345678" {
		t.Errorf("expected conversation id to be the WhatsApp number, got %s", msg.ChannelConversationID)
	}
}

func TestWhatsApp_NormalizeStatusIsUnsupportedEvent(t *testing.T) {
	w := NewWhatsApp(WhatsAppConfig{PhoneID: "123"}, nil)
	var raw map[string]any
	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x","status":"delivered"}]}}]}]}`
	json.Unmarshal([]byte(body), &raw)

	_, err := w.Normalize(context.Background(), raw)
	if err == nil {
		t.Fatalf("expected ErrUnsupportedEvent for a status update")
	}
}

func TestMessenger_NormalizeTextMessage(t *testing.T) {
	m := NewMessenger(MessengerConfig{PageAccessToken: "tok", VerifyToken: "verify"}, nil)
	var raw map[string]any
	body := `{
		"entry": [{
			"messaging": [{
				"sender": {"id": "user1"},
				"timestamp": 1700000000000,
				"message": {"mid": "mid.1", "text": "Quiero informacion"}
			}]
		}]
	}`
	json.Unmarshal([]byte(body), &raw)

	msg, err := m.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "Quiero informacion" || msg.UserID != "user1" {
		t.Errorf("unexpected normalization: %+v", msg)
	}
}

func TestWebChat_VerifySessionToken(t *testing.T) {
	secret := "wc-secret"
	wc := NewWebChat(WebChatConfig{JWTSecret: secret}, nil)

	claims := jwt.MapClaims{
		"conversation_id": "conv-42",
		"exp":             time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	convID, err := wc.VerifySessionToken(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if convID != "conv-42" {
		t.Errorf("expected conv-42, got %s", convID)
	}

	if _, err := wc.VerifySessionToken("not-a-jwt"); err == nil {
		t.Errorf("expected invalid token to fail verification")
	}
}

func TestWebChat_NormalizeRequiresConversationID(t *testing.T) {
	wc := NewWebChat(WebChatConfig{JWTSecret: "s"}, nil)
	_, err := wc.Normalize(context.Background(), map[string]any{"text": "hi"})
	if err == nil {
		t.Fatalf("expected ErrMalformedPayload without conversation_id")
	}
}
