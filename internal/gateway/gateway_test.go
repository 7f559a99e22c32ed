package gateway_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spirittours/contact-router/internal/agent"
	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/gateway"
	"github.com/spirittours/contact-router/internal/infra/resilience"
	"github.com/spirittours/contact-router/internal/port"
	"github.com/spirittours/contact-router/internal/queue"
	"github.com/spirittours/contact-router/internal/router"

	"go.uber.org/zap/zaptest"
)

// fakeConnector is an in-memory double for port.Connector: it normalizes a
// simple {"user_id","conversation_id","text"} map and records every
// outbound send instead of hitting a transport.
type fakeConnector struct {
	channel domain.Channel
	sent    []string
}

func (f *fakeConnector) Channel() domain.Channel { return f.channel }

func (f *fakeConnector) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	userID, _ := raw["user_id"].(string)
	convID, _ := raw["conversation_id"].(string)
	text, _ := raw["text"].(string)
	if convID == "" {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: string(f.channel), Reason: "missing conversation_id"}
	}
	return domain.NormalizedMessage{
		Channel:               f.channel,
		UserID:                userID,
		Text:                  text,
		ChannelUserID:         userID,
		ChannelConversationID: convID,
	}, nil
}

func (f *fakeConnector) SendText(ctx context.Context, recipientID, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConnector) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	f.sent = append(f.sent, caption)
	return nil
}

func (f *fakeConnector) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConnector) SendTyping(ctx context.Context, recipientID string) error { return nil }
func (f *fakeConnector) MarkRead(ctx context.Context, messageID string) error     { return nil }

func (f *fakeConnector) VerifyWebhook(challenge map[string]string) (string, error) {
	return "", nil
}

// fakeChatbot lets the Agent reach its StateAnswering branch without a real
// NLP backend.
type fakeChatbot struct{}

func (fakeChatbot) Answer(ctx context.Context, sessionID, text string, metadata map[string]string) (string, float64, error) {
	return "Aquí tiene la información solicitada.", 0.9, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyAssignment(ctx context.Context, agentID string, qc *domain.QueuedConversation) error {
	return nil
}

func newTestGateway(t *testing.T, connectors map[domain.Channel]*fakeConnector) *gateway.Gateway {
	t.Helper()
	logger := zaptest.NewLogger(t)

	rtr := router.New(router.Config{MaxAIAttempts: 5, RoutingModeDefault: domain.RoutingModeAIFirst}, logger)
	ag := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, fakeChatbot{}, logger)
	q := queue.New(queue.Config{NotifyRetryBackoff: time.Millisecond}, noopNotifier{}, nil, nil, logger)

	wired := make(map[domain.Channel]port.Connector, len(connectors))
	for ch, c := range connectors {
		wired[ch] = c
	}

	cfg := gateway.Config{
		IdleTTL:               time.Hour,
		EvictionInterval:      time.Minute,
		MaxInFlightPerChannel: 10,
		DefaultRoutingMode:    domain.RoutingModeAIFirst,
		SendRetry:             resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
	}
	return gateway.New(cfg, rtr, ag, q, wired, nil, nil, logger)
}

func TestGateway_RoutesGeneralQuestionToAI(t *testing.T) {
	conn := &fakeConnector{channel: domain.ChannelWhatsApp}
	gw := newTestGateway(t, map[domain.Channel]*fakeConnector{domain.ChannelWhatsApp: conn})

	err := gw.HandleInbound(context.Background(), domain.ChannelWhatsApp, map[string]any{
		"user_id":         "u1",
		"conversation_id": "c1",
		"text":            "¿Cuánto cuesta el paquete a Cancún?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("expected exactly one outbound send, got %d", len(conn.sent))
	}
}

func TestGateway_MalformedPayloadReturnsError(t *testing.T) {
	conn := &fakeConnector{channel: domain.ChannelWhatsApp}
	gw := newTestGateway(t, map[domain.Channel]*fakeConnector{domain.ChannelWhatsApp: conn})

	err := gw.HandleInbound(context.Background(), domain.ChannelWhatsApp, map[string]any{"text": "hola"})
	if err == nil {
		t.Fatalf("expected error for a payload missing conversation_id")
	}
}

func TestGateway_UnknownChannelReturnsError(t *testing.T) {
	gw := newTestGateway(t, map[domain.Channel]*fakeConnector{})
	err := gw.HandleInbound(context.Background(), domain.ChannelSMS, map[string]any{"conversation_id": "c1", "text": "hi"})
	if err == nil {
		t.Fatalf("expected error for a channel with no registered connector")
	}
}

func TestGateway_ComplaintEscalatesToHuman(t *testing.T) {
	conn := &fakeConnector{channel: domain.ChannelWhatsApp}
	gw := newTestGateway(t, map[domain.Channel]*fakeConnector{domain.ChannelWhatsApp: conn})

	err := gw.HandleInbound(context.Background(), domain.ChannelWhatsApp, map[string]any{
		"user_id":         "u2",
		"conversation_id": "c2",
		"text":            "Tengo una queja, el tour fue pésimo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("expected a queuing acknowledgement to be sent, got %d sends", len(conn.sent))
	}
	if !strings.Contains(strings.ToLower(conn.sent[0]), "lamentamos") {
		t.Errorf("expected the queuing acknowledgement to contain an apology, got %q", conn.sent[0])
	}
}
