package channel

import (
	"context"

	"github.com/spirittours/contact-router/internal/domain"

	"go.uber.org/zap"
)

// loggingStub implements port.Connector for a transport with no configured
// credentials: Normalize always fails (there is no inbound format to parse
// without a provider to define one), and every Send* call logs and no-ops.
// This keeps SMS and Email present in the Channel enum wireable end-to-end
// once an operator supplies real provider config, without forcing every
// deployment to stand up carriers it doesn't use (spec §1 Non-goals: no
// specific SMS/email provider integration is mandated).
type loggingStub struct {
	channel domain.Channel
	logger  *zap.Logger
}

// NewSMS builds a placeholder SMS connector.
func NewSMS(logger *zap.Logger) *loggingStub {
	return &loggingStub{channel: domain.ChannelSMS, logger: logger}
}

// NewEmail builds a placeholder Email connector.
func NewEmail(logger *zap.Logger) *loggingStub {
	return &loggingStub{channel: domain.ChannelEmail, logger: logger}
}

// NewTwitter builds a placeholder Twitter/X DM connector. No connector
// module for this transport exists upstream; it stays enum-complete only.
func NewTwitter(logger *zap.Logger) *loggingStub {
	return &loggingStub{channel: domain.ChannelTwitter, logger: logger}
}

// NewLinkedIn builds a placeholder LinkedIn messaging connector, for the
// same reason as NewTwitter.
func NewLinkedIn(logger *zap.Logger) *loggingStub {
	return &loggingStub{channel: domain.ChannelLinkedIn, logger: logger}
}

func (s *loggingStub) Channel() domain.Channel { return s.channel }

func (s *loggingStub) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: string(s.channel), EventType: "no_provider_configured"}
}

func (s *loggingStub) SendText(ctx context.Context, recipientID, text string) error {
	s.logger.Info("stub connector send", zap.String("channel", string(s.channel)), zap.String("recipient", recipientID))
	return nil
}

func (s *loggingStub) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	s.logger.Info("stub connector send_media", zap.String("channel", string(s.channel)), zap.String("recipient", recipientID))
	return nil
}

func (s *loggingStub) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	s.logger.Info("stub connector send_quick_replies", zap.String("channel", string(s.channel)), zap.String("recipient", recipientID))
	return nil
}

func (s *loggingStub) SendTyping(ctx context.Context, recipientID string) error { return nil }

func (s *loggingStub) MarkRead(ctx context.Context, messageID string) error { return nil }

func (s *loggingStub) VerifyWebhook(challenge map[string]string) (string, error) { return "", nil }
