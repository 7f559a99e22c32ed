package channel

import (
	"context"
	"fmt"

	"github.com/spirittours/contact-router/internal/domain"

	"github.com/tidwall/gjson"
)

// MessengerConfig holds Facebook Messenger Graph API credentials (spec §6).
type MessengerConfig struct {
	PageAccessToken string
	AppSecret       string
	VerifyToken     string
	APIVersion      string
}

// Messenger implements port.Connector for Facebook Messenger, grounded on
// the originating platform's FacebookMessengerConnector. Instagram Direct
// shares the same "messaging" webhook envelope and Send API, so Instagram
// (instagram.go) reuses this file's parsing/sending helpers.
type Messenger struct {
	cfg     MessengerConfig
	baseURL string
	rc      *restClient
	channel domain.Channel
}

// NewMessenger builds a Facebook Messenger connector.
func NewMessenger(cfg MessengerConfig, rc *restClient) *Messenger {
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	return &Messenger{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://graph.facebook.com/%s/me/messages", version),
		rc:      rc,
		channel: domain.ChannelFacebook,
	}
}

func (m *Messenger) Channel() domain.Channel { return m.channel }

func (m *Messenger) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	_, span := tracer.Start(ctx, "Messenger.Normalize")
	defer span.End()

	body, err := jsonMarshal(raw)
	if err != nil {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: string(m.channel), Reason: err.Error()}
	}
	root := gjson.ParseBytes(body)
	messaging := root.Get("entry.0.messaging.0")
	if !messaging.Exists() {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: string(m.channel), Reason: "no messaging event in webhook"}
	}

	if messaging.Get("delivery").Exists() {
		return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: string(m.channel), EventType: "delivery"}
	}
	if messaging.Get("read").Exists() {
		return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: string(m.channel), EventType: "read"}
	}

	message := messaging.Get("message")
	var text string
	var attachments []domain.Attachment

	switch {
	case message.Exists():
		text = message.Get("text").String()
		if atts := message.Get("attachments"); atts.IsArray() {
			for _, a := range atts.Array() {
				attachments = append(attachments, messengerAttachment(a))
			}
			if text == "" && len(attachments) > 0 {
				text = attachments[0].Placeholder()
			}
		}
	case messaging.Get("postback").Exists():
		text = messaging.Get("postback.title").String()
	default:
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: string(m.channel), Reason: "no message or postback in messaging event"}
	}

	senderID := messaging.Get("sender.id").String()
	return domain.NormalizedMessage{
		MessageID:             message.Get("mid").String(),
		Channel:               m.channel,
		UserID:                senderID,
		Text:                  text,
		TimestampMS:           messaging.Get("timestamp").Int(),
		Attachments:            attachments,
		RawPayload:             raw,
		ChannelUserID:          senderID,
		ChannelConversationID:  senderID,
	}, nil
}

func messengerAttachment(a gjson.Result) domain.Attachment {
	kind := a.Get("type").String()
	url := a.Get("payload.url").String()
	switch kind {
	case "image":
		return domain.Attachment{Type: domain.AttachmentImage, RemoteID: url}
	case "video":
		return domain.Attachment{Type: domain.AttachmentVideo, RemoteID: url}
	case "audio":
		return domain.Attachment{Type: domain.AttachmentAudio, RemoteID: url}
	case "file":
		return domain.Attachment{Type: domain.AttachmentDocument, RemoteID: url}
	case "location":
		return domain.Attachment{
			Type: domain.AttachmentLocation,
			Metadata: map[string]string{
				"lat": a.Get("payload.coordinates.lat").String(),
				"lon": a.Get("payload.coordinates.long").String(),
			},
		}
	default:
		return domain.Attachment{Type: domain.AttachmentDocument, RemoteID: url}
	}
}

func (m *Messenger) SendText(ctx context.Context, recipientID, text string) error {
	payload := map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message":   map[string]any{"text": text},
	}
	return m.rc.postJSON(ctx, string(m.channel), m.sendURL(), payload, nil)
}

func (m *Messenger) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	fbType := "file"
	switch kind {
	case domain.AttachmentImage:
		fbType = "image"
	case domain.AttachmentVideo:
		fbType = "video"
	case domain.AttachmentAudio, domain.AttachmentVoice:
		fbType = "audio"
	}
	payload := map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message": map[string]any{
			"attachment": map[string]any{
				"type":    fbType,
				"payload": map[string]any{"url": mediaURL, "is_reusable": true},
			},
		},
	}
	return m.rc.postJSON(ctx, string(m.channel), m.sendURL(), payload, nil)
}

func (m *Messenger) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	quickReplies := make([]map[string]any, 0, len(choices))
	for i, c := range choices {
		quickReplies = append(quickReplies, map[string]any{
			"content_type": "text",
			"title":        c,
			"payload":      fmt.Sprintf("qr_%d", i),
		})
	}
	payload := map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message": map[string]any{
			"text":          text,
			"quick_replies": quickReplies,
		},
	}
	return m.rc.postJSON(ctx, string(m.channel), m.sendURL(), payload, nil)
}

func (m *Messenger) SendTyping(ctx context.Context, recipientID string) error {
	payload := map[string]any{
		"recipient":        map[string]any{"id": recipientID},
		"sender_action":    "typing_on",
	}
	return m.rc.postJSON(ctx, string(m.channel), m.sendURL(), payload, nil)
}

func (m *Messenger) MarkRead(ctx context.Context, messageID string) error {
	return nil // Messenger read receipts are tied to recipient id, not message id; no read receipt is sent
}

func (m *Messenger) VerifyWebhook(challenge map[string]string) (string, error) {
	if challenge["hub.mode"] == "subscribe" && challenge["hub.verify_token"] == m.cfg.VerifyToken {
		return challenge["hub.challenge"], nil
	}
	return "", &domain.ErrUnauthorized{Channel: string(m.channel), Reason: "verify_token mismatch"}
}

func (m *Messenger) VerifySignature(body []byte, header string) bool {
	return verifyMetaSignature(m.cfg.AppSecret, body, header)
}

func (m *Messenger) sendURL() string {
	return m.baseURL + "?access_token=" + m.cfg.PageAccessToken
}
