package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/spirittours/contact-router/internal/domain"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// WhatsAppConfig holds the WhatsApp Cloud API credentials (spec §6).
type WhatsAppConfig struct {
	APIVersion  string
	PhoneID     string
	AccessToken string
	VerifyToken string
	AppSecret   string
}

// WhatsApp implements port.Connector against the WhatsApp Business Cloud
// API, grounded on the originating platform's WhatsAppConnector.
type WhatsApp struct {
	cfg     WhatsAppConfig
	baseURL string
	rc      *restClient
}

// NewWhatsApp builds a WhatsApp connector.
func NewWhatsApp(cfg WhatsAppConfig, rc *restClient) *WhatsApp {
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	return &WhatsApp{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", version, cfg.PhoneID),
		rc:      rc,
	}
}

func (w *WhatsApp) Channel() domain.Channel { return domain.ChannelWhatsApp }

// Normalize parses a WhatsApp Cloud API webhook body, handling every
// message subtype the connector it is grounded on distinguishes (text,
// image, video, audio, document, location, contacts, button, interactive).
func (w *WhatsApp) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	_, span := tracer.Start(ctx, "WhatsApp.Normalize")
	defer span.End()

	body, err := jsonMarshal(raw)
	if err != nil {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: "whatsapp", Reason: err.Error()}
	}
	root := gjson.ParseBytes(body)
	value := root.Get("entry.0.changes.0.value")

	if statuses := value.Get("statuses"); statuses.Exists() {
		return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: "whatsapp", EventType: "status"}
	}
	message := value.Get("messages.0")
	if !message.Exists() {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: "whatsapp", Reason: "no messages in webhook value"}
	}

	msgType := message.Get("type").String()
	from := message.Get("from").String()
	text, attachments := whatsappContent(message, msgType)
	username := value.Get("contacts.0.profile.name").String()

	span.SetAttributes(attribute.String("message.type", msgType))

	return domain.NormalizedMessage{
		MessageID:             message.Get("id").String(),
		Channel:               domain.ChannelWhatsApp,
		UserID:                from,
		Username:              username,
		Text:                  text,
		TimestampMS:           epochMillis(message.Get("timestamp").String()),
		Attachments:           attachments,
		RawPayload:            raw,
		ChannelUserID:         from,
		ChannelConversationID: from,
	}, nil
}

func whatsappContent(message gjson.Result, msgType string) (string, []domain.Attachment) {
	switch msgType {
	case "text":
		return message.Get("text.body").String(), nil
	case "image":
		img := message.Get("image")
		att := domain.Attachment{Type: domain.AttachmentImage, RemoteID: img.Get("id").String()}
		if caption := img.Get("caption").String(); caption != "" {
			return caption, []domain.Attachment{att}
		}
		return att.Placeholder(), []domain.Attachment{att}
	case "video":
		vid := message.Get("video")
		att := domain.Attachment{Type: domain.AttachmentVideo, RemoteID: vid.Get("id").String()}
		if caption := vid.Get("caption").String(); caption != "" {
			return caption, []domain.Attachment{att}
		}
		return att.Placeholder(), []domain.Attachment{att}
	case "audio":
		att := domain.Attachment{Type: domain.AttachmentAudio, RemoteID: message.Get("audio.id").String()}
		return att.Placeholder(), []domain.Attachment{att}
	case "document":
		doc := message.Get("document")
		filename := doc.Get("filename").String()
		att := domain.Attachment{Type: domain.AttachmentDocument, RemoteID: doc.Get("id").String(), Metadata: map[string]string{"filename": filename}}
		return fmt.Sprintf("[document: %s]", filename), []domain.Attachment{att}
	case "location":
		loc := message.Get("location")
		lat, lon := loc.Get("latitude").String(), loc.Get("longitude").String()
		att := domain.Attachment{Type: domain.AttachmentLocation, Metadata: map[string]string{"lat": lat, "lon": lon}}
		return att.Placeholder(), []domain.Attachment{att}
	case "contacts":
		att := domain.Attachment{Type: domain.AttachmentContact}
		return att.Placeholder(), []domain.Attachment{att}
	case "button":
		return message.Get("button.text").String(), nil
	case "interactive":
		interactive := message.Get("interactive")
		switch interactive.Get("type").String() {
		case "button_reply":
			return interactive.Get("button_reply.title").String(), nil
		case "list_reply":
			return interactive.Get("list_reply.title").String(), nil
		}
		return "", nil
	default:
		return "", nil
	}
}

func (w *WhatsApp) SendText(ctx context.Context, recipientID, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":     "individual",
		"to":                 recipientID,
		"type":               "text",
		"text":               map[string]any{"preview_url": true, "body": text},
	}
	return w.rc.postJSON(ctx, "whatsapp", w.baseURL, payload, nil)
}

func (w *WhatsApp) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	waType := "document"
	switch kind {
	case domain.AttachmentImage:
		waType = "image"
	case domain.AttachmentVideo:
		waType = "video"
	case domain.AttachmentAudio, domain.AttachmentVoice:
		waType = "audio"
	}
	mediaObj := map[string]any{"link": mediaURL}
	if caption != "" && waType != "audio" {
		mediaObj["caption"] = caption
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":     "individual",
		"to":                 recipientID,
		"type":               waType,
		waType:               mediaObj,
	}
	return w.rc.postJSON(ctx, "whatsapp", w.baseURL, payload, nil)
}

func (w *WhatsApp) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	if len(choices) > 3 {
		choices = choices[:3] // WhatsApp interactive buttons cap at 3
	}
	buttons := make([]map[string]any, 0, len(choices))
	for i, c := range choices {
		title := c
		if len(title) > 20 {
			title = title[:20]
		}
		buttons = append(buttons, map[string]any{
			"type":  "reply",
			"reply": map[string]any{"id": fmt.Sprintf("btn_%d", i), "title": title},
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":     "individual",
		"to":                 recipientID,
		"type":               "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": text},
			"action": map[string]any{"buttons": buttons},
		},
	}
	return w.rc.postJSON(ctx, "whatsapp", w.baseURL, payload, nil)
}

func (w *WhatsApp) SendTyping(ctx context.Context, recipientID string) error {
	// Cloud API has no typing indicator endpoint; the connector it is
	// grounded on simulates one with a short delay.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *WhatsApp) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":             "read",
		"message_id":         messageID,
	}
	return w.rc.postJSON(ctx, "whatsapp", w.baseURL, payload, nil)
}

func (w *WhatsApp) VerifyWebhook(challenge map[string]string) (string, error) {
	if challenge["hub.mode"] == "subscribe" && challenge["hub.verify_token"] == w.cfg.VerifyToken {
		return challenge["hub.challenge"], nil
	}
	return "", &domain.ErrUnauthorized{Channel: "whatsapp", Reason: "verify_token mismatch"}
}

// VerifySignature validates the X-Hub-Signature-256 header Meta attaches to
// every webhook POST.
func (w *WhatsApp) VerifySignature(body []byte, header string) bool {
	return verifyMetaSignature(w.cfg.AppSecret, body, header)
}
