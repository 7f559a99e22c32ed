package channel

import (
	"context"
	"fmt"

	"github.com/spirittours/contact-router/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TelegramConfig holds the Telegram Bot API credentials (spec §6).
type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
}

// Telegram implements port.Connector over the Telegram Bot API, grounded on
// the originating platform's TelegramConnector.
type Telegram struct {
	cfg    TelegramConfig
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegram builds a Telegram connector. bot may be nil in tests/dev mode
// where no real bot token is configured; every Send* call then logs and
// no-ops instead of dialing the Telegram API.
func NewTelegram(cfg TelegramConfig, bot *tgbotapi.BotAPI, logger *zap.Logger) *Telegram {
	return &Telegram{cfg: cfg, bot: bot, logger: logger}
}

func (t *Telegram) Channel() domain.Channel { return domain.ChannelTelegram }

// Normalize parses a Telegram update, handling message/edited_message/
// channel_post and every content subtype the connector it is grounded on
// distinguishes (text, photo, video, audio, voice, document, location,
// contact, sticker).
func (t *Telegram) Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error) {
	_, span := tracer.Start(ctx, "Telegram.Normalize")
	defer span.End()

	body, err := jsonMarshal(raw)
	if err != nil {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: "telegram", Reason: err.Error()}
	}
	var update tgbotapi.Update
	if err := jsonUnmarshal(body, &update); err != nil {
		return domain.NormalizedMessage{}, &domain.ErrMalformedPayload{Channel: "telegram", Reason: err.Error()}
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		if update.CallbackQuery != nil {
			return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: "telegram", EventType: "callback_query"}
		}
		return domain.NormalizedMessage{}, &domain.ErrUnsupportedEvent{Channel: "telegram", EventType: "unknown"}
	}

	userID := fmt.Sprintf("%d", msg.Chat.ID)
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
		if username == "" {
			username = fmt.Sprintf("%s %s", msg.From.FirstName, msg.From.LastName)
		}
	}

	text, attachments := telegramContent(msg)
	span.SetAttributes(attribute.String("chat.type", msg.Chat.Type))

	return domain.NormalizedMessage{
		MessageID:             fmt.Sprintf("%d", msg.MessageID),
		Channel:               domain.ChannelTelegram,
		UserID:                userID,
		Username:              username,
		Text:                  text,
		TimestampMS:           int64(msg.Date) * 1000,
		Attachments:           attachments,
		RawPayload:            raw,
		ChannelUserID:         userID,
		ChannelConversationID: userID,
	}, nil
}

func telegramContent(msg *tgbotapi.Message) (string, []domain.Attachment) {
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		att := domain.Attachment{Type: domain.AttachmentImage, RemoteID: largest.FileID}
		if msg.Caption != "" {
			return msg.Caption, []domain.Attachment{att}
		}
		return att.Placeholder(), []domain.Attachment{att}
	case msg.Video != nil:
		att := domain.Attachment{Type: domain.AttachmentVideo, RemoteID: msg.Video.FileID}
		if msg.Caption != "" {
			return msg.Caption, []domain.Attachment{att}
		}
		return att.Placeholder(), []domain.Attachment{att}
	case msg.Audio != nil:
		att := domain.Attachment{Type: domain.AttachmentAudio, RemoteID: msg.Audio.FileID}
		return att.Placeholder(), []domain.Attachment{att}
	case msg.Voice != nil:
		att := domain.Attachment{Type: domain.AttachmentVoice, RemoteID: msg.Voice.FileID}
		return att.Placeholder(), []domain.Attachment{att}
	case msg.Document != nil:
		att := domain.Attachment{Type: domain.AttachmentDocument, RemoteID: msg.Document.FileID, Metadata: map[string]string{"filename": msg.Document.FileName}}
		if msg.Caption != "" {
			return msg.Caption, []domain.Attachment{att}
		}
		return fmt.Sprintf("[document: %s]", msg.Document.FileName), []domain.Attachment{att}
	case msg.Location != nil:
		att := domain.Attachment{Type: domain.AttachmentLocation, Metadata: map[string]string{
			"lat": fmt.Sprintf("%v", msg.Location.Latitude),
			"lon": fmt.Sprintf("%v", msg.Location.Longitude),
		}}
		return att.Placeholder(), []domain.Attachment{att}
	case msg.Contact != nil:
		att := domain.Attachment{Type: domain.AttachmentContact}
		return fmt.Sprintf("[contact: %s %s]", msg.Contact.FirstName, msg.Contact.LastName), []domain.Attachment{att}
	case msg.Sticker != nil:
		att := domain.Attachment{Type: domain.AttachmentSticker}
		emoji := msg.Sticker.Emoji
		if emoji == "" {
			emoji = "🙂"
		}
		return fmt.Sprintf("[sticker: %s]", emoji), []domain.Attachment{att}
	default:
		return msg.Text, nil
	}
}

func (t *Telegram) SendText(ctx context.Context, recipientID, text string) error {
	if t.bot == nil {
		t.logger.Info("telegram send skipped: no bot configured", zap.String("recipient", recipientID))
		return nil
	}
	chatID, err := parseInt64(recipientID)
	if err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send", Err: err}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send", Err: err}
	}
	return nil
}

func (t *Telegram) SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error {
	if t.bot == nil {
		t.logger.Info("telegram send_media skipped: no bot configured", zap.String("recipient", recipientID))
		return nil
	}
	chatID, err := parseInt64(recipientID)
	if err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_media", Err: err}
	}

	var cfg tgbotapi.Chattable
	file := tgbotapi.FileURL(mediaURL)
	switch kind {
	case domain.AttachmentImage:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = caption
		cfg = m
	case domain.AttachmentVideo:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = caption
		cfg = m
	case domain.AttachmentAudio, domain.AttachmentVoice:
		m := tgbotapi.NewAudio(chatID, file)
		m.Caption = caption
		cfg = m
	default:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = caption
		cfg = m
	}
	if _, err := t.bot.Send(cfg); err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_media", Err: err}
	}
	return nil
}

func (t *Telegram) SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error {
	if t.bot == nil {
		t.logger.Info("telegram send_quick_replies skipped: no bot configured", zap.String("recipient", recipientID))
		return nil
	}
	chatID, err := parseInt64(recipientID)
	if err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_quick_replies", Err: err}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, c := range choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c, fmt.Sprintf("btn_%d", i)))
		if len(row) == 2 || i == len(choices)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := t.bot.Send(msg); err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_quick_replies", Err: err}
	}
	return nil
}

func (t *Telegram) SendTyping(ctx context.Context, recipientID string) error {
	if t.bot == nil {
		return nil
	}
	chatID, err := parseInt64(recipientID)
	if err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_typing", Err: err}
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.bot.Request(action); err != nil {
		return &domain.ErrTransport{Channel: "telegram", Op: "send_typing", Err: err}
	}
	return nil
}

// MarkRead is a no-op: Telegram has no explicit read-receipt concept, a bot
// is considered to have read a message once it replies to it.
func (t *Telegram) MarkRead(ctx context.Context, messageID string) error {
	return nil
}

func (t *Telegram) VerifyWebhook(challenge map[string]string) (string, error) {
	if t.cfg.WebhookSecret == "" {
		return "", nil
	}
	if challenge["secret_token"] != t.cfg.WebhookSecret {
		return "", &domain.ErrUnauthorized{Channel: "telegram", Reason: "secret_token mismatch"}
	}
	return "", nil
}
