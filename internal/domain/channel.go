package domain

// Channel identifies a supported chat transport. Closed string enum: every
// switch over Channel in this codebase is expected to be exhaustive.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelTelegram  Channel = "telegram"
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
	ChannelTwitter   Channel = "twitter"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelWebChat   Channel = "webchat"
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
)

// AttachmentType enumerates the media kinds NormalizedMessage can carry.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentVideo    AttachmentType = "video"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentVoice    AttachmentType = "voice"
	AttachmentDocument AttachmentType = "document"
	AttachmentLocation AttachmentType = "location"
	AttachmentContact  AttachmentType = "contact"
	AttachmentSticker  AttachmentType = "sticker"
)

// Attachment is one non-text item carried by an inbound message.
type Attachment struct {
	Type     AttachmentType
	RemoteID string
	Metadata map[string]string
}

// Placeholder returns the canonical non-empty text stand-in used so the
// router can always operate on a string, even for pure-media messages.
func (a Attachment) Placeholder() string {
	switch a.Type {
	case AttachmentImage:
		return "[image]"
	case AttachmentVideo:
		return "[video]"
	case AttachmentAudio:
		return "[audio]"
	case AttachmentVoice:
		return "[voice]"
	case AttachmentDocument:
		return "[document]"
	case AttachmentLocation:
		lat, lon := a.Metadata["lat"], a.Metadata["lon"]
		return "[location: " + lat + "," + lon + "]"
	case AttachmentContact:
		return "[contact]"
	case AttachmentSticker:
		return "[sticker]"
	default:
		return "[attachment]"
	}
}

// NormalizedMessage is the immutable, transport-independent representation
// every connector produces from a raw webhook payload.
type NormalizedMessage struct {
	MessageID   string
	Channel     Channel
	UserID      string
	Username    string // optional
	Text        string
	TimestampMS int64 // UTC epoch millis

	Attachments []Attachment
	RawPayload  map[string]any

	ChannelUserID         string // transport-native user id
	ChannelConversationID string // transport-native conversation id, unique within the channel
}

// SessionKey identifies a conversation and is stable across messages for the
// lifetime of the session.
func (m NormalizedMessage) SessionKey() string {
	return string(m.Channel) + ":" + m.ChannelConversationID
}
