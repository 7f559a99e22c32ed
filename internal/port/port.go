// Package port holds the dependency-inversion boundaries between the
// routing engine's domain logic and its external collaborators — exactly
// the boundary the teacher stack draws between service and infra.
package port

import (
	"context"

	"github.com/spirittours/contact-router/internal/domain"
)

// Chatbot is the general-purpose conversational backend the AI Sales Agent
// queries on every inbound message: its confidence feeds the escalation
// check, and its reply is the content answer once a lead is qualified. Its NLP
// internals are out of scope for this engine (spec §1 Non-goals); only this
// named interface is implemented here.
type Chatbot interface {
	Answer(ctx context.Context, sessionID, text string, metadata map[string]string) (reply string, confidence float64, err error)
}

// Connector is the capability set every channel transport implements
// (spec §4.1). The Gateway interacts with transports only through this
// interface.
type Connector interface {
	Channel() domain.Channel
	Normalize(ctx context.Context, raw map[string]any) (domain.NormalizedMessage, error)
	SendText(ctx context.Context, recipientID, text string) error
	SendMedia(ctx context.Context, recipientID string, kind domain.AttachmentType, mediaURL, caption string) error
	SendQuickReplies(ctx context.Context, recipientID, text string, choices []string) error
	SendTyping(ctx context.Context, recipientID string) error
	MarkRead(ctx context.Context, messageID string) error
	VerifyWebhook(challenge map[string]string) (string, error)
}

// Cache is the generic read/write boundary the services use, satisfied by
// infra/cache.InMemory[T].
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
