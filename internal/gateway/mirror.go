package gateway

import (
	"context"

	"github.com/spirittours/contact-router/internal/domain"
)

// ConversationMirror is the optional durable mirror of the conversation
// store (spec.md §2 item 6). A nil ConversationMirror leaves the Gateway
// running purely in-memory — every write becomes a no-op and a restart
// starts every session fresh.
type ConversationMirror interface {
	SaveSnapshot(ctx context.Context, sess *domain.ConversationContext, qual *domain.SalesQualification) error
	LoadSnapshot(ctx context.Context, sessionKey string) (*domain.ConversationContext, *domain.SalesQualification, error)
}
