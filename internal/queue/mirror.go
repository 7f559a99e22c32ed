package queue

import (
	"context"

	"github.com/spirittours/contact-router/internal/domain"
)

// Mirror persists a durable copy of the queue's state for operator
// visibility and crash recovery (spec.md §2 item 6, same durable-mirror
// concept the Gateway's conversation store applies to sessions). A nil
// Mirror disables it — the queue's in-memory heaps stay authoritative
// either way.
type Mirror interface {
	SaveQueuedConversation(ctx context.Context, qc *domain.QueuedConversation) error
	DeleteQueuedConversation(ctx context.Context, conversationID string) error
}
