package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
)

// session bundles the two per-conversation records the Gateway owns: the
// shared mutable context every component reads/writes, and the AI sales
// agent's qualification state for that same conversation.
type session struct {
	ctx  *domain.ConversationContext
	qual *domain.SalesQualification
}

// registry is the Gateway's in-memory authoritative session store — the
// "conversation store" component (spec §2): a concurrent map guarded by an
// RWMutex for membership changes, with each session's own Mu as the single
// serialization point for mutation (spec §5).
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	mirror   ConversationMirror
}

func newRegistry(mirror ConversationMirror) *registry {
	return &registry{sessions: make(map[string]*session), mirror: mirror}
}

// getOrCreate returns the existing session for key, or creates one —
// rehydrating from the durable mirror first if one is configured, so a
// process restart doesn't forget a conversation mid-handoff.
func (r *registry) getOrCreate(key string, channel domain.Channel, userID, conversationID string, now time.Time, defaultMode domain.RoutingMode) *session {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s = r.rehydrate(key)
	if s == nil {
		s = &session{
			ctx:  domain.NewConversationContext(channel, userID, conversationID, now, defaultMode),
			qual: domain.NewSalesQualification(),
		}
	}
	r.sessions[key] = s
	return s
}

func (r *registry) rehydrate(key string) *session {
	if r.mirror == nil {
		return nil
	}
	ctx, qual, err := r.mirror.LoadSnapshot(context.Background(), key)
	if err != nil || ctx == nil {
		return nil
	}
	if qual == nil {
		qual = domain.NewSalesQualification()
	}
	return &session{ctx: ctx, qual: qual}
}

// evictIdle removes every session idle for longer than ttl as of now. A
// session currently under mutation (its Mu held by an in-flight message) is
// skipped this pass and retried on the next sweep.
func (r *registry) evictIdle(ttl time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, s := range r.sessions {
		if s.ctx.IdleFor(now) < ttl {
			continue
		}
		if !s.ctx.Mu.TryLock() {
			continue
		}
		delete(r.sessions, key)
		s.ctx.Mu.Unlock()
		evicted++
	}
	return evicted
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
