package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
)

// SaveSnapshot upserts the current in-memory state of one session. Called
// best-effort and synchronously by the Gateway after each dispatch — a
// failed write is logged and never fails the dispatch itself.
func (db *DB) SaveSnapshot(ctx context.Context, sess *domain.ConversationContext, qual *domain.SalesQualification) error {
	ctxJSON, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	qualJSON, err := json.Marshal(qual)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO conversation_snapshots (session_key, channel, context_json, qualification_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			context_json = excluded.context_json,
			qualification_json = excluded.qualification_json,
			updated_at = excluded.updated_at
	`, sess.SessionKey, string(sess.Channel), string(ctxJSON), string(qualJSON), time.Now())
	return err
}

// LoadSnapshot rehydrates one session's last-mirrored state, e.g. after a
// process restart. Returns (nil, nil, nil) if nothing was ever mirrored for
// that key — callers should fall back to a fresh context, not treat it as
// an error.
func (db *DB) LoadSnapshot(ctx context.Context, sessionKey string) (*domain.ConversationContext, *domain.SalesQualification, error) {
	var ctxJSON, qualJSON string
	err := db.QueryRowContext(ctx,
		`SELECT context_json, qualification_json FROM conversation_snapshots WHERE session_key = ?`,
		sessionKey,
	).Scan(&ctxJSON, &qualJSON)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var sess domain.ConversationContext
	if err := json.Unmarshal([]byte(ctxJSON), &sess); err != nil {
		return nil, nil, err
	}
	var qual domain.SalesQualification
	if err := json.Unmarshal([]byte(qualJSON), &qual); err != nil {
		return nil, nil, err
	}
	return &sess, &qual, nil
}

// SaveQueuedConversation mirrors one entry of the human-agent queue so an
// operator can see (or, on restart, replay) what was waiting when the
// process stopped.
func (db *DB) SaveQueuedConversation(ctx context.Context, qc *domain.QueuedConversation) error {
	snapshot, err := json.Marshal(qc)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO queued_conversations (conversation_id, department, priority, snapshot_json, queued_at, assigned_agent_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			department = excluded.department,
			priority = excluded.priority,
			snapshot_json = excluded.snapshot_json,
			assigned_agent_id = excluded.assigned_agent_id
	`, qc.ConversationID, string(qc.Department), qc.Priority, string(snapshot), qc.QueuedAt, qc.AssignedAgentID)
	return err
}

// DeleteQueuedConversation removes the mirror row once a conversation is
// assigned and completed — the queue itself is the authoritative copy.
func (db *DB) DeleteQueuedConversation(ctx context.Context, conversationID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM queued_conversations WHERE conversation_id = ?`, conversationID)
	return err
}
