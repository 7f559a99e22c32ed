package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/spirittours/contact-router/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// assignmentNotice is the JSON frame pushed to an agent's console when a
// conversation is assigned to them.
type assignmentNotice struct {
	ConversationID string             `json:"conversation_id"`
	Department     domain.Department  `json:"department"`
	Priority       int                `json:"priority"`
	AISummary      string             `json:"ai_summary"`
	CustomerMood   domain.CustomerMood `json:"customer_mood"`
}

// agentHub tracks each logged-in agent's live console socket and implements
// queue.AgentNotifier by pushing a JSON frame to it — the delivery side of
// the best-effort notify path in internal/queue.
type agentHub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn // agentID -> live console socket
}

func newAgentHub(logger *zap.Logger) *agentHub {
	return &agentHub{logger: logger, conns: make(map[string]*websocket.Conn)}
}

// NewAgentHub builds the agent-console notification hub. It satisfies
// queue.AgentNotifier and must be passed to queue.New so assignments reach
// the agent's live console socket.
func NewAgentHub(logger *zap.Logger) *agentHub {
	return newAgentHub(logger)
}

func (h *agentHub) register(agentID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[agentID] = conn
}

func (h *agentHub) unregister(agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, agentID)
}

// NotifyAssignment implements queue.AgentNotifier.
func (h *agentHub) NotifyAssignment(ctx context.Context, agentID string, qc *domain.QueuedConversation) error {
	h.mu.RLock()
	conn, ok := h.conns[agentID]
	h.mu.RUnlock()
	if !ok {
		return &domain.ErrTransport{Channel: "agent_console", Op: "notify", Err: errNoLiveConsole}
	}

	return conn.WriteJSON(assignmentNotice{
		ConversationID: qc.ConversationID,
		Department:     qc.Department,
		Priority:       qc.Priority,
		AISummary:      qc.AISummary,
		CustomerMood:   qc.CustomerMood,
	})
}

var errNoLiveConsole = errors.New("agent console is not connected")

// agentWSHandler upgrades /agents/{id}/ws for an already Bearer-authenticated
// agent console connection and keeps it registered until it disconnects.
func agentWSHandler(hub *agentHub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "id")
		if agentID == "" {
			writeError(w, http.StatusBadRequest, "missing agent id")
			return
		}
		if authenticated := AgentIDFromContext(r.Context()); authenticated != agentID {
			writeError(w, http.StatusForbidden, "token does not authorize this agent id")
			return
		}

		conn, err := agentUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("agent console upgrade failed", zap.String("agent_id", agentID), zap.Error(err))
			return
		}
		defer conn.Close()

		hub.register(agentID, conn)
		defer hub.unregister(agentID)

		// The socket is write-only from the server's perspective; drain
		// reads so ping/pong control frames (and a graceful client close)
		// are still handled by gorilla's read loop.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
