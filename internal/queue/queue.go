// Package queue implements the Human Agent Queue: the agent registry,
// per-department priority queues and the assignment algorithm that pairs a
// waiting conversation with the best available agent (spec §4.4). Grounded
// on the originating platform's human_agent_queue.py, with one deliberate
// upgrade: queues are backed by container/heap for O(log n) enqueue/dequeue
// instead of a full resort on every insert.
package queue

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/infra/observability"
	"github.com/spirittours/contact-router/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("queue")

// defaultAvgWaitS seeds the EMA for a department that has never completed an
// assignment yet.
const defaultAvgWaitS = 300.0

// notifyRetries is how many times a failed push of an assignment
// notification to an agent's live connection is retried after the first
// attempt (spec §4.4).
const notifyRetries = 3

// AgentNotifier pushes an assignment event to a connected human agent. The
// Queue treats delivery as best-effort: a failure here never blocks or
// reverses the assignment, it only affects how quickly the agent notices.
type AgentNotifier interface {
	NotifyAssignment(ctx context.Context, agentID string, qc *domain.QueuedConversation) error
}

// Config holds the queue's tunables.
type Config struct {
	NotifyRetryBackoff time.Duration
}

// Queue is the human agent registry plus per-department priority queues.
// Safe for concurrent use.
type Queue struct {
	cfg      Config
	notifier AgentNotifier
	mirror   Mirror
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu         sync.Mutex
	agents     map[string]*domain.HumanAgent
	byDept     map[domain.Department]*deptHeap
	active     map[string]*domain.QueuedConversation // conversationID -> record, queued or assigned
	avgWaitS   map[domain.Department]float64
	nextSeq    int64
}

// New builds an empty Queue. mirror is optional (nil disables the durable
// queue mirror).
func New(cfg Config, notifier AgentNotifier, mirror Mirror, metrics *observability.Metrics, logger *zap.Logger) *Queue {
	return &Queue{
		cfg:      cfg,
		notifier: notifier,
		mirror:   mirror,
		metrics:  metrics,
		logger:   logger,
		agents:   make(map[string]*domain.HumanAgent),
		byDept:   make(map[domain.Department]*deptHeap),
		active:   make(map[string]*domain.QueuedConversation),
		avgWaitS: make(map[domain.Department]float64),
	}
}

// RegisterAgent adds a new agent or, if the id already exists, verifies the
// call describes the same agent (idempotent registration, spec §4.4 P7).
// A registration with the same id but different parameters is rejected.
func (q *Queue) RegisterAgent(id, name, email string, depts []domain.Department, maxConcurrent int, skills []string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.agents[id]; ok {
		if !existing.SameRegistration(name, email, depts, maxConcurrent, skills) {
			return &domain.ErrDuplicateID{ID: id}
		}
		return nil
	}
	q.agents[id] = domain.NewHumanAgent(id, name, email, depts, maxConcurrent, skills, now)
	return nil
}

// UpdateAgentStatus transitions an agent's live status. A transition into
// Available triggers an assignment sweep over every department the agent
// serves, since a freed or newly-online agent may clear queued work.
func (q *Queue) UpdateAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus, now time.Time) error {
	q.mu.Lock()
	agent, ok := q.agents[agentID]
	if !ok {
		q.mu.Unlock()
		return &domain.ErrNotFound{Resource: "agent", ID: agentID}
	}
	prev := agent.Status
	agent.Status = status
	agent.LastActivityAt = now
	depts := make([]domain.Department, 0, len(agent.Departments))
	for d := range agent.Departments {
		depts = append(depts, d)
	}
	q.mu.Unlock()

	if status == domain.AgentStatusAvailable && prev != domain.AgentStatusAvailable {
		for _, d := range depts {
			q.drainDepartment(ctx, d, now)
		}
	}
	return nil
}

// QueueConversation enqueues a conversation awaiting a human agent, computes
// its mood tag and an estimated wait, and immediately attempts assignment
// before returning (spec §4.4).
func (q *Queue) QueueConversation(ctx context.Context, conversationID string, session *domain.ConversationContext, dept domain.Department, priority int, aiSummary string, now time.Time) (*domain.QueuedConversation, error) {
	ctx, span := tracer.Start(ctx, "Queue.QueueConversation")
	defer span.End()
	span.SetAttributes(attribute.String("department", string(dept)), attribute.Int("priority", priority))

	qc := &domain.QueuedConversation{
		ConversationID: conversationID,
		Context:        session,
		Department:     dept,
		Priority:       priority,
		QueuedAt:       now,
		AISummary:      aiSummary,
		CustomerMood:   moodFromContext(session),
	}

	q.mu.Lock()
	qc.SeqNo = q.nextSeq
	q.nextSeq++
	qc.EstimatedWaitS = q.estimateWaitLocked(dept, priority, q.queueLenLocked(dept))
	h := q.deptHeapLocked(dept)
	heap.Push(h, qc)
	q.active[conversationID] = qc
	depth := h.Len()
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.SetQueueDepth(string(dept), depth)
	}

	q.mirrorSave(ctx, qc)
	q.drainDepartment(ctx, dept, now)
	return qc, nil
}

// drainDepartment repeatedly pairs the head of dept's queue with the best
// available agent until either the queue empties or no agent has capacity.
func (q *Queue) drainDepartment(ctx context.Context, dept domain.Department, now time.Time) {
	for {
		q.mu.Lock()
		h := q.byDept[dept]
		if h == nil || h.Len() == 0 {
			q.mu.Unlock()
			return
		}
		agent := q.bestAgentLocked(dept)
		if agent == nil {
			q.mu.Unlock()
			return
		}
		qc := heap.Pop(h).(*domain.QueuedConversation)
		agent.CurrentConversations[qc.ConversationID] = struct{}{}
		agent.TotalConversations++
		qc.AssignedAgentID = agent.AgentID

		actualWait := now.Sub(qc.QueuedAt).Seconds()
		prevAvg, seen := q.avgWaitS[dept]
		if !seen {
			prevAvg = defaultAvgWaitS
		}
		q.avgWaitS[dept] = 0.1*actualWait + 0.9*prevAvg

		depth := h.Len()
		q.mu.Unlock()

		if q.metrics != nil {
			q.metrics.SetQueueDepth(string(dept), depth)
			q.metrics.SetAgentUtilization(agent.AgentID, len(agent.CurrentConversations), agent.MaxConcurrent)
		}

		q.mirrorSave(ctx, qc)
		q.notify(ctx, agent.AgentID, qc)
	}
}

// mirrorSave pushes the current snapshot of qc to the durable mirror,
// best-effort — a write failure is logged but never affects the in-memory
// queue, which stays authoritative.
func (q *Queue) mirrorSave(ctx context.Context, qc *domain.QueuedConversation) {
	if q.mirror == nil {
		return
	}
	if err := q.mirror.SaveQueuedConversation(ctx, qc); err != nil {
		q.logger.Warn("queue mirror save failed", zap.String("conversation_id", qc.ConversationID), zap.Error(err))
	}
}

// notify makes a best-effort attempt to push an assignment to the agent's
// live connection. Delivery failure never undoes the assignment — the agent
// console's own polling/refresh will still surface the new conversation.
func (q *Queue) notify(ctx context.Context, agentID string, qc *domain.QueuedConversation) {
	if q.notifier == nil {
		return
	}
	err := resilience.RetryWithBackoff(ctx, resilience.Config{
		MaxRetries:     notifyRetries,
		InitialBackoff: q.cfg.NotifyRetryBackoff,
	}, func() error {
		return q.notifier.NotifyAssignment(ctx, agentID, qc)
	})
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
		q.logger.Warn("agent notification delivery failed",
			zap.String("agent_id", agentID), zap.String("conversation_id", qc.ConversationID), zap.Error(err))
	}
	if q.metrics != nil {
		q.metrics.IncrNotificationDelivery(outcome)
	}
}

// Complete marks a conversation as finished, frees the agent's capacity, and
// updates its rolling performance figures before attempting to drain any
// remaining queued work for departments the agent serves.
func (q *Queue) Complete(ctx context.Context, agentID, conversationID string, successful bool, responseTimeS float64, now time.Time) error {
	q.mu.Lock()
	agent, ok := q.agents[agentID]
	if !ok {
		q.mu.Unlock()
		return &domain.ErrNotFound{Resource: "agent", ID: agentID}
	}
	if _, ok := agent.CurrentConversations[conversationID]; !ok {
		q.mu.Unlock()
		return &domain.ErrUnknownConversation{ConversationID: conversationID}
	}
	delete(agent.CurrentConversations, conversationID)
	delete(q.active, conversationID)
	if successful {
		agent.SuccessfulClosures++
	}
	if agent.AvgResponseTimeS == 0 {
		agent.AvgResponseTimeS = responseTimeS
	} else {
		agent.AvgResponseTimeS = 0.1*responseTimeS + 0.9*agent.AvgResponseTimeS
	}
	agent.LastActivityAt = now
	depts := make([]domain.Department, 0, len(agent.Departments))
	for d := range agent.Departments {
		depts = append(depts, d)
	}
	if q.metrics != nil {
		q.metrics.SetAgentUtilization(agent.AgentID, len(agent.CurrentConversations), agent.MaxConcurrent)
	}
	q.mu.Unlock()

	if q.mirror != nil {
		if err := q.mirror.DeleteQueuedConversation(ctx, conversationID); err != nil {
			q.logger.Warn("queue mirror delete failed", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}

	for _, d := range depts {
		q.drainDepartment(ctx, d, now)
	}
	return nil
}

// SendAgentMessage looks up the agent currently assigned to a conversation,
// returning ErrUnknownConversation if none is active. It validates routing
// state and records the outbound turn in session history; neither this
// method nor its REST handler sends the text to the customer's channel
// connector.
func (q *Queue) SendAgentMessage(conversationID, text string, now time.Time) (*domain.QueuedConversation, error) {
	q.mu.Lock()
	qc, ok := q.active[conversationID]
	if !ok || qc.AssignedAgentID == "" {
		q.mu.Unlock()
		return nil, &domain.ErrUnknownConversation{ConversationID: conversationID}
	}
	q.mu.Unlock()

	// The session is mutated under its own lock, taken after q.mu is
	// released: the Gateway takes them in the opposite order.
	qc.Context.Mu.Lock()
	defer qc.Context.Mu.Unlock()
	qc.Context.AppendHistory(domain.HistoryEntry{
		Sender: domain.SenderHuman,
		Text:   text,
		At:     now,
	})
	qc.Context.LastActivityAt = now
	return qc, nil
}

// AgentPerformance returns a snapshot of a registered agent, for the
// operator-facing performance endpoint.
func (q *Queue) AgentPerformance(agentID string) (*domain.HumanAgent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.agents[agentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "agent", ID: agentID}
	}
	cp := *a
	return &cp, nil
}

// QueueDepth reports the current backlog for a department.
func (q *Queue) QueueDepth(dept domain.Department) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queueLenLocked(dept)
}

func (q *Queue) queueLenLocked(dept domain.Department) int {
	h := q.byDept[dept]
	if h == nil {
		return 0
	}
	return h.Len()
}

func (q *Queue) deptHeapLocked(dept domain.Department) *deptHeap {
	h, ok := q.byDept[dept]
	if !ok {
		h = &deptHeap{}
		heap.Init(h)
		q.byDept[dept] = h
	}
	return h
}

// bestAgentLocked ranks agents serving dept with spare capacity by
// (current_conversations ASC, performance_rating DESC, avg_response_time_s
// ASC, agent_id ASC) — the tie-break spec.md tightens over a platform that
// left ties to map iteration order (P6).
func (q *Queue) bestAgentLocked(dept domain.Department) *domain.HumanAgent {
	var candidates []*domain.HumanAgent
	for _, a := range q.agents {
		if a.Status == domain.AgentStatusAvailable && a.Serves(dept) && a.HasCapacity() {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if len(ci.CurrentConversations) != len(cj.CurrentConversations) {
			return len(ci.CurrentConversations) < len(cj.CurrentConversations)
		}
		if ci.PerformanceRating != cj.PerformanceRating {
			return ci.PerformanceRating > cj.PerformanceRating
		}
		if ci.AvgResponseTimeS != cj.AvgResponseTimeS {
			return ci.AvgResponseTimeS < cj.AvgResponseTimeS
		}
		return ci.AgentID < cj.AgentID
	})
	return candidates[0]
}

// priorityFactor scales the wait estimate by urgency: priority 1 (most
// urgent) is estimated at the unscaled base; priority 5 (least urgent)
// shrinks it to a fifth. (6 − priority)/5 so priority=1 → 1.0, priority=5 → 0.2.
func priorityFactor(priority int) float64 {
	return (6.0 - float64(priority)) / 5.0
}

// estimateWaitLocked implements spec.md's capacity-based wait formula: with
// spare capacity C across agents serving the department, wait is
// (P / max(C,1)) · 60s scaled by priorityFactor; with zero capacity it falls
// back to the rolling average stretched by backlog depth.
func (q *Queue) estimateWaitLocked(dept domain.Department, priority, queueLen int) float64 {
	avg, ok := q.avgWaitS[dept]
	if !ok {
		avg = defaultAvgWaitS
	}
	capacity := 0
	for _, a := range q.agents {
		if a.Serves(dept) && a.Status != domain.AgentStatusOffline {
			if free := a.MaxConcurrent - len(a.CurrentConversations); free > 0 {
				capacity += free
			}
		}
	}
	if capacity == 0 {
		return avg * float64(1+queueLen)
	}
	base := (float64(queueLen) / float64(capacity)) * 60.0
	return base * priorityFactor(priority)
}
