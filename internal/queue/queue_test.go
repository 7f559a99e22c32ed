package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/queue"

	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	assigned []string
}

func (r *recordingNotifier) NotifyAssignment(ctx context.Context, agentID string, qc *domain.QueuedConversation) error {
	r.assigned = append(r.assigned, agentID+":"+qc.ConversationID)
	return nil
}

func newQueue(t *testing.T) (*queue.Queue, *recordingNotifier) {
	n := &recordingNotifier{}
	q := queue.New(queue.Config{NotifyRetryBackoff: time.Millisecond}, n, nil, nil, zaptest.NewLogger(t))
	return q, n
}

func newSessionCtx() *domain.ConversationContext {
	return domain.NewConversationContext(domain.ChannelWhatsApp, "u1", "c1", time.Now(), domain.RoutingModeAIFirst)
}

func TestRegisterAgent_IdempotentAndRejectsConflicts(t *testing.T) {
	q, _ := newQueue(t)
	now := time.Now()
	depts := []domain.Department{domain.DepartmentSales}

	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 3, []string{"es"}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 3, []string{"es"}, now); err != nil {
		t.Fatalf("expected idempotent re-registration to succeed, got %v", err)
	}
	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 5, []string{"es"}, now); err == nil {
		t.Fatalf("expected ErrDuplicateID on conflicting re-registration")
	}
}

func TestQueueConversation_AssignsToAvailableAgent(t *testing.T) {
	q, n := newQueue(t)
	now := time.Now()
	depts := []domain.Department{domain.DepartmentSales}

	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 2, nil, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.UpdateAgentStatus(context.Background(), "a1", domain.AgentStatusAvailable, now); err != nil {
		t.Fatalf("update status: %v", err)
	}

	qc, err := q.QueueConversation(context.Background(), "conv1", newSessionCtx(), domain.DepartmentSales, 3, "summary", now)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if qc.AssignedAgentID != "a1" {
		t.Fatalf("expected immediate assignment to a1, got %q", qc.AssignedAgentID)
	}
	if len(n.assigned) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.assigned))
	}
	if q.QueueDepth(domain.DepartmentSales) != 0 {
		t.Errorf("expected empty queue after assignment")
	}
}

func TestQueueConversation_RanksByLoadThenRating(t *testing.T) {
	q, _ := newQueue(t)
	now := time.Now()
	depts := []domain.Department{domain.DepartmentSales}

	if err := q.RegisterAgent("busy", "Busy", "busy@example.com", depts, 5, nil, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.RegisterAgent("free", "Free", "free@example.com", depts, 5, nil, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.UpdateAgentStatus(context.Background(), "busy", domain.AgentStatusAvailable, now); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := q.UpdateAgentStatus(context.Background(), "free", domain.AgentStatusAvailable, now); err != nil {
		t.Fatalf("status: %v", err)
	}

	// Give "busy" an unrelated conversation first so it carries load: the two
	// agents tie on load, rating and response time, so agent_id takes it.
	if _, err := q.QueueConversation(context.Background(), "warmup", newSessionCtx(), domain.DepartmentSales, 3, "", now); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	qc, err := q.QueueConversation(context.Background(), "conv2", newSessionCtx(), domain.DepartmentSales, 3, "", now)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if qc.AssignedAgentID != "free" {
		t.Fatalf("expected the less-loaded agent \"free\", got %q", qc.AssignedAgentID)
	}
}

func TestComplete_FreesCapacityAndDrainsQueue(t *testing.T) {
	q, _ := newQueue(t)
	now := time.Now()
	depts := []domain.Department{domain.DepartmentSales}

	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 1, nil, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.UpdateAgentStatus(context.Background(), "a1", domain.AgentStatusAvailable, now); err != nil {
		t.Fatalf("status: %v", err)
	}

	first, err := q.QueueConversation(context.Background(), "conv1", newSessionCtx(), domain.DepartmentSales, 3, "", now)
	if err != nil {
		t.Fatalf("queue first: %v", err)
	}
	if first.AssignedAgentID != "a1" {
		t.Fatalf("expected conv1 assigned to a1")
	}

	second, err := q.QueueConversation(context.Background(), "conv2", newSessionCtx(), domain.DepartmentSales, 3, "", now)
	if err != nil {
		t.Fatalf("queue second: %v", err)
	}
	if second.AssignedAgentID != "" {
		t.Fatalf("expected conv2 to wait, a1 is at capacity")
	}
	if q.QueueDepth(domain.DepartmentSales) != 1 {
		t.Fatalf("expected conv2 still queued")
	}

	if err := q.Complete(context.Background(), "a1", "conv1", true, 42.0, now.Add(time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if q.QueueDepth(domain.DepartmentSales) != 0 {
		t.Errorf("expected conv2 to drain once a1 freed up")
	}

	perf, err := q.AgentPerformance("a1")
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if perf.SuccessfulClosures != 1 {
		t.Errorf("expected one successful closure recorded, got %d", perf.SuccessfulClosures)
	}
}

func TestSendAgentMessage_UnknownConversation(t *testing.T) {
	q, _ := newQueue(t)
	if _, err := q.SendAgentMessage("nope", "hola", time.Now()); err == nil {
		t.Fatalf("expected ErrUnknownConversation")
	}
}

func TestQueueConversation_CustomerMood(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		mod  func(*domain.ConversationContext)
		want domain.CustomerMood
	}{
		{"vip", func(c *domain.ConversationContext) { c.CustomerType = domain.CustomerVIP }, domain.MoodExpectant},
		{"time_waster", func(c *domain.ConversationContext) { c.CustomerType = domain.CustomerTimeWaster }, domain.MoodUndecided},
		{"enthusiastic", func(c *domain.ConversationContext) { c.PurchaseSignals = 4 }, domain.MoodEnthusiastic},
		{"frustrated", func(c *domain.ConversationContext) { c.MessageCount = 11; c.PurchaseSignals = 1 }, domain.MoodFrustrated},
		{"curious", func(c *domain.ConversationContext) { c.QuestionCount = 6 }, domain.MoodCurious},
		{"neutral", func(c *domain.ConversationContext) {}, domain.MoodNeutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, _ := newQueue(t)
			sess := newSessionCtx()
			tc.mod(sess)
			qc, err := q.QueueConversation(context.Background(), "conv-"+tc.name, sess, domain.DepartmentSales, 3, "", now)
			if err != nil {
				t.Fatalf("queue: %v", err)
			}
			if qc.CustomerMood != tc.want {
				t.Errorf("mood = %q, want %q", qc.CustomerMood, tc.want)
			}
		})
	}
}

// estimatedWaitForPriority sets up a single queue with one agent left
// "busy" (not available, so no immediate assignment happens, but not
// offline either, so it still counts toward spare capacity) and returns the
// estimated wait for one queued conversation at the given priority. Queue
// length ahead of it is held at one (a filler) in every case, isolating the
// priority_factor term.
func estimatedWaitForPriority(t *testing.T, priority int) float64 {
	t.Helper()
	q, _ := newQueue(t)
	now := time.Now()
	depts := []domain.Department{domain.DepartmentSales}

	if err := q.RegisterAgent("a1", "Ana", "ana@example.com", depts, 5, nil, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := q.UpdateAgentStatus(context.Background(), "a1", domain.AgentStatusBusy, now); err != nil {
		t.Fatalf("status: %v", err)
	}

	// Queue a filler first so the conversation under test has a non-zero
	// queue length ahead of it (the busy agent never gets selected, so
	// nothing here is ever dequeued).
	if _, err := q.QueueConversation(context.Background(), "filler", newSessionCtx(), domain.DepartmentSales, 3, "", now); err != nil {
		t.Fatalf("queue filler: %v", err)
	}

	qc, err := q.QueueConversation(context.Background(), "conv", newSessionCtx(), domain.DepartmentSales, priority, "", now)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if qc.AssignedAgentID != "" {
		t.Fatalf("expected conversation to stay queued (agent is busy, not available)")
	}
	return qc.EstimatedWaitS
}

func TestEstimateWait_ScalesByPriorityFactor(t *testing.T) {
	urgent := estimatedWaitForPriority(t, 1)
	relaxed := estimatedWaitForPriority(t, 5)

	if urgent <= 0 {
		t.Fatalf("expected a positive base wait at priority 1, got %v", urgent)
	}
	ratio := relaxed / urgent
	// priority_factor(1)=1.0, priority_factor(5)=0.2 => relaxed/urgent == 0.2.
	if ratio < 0.19 || ratio > 0.21 {
		t.Errorf("expected priority 5 / priority 1 wait ratio ~= 0.2, got %v (urgent=%v relaxed=%v)", ratio, urgent, relaxed)
	}
}

func TestEstimateWait_ZeroCapacityFallsBackToAverage(t *testing.T) {
	q, _ := newQueue(t)
	now := time.Now()

	// No agents registered for the department at all: C=0, so the estimate
	// is the default rolling average (no assignment attempted).
	qc, err := q.QueueConversation(context.Background(), "conv", newSessionCtx(), domain.DepartmentSales, 3, "", now)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if qc.EstimatedWaitS != 300.0 {
		t.Errorf("expected default avg wait (300s) with zero capacity and empty queue, got %v", qc.EstimatedWaitS)
	}
}
