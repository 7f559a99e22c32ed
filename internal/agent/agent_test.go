package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/spirittours/contact-router/internal/agent"
	"github.com/spirittours/contact-router/internal/domain"

	"go.uber.org/zap/zaptest"
)

type fakeChatbot struct {
	reply      string
	confidence float64
}

func (f *fakeChatbot) Answer(ctx context.Context, sessionID, text string, metadata map[string]string) (string, float64, error) {
	return f.reply, f.confidence, nil
}

func newSession() *domain.ConversationContext {
	return domain.NewConversationContext(domain.ChannelWhatsApp, "u1", "c1", time.Now(), domain.RoutingModeAIFirst)
}

func TestAgent_EscalationTrigger(t *testing.T) {
	a := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, &fakeChatbot{}, zaptest.NewLogger(t))
	session := newSession()
	q := domain.NewSalesQualification()

	resp, err := a.Process(context.Background(), domain.NormalizedMessage{Text: "Quiero un reembolso de mi reserva"}, session, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.ShouldEscalate {
		t.Fatalf("expected escalation, got %+v", resp)
	}
	if q.State != domain.StateEscalationRequested {
		t.Errorf("expected state=escalation_requested, got %s", q.State)
	}
}

func TestAgent_QualificationFlowReachesOfferAtScore6(t *testing.T) {
	a := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, &fakeChatbot{reply: "claro, le cuento", confidence: 0.9}, zaptest.NewLogger(t))
	session := newSession()
	q := domain.NewSalesQualification()

	turns := []string{
		"Quiero viajar a Cancún",
		"Somos 2 personas",
		"Para el próximo mes",
		"Mi presupuesto es 3000 USD",
	}

	var lastResp *agent.Response
	for _, text := range turns {
		resp, err := a.Process(context.Background(), domain.NormalizedMessage{Text: text}, session, q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lastResp = resp
	}

	if q.QualificationScore < 6 {
		t.Fatalf("expected qualification_score>=6, got %v", q.QualificationScore)
	}
	if !q.IsQualified {
		t.Errorf("expected is_qualified=true")
	}
	if lastResp.Intent != "qualified_offer" {
		t.Errorf("expected qualified_offer intent, got %s", lastResp.Intent)
	}
}

func TestAgent_ClosingRequestsContactWhenMissing(t *testing.T) {
	a := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, &fakeChatbot{confidence: 0.9}, zaptest.NewLogger(t))
	session := newSession()
	q := domain.NewSalesQualification()

	resp, err := a.Process(context.Background(), domain.NormalizedMessage{Text: "Quiero reservar ahora"}, session, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Intent != "collect_contact" {
		t.Errorf("expected collect_contact, got %s", resp.Intent)
	}
	if q.State != domain.StateClosing {
		t.Errorf("expected state=closing, got %s", q.State)
	}
}

func TestAgent_LowConfidenceEscalatesDuringQualifying(t *testing.T) {
	a := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, &fakeChatbot{reply: "no estoy seguro", confidence: 0.2}, zaptest.NewLogger(t))
	session := newSession()
	q := domain.NewSalesQualification()
	q.State = domain.StateQualifying

	resp, err := a.Process(context.Background(), domain.NormalizedMessage{Text: "Quiero viajar a Cancún"}, session, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.ShouldEscalate || resp.EscalationReason != "low_confidence" {
		t.Errorf("expected low_confidence escalation outside Answering state, got %+v", resp)
	}
	if q.State != domain.StateEscalationRequested {
		t.Errorf("expected state=escalation_requested, got %s", q.State)
	}
}

func TestAgent_HighValueClosingEscalates(t *testing.T) {
	a := agent.New(agent.Config{AIConfidenceThreshold: 0.5, MaxSalesAttempts: 5}, &fakeChatbot{confidence: 0.9}, zaptest.NewLogger(t))
	session := newSession()
	session.ContactInfo = domain.ContactInfo{Name: "Ana", Email: "ana@example.com"}
	q := domain.NewSalesQualification()
	q.GroupSize = 8

	resp, err := a.Process(context.Background(), domain.NormalizedMessage{Text: "Confirmar reserva"}, session, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.ShouldEscalate || resp.EscalationReason != "high_value" {
		t.Errorf("expected high_value escalation, got %+v", resp)
	}
}
