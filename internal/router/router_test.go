package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/router"

	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T) *router.Router {
	return router.New(router.Config{
		TimeWasterThreshold: 7.0,
		MaxAIAttempts:       3,
		RoutingModeDefault:  domain.RoutingModeAIFirst,
	}, zaptest.NewLogger(t))
}

func newSession() *domain.ConversationContext {
	return domain.NewConversationContext(domain.ChannelWhatsApp, "u1", "c1", time.Now(), domain.RoutingModeAIFirst)
}

func TestRoute_Greeting(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()
	session.MessageCount = 1

	msg := domain.NormalizedMessage{Text: "Hola, buenos días", Channel: domain.ChannelWhatsApp}
	d, err := r.Route(context.Background(), msg, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != domain.ActionRouteToAI {
		t.Errorf("expected route_to_ai, got %s", d.Action)
	}
	if !d.AllowEscalation {
		t.Errorf("expected allow_escalation=true")
	}
	if session.CustomerType != domain.CustomerNew {
		t.Errorf("expected customer_type=new, got %s", session.CustomerType)
	}
	if session.PurchaseSignals != 0 {
		t.Errorf("expected purchase_signals=0, got %d", session.PurchaseSignals)
	}
}

func TestRoute_Complaint(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()

	msg := domain.NormalizedMessage{Text: "Tengo una queja, el tour fue pésimo", Channel: domain.ChannelWhatsApp}
	d, err := r.Route(context.Background(), msg, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != domain.ActionRouteToHuman {
		t.Fatalf("expected route_to_human, got %s", d.Action)
	}
	if d.Department != domain.DepartmentCustomerService {
		t.Errorf("expected customer_service, got %s", d.Department)
	}
	if d.Priority != 2 {
		t.Errorf("expected priority=2, got %d", d.Priority)
	}
}

func TestRoute_GroupQuote(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()

	msg := domain.NormalizedMessage{Text: "Somos 25 personas de grupo, queremos cotización para Cancún", Channel: domain.ChannelWhatsApp}
	d, err := r.Route(context.Background(), msg, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.CustomerType != domain.CustomerGroup {
		t.Fatalf("expected customer_type=group, got %s", session.CustomerType)
	}
	if d.Department != domain.DepartmentGroupsQuotes {
		t.Errorf("expected groups_quotes, got %s", d.Department)
	}
	if d.Priority != 3 {
		t.Errorf("expected priority=3, got %d", d.Priority)
	}
}

func TestRoute_TimeWaster(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()

	for i := 0; i < 10; i++ {
		session.MessageCount++
		msg := domain.NormalizedMessage{Text: "solo preguntaba, tal vez más adelante ?", Channel: domain.ChannelWhatsApp}
		d, err := r.Route(context.Background(), msg, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i == 9 {
			if session.TimeWasterScore < 7.0 {
				t.Errorf("expected time_waster_score>=7, got %v", session.TimeWasterScore)
			}
			if session.CustomerType != domain.CustomerTimeWaster {
				t.Errorf("expected customer_type=time_waster, got %s", session.CustomerType)
			}
			if d.Action != domain.ActionRouteToAI || d.AllowEscalation {
				t.Errorf("expected route_to_ai with allow_escalation=false, got %+v", d)
			}
		}
	}
}

func TestRoute_VIPShortCircuit(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()

	msg := domain.NormalizedMessage{Text: "Hola, soy cliente VIP y necesito ayuda", Channel: domain.ChannelWhatsApp}
	d, err := r.Route(context.Background(), msg, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != domain.ActionRouteToHuman || d.Department != domain.DepartmentVIPService || d.Priority != 1 {
		t.Errorf("expected vip short-circuit, got %+v", d)
	}
}

func TestRoute_MonotonicScores(t *testing.T) {
	r := newTestRouter(t)
	session := newSession()

	prevPurchase, prevWaster, prevCount := 0, 0.0, 0
	messages := []string{
		"Quiero reservar un viaje a Cancún",
		"Necesito disponibilidad para confirmar",
		"urgente, forma de pago",
	}
	for _, text := range messages {
		session.MessageCount++
		_, err := r.Route(context.Background(), domain.NormalizedMessage{Text: text, Channel: domain.ChannelWhatsApp}, session)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.PurchaseSignals < prevPurchase {
			t.Fatalf("purchase_signals decreased: %d -> %d", prevPurchase, session.PurchaseSignals)
		}
		if session.TimeWasterScore < prevWaster {
			t.Fatalf("time_waster_score decreased: %v -> %v", prevWaster, session.TimeWasterScore)
		}
		if session.MessageCount < prevCount {
			t.Fatalf("message_count decreased")
		}
		prevPurchase, prevWaster, prevCount = session.PurchaseSignals, session.TimeWasterScore, session.MessageCount
	}
}
