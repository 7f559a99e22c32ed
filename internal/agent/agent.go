// Package agent implements the AI Sales Agent: a stateful per-session
// handler that advances a qualify-and-close state machine and either
// produces a user-facing reply or requests escalation to a human. Each call
// touches only the (ConversationContext, SalesQualification) pair it is
// given — there is no shared mutable state between sessions.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("agent")

// Config holds the tunables from spec.md §6 that govern the sales agent.
type Config struct {
	AIConfidenceThreshold float64
	MaxSalesAttempts      int
}

// Response is the output contract of one Agent call (spec §4.3).
type Response struct {
	ReplyText             string
	Intent                string
	SuggestedQuickReplies []string
	ShouldEscalate        bool
	EscalationReason      string
}

var pushToCloseRotation = []string{
	"¿Le gustaría que le reserve su lugar ahora mismo?",
	"Puedo dejarle el cupo apartado mientras lo piensa, ¿le parece?",
	"Este paquete se vende rápido — ¿avanzamos con la reserva?",
	"¿Quiere que le envíe el link de pago para asegurar su viaje?",
}

// Agent advances the sales qualification/closing state machine.
type Agent struct {
	cfg     Config
	chatbot port.Chatbot
	logger  *zap.Logger
}

// New builds an AI Sales Agent.
func New(cfg Config, chatbot port.Chatbot, logger *zap.Logger) *Agent {
	return &Agent{cfg: cfg, chatbot: chatbot, logger: logger}
}

// Process runs one turn of the state machine for an inbound message.
func (a *Agent) Process(ctx context.Context, msg domain.NormalizedMessage, session *domain.ConversationContext, q *domain.SalesQualification) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Agent.Process")
	defer span.End()
	span.SetAttributes(attribute.String("session.key", session.SessionKey))

	text := msg.Text
	lower := strings.ToLower(text)

	// The chatbot confidence check is an escalation trigger in its own right
	// (spec §4.3), not just the mechanism continueAnswering uses to produce
	// a reply, so it has to run on every message regardless of state —
	// queried once here and the reply reused below if we land in Answering.
	reply, confidence, err := a.chatbot.Answer(ctx, session.SessionKey, text, map[string]string{
		"channel": string(session.Channel),
	})
	if err != nil {
		a.logger.Warn("chatbot answer failed, falling back to generic reply",
			zap.String("session", session.SessionKey), zap.Error(err))
		reply = "Permítame confirmarle esa información en un momento."
		confidence = 1.0 // avoid a spurious escalation on a transient backend error
	}

	// Escalation triggers checked first, regardless of current state.
	if reason, escalate := a.checkEscalation(lower, confidence); escalate {
		q.State = domain.StateEscalationRequested
		return &Response{ShouldEscalate: true, EscalationReason: reason}, nil
	}

	// Closing signal detection transitions into Closing from any state.
	if anyMatch(closingSignals, lower) {
		q.ReadyToBuy = true
		q.State = domain.StateClosing
	}

	switch q.State {
	case domain.StateClosing:
		return a.continueClosing(session, q), nil
	case domain.StateAnswering:
		return a.continueAnswering(session, q, reply), nil
	default:
		q.State = domain.StateQualifying
		return a.continueQualification(text, lower, q), nil
	}
}

// checkEscalation is the first test run against every inbound message,
// regardless of the qualification state machine's current state: a keyword
// match against escalationTriggers, or a chatbot confidence below
// AIConfidenceThreshold, both transition to EscalationRequested (spec §4.3).
func (a *Agent) checkEscalation(lower string, confidence float64) (string, bool) {
	if anyMatch(escalationTriggers, lower) {
		return "escalation_trigger", true
	}
	if confidence < a.cfg.AIConfidenceThreshold {
		return "low_confidence", true
	}
	return "", false
}

func (a *Agent) continueClosing(session *domain.ConversationContext, q *domain.SalesQualification) *Response {
	if !session.ContactInfo.IsComplete() {
		return &Response{
			ReplyText: "Para continuar con su reserva necesito su nombre y un email o teléfono de contacto, ¿me los podría compartir?",
			Intent:    "collect_contact",
		}
	}
	if q.IsHighValue() {
		return &Response{
			ReplyText:        "Perfecto, con gusto avanzamos con su reserva. Voy a conectarlo con un especialista para finalizar los detalles de este viaje.",
			Intent:           "escalate_high_value",
			ShouldEscalate:   true,
			EscalationReason: "high_value",
		}
	}
	return &Response{
		ReplyText: "Excelente, ¿confirma que desea proceder con la reserva?",
		Intent:    "process_booking",
	}
}

func (a *Agent) continueQualification(text, lower string, q *domain.SalesQualification) *Response {
	extractQualificationData(text, lower, q)
	q.Recompute()

	if q.IsQualified {
		q.State = domain.StateAnswering
		summary := summarizeNeeds(q)
		offer := "Con base en lo que me cuenta, tengo una opción que le va a encantar. "
		if q.BudgetRange != "" {
			offer += fmt.Sprintf("Ajustándonos a su presupuesto (%s), ", q.BudgetRange)
		}
		return &Response{
			ReplyText: offer + summary + " ¿le gustaría que avancemos con la reserva?",
			Intent:    "qualified_offer",
		}
	}

	question, field := nextQualificationQuestion(q)
	q.Attempts = append(q.Attempts, domain.SalesAttempt{QuestionAsked: field})
	return &Response{ReplyText: question, Intent: "qualifying"}
}

// continueAnswering appends a push-to-close phrase to the chatbot reply
// Process already fetched (confidence was checked in checkEscalation before
// this state was even reached).
func (a *Agent) continueAnswering(session *domain.ConversationContext, q *domain.SalesQualification, reply string) *Response {
	push := pushToCloseRotation[session.AIAttempts%len(pushToCloseRotation)]

	session.AIAttempts++
	q.Attempts = append(q.Attempts, domain.SalesAttempt{ResponseGiven: reply, Success: false})

	if session.AIAttempts >= a.cfg.MaxSalesAttempts && !q.ReadyToBuy {
		q.State = domain.StateEscalationRequested
		return &Response{ShouldEscalate: true, EscalationReason: "exhausted_attempts"}
	}

	return &Response{ReplyText: reply + " " + push, Intent: "sales_push"}
}

// --- qualification field extraction, grounded on ai_sales_agent.py ---

func extractQualificationData(text, lower string, q *domain.SalesQualification) {
	if q.BudgetRange == "" {
		// A head count ("2 personas") is not a money amount, so it is blanked
		// out before the budget pattern looks for digits.
		if m := budgetPattern.FindString(groupSizeDigitsPattern.ReplaceAllString(text, " ")); strings.TrimSpace(m) != "" {
			q.BudgetRange = strings.TrimSpace(m)
		}
	}
	if q.Timeline == "" || q.Timeline == domain.TimelineUnknown {
		for bucket, kws := range timelineKeywords {
			for _, kw := range kws {
				if strings.Contains(lower, kw) {
					q.Timeline = domain.Timeline(bucket)
					break
				}
			}
		}
	}
	if q.GroupSize == 0 {
		if m := groupSizeDigitsPattern.FindStringSubmatch(lower); len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				q.GroupSize = n
			}
		} else {
			for word, n := range groupSizeWords {
				if strings.Contains(lower, word) {
					q.GroupSize = n
					break
				}
			}
		}
	}
	for _, dest := range destinationGazetteer {
		if strings.Contains(lower, dest) {
			q.Destinations[dest] = struct{}{}
		}
	}
	if !q.DecisionMaker && anyMatch(decisionMakerPhrases, lower) {
		q.DecisionMaker = true
	}
}

func nextQualificationQuestion(q *domain.SalesQualification) (question, field string) {
	if len(q.Destinations) == 0 {
		return "¿A qué destino le gustaría viajar?", "destination"
	}
	if q.Timeline == "" || q.Timeline == domain.TimelineUnknown {
		return "¿Para cuándo tiene pensado viajar?", "timeline"
	}
	if q.GroupSize == 0 {
		return "¿Cuántas personas viajarían?", "group_size"
	}
	if q.BudgetRange == "" {
		return "¿Con qué presupuesto aproximado cuenta para este viaje?", "budget"
	}
	return "Cuénteme un poco más sobre lo que busca en este viaje.", "needs"
}

func summarizeNeeds(q *domain.SalesQualification) string {
	var parts []string
	for d := range q.Destinations {
		parts = append(parts, d)
	}
	if len(parts) == 0 {
		return "tengo una propuesta de viaje para usted"
	}
	return "tengo una propuesta de viaje a " + strings.Join(parts, ", ")
}
