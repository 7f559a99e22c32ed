// Package router implements the intelligent router: on each inbound message
// it updates session scoring and emits a RoutingDecision. It performs no I/O
// and is safe to call concurrently for distinct sessions — the caller
// (Gateway) is responsible for holding the per-session lock.
package router

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/spirittours/contact-router/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("router")

// Config holds the tunables from spec.md §6's configuration table that
// affect routing decisions.
type Config struct {
	TimeWasterThreshold float64
	MaxAIAttempts       int
	RoutingModeDefault  domain.RoutingMode
	VIPKeywords         []string
}

// Router scores and classifies conversation sessions. It holds no
// per-session state of its own — ConversationContext carries all of that —
// so a single Router is shared across every session.
type Router struct {
	cfg    Config
	vipKws []string
	logger *zap.Logger
}

// New builds a Router with the given configuration.
func New(cfg Config, logger *zap.Logger) *Router {
	kws := cfg.VIPKeywords
	if len(kws) == 0 {
		kws = defaultVIPKeywords()
	}
	lowered := make([]string, len(kws))
	for i, k := range kws {
		lowered[i] = strings.ToLower(k)
	}
	return &Router{cfg: cfg, vipKws: lowered, logger: logger}
}

// Route runs the seven-step deterministic pipeline from spec.md §4.2 against
// the given message and session, mutating session in place and returning the
// resulting decision. The caller must hold session.Mu.
func (r *Router) Route(ctx context.Context, msg domain.NormalizedMessage, session *domain.ConversationContext) (*domain.RoutingDecision, error) {
	_, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	if session == nil {
		return nil, &domain.ErrInternalInvariantViolation{Component: "router", Detail: "nil session"}
	}
	span.SetAttributes(attribute.String("session.key", session.SessionKey))

	text := msg.Text
	lower := strings.ToLower(text)

	// 1. Contact extraction — first match per field, never overwrite a
	// previously verified value.
	r.extractContact(text, &session.ContactInfo)

	// 2. Intent classification.
	session.Intent = toDomainIntent(classifyIntent(lower))

	// 3. Department classification.
	session.Department = toDomainDepartment(r.classifyDepartment(lower, session.Intent))

	// 4. Purchase-signal update (monotonically non-decreasing).
	session.PurchaseSignals += countMatches(purchaseSignalPatterns, lower)

	// 5. Time-waster score update (never decreases within a session).
	session.TimeWasterScore += r.timeWasterDelta(text, lower, session)

	// 6. Customer-type reclassification.
	session.CustomerType = r.classifyCustomerType(lower, session)

	// 7. Routing decision.
	decision := r.decide(session)

	r.logger.Debug("routed message",
		zap.String("session", session.SessionKey),
		zap.String("intent", string(session.Intent)),
		zap.String("department", string(session.Department)),
		zap.String("customer_type", string(session.CustomerType)),
		zap.String("action", string(decision.Action)),
	)

	return decision, nil
}

func (r *Router) extractContact(text string, info *domain.ContactInfo) {
	if info.Email == "" {
		if m := emailPattern.FindString(text); m != "" {
			info.Email = m
		}
	}
	if info.Phone == "" {
		if m := phonePattern.FindString(text); m != "" {
			info.Phone = strings.TrimSpace(m)
		}
	}
	if info.Name == "" {
		for _, p := range namePatterns {
			if g := p.FindStringSubmatch(text); len(g) > 1 {
				info.Name = g[1]
				break
			}
		}
	}
}

func classifyIntent(lower string) intentTag {
	scores := make(map[intentTag]int, len(intentPatterns))
	for tag, pats := range intentPatterns {
		scores[tag] = countMatches(pats, lower)
	}
	best := intentTag("")
	bestScore := 0
	for _, tag := range intentPriority {
		if s := scores[tag]; s > bestScore {
			bestScore = s
			best = tag
		}
	}
	if best == "" {
		return ""
	}
	return best
}

func (r *Router) classifyDepartment(lower string, intent domain.Intent) deptTag {
	if isGroupSize(lower) && strings.Contains(lower, "grupo") {
		return deptGroupsQuotes
	}
	for _, rule := range departmentRules {
		if rule.pattern.MatchString(lower) {
			return rule.dept
		}
	}
	if dept, ok := intentToDepartment[toInternalIntent(intent)]; ok {
		return dept
	}
	return deptGeneralInfo
}

func isGroupSize(lower string) bool {
	m := groupSizePattern.FindStringSubmatch(lower)
	if len(m) < 2 {
		return false
	}
	n, err := strconv.Atoi(m[1])
	return err == nil && n >= 10
}

func (r *Router) timeWasterDelta(rawText, lower string, session *domain.ConversationContext) float64 {
	var delta float64
	if strings.Contains(rawText, "?") {
		session.QuestionCount++
	}
	if strings.Contains(rawText, "?") && session.QuestionCount > 5 && session.PurchaseSignals == 0 {
		delta += 0.5
	}
	delta += float64(countMatches(timeWasterPhrases, lower)) * 1.0
	if session.MessageCount > 8 && session.ContactInfo.Name == "" && session.ContactInfo.Email == "" && session.ContactInfo.Phone == "" {
		delta += 1.5
	}
	if session.MessageCount > 15 && session.PurchaseSignals < 2 {
		delta += 2.0
	}
	return delta
}

func (r *Router) classifyCustomerType(lower string, session *domain.ConversationContext) domain.CustomerType {
	for _, kw := range r.vipKws {
		if kw != "" && strings.Contains(lower, kw) {
			return domain.CustomerVIP
		}
	}
	if m := groupSizePattern.FindStringSubmatch(lower); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 10 {
			return domain.CustomerGroup
		}
	}
	if session.TimeWasterScore >= r.cfg.TimeWasterThreshold {
		return domain.CustomerTimeWaster
	}
	if session.PurchaseSignals >= 2 {
		return domain.CustomerPotential
	}
	if session.CustomerType == "" {
		return domain.CustomerNew
	}
	return session.CustomerType
}

func (r *Router) decide(session *domain.ConversationContext) *domain.RoutingDecision {
	switch {
	case session.CustomerType == domain.CustomerVIP:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToHuman, Department: domain.DepartmentVIPService,
			Priority: 1, Reason: "vip_customer",
		}

	case session.Intent == domain.IntentComplaint:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToHuman, Department: domain.DepartmentCustomerService,
			Priority: 2, Reason: "complaint",
		}

	case session.CustomerType == domain.CustomerGroup:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToHuman, Department: domain.DepartmentGroupsQuotes,
			Priority: 3, Reason: "group_booking",
		}

	case session.CustomerType == domain.CustomerTimeWaster:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToAI, Department: session.Department,
			Priority: 4, AllowEscalation: false, Reason: "time_waster",
		}

	case session.PurchaseSignals >= 3 && (session.ContactInfo.Email != "" || session.ContactInfo.Phone != ""):
		mode := session.RoutingMode
		if mode == "" {
			mode = r.cfg.RoutingModeDefault
		}
		switch mode {
		case domain.RoutingModeHumanDirect:
			return &domain.RoutingDecision{
				Action: domain.ActionRouteToHuman, Department: domain.DepartmentSales,
				Priority: 2, Reason: "high_purchase_intent",
			}
		default: // ai_first (and the reserved ai_only/hybrid fall back to ai_first behavior)
			if session.AIAttempts < r.cfg.MaxAIAttempts {
				return &domain.RoutingDecision{
					Action: domain.ActionRouteToAI, Department: domain.DepartmentSales,
					Priority: 3, AllowEscalation: true, Reason: "high_purchase_intent",
				}
			}
			return &domain.RoutingDecision{
				Action: domain.ActionEscalateToHuman, Department: domain.DepartmentSales,
				Priority: 2, Reason: "ai_attempts_exhausted",
			}
		}

	case session.PurchaseSignals >= 3:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToAI, Department: domain.DepartmentSales,
			Priority: 3, AllowEscalation: true, Reason: "high_purchase_intent_no_contact",
			CollectContact: true,
		}

	case session.Intent == domain.IntentInfo && session.Department == domain.DepartmentGeneralInfo:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToAI, Department: domain.DepartmentGeneralInfo,
			Priority: 5, AllowEscalation: false, Reason: "general_info",
		}

	default:
		return &domain.RoutingDecision{
			Action: domain.ActionRouteToAI, Department: session.Department,
			Priority: 4, AllowEscalation: true, Reason: "default",
		}
	}
}

func countMatches(pats []*regexp.Regexp, s string) int {
	n := 0
	for _, p := range pats {
		if p.MatchString(s) {
			n++
		}
	}
	return n
}

func toDomainIntent(t intentTag) domain.Intent {
	if t == "" {
		return domain.IntentUnknown
	}
	return domain.Intent(t)
}

func toInternalIntent(i domain.Intent) intentTag {
	return intentTag(i)
}

func toDomainDepartment(t deptTag) domain.Department {
	return domain.Department(t)
}
