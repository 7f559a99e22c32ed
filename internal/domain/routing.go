package domain

// RoutingAction is the closed set of decisions the Router can hand back to
// the Gateway.
type RoutingAction string

const (
	ActionRouteToAI       RoutingAction = "route_to_ai"
	ActionRouteToHuman    RoutingAction = "route_to_human"
	ActionEscalateToHuman RoutingAction = "escalate_to_human"
)

// RoutingDecision is the pure result value produced by the Router for one
// inbound message. The Router performs no I/O and cannot fail except on
// internal invariant violations.
type RoutingDecision struct {
	Action           RoutingAction
	Department       Department
	Priority         int
	AllowEscalation  bool
	Reason           string

	EstimatedWaitS        float64
	SuggestedQuickReplies []string
	SuggestedAgentKind    AgentKind

	// CollectContact signals the AI should prioritize asking for contact
	// details before anything else (purchase_signals>=3, no contact yet).
	CollectContact bool
}
