package domain

import "time"

// AgentStatus is the live status of a registered human agent.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusAway      AgentStatus = "away"
	AgentStatusOffline   AgentStatus = "offline"
)

// HumanAgent is a registered live entity in the agent registry.
type HumanAgent struct {
	AgentID      string
	DisplayName  string
	Email        string
	Departments  map[Department]struct{}
	Status       AgentStatus
	CurrentConversations map[string]struct{}
	MaxConcurrent int
	Skills       []string

	PerformanceRating float64 // [0,10], default 5.0
	TotalConversations int
	SuccessfulClosures int
	AvgResponseTimeS   float64
	LastActivityAt     time.Time
}

// NewHumanAgent builds an agent with the defaults from spec.md §3.
func NewHumanAgent(id, name, email string, depts []Department, maxConcurrent int, skills []string, now time.Time) *HumanAgent {
	deptSet := make(map[Department]struct{}, len(depts))
	for _, d := range depts {
		deptSet[d] = struct{}{}
	}
	return &HumanAgent{
		AgentID:              id,
		DisplayName:          name,
		Email:                email,
		Departments:          deptSet,
		Status:               AgentStatusOffline,
		CurrentConversations: make(map[string]struct{}),
		MaxConcurrent:        maxConcurrent,
		Skills:               skills,
		PerformanceRating:    5.0,
		LastActivityAt:       now,
	}
}

// HasCapacity reports whether the agent can take on one more conversation.
func (a *HumanAgent) HasCapacity() bool {
	return len(a.CurrentConversations) < a.MaxConcurrent
}

// Serves reports whether the agent is registered for the given department.
func (a *HumanAgent) Serves(dept Department) bool {
	_, ok := a.Departments[dept]
	return ok
}

// SameRegistration reports whether other parameters describe the same agent,
// used to make register_agent idempotent (spec §4.4, P7).
func (a *HumanAgent) SameRegistration(name, email string, depts []Department, maxConcurrent int, skills []string) bool {
	if a.DisplayName != name || a.Email != email || a.MaxConcurrent != maxConcurrent {
		return false
	}
	if len(a.Departments) != len(depts) {
		return false
	}
	for _, d := range depts {
		if _, ok := a.Departments[d]; !ok {
			return false
		}
	}
	if len(a.Skills) != len(skills) {
		return false
	}
	for i := range skills {
		if a.Skills[i] != skills[i] {
			return false
		}
	}
	return true
}

// CustomerMood is the heuristic mood tag attached to a queued conversation.
// "angry" is a reserved value: no classification path in this engine (or the
// platform it was ported from) ever produces it.
type CustomerMood string

const (
	MoodEnthusiastic CustomerMood = "enthusiastic"
	MoodCurious      CustomerMood = "curious"
	MoodNeutral      CustomerMood = "neutral"
	MoodExpectant    CustomerMood = "expectant"
	MoodUndecided    CustomerMood = "undecided"
	MoodFrustrated   CustomerMood = "frustrated"
	MoodAngry        CustomerMood = "angry"
)

// QueuedConversation is a record waiting in a department queue.
type QueuedConversation struct {
	ConversationID   string
	Context          *ConversationContext
	Department       Department
	Priority         int
	QueuedAt         time.Time
	SeqNo            int64 // tie-break for equal (priority, queued_at); assignment order
	EstimatedWaitS   float64
	AssignedAgentID  string
	AISummary        string
	CustomerMood     CustomerMood
}
