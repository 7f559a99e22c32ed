package domain

import (
	"strings"
	"time"
)

// Timeline buckets the customer's stated urgency to travel.
type Timeline string

const (
	TimelineImmediate Timeline = "immediate"
	Timeline1to2Weeks Timeline = "1-2w"
	Timeline1to3Months Timeline = "1-3m"
	TimelineOver3Months Timeline = ">3m"
	TimelineUnknown    Timeline = "unknown"
)

// AgentState is the AI Sales Agent's current position in its
// qualify-and-close state machine (spec §4.3).
type AgentState string

const (
	StateSmallTalk           AgentState = "small_talk"
	StateQualifying          AgentState = "qualifying"
	StateAnswering           AgentState = "answering"
	StateClosing             AgentState = "closing"
	StateEscalationRequested AgentState = "escalation_requested"
)

// SalesAttempt records one turn the AI Sales Agent spent pushing toward a
// close. This is additive instrumentation beyond spec.md's ai_attempts
// counter — it is recorded only; it is not part of the human handoff
// summary and does not change behavior.
type SalesAttempt struct {
	At               time.Time
	QuestionAsked    string
	ResponseGiven    string
	Success          bool
	EscalationNeeded bool
	Reason           string
}

// SalesQualification is the per-session derived lead-fitness record.
// Invariant: IsQualified ↔ QualificationScore >= 6.
type SalesQualification struct {
	State AgentState

	BudgetRange      string // raw extracted text, e.g. "3000 USD" or "entre 2000 y 4000"
	Timeline         Timeline
	DecisionMaker    bool
	GroupSize        int // 0 means unknown
	Destinations     map[string]struct{}
	SpecificNeeds    []string
	QualificationScore float64
	ReadyToBuy       bool
	IsQualified      bool

	Attempts []SalesAttempt
}

// NewSalesQualification returns a zero-value qualification ready for scoring.
func NewSalesQualification() *SalesQualification {
	return &SalesQualification{
		State:        StateSmallTalk,
		Timeline:     TimelineUnknown,
		Destinations: make(map[string]struct{}),
	}
}

// Recompute applies the weighted sum from spec.md §4.3, clamps to 10, and
// updates IsQualified so the invariant always holds after a call.
func (q *SalesQualification) Recompute() {
	score := 0.0
	if q.BudgetRange != "" {
		score += 2.5
	}
	if q.Timeline != "" && q.Timeline != TimelineUnknown {
		score += 2.0
		if q.Timeline == TimelineImmediate {
			score += 1.0
		}
	}
	if q.GroupSize > 0 {
		score += 1.5
	}
	if len(q.Destinations) > 0 {
		score += 1.5
	}
	if q.DecisionMaker {
		score += 1.5
	}
	if score > 10 {
		score = 10
	}
	q.QualificationScore = score
	q.IsQualified = score >= 6
}

// IsHighValue mirrors the original platform's loose keyword check on the
// free-text budget field — retained verbatim per spec §9 Design Notes
// (a known weak classifier, not a bug to fix here).
func (q *SalesQualification) IsHighValue() bool {
	if q.GroupSize > 5 {
		return true
	}
	lower := strings.ToLower(q.BudgetRange)
	for _, kw := range []string{"mil", "k", "000"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
