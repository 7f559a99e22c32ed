package domain

import (
	"sync"
	"time"
)

// Department is the coarse routing bucket for human agents.
type Department string

const (
	DepartmentCustomerService  Department = "customer_service"
	DepartmentGroupsQuotes     Department = "groups_quotes"
	DepartmentGeneralInfo      Department = "general_info"
	DepartmentSales            Department = "sales"
	DepartmentTechnicalSupport Department = "technical_support"
	DepartmentVIPService       Department = "vip_service"
	DepartmentUnknown          Department = "unknown"
)

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentBooking      Intent = "booking"
	IntentQuote        Intent = "quote"
	IntentInfo         Intent = "info"
	IntentComplaint    Intent = "complaint"
	IntentModification Intent = "modification"
	IntentCancellation Intent = "cancellation"
	IntentQuestion     Intent = "question"
	IntentBrowsing     Intent = "browsing"
	IntentUnknown      Intent = "unknown"
)

// CustomerType classifies the session for routing purposes.
type CustomerType string

const (
	CustomerNew         CustomerType = "new"
	CustomerReturning   CustomerType = "returning"
	CustomerVIP         CustomerType = "vip"
	CustomerGroup       CustomerType = "group"
	CustomerPotential   CustomerType = "potential"
	CustomerTimeWaster  CustomerType = "time_waster"
)

// RoutingMode controls how the router decides between AI and human handling.
// ai_only and hybrid are reserved: this engine only implements ai_first and
// human_direct (spec Open Question, left undecided upstream).
type RoutingMode string

const (
	RoutingModeAIFirst     RoutingMode = "ai_first"
	RoutingModeHumanDirect RoutingMode = "human_direct"
	RoutingModeAIOnly      RoutingMode = "ai_only"
	RoutingModeHybrid      RoutingMode = "hybrid"
)

// AgentKind distinguishes which kind of handler currently owns a session.
type AgentKind string

const (
	AgentKindAI    AgentKind = "ai"
	AgentKindHuman AgentKind = "human"
	AgentKindNone  AgentKind = "none"
)

// MessageSender tags an entry in the bounded conversation history.
type MessageSender string

const (
	SenderUser  MessageSender = "user"
	SenderAI    MessageSender = "ai"
	SenderHuman MessageSender = "human"
)

// ContactInfo holds progressively-extracted identifying details for a
// session. A populated field is never overwritten by a later extraction.
type ContactInfo struct {
	Name        string
	Email       string
	Phone       string
	Country     string
	Language    string
	Verified    bool
	CollectedAt time.Time
}

// IsComplete mirrors the source router's rule for "enough to hand off":
// name plus at least one of email or phone.
func (c ContactInfo) IsComplete() bool {
	return c.Name != "" && (c.Email != "" || c.Phone != "")
}

// HistoryEntry is one bounded-history record of a past turn.
type HistoryEntry struct {
	Sender    MessageSender
	Text      string
	Intent    Intent
	Sentiment string
	At        time.Time
}

// MaxHistoryEntries bounds ConversationContext.History as a ring buffer.
const MaxHistoryEntries = 50

// ConversationContext is the mutable per-session state the Gateway
// exclusively owns. All mutation happens while the caller holds Mu, which
// is the single serialization point for a session (spec §5).
type ConversationContext struct {
	Mu sync.Mutex `json:"-"`

	SessionKey string // (channel, channel_conversation_id)
	Channel    Channel
	UserID     string
	DisplayName string

	Department   Department
	Intent       Intent
	CustomerType CustomerType
	RoutingMode  RoutingMode

	CurrentAgentKind AgentKind
	CurrentAgentID   string

	ContactInfo ContactInfo

	MessageCount    int
	QuestionCount   int
	PurchaseSignals int
	AIAttempts      int

	TimeWasterScore float64

	Priority int // 1 (most urgent) .. 5

	Escalated        bool
	EscalationReason string
	Resolved         bool

	CreatedAt      time.Time
	LastActivityAt time.Time

	History []HistoryEntry

	LastAIResponse string
}

// NewConversationContext creates a fresh context for a (channel, conversationID) pair.
func NewConversationContext(channel Channel, userID, conversationID string, now time.Time, defaultMode RoutingMode) *ConversationContext {
	return &ConversationContext{
		SessionKey:   string(channel) + ":" + conversationID,
		Channel:      channel,
		UserID:       userID,
		CustomerType: CustomerNew,
		RoutingMode:  defaultMode,
		Department:   DepartmentUnknown,
		Intent:       IntentUnknown,
		CurrentAgentKind: AgentKindNone,
		CreatedAt:    now,
		LastActivityAt: now,
	}
}

// AppendHistory pushes an entry into the bounded ring buffer, discarding the
// oldest entry once MaxHistoryEntries is exceeded.
func (c *ConversationContext) AppendHistory(e HistoryEntry) {
	c.History = append(c.History, e)
	if len(c.History) > MaxHistoryEntries {
		c.History = c.History[len(c.History)-MaxHistoryEntries:]
	}
}

// IdleFor reports how long the session has been inactive as of `now`.
func (c *ConversationContext) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActivityAt)
}
