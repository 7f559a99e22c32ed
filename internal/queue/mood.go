package queue

import "github.com/spirittours/contact-router/internal/domain"

// moodFromContext derives a coarse customer-mood tag from session counters,
// grounded on the originating platform's human_agent_queue.py
// _determine_customer_mood. The five cases are ordered and mutually
// exclusive; "angry" is never produced here — it stays a reserved value
// (spec §3).
func moodFromContext(ctx *domain.ConversationContext) domain.CustomerMood {
	switch {
	case ctx.CustomerType == domain.CustomerVIP:
		return domain.MoodExpectant
	case ctx.CustomerType == domain.CustomerTimeWaster:
		return domain.MoodUndecided
	case ctx.PurchaseSignals > 3:
		return domain.MoodEnthusiastic
	case ctx.MessageCount > 10 && ctx.PurchaseSignals < 2:
		return domain.MoodFrustrated
	case ctx.QuestionCount > 5 && ctx.PurchaseSignals == 0:
		return domain.MoodCurious
	default:
		return domain.MoodNeutral
	}
}
