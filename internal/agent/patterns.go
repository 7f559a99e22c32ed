package agent

import "regexp"

// Pattern lists grounded on the originating platform's ai_sales_agent.py:
// escalation triggers, closing signals, and qualification-field extraction
// heuristics.

var escalationTriggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cancelar (mi|la) reserva`),
	regexp.MustCompile(`(?i)precio exacto`),
	regexp.MustCompile(`(?i)(reembolso|devoluci[oó]n|disputa)`),
	regexp.MustCompile(`(?i)(visa|documentaci[oó]n) (para|de) (viajar|viaje|entrada)`),
	regexp.MustCompile(`(?i)(seguro|cobertura) de viaje`),
	regexp.MustCompile(`(?i)t[eé]rminos y condiciones`),
	regexp.MustCompile(`(?i)modificar (mi|la) reserva (existente|ya hecha)`),
}

var closingSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?i)quiero reservar`),
	regexp.MustCompile(`(?i)c[oó]mo pago`),
	regexp.MustCompile(`(?i)confirmar`),
}

var budgetPattern = regexp.MustCompile(`(?i)(\d[\d.,]*\s?(?:usd|dólares|dolares|mil|k)?|entre\s+\d[\d.,]*\s+y\s+\d[\d.,]*)`)

// budgetPattern is matched against the raw-cased message so the captured
// BudgetRange preserves the customer's original formatting for display in
// the human-agent summary.

var timelineKeywords = map[string][]string{
	"immediate": {"inmediato", "lo antes posible", "ya mismo", "ahora mismo"},
	"1-2w":      {"en dos semanas", "próxima semana", "proxima semana", "en una semana"},
	"1-3m":      {"próximo mes", "proximo mes", "en un par de meses", "en dos meses"},
	">3m":       {"más adelante este año", "fin de año", "el próximo año", "el proximo año"},
}

var groupSizeDigitsPattern = regexp.MustCompile(`(?i)(\d+)\s*(personas|pasajeros)`)

var groupSizeWords = map[string]int{
	"solo":    1,
	"sola":    1,
	"pareja":  2,
	"familia": 4,
}

var destinationGazetteer = []string{
	"cancún", "cancun", "riviera maya", "los cabos", "puerto vallarta",
	"cartagena", "punta cana", "buenos aires", "machu picchu", "cusco", "bariloche",
}

var decisionMakerPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)yo decido`),
	regexp.MustCompile(`(?i)es mi decisi[oó]n`),
	regexp.MustCompile(`(?i)yo soy quien decide`),
}

func anyMatch(pats []*regexp.Regexp, s string) bool {
	for _, p := range pats {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
