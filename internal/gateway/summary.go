package gateway

import (
	"fmt"
	"strings"

	"github.com/spirittours/contact-router/internal/domain"
)

// buildSummary renders the human-agent handoff brief, grounded on
// multi_channel_gateway.py's _generate_conversation_summary.
func buildSummary(ctx *domain.ConversationContext, qual *domain.SalesQualification) string {
	var b strings.Builder

	name := ctx.ContactInfo.Name
	if name == "" {
		name = "Desconocido"
	}
	fmt.Fprintf(&b, "Cliente: %s\n", name)
	if ctx.ContactInfo.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", ctx.ContactInfo.Email)
	}
	if ctx.ContactInfo.Phone != "" {
		fmt.Fprintf(&b, "Teléfono: %s\n", ctx.ContactInfo.Phone)
	}

	fmt.Fprintf(&b, "Tipo: %s\n", ctx.CustomerType)
	fmt.Fprintf(&b, "Departamento: %s\n", ctx.Department)
	fmt.Fprintf(&b, "Intención: %s\n", ctx.Intent)
	fmt.Fprintf(&b, "Mensajes: %d\n", ctx.MessageCount)
	fmt.Fprintf(&b, "Señales de compra: %d\n", ctx.PurchaseSignals)
	fmt.Fprintf(&b, "Preguntas: %d\n", ctx.QuestionCount)

	if qual != nil {
		b.WriteString("\nCalificación de ventas:\n")
		fmt.Fprintf(&b, "- Score: %.1f/10\n", qual.QualificationScore)
		if qual.BudgetRange != "" {
			fmt.Fprintf(&b, "- Presupuesto: %s\n", qual.BudgetRange)
		}
		if qual.Timeline != "" && qual.Timeline != domain.TimelineUnknown {
			fmt.Fprintf(&b, "- Timeline: %s\n", qual.Timeline)
		}
		if qual.GroupSize > 0 {
			fmt.Fprintf(&b, "- Grupo: %d personas\n", qual.GroupSize)
		}
		if len(qual.Destinations) > 0 {
			dests := make([]string, 0, len(qual.Destinations))
			for d := range qual.Destinations {
				dests = append(dests, d)
			}
			fmt.Fprintf(&b, "- Destinos: %s\n", strings.Join(dests, ", "))
		}
		ready := "No"
		if qual.ReadyToBuy {
			ready = "Sí"
		}
		fmt.Fprintf(&b, "- Listo para comprar: %s\n", ready)
	}

	if ctx.LastAIResponse != "" {
		preview := ctx.LastAIResponse
		if len(preview) > 100 {
			preview = preview[:100]
		}
		fmt.Fprintf(&b, "\nÚltima respuesta AI: %s...\n", preview)
	}

	return strings.TrimRight(b.String(), "\n")
}
