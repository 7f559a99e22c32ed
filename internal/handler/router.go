package handler

import (
	"net/http"

	"github.com/spirittours/contact-router/internal/channel"
	"github.com/spirittours/contact-router/internal/config"
	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/gateway"
	"github.com/spirittours/contact-router/internal/infra/observability"
	"github.com/spirittours/contact-router/internal/port"
	"github.com/spirittours/contact-router/internal/queue"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metaSignatureHeader = "X-Hub-Signature-256"

// NewRouter builds the full HTTP surface: one webhook pair per channel, the
// WebChat/agent-console websocket upgrades, the agent-operator REST API,
// and the operational endpoints — the same middleware stack and route-group
// shape the teacher's NewRouter uses for its banking API.
func NewRouter(gw *gateway.Gateway, q *queue.Queue, connectors map[domain.Channel]port.Connector, wc *channel.WebChat, hub *agentHub, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- Channel webhooks ---
	r.Route("/webhook", func(r chi.Router) {
		if c, ok := connectors[domain.ChannelWhatsApp]; ok {
			r.Method(http.MethodGet, "/whatsapp", webhookHandler(gw, domain.ChannelWhatsApp, c, "", logger))
			r.Method(http.MethodPost, "/whatsapp", webhookHandler(gw, domain.ChannelWhatsApp, c, metaSignatureHeader, logger))
		}
		if c, ok := connectors[domain.ChannelTelegram]; ok {
			r.Post("/telegram", telegramWebhookHandler(gw, c, cfg.TelegramWebhookSecret, logger))
		}
		if c, ok := connectors[domain.ChannelFacebook]; ok {
			r.Method(http.MethodGet, "/facebook", webhookHandler(gw, domain.ChannelFacebook, c, "", logger))
			r.Method(http.MethodPost, "/facebook", webhookHandler(gw, domain.ChannelFacebook, c, metaSignatureHeader, logger))
		}
		if c, ok := connectors[domain.ChannelInstagram]; ok {
			r.Method(http.MethodGet, "/instagram", webhookHandler(gw, domain.ChannelInstagram, c, "", logger))
			r.Method(http.MethodPost, "/instagram", webhookHandler(gw, domain.ChannelInstagram, c, metaSignatureHeader, logger))
		}
	})

	// --- WebChat widget socket ---
	if wc != nil {
		r.Get("/ws/chat", webChatHandler(gw, wc, logger))
	}

	// --- Agent console ---
	r.Route("/agents", func(r chi.Router) {
		r.Post("/register", registerAgentHandler(q, logger))
		r.Group(func(r chi.Router) {
			r.Use(AgentAuthMiddleware(cfg.JWTSecret, logger))
			r.Post("/{id}/status", agentStatusHandler(q, logger))
			r.Get("/{id}/performance", agentPerformanceHandler(q, logger))
			r.Get("/{id}/ws", agentWSHandler(hub, logger))
		})
	})

	r.Route("/queue", func(r chi.Router) {
		r.Use(AgentAuthMiddleware(cfg.JWTSecret, logger))
		r.Get("/status", queueStatusHandler(q))
	})

	r.Route("/conversations", func(r chi.Router) {
		r.Use(AgentAuthMiddleware(cfg.JWTSecret, logger))
		r.Post("/{id}/message", sendAgentMessageHandler(q, logger))
		r.Post("/{id}/complete", completeConversationHandler(q, logger))
	})

	return r
}
