// Package gateway is the fan-in dispatcher every channel webhook feeds
// into: it owns the conversation store, resolves or creates a session per
// inbound message, runs it through the Router, and dispatches the result to
// either the AI Sales Agent or the Human Agent Queue (spec §4.5). Grounded
// on the originating platform's MultiChannelGateway.
package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/spirittours/contact-router/internal/agent"
	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/infra/observability"
	"github.com/spirittours/contact-router/internal/infra/resilience"
	"github.com/spirittours/contact-router/internal/port"
	"github.com/spirittours/contact-router/internal/queue"
	"github.com/spirittours/contact-router/internal/router"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

// Config holds the Gateway's tunables (spec §6).
type Config struct {
	IdleTTL               time.Duration
	EvictionInterval      time.Duration
	MaxInFlightPerChannel int
	DefaultRoutingMode    domain.RoutingMode
	SendRetry             resilience.Config
}

// Gateway is the channel-agnostic message dispatcher.
type Gateway struct {
	cfg Config

	registry   *registry
	router     *router.Router
	agent      *agent.Agent
	queue      *queue.Queue
	connectors map[domain.Channel]port.Connector
	bulkheads  map[domain.Channel]*resilience.Bulkhead
	mirror     ConversationMirror
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New builds a Gateway wired to its collaborators. connectors must contain
// one entry per channel the deployment accepts inbound traffic for. mirror
// is optional (nil disables the durable conversation mirror).
func New(cfg Config, rtr *router.Router, ag *agent.Agent, q *queue.Queue, connectors map[domain.Channel]port.Connector, mirror ConversationMirror, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	bulkheads := make(map[domain.Channel]*resilience.Bulkhead, len(connectors))
	for ch := range connectors {
		bulkheads[ch] = resilience.NewBulkhead(cfg.MaxInFlightPerChannel)
	}
	return &Gateway{
		cfg:        cfg,
		registry:   newRegistry(mirror),
		router:     rtr,
		agent:      ag,
		queue:      q,
		connectors: connectors,
		bulkheads:  bulkheads,
		mirror:     mirror,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunEvictionLoop periodically evicts idle sessions until ctx is cancelled.
// Intended to run in its own goroutine for the lifetime of the process.
func (g *Gateway) RunEvictionLoop(ctx context.Context) {
	interval := g.cfg.EvictionInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evicted := g.registry.evictIdle(g.cfg.IdleTTL, now)
			if evicted > 0 {
				g.logger.Info("evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", g.registry.size()))
			}
		}
	}
}

// HandleInbound is the single entry point every webhook handler calls after
// decoding its transport-specific payload into a generic map. It normalizes
// the message, resolves the session, runs the routing pipeline, and
// dispatches to AI or human handling — the six-step flow of spec §4.5.
func (g *Gateway) HandleInbound(ctx context.Context, channelName domain.Channel, raw map[string]any) error {
	ctx, span := tracer.Start(ctx, "Gateway.HandleInbound")
	defer span.End()
	span.SetAttributes(attribute.String("channel", string(channelName)))

	connector, ok := g.connectors[channelName]
	if !ok {
		return &domain.ErrUnsupportedEvent{Channel: string(channelName), EventType: "no_connector_registered"}
	}

	bulkhead := g.bulkheads[channelName]
	if bulkhead != nil {
		if err := bulkhead.Acquire(ctx); err != nil {
			return err
		}
		defer bulkhead.Release()
	}

	start := time.Now()
	defer func() {
		if g.metrics != nil {
			g.metrics.RecordMessageDuration(string(channelName), time.Since(start))
		}
	}()

	// 1. Normalize the transport-specific payload.
	msg, err := connector.Normalize(ctx, raw)
	if err != nil {
		if _, unsupported := err.(*domain.ErrUnsupportedEvent); unsupported {
			return nil // delivery receipts, typing events, etc. are acknowledged silently
		}
		g.logger.Warn("failed to normalize inbound message", zap.String("channel", string(channelName)), zap.Error(err))
		return err
	}

	// 2. Resolve or create the session and take its lock — the single
	// serialization point for this conversation (spec §5).
	sess := g.registry.getOrCreate(msg.SessionKey(), channelName, msg.UserID, msg.ChannelConversationID, start, g.cfg.DefaultRoutingMode)
	sess.ctx.Mu.Lock()
	defer sess.ctx.Mu.Unlock()

	// 3. Append the inbound turn to bounded history and refresh counters.
	sess.ctx.AppendHistory(domain.HistoryEntry{Sender: domain.SenderUser, Text: msg.Text, At: start})
	sess.ctx.LastActivityAt = start
	sess.ctx.MessageCount++
	if sess.ctx.DisplayName == "" && msg.Username != "" {
		sess.ctx.DisplayName = msg.Username
	}

	// 4. Route.
	decision, err := g.router.Route(ctx, msg, sess.ctx)
	if err != nil {
		return &domain.ErrInternalInvariantViolation{Component: "router", Detail: err.Error()}
	}
	if g.metrics != nil {
		g.metrics.IncrRouterDecision(string(decision.Action))
	}

	// 5. Dispatch to AI or human handling.
	dispatchErr := g.dispatch(ctx, connector, msg, sess, decision, start)

	// 6. Mirror the resulting state for crash recovery, best-effort.
	if g.mirror != nil {
		if err := g.mirror.SaveSnapshot(ctx, sess.ctx, sess.qual); err != nil {
			g.logger.Warn("conversation mirror save failed", zap.String("session_key", sess.ctx.SessionKey), zap.Error(err))
		}
	}

	return dispatchErr
}

func (g *Gateway) dispatch(ctx context.Context, connector port.Connector, msg domain.NormalizedMessage, sess *session, decision *domain.RoutingDecision, now time.Time) error {
	switch decision.Action {
	case domain.ActionRouteToAI:
		return g.dispatchAI(ctx, connector, msg, sess, decision, now)
	case domain.ActionRouteToHuman, domain.ActionEscalateToHuman:
		return g.dispatchHuman(ctx, connector, msg, sess, decision, now)
	default:
		return g.dispatchAI(ctx, connector, msg, sess, decision, now)
	}
}

func (g *Gateway) dispatchAI(ctx context.Context, connector port.Connector, msg domain.NormalizedMessage, sess *session, decision *domain.RoutingDecision, now time.Time) error {
	resp, err := g.agent.Process(ctx, msg, sess.ctx, sess.qual)
	if err != nil {
		return err
	}
	if resp.ShouldEscalate {
		if g.metrics != nil {
			g.metrics.IncrEscalation(resp.EscalationReason)
		}
		sess.ctx.Escalated = true
		sess.ctx.EscalationReason = resp.EscalationReason
		dept := decision.Department
		priority := 2
		if sess.qual.ReadyToBuy {
			dept = domain.DepartmentSales
		}
		return g.queueForHuman(ctx, connector, msg, sess, dept, priority, now)
	}

	sess.ctx.LastAIResponse = resp.ReplyText
	sess.ctx.AppendHistory(domain.HistoryEntry{Sender: domain.SenderAI, Text: resp.ReplyText, At: now})
	sess.ctx.CurrentAgentKind = domain.AgentKindAI

	if len(resp.SuggestedQuickReplies) > 0 {
		return g.send(ctx, connector, msg.ChannelUserID, func() error {
			return connector.SendQuickReplies(ctx, msg.ChannelUserID, resp.ReplyText, resp.SuggestedQuickReplies)
		})
	}
	return g.send(ctx, connector, msg.ChannelUserID, func() error {
		return connector.SendText(ctx, msg.ChannelUserID, resp.ReplyText)
	})
}

func (g *Gateway) dispatchHuman(ctx context.Context, connector port.Connector, msg domain.NormalizedMessage, sess *session, decision *domain.RoutingDecision, now time.Time) error {
	return g.queueForHuman(ctx, connector, msg, sess, decision.Department, decision.Priority, now)
}

func (g *Gateway) queueForHuman(ctx context.Context, connector port.Connector, msg domain.NormalizedMessage, sess *session, dept domain.Department, priority int, now time.Time) error {
	summary := buildSummary(sess.ctx, sess.qual)
	queued, err := g.queue.QueueConversation(ctx, sess.ctx.SessionKey, sess.ctx, dept, priority, summary, now)
	if err != nil {
		return err
	}
	sess.ctx.CurrentAgentKind = domain.AgentKindHuman
	sess.ctx.Department = dept

	waitMinutes := 5
	if queued.EstimatedWaitS > 0 {
		waitMinutes = int(queued.EstimatedWaitS / 60)
	}
	reply := replyForQueuing(sess.ctx.ContactInfo.Name, waitMinutes, sess.ctx.Intent)
	sess.ctx.AppendHistory(domain.HistoryEntry{Sender: domain.SenderAI, Text: reply, At: now})

	return g.send(ctx, connector, msg.ChannelUserID, func() error {
		return connector.SendText(ctx, msg.ChannelUserID, reply)
	})
}

// replyForQueuing is the acknowledgement sent the moment a conversation is
// handed to the human queue. A complaint gets an apology ahead of the wait
// notice (spec §7 scenario 2); every other handoff reason gets the plain
// wait notice.
func replyForQueuing(name string, waitMinutes int, intent domain.Intent) string {
	greeting := ""
	if name != "" {
		greeting = name + ", "
	}
	waitNotice := greeting + "un especialista de nuestro equipo atenderá su consulta en aproximadamente " +
		strconv.Itoa(waitMinutes) + " minutos. Mientras tanto, puede seguir enviando mensajes que serán revisados por el agente cuando lo atienda."

	if intent == domain.IntentComplaint {
		return "Lamentamos mucho los inconvenientes que ha tenido. " + waitNotice
	}
	return "Gracias por su paciencia. " + waitNotice
}

func (g *Gateway) send(ctx context.Context, connector port.Connector, recipientID string, do func() error) error {
	err := resilience.RetryWithBackoff(ctx, g.cfg.SendRetry, do)
	if err == nil {
		return nil
	}
	if _, permanent := err.(*domain.ErrPermanentRejection); permanent {
		g.logger.Warn("permanent delivery rejection, giving up", zap.String("recipient", recipientID), zap.Error(err))
		return nil
	}
	g.logger.Error("outbound delivery failed after retries", zap.String("channel", string(connector.Channel())), zap.String("recipient", recipientID), zap.Error(err))
	if g.metrics != nil {
		g.metrics.IncrExternalError(string(connector.Channel()))
	}
	return err
}
