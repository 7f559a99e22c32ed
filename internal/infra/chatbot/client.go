// Package chatbot implements port.Chatbot over HTTP against the downstream
// conversational backend — the same circuit-breaker + retry + traced-call
// shape the teacher stack uses for its external AI agent and profile
// clients.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/infra/resilience"
	"github.com/spirittours/contact-router/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/chatbot")

// Client calls a downstream HTTP chatbot backend (out of scope per spec
// Non-goals: NLP internals are someone else's service behind this URL).
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	resCfg     resilience.Config
	cache      port.Cache[AnswerCacheEntry]
	logger     *zap.Logger
}

// New builds an HTTP-backed chatbot client. cache is optional (nil disables
// it) and, when set, short-circuits identical (session, text) pairs within
// its TTL — the same reason the teacher caches customer profiles: it spares
// the downstream backend a redundant call on webhook retries.
func New(baseURL string, timeout time.Duration, resCfg resilience.Config, cache port.Cache[AnswerCacheEntry], logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker("chatbot"),
		resCfg:     resCfg,
		cache:      cache,
		logger:     logger,
	}
}

type answerRequest struct {
	SessionID string            `json:"session_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type AnswerCacheEntry struct {
	Reply      string  `json:"reply"`
	Confidence float64 `json:"confidence"`
}

// Answer implements port.Chatbot.
func (c *Client) Answer(ctx context.Context, sessionID, text string, metadata map[string]string) (string, float64, error) {
	ctx, span := tracer.Start(ctx, "chatbot.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	cacheKey := sessionID + "|" + text
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			return cached.Reply, cached.Confidence, nil
		}
	}

	var resp AnswerCacheEntry

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.resCfg, func() error {
			return c.doRequest(ctx, sessionID, text, metadata, &resp)
		})
	})
	if err != nil {
		c.logger.Error("chatbot answer failed", zap.String("session_id", sessionID), zap.Error(err))
		return "", 0, &domain.ErrTransport{Channel: "chatbot", Op: "answer", Err: err}
	}
	if c.cache != nil {
		c.cache.Set(cacheKey, resp)
	}
	return resp.Reply, resp.Confidence, nil
}

func (c *Client) doRequest(ctx context.Context, sessionID, text string, metadata map[string]string, out *AnswerCacheEntry) error {
	body, err := json.Marshal(answerRequest{SessionID: sessionID, Text: text, Metadata: metadata})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chatbot backend %d: %s", resp.StatusCode, string(b))
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chatbot backend rejected request %d: %s", resp.StatusCode, string(b))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
