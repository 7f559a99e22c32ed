package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spirittours/contact-router/internal/agent"
	"github.com/spirittours/contact-router/internal/channel"
	"github.com/spirittours/contact-router/internal/config"
	"github.com/spirittours/contact-router/internal/domain"
	"github.com/spirittours/contact-router/internal/gateway"
	"github.com/spirittours/contact-router/internal/handler"
	"github.com/spirittours/contact-router/internal/infra/cache"
	"github.com/spirittours/contact-router/internal/infra/chatbot"
	"github.com/spirittours/contact-router/internal/infra/observability"
	"github.com/spirittours/contact-router/internal/infra/resilience"
	"github.com/spirittours/contact-router/internal/port"
	"github.com/spirittours/contact-router/internal/queue"
	"github.com/spirittours/contact-router/internal/router"
	"github.com/spirittours/contact-router/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("idle_ttl", cfg.IdleTTL),
		zap.Int("max_inflight_per_channel", cfg.MaxInFlightPerChannel),
		zap.String("routing_mode_default", cfg.RoutingModeDefault),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "contact-router")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- AI backend ---
	answerCache := cache.New[chatbot.AnswerCacheEntry](cfg.CacheTTL)
	chatbotClient := chatbot.New(cfg.ChatbotBaseURL, cfg.ChatbotTimeout, resilienceCfg, answerCache, logger)

	// --- Connectors ---
	connectors := buildConnectors(context.Background(), cfg, resilienceCfg, logger)

	// --- Durable conversation mirror (optional) ---
	var dbMirror *store.DB
	if cfg.StoreDBPath != "" {
		m, err := store.Open(context.Background(), cfg.StoreDBPath)
		if err != nil {
			logger.Warn("durable conversation mirror disabled: failed to open store", zap.Error(err))
		} else {
			dbMirror = m
			defer m.Close()
		}
	}
	var convMirror gateway.ConversationMirror
	var queueMirror queue.Mirror
	if dbMirror != nil {
		convMirror = dbMirror
		queueMirror = dbMirror
	}

	// --- Router / Agent / Queue ---
	rtr := router.New(router.Config{
		TimeWasterThreshold: cfg.TimeWasterThreshold,
		MaxAIAttempts:       cfg.MaxAIAttempts,
		RoutingModeDefault:  domain.RoutingMode(cfg.RoutingModeDefault),
		VIPKeywords:         cfg.VIPKeywords,
	}, logger)

	salesAgent := agent.New(agent.Config{
		AIConfidenceThreshold: cfg.AIConfidenceThreshold,
		MaxSalesAttempts:      cfg.MaxSalesAttempts,
	}, chatbotClient, logger)

	agentHub := handler.NewAgentHub(logger)
	humanQueue := queue.New(queue.Config{NotifyRetryBackoff: cfg.InitialBackoff}, agentHub, queueMirror, metrics, logger)

	gw := gateway.New(gateway.Config{
		IdleTTL:               cfg.IdleTTL,
		EvictionInterval:      cfg.EvictionInterval,
		MaxInFlightPerChannel: cfg.MaxInFlightPerChannel,
		DefaultRoutingMode:    domain.RoutingMode(cfg.RoutingModeDefault),
		SendRetry: resilience.Config{
			MaxRetries:     cfg.SendMaxRetries,
			InitialBackoff: cfg.InitialBackoff,
		},
	}, rtr, salesAgent, humanQueue, connectors, convMirror, metrics, logger)

	evictCtx, cancelEvict := context.WithCancel(context.Background())
	go gw.RunEvictionLoop(evictCtx)
	defer cancelEvict()

	// --- Router / Server ---
	webchatConnector, _ := connectors[domain.ChannelWebChat].(*channel.WebChat)
	httpHandler := handler.NewRouter(gw, humanQueue, connectors, webchatConnector, agentHub, cfg, metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      httpHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildConnectors wires one port.Connector per channel the deployment can
// accept inbound traffic for. WhatsApp, Telegram, Messenger and Instagram
// are wired only when their platform credentials are configured and are
// left out of the map otherwise; WebChat is always wired, and SMS, Email,
// Twitter and LinkedIn always get a logging stub.
//
// Each channel's construction is independent of every other's, and
// Telegram's in particular blocks on a getMe call against the Telegram API,
// so they run concurrently via errgroup the same way the teacher's
// Assistant service fans out its independent upstream fetches.
func buildConnectors(ctx context.Context, cfg *config.Config, resCfg resilience.Config, logger *zap.Logger) map[domain.Channel]port.Connector {
	connectors := make(map[domain.Channel]port.Connector)
	var mu sync.Mutex
	set := func(ch domain.Channel, c port.Connector) {
		mu.Lock()
		connectors[ch] = c
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)

	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneID != "" {
		g.Go(func() error {
			rc := channel.NewRESTClient("whatsapp", cfg.SendTimeout, resCfg, logger)
			set(domain.ChannelWhatsApp, channel.NewWhatsApp(channel.WhatsAppConfig{
				PhoneID:     cfg.WhatsAppPhoneID,
				AccessToken: cfg.WhatsAppToken,
				VerifyToken: cfg.WhatsAppVerifyToken,
				AppSecret:   cfg.WhatsAppAppSecret,
			}, rc))
			return nil
		})
	}

	if cfg.TelegramToken != "" {
		g.Go(func() error {
			bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
			if err != nil {
				logger.Warn("telegram bot init failed, connector will log-only", zap.Error(err))
				bot = nil
			}
			set(domain.ChannelTelegram, channel.NewTelegram(channel.TelegramConfig{
				BotToken:      cfg.TelegramToken,
				WebhookSecret: cfg.TelegramWebhookSecret,
			}, bot, logger))
			return nil
		})
	}

	if cfg.MessengerPageToken != "" {
		g.Go(func() error {
			rc := channel.NewRESTClient("messenger", cfg.SendTimeout, resCfg, logger)
			set(domain.ChannelFacebook, channel.NewMessenger(channel.MessengerConfig{
				PageAccessToken: cfg.MessengerPageToken,
				AppSecret:       cfg.MessengerAppSecret,
			}, rc))
			return nil
		})
	}

	if cfg.InstagramAppSecret != "" && cfg.MessengerPageToken != "" {
		g.Go(func() error {
			rc := channel.NewRESTClient("instagram", cfg.SendTimeout, resCfg, logger)
			set(domain.ChannelInstagram, channel.NewInstagram(channel.InstagramConfig{
				PageAccessToken: cfg.MessengerPageToken,
				AppSecret:       cfg.InstagramAppSecret,
			}, rc))
			return nil
		})
	}

	_ = g.Wait() // every goroutine above handles its own errors and always returns nil

	connectors[domain.ChannelWebChat] = channel.NewWebChat(channel.WebChatConfig{JWTSecret: cfg.WebChatJWTSecret}, logger)

	// No credential surface exists for these in spec §6: SMS/Email
	// deliberately carry no provider integration (spec Non-goals), and
	// Twitter/LinkedIn have no connector in the original platform to adapt
	// from. All four stay enum-complete via a logging stub.
	connectors[domain.ChannelSMS] = channel.NewSMS(logger)
	connectors[domain.ChannelEmail] = channel.NewEmail(logger)
	connectors[domain.ChannelTwitter] = channel.NewTwitter(logger)
	connectors[domain.ChannelLinkedIn] = channel.NewLinkedIn(logger)

	return connectors
}
