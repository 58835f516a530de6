package bootstrap

import (
	"context"
	"math/rand"
	"time"

	"support_inbox/adapter/out/persistence"
	"support_inbox/adapter/out/provider"
	"support_inbox/adapter/out/realtime"
	"support_inbox/config"
	"support_inbox/core/port/out"
	"support_inbox/core/service/auth"
	"support_inbox/core/service/inbox"
	"support_inbox/core/service/reply"
	"support_inbox/infra/database"
	"support_inbox/infra/middleware"
	"support_inbox/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Dependencies is the object graph of the API server. Nothing in it is a
// package-level singleton.
type Dependencies struct {
	Config *config.Config
	Redis  *redis.Client // nil when REDIS_URL is unset or unreachable

	StateStore out.OAuthStateStore
	Gmail      *provider.GmailAdapter
	OAuth      *auth.OAuthService
	Hub        *realtime.SSEHub
	Inbox      *inbox.Service
	Limiter    *middleware.RateLimiter
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	deps := &Dependencies{Config: cfg}

	// Redis (OAuth state); in-memory fallback keeps single-instance setups working
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, keeping oauth state in memory")
		} else {
			deps.Redis = client
			logger.Info("redis connected")
		}
	}
	if deps.Redis != nil {
		deps.StateStore = persistence.NewRedisOAuthStateStore(deps.Redis)
	} else {
		deps.StateStore = persistence.NewMemoryOAuthStateStore()
	}

	// Gmail + OAuth
	deps.Gmail = provider.NewGmailAdapter(provider.GmailConfig{Timeout: cfg.GmailTimeout})

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = uuid.NewString() + uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
	}
	deps.OAuth = auth.NewOAuthService(auth.Config{
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURL:   cfg.GoogleRedirectURL,
		SessionSecret: sessionSecret,
		SessionTTL:    cfg.SessionTTL,
	}, deps.StateStore, deps.Gmail)

	// Realtime
	deps.Hub = realtime.NewSSEHub(logger.Default().Zerolog()).WithHeartbeat(cfg.SSEHeartbeat)

	// Inbox
	svc, err := newInboxService(cfg, deps)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	deps.Inbox = svc

	deps.Limiter = middleware.NewRateLimiter(cfg.ProviderRateLimit, time.Minute)
	go deps.Limiter.Run(ctx)

	cleanup := func() {
		cancel()
		if deps.Redis != nil {
			if err := deps.Redis.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis")
			}
		}
	}
	return deps, cleanup, nil
}

func newInboxService(cfg *config.Config, deps *Dependencies) (*inbox.Service, error) {
	mode, err := inbox.ParseMode(cfg.DataMode)
	if err != nil {
		return nil, err
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Separate sources: each consumer serializes access to its own.
	selector := reply.NewSelector(rand.New(rand.NewSource(seed)), cfg.ReplyDelay)
	rng := rand.New(rand.NewSource(seed + 1))

	icfg := inbox.DefaultConfig()
	icfg.Mode = mode
	icfg.NewEmailRate = cfg.NewEmailRate
	icfg.MaxResults = cfg.GmailMaxResults
	icfg.FetchWorkers = cfg.FetchWorkers
	icfg.Settings.AutoReply = cfg.AutoReply
	icfg.Settings.ConfidenceThreshold = cfg.ConfidenceThreshold

	svc := inbox.NewServiceFull(inbox.NewStore(), selector, rng, icfg, deps.Gmail, deps.OAuth, deps.Hub)
	if mode == inbox.ModeSample {
		svc.LoadSample(loadSample(cfg))
	} else {
		logger.Info("gmail mode: inbox stays empty until an account signs in")
	}
	return svc, nil
}

// loadSample returns the configured dataset, or the built-in minimal one
// when it cannot be read.
func loadSample(cfg *config.Config) *inbox.SampleData {
	now := time.Now()
	data, err := inbox.LoadSample(cfg.SampleDataPath, now)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.SampleDataPath).Warn("sample data unavailable, using fallback dataset")
		return inbox.FallbackSample(now)
	}
	return data
}
