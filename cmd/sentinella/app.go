package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"sentinella/internal/api"
	"sentinella/internal/broker"
	"sentinella/internal/channel"
	"sentinella/internal/command"
	"sentinella/internal/config"
	"sentinella/internal/engine"
	"sentinella/internal/logger"
	"sentinella/internal/seed"
	"sentinella/internal/store"
	"sentinella/internal/transport"
	"sentinella/pkg/health"
	"sentinella/pkg/metrics"
	"sentinella/pkg/middleware"
	"sentinella/pkg/ratelimit"
)

type App struct {
	Config *config.Config
	Logger logger.Logger

	mongoClient *mongo.Client
	redisClient *redis.Client
	producer    *broker.KafkaProducer

	filters  store.FilterRepository
	messages store.MessageRepository

	localChannel   *channel.LocalChannel
	localTransport *transport.LocalTransport
	engine         *engine.Engine
	cache          *engine.RuleCache

	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Config: cfg,
		Logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := config.Validate(a.Config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := a.initStores(ctx); err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := a.initEngine(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	metrics.RegisterEngineMetrics()
	metrics.RegisterChannelMetrics()
	if a.Config.Broker.Enabled {
		metrics.RegisterBrokerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initStores(ctx context.Context) error {
	client, db, err := store.Connect(ctx, a.Config.Database.MongoDB)
	if err != nil {
		return err
	}
	a.mongoClient = client

	if err := store.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	a.filters = store.NewFilterRepository(db)
	a.messages = store.NewMessageRepository(db)

	redisCfg := a.Config.Database.Redis
	if redisCfg.Host != "" {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			a.Logger.Warnw("Redis unreachable, unique-text suppression disabled", "error", err)
			a.redisClient = nil
		}
	}

	return nil
}

func (a *App) initEngine(ctx context.Context) error {
	if err := seed.Apply(ctx, a.filters, a.Config.Engine.SeedFilters, a.Logger); err != nil {
		return fmt.Errorf("failed to apply seed filters: %w", err)
	}

	channels := a.buildChannels()

	suppressor := engine.NewNopSuppressor()
	if a.redisClient != nil {
		ttl := 5 * time.Minute
		if a.Config.Engine.SuppressionTTLSeconds > 0 {
			ttl = time.Duration(a.Config.Engine.SuppressionTTLSeconds) * time.Second
		}
		suppressor = engine.NewSuppressor(a.redisClient, ttl, a.Logger)
	}

	a.cache = engine.NewRuleCache(a.filters, a.Logger)
	if err := a.cache.Refresh(ctx); err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to load initial rules", "error", err)
	}

	matcher := engine.NewMatcher(a.filters, a.Logger)
	dispatcher := engine.NewDispatcher(a.messages, channels, suppressor, a.Logger)
	interpreter := command.NewInterpreter(a.filters, a.cache, channels, a.Config.Admin.AllowedNumbers, a.Logger)

	var publisher engine.EventPublisher
	if a.Config.Broker.Enabled {
		a.producer = broker.NewKafkaProducer(a.Config.Broker, a.Logger)
		publisher = a.producer
	}

	a.engine = engine.New(a.cache, matcher, dispatcher, a.messages, interpreter, publisher, a.Logger)

	if a.localChannel != nil && a.Config.Channels.Local.Enabled {
		a.localTransport = transport.NewLocalTransport(a.engine, a.localChannel, a.Config.Channels.Local, a.Logger)
	}
	return nil
}

func (a *App) buildChannels() []channel.Channel {
	var channels []channel.Channel

	if a.Config.Channels.Cloud.Enabled {
		channels = append(channels, channel.NewCloudChannel(a.Config.Channels.Cloud, a.Logger))
	}

	if a.Config.Channels.Local.Enabled {
		local, err := channel.NewLocalChannel(a.Config.Channels.Local, a.Logger)
		if err != nil {
			a.Logger.Errorw("Failed to initialize local channel, continuing without it", "error", err)
		} else {
			a.localChannel = local
			channels = append(channels, local)
		}
	}

	if a.Config.Channels.Webhook.Enabled {
		channels = append(channels, channel.NewWebhookChannel(a.Config.Channels.Webhook, a.Logger))
	}

	return channels
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	if a.Config.API.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if a.Config.API.RateLimit.RPS > 0 {
			rlCfg.RPS = a.Config.API.RateLimit.RPS
		}
		if a.Config.API.RateLimit.Burst > 0 {
			rlCfg.Burst = a.Config.API.RateLimit.Burst
		}
		if a.Config.API.RateLimit.CleanupInterval > 0 {
			rlCfg.CleanupInterval = time.Duration(a.Config.API.RateLimit.CleanupInterval) * time.Second
		}
		if a.Config.API.RateLimit.MaxAge > 0 {
			rlCfg.MaxAge = time.Duration(a.Config.API.RateLimit.MaxAge) * time.Second
		}
		router.Use(ratelimit.Middleware(rlCfg))
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.cache.Refresh(ctx); err != nil {
			a.Logger.Warnw("Cache refresh after API change failed", "error", err)
		}
	}
	api.NewHandler(a.filters, a.messages, refresh, a.Logger).RegisterRoutes(router)
	transport.NewWebhookHandler(a.engine, a.Config.Channels.Cloud, a.Logger).RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.localTransport != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Local session transport starting")
			if err := a.localTransport.Start(gCtx); err != nil {
				return fmt.Errorf("local transport error: %w", err)
			}
			<-gCtx.Done()
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) {
	if a.localTransport != nil {
		a.localTransport.Stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Logger.Warnw("Failed to close event producer", "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Warnw("Failed to close cache client", "error", err)
		}
	}
	if a.mongoClient != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongoClient.Disconnect(disconnectCtx); err != nil {
			a.Logger.Warnw("Failed to disconnect message store", "error", err)
		}
	}
}
