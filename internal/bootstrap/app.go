// Package bootstrap wires the application together. Backing services are
// degradable: MySQL, Redis, and RabbitMQ failures at startup log a warning
// and leave the corresponding tier disabled instead of refusing to boot.
// Only the LLM configuration is mandatory.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"resume-agent/internal/agent"
	"resume-agent/internal/ai"
	"resume-agent/internal/botcheck"
	"resume-agent/internal/cache"
	"resume-agent/internal/config"
	"resume-agent/internal/intent"
	"resume-agent/internal/jobintel"
	"resume-agent/internal/leads"
	"resume-agent/internal/logger"
	"resume-agent/internal/memory"
	"resume-agent/internal/model"
	"resume-agent/internal/persona"
	mysqlClient "resume-agent/internal/platform/mysql"
	rabbitmqClient "resume-agent/internal/platform/rabbitmq"
	redisClient "resume-agent/internal/platform/redis"
	"resume-agent/internal/ratelimit"
	"resume-agent/internal/repository"
	"resume-agent/internal/session"
	"resume-agent/internal/token"
	"resume-agent/internal/trace"
	"resume-agent/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Persona      *persona.Persona
	Sessions     *session.Store
	History      *agent.History
	Orchestrator *agent.Orchestrator
	Extractor    *jobintel.Extractor
	JobParser    *jobintel.Parser
	Leads        leads.Capturer
	BotCheck     botcheck.Verifier
	Tokens       *token.Manager
	Limiter      *ratelimit.Limiter
	EventWorker  *worker.EventPersistWorker

	UsageEvents *repository.UsageEventRepository
	SessionRepo *repository.SessionRepository

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
		return nil, fmt.Errorf("llm base_url and model are required")
	}

	p, err := persona.Load(cfg.Persona.CandidateName, cfg.Persona.ContactEmail, cfg.Persona.ResumePath)
	if err != nil {
		return nil, fmt.Errorf("load persona failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		Log:       log,
		Persona:   p,
		StartedAt: time.Now(),
	}

	app.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		log.Warn("mysql unavailable, durable tier disabled", zap.Error(err))
		app.MySQL = nil
	} else if err := app.MySQL.AutoMigrate(
		&model.Session{}, &model.ChatTurn{}, &model.UsageEvent{},
		&model.Lead{}, &model.MemoryChunk{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	app.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, turn cache disabled", zap.Error(err))
		app.Redis = nil
	}

	app.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL)
	if err != nil {
		log.Warn("rabbitmq unavailable, async persistence disabled", zap.Error(err))
		app.MQConn = nil
	}

	aiClient := ai.NewClient()
	chatCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	intentCfg := chatCfg
	if cfg.LLM.IntentModel != "" {
		intentCfg.Model = cfg.LLM.IntentModel
	}

	var sessionRepo *repository.SessionRepository
	var turnRepo *repository.TurnRepository
	var eventRepo *repository.UsageEventRepository
	var chunkRepo *repository.MemoryChunkRepository
	var leadRepo *repository.LeadRepository
	if app.MySQL != nil {
		sessionRepo = repository.NewSessionRepository(app.MySQL)
		turnRepo = repository.NewTurnRepository(app.MySQL)
		eventRepo = repository.NewUsageEventRepository(app.MySQL)
		chunkRepo = repository.NewMemoryChunkRepository(app.MySQL)
		leadRepo = repository.NewLeadRepository(app.MySQL)
	}
	app.UsageEvents = eventRepo
	app.SessionRepo = sessionRepo

	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
	app.Sessions = session.NewStore(sessionRepo, ttl, cfg.Session.CacheMaxSize, log)

	var turnCache *cache.TurnCache
	if app.Redis != nil {
		turnCache = cache.NewTurnCache(app.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	}

	var publisher *rabbitmqClient.EventPublisher
	if app.MQConn != nil {
		publisher = rabbitmqClient.NewEventPublisher(app.MQConn, cfg.RabbitMQ.TurnPersistQueue, cfg.RabbitMQ.EventPersistQueue)
		if app.MySQL != nil {
			app.EventWorker = worker.NewEventPersistWorker(app.MQConn, turnRepo, eventRepo, cfg.RabbitMQ.TurnPersistQueue, cfg.RabbitMQ.EventPersistQueue, log)
			if err := app.EventWorker.Start(ctx); err != nil {
				log.Warn("event worker start failed, async persistence disabled", zap.Error(err))
				app.EventWorker = nil
			}
		}
	}

	app.History = agent.NewHistory(turnRepo, turnCache, publisher, log)

	var mem memory.Retriever = memory.Disabled(log)
	if cfg.Memory.Enabled && chunkRepo != nil {
		embCfg := ai.EmbeddingConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.EmbeddingModel}
		mem = memory.NewStore(chunkRepo, aiClient, embCfg, cfg.Memory.TopK, log)
	}

	var tracer trace.Sink = trace.NewHTTPSink(cfg.Trace.IngestURL, cfg.Trace.PublicKey, cfg.Trace.SecretKey, log)

	gate := intent.NewGate(aiClient, intentCfg, time.Duration(cfg.LLM.IntentTimeoutSeconds)*time.Second, log)
	assembler := agent.NewAssembler(p, cfg.LLM.PromptRuneBudget, cfg.LLM.MaxHistoryTurns)
	app.Orchestrator = agent.NewOrchestrator(
		app.Sessions, gate, assembler, app.History,
		aiClient, chatCfg, mem, tracer, p, publisher,
		time.Duration(cfg.LLM.StreamTimeoutSeconds)*time.Second, log,
	)

	app.Extractor = jobintel.NewExtractor()
	app.JobParser = jobintel.NewParser(aiClient, intentCfg, log)
	app.Leads = leads.NewService(cfg.Leads.WebhookURL, leadRepo, log)
	app.BotCheck = botcheck.NewTurnstile(cfg.BotCheck.TurnstileSecret, log)
	app.Tokens = token.NewManager(cfg.Session.TokenSecret, ttl)
	app.Limiter = ratelimit.NewLimiter(cfg.RateLimit.RequestsPerMinute)

	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
