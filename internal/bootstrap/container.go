package bootstrap

import (
	"context"
	"log"

	"mindful-be/internal/config"
	"mindful-be/internal/controller"
	"mindful-be/internal/handler"
	"mindful-be/internal/pkg/logger"
	"mindful-be/internal/repository/memory"
	"mindful-be/internal/repository/unitofwork"
	"mindful-be/internal/service"
	"mindful-be/internal/websocket"
	"mindful-be/pkg/companion"
	"mindful-be/pkg/effects"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm/factory"
	"mindful-be/pkg/locale"
	"mindful-be/pkg/metrics"
	pktNats "mindful-be/pkg/nats"
	"mindful-be/pkg/rolling"
	"mindful-be/pkg/speech"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// EventTopic is the in-process topic every session event travels on.
const EventTopic = "companion.events"

type Container struct {
	// Controllers
	CompanionController controller.ICompanionController
	StreamHandler       *handler.StreamHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService  service.IConsumerService
	CompanionService service.ICompanionService
	// JournalService is nil without a database.
	JournalService service.IJournalService

	WebSocketHub *websocket.Hub
	Sessions     *memory.SessionRepository
	Metrics      *metrics.Metrics
	Dispatcher   *speech.Dispatcher

	Logger        logger.ILogger
	NatsPublisher *pktNats.Publisher
	NatsSub       *pktNats.Subscriber
	Redis         *redis.Client
	PubSub        *gochannel.GoChannel
}

// NewContainer wires every component. db may be nil, which disables session
// records, transcripts and the realm journal.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	catalog := locale.Default()
	meter := metrics.New("mindful")

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. Event Bus. Publishing blocks until the consumer acks so events
	// reach the sinks in the order a session emitted them.
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 4. Providers
	providers, err := factory.NewProviders(context.Background(), factory.Settings{
		Provider:      cfg.Ai.Provider,
		APIKey:        cfg.Keys.GoogleGemini,
		GuidanceModel: cfg.Ai.GuidanceModel,
		ChatModel:     cfg.Ai.ChatModel,
		SearchModel:   cfg.Ai.SearchModel,
		SpeechModel:   cfg.Ai.SpeechModel,
		SpeechVoice:   cfg.Ai.SpeechVoice,
		LiveModel:     cfg.Ai.LiveModel,
		LiveVoice:     cfg.Ai.LiveVoice,
		LiveURL:       cfg.Ai.LiveURL,
		Fallback:      cfg.Ai.FallbackEnabled,
	}, catalog, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM providers: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.GuidanceModel)

	// 5. Sinks. The router and dispatcher emit straight to the hub; sending
	// back through the bus would wait on the consumer that is calling them.
	wsLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	sessionRepo := memory.NewSessionRepository(cfg.Companion.SessionTTL)
	router := effects.NewRouter(cfg.Companion.TimeUnit, wsHub, sysLogger, service.TrackResolver(sessionRepo))
	dispatcher := speech.NewDispatcher(speech.Config{
		Voice:   cfg.Ai.SpeechVoice,
		Timeout: cfg.Ai.RequestTimeout,
	}, providers.Speaker, wsHub, sysLogger, service.SpeechPreferences(sessionRepo))

	publisherService := service.NewPublisherService(EventTopic, pubSub, sysLogger)

	// 6. Services
	var journalService service.IJournalService
	if uowFactory != nil {
		journalService = service.NewJournalService(uowFactory, sysLogger)
	}

	var journal service.JournalFunc
	switch {
	case journalService == nil:
	case natsPub != nil:
		journal = natsPub.Publish
	default:
		journal = journalService.Record
	}

	consumerService := service.NewConsumerService(
		pubSub,
		EventTopic,
		[]events.Emitter{wsHub, events.EmitterFunc(router.Handle), events.EmitterFunc(dispatcher.Handle)},
		journal,
		sysLogger,
	)

	companionService := service.NewCompanionService(sessionRepo, uowFactory, companion.Deps{
		Guide:   providers.Guide,
		Chat:    providers.Chat,
		Live:    providers.Live,
		Store:   rolling.NewRedisStore(rdb, cfg.Companion.RollingCapacity),
		Emitter: publisherService,
		Metrics: meter,
		Catalog: catalog,
	}, service.CompanionOptions{
		Session: companion.Config{
			TimeUnit:         cfg.Companion.TimeUnit,
			RequestTimeout:   cfg.Ai.RequestTimeout,
			RollingCapacity:  cfg.Companion.RollingCapacity,
			FrameSize:        cfg.Companion.FrameSize,
			InputSampleRate:  cfg.Companion.InputSampleRate,
			OutputSampleRate: cfg.Companion.OutputSampleRate,
		},
		DefaultLanguage: cfg.Companion.DefaultLanguage,
		TtsEnabled:      cfg.Companion.TtsEnabled,
		JwtSecret:       cfg.App.JwtSecret,
		TokenTTL:        cfg.Companion.SessionTTL,
	}, sysLogger)

	// 7. Controllers
	return &Container{
		CompanionController: controller.NewCompanionController(companionService, journalService, cfg.App.JwtSecret),
		StreamHandler:       handler.NewStreamHandler(companionService, wsHub, cfg.App.JwtSecret, wsLogger),

		ConsumerService:  consumerService,
		CompanionService: companionService,
		JournalService:   journalService,

		WebSocketHub: wsHub,
		Sessions:     sessionRepo,
		Metrics:      meter,
		Dispatcher:   dispatcher,

		Logger:        sysLogger,
		NatsPublisher: natsPub,
		NatsSub:       natsSub,
		Redis:         rdb,
		PubSub:        pubSub,
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	c.CompanionService.Shutdown()
	c.Dispatcher.Wait()
	if err := c.PubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.NatsSub != nil {
		c.NatsSub.Close()
	}
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if err := c.Redis.Close(); err != nil {
		log.Printf("[WARN] Failed to close Redis: %v", err)
	}
	_ = c.Logger.Sync()
}
