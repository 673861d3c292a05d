package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"canvas-engine/application/ports"
	"canvas-engine/application/session"
	"canvas-engine/domain/events"
	"canvas-engine/infrastructure/config"
	"canvas-engine/infrastructure/messaging/eventbridge"
	"canvas-engine/infrastructure/persistence/dynamodb"
	"canvas-engine/infrastructure/persistence/memory"
	"canvas-engine/infrastructure/persistence/resilient"
	"canvas-engine/infrastructure/persistence/supabase"
	"canvas-engine/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are disabled.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("canvas")
}

// ProvideTracer installs OTLP export when tracing is enabled.
func ProvideTracer(ctx context.Context, cfg *config.Config) (*observability.Tracer, error) {
	if !cfg.EnableTracing {
		return observability.NewTracer(cfg.ServiceName), nil
	}
	return observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    !cfg.IsProduction(),
	})
}

// awsClients lazily builds the AWS SDK config once for every AWS-backed provider.
type awsClients struct {
	cfg    *config.Config
	loaded bool
	aws    aws.Config
}

func provideAWSClients(cfg *config.Config) *awsClients {
	return &awsClients{cfg: cfg}
}

func (a *awsClients) config(ctx context.Context) (aws.Config, error) {
	if a.loaded {
		return a.aws, nil
	}
	awsCfg, err := ProvideAWSConfig(ctx, a.cfg)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	a.aws, a.loaded = awsCfg, true
	return a.aws, nil
}

// ProvideDocumentStore builds the configured remote store, wrapped in a circuit
// breaker unless disabled.
func ProvideDocumentStore(ctx context.Context, cfg *config.Config, clients *awsClients, logger *zap.Logger, metrics *observability.Collector) (ports.DocumentStore, error) {
	var store ports.DocumentStore
	switch cfg.StoreBackend {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreDynamoDB:
		awsCfg, err := clients.config(ctx)
		if err != nil {
			return nil, err
		}
		store = dynamodb.NewDocumentStore(ProvideDynamoDBClient(awsCfg), cfg.DynamoDBTable, logger.Named("dynamodb"))
	case config.StoreSupabase:
		s, err := supabase.NewDocumentStore(cfg.SupabaseURL, cfg.SupabaseKey, logger.Named("supabase"))
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.EnableBreaker && cfg.StoreBackend != config.StoreMemory {
		store = resilient.NewStore(store, resilient.DefaultBreakerConfig(cfg.StoreBackend), logger, metrics)
	}
	return store, nil
}

// ProvideEventPublisher returns the EventBridge publisher, or a logging publisher when
// event publishing is disabled.
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, clients *awsClients, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.PublishEvents {
		return &logPublisher{logger: logger.Named("events")}, nil
	}
	awsCfg, err := clients.config(ctx)
	if err != nil {
		return nil, err
	}
	return eventbridge.NewPublisher(ProvideEventBridgeClient(awsCfg), cfg.EventBusName, logger.Named("eventbridge")), nil
}

// ProvideSessionManager wires the per-document editing sessions.
func ProvideSessionManager(cfg *config.Config, store ports.DocumentStore, publisher ports.EventPublisher, logger *zap.Logger, metrics *observability.Collector, tracer *observability.Tracer) *session.Manager {
	return session.NewManager(session.Dependencies{
		Store:     store,
		Config:    cfg.Domain(),
		Logger:    logger.Named("session"),
		Metrics:   metrics,
		Tracer:    tracer,
		Publisher: publisher,
		Clock:     ports.SystemClock{},
	})
}

// logPublisher records events in the log instead of sending them anywhere.
type logPublisher struct {
	logger *zap.Logger
}

func (p *logPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.logger.Debug("event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()))
	return nil
}

func (p *logPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		_ = p.Publish(ctx, e)
	}
	return nil
}
