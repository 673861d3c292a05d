package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/infrastructure/config"
	"canvas-engine/infrastructure/persistence/memory"
	"canvas-engine/infrastructure/persistence/resilient"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORE_BACKEND", config.StoreMemory)
	t.Setenv("PUBLISH_EVENTS", "false")
	t.Setenv("ENABLE_TRACING", "false")
	t.Setenv("ENABLE_METRICS", "true")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestInitializeContainer_Memory(t *testing.T) {
	// Arrange
	cfg := memoryConfig(t)
	ctx := context.Background()

	// Act
	container, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)

	// Assert
	assert.IsType(t, &memory.Store{}, container.Store, "memory backend is never wrapped in a breaker")
	assert.IsType(t, &logPublisher{}, container.Publisher)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Sessions)

	s, err := container.Sessions.Open(ctx, valueobjects.DocumentID("board-1"))
	require.NoError(t, err)
	assert.Equal(t, valueobjects.DocumentID("board-1"), s.ID())
	assert.Equal(t, 1, container.Sessions.Len())

	require.NoError(t, container.Shutdown(ctx))
	assert.Equal(t, 0, container.Sessions.Len())
}

func TestProvideDocumentStore_WrapsRemoteBackends(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreBackend = config.StoreSupabase
	cfg.SupabaseURL = "http://localhost:54321"
	cfg.SupabaseKey = "service-role"

	store, err := ProvideDocumentStore(context.Background(), cfg, provideAWSClients(cfg), zap.NewNop(), nil)

	require.NoError(t, err)
	assert.IsType(t, &resilient.Store{}, store)
}

func TestProvideDocumentStore_UnknownBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreBackend = "cassandra"

	_, err := ProvideDocumentStore(context.Background(), cfg, provideAWSClients(cfg), zap.NewNop(), nil)

	assert.Error(t, err)
}

func TestProvideLogger_RejectsBadLevel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.LogLevel = "chatty"

	_, err := ProvideLogger(cfg)

	assert.Error(t, err)
}
