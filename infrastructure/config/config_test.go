package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconfig "canvas-engine/domain/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 1200*time.Millisecond, cfg.Domain().SaveDebounce)
	assert.Equal(t, 50, cfg.Domain().HistoryLimit)
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "canvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: dynamodb
dynamodb_table: boards
save_debounce: 2s
theme: dark
allowed_origins:
  - https://canvas.example.com
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TABLE_NAME", "boards-override")
	t.Setenv("CONTAINMENT_TIE_BREAK", "smallest_area")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StoreDynamoDB, cfg.StoreBackend)
	assert.Equal(t, "boards-override", cfg.DynamoDBTable)
	assert.Equal(t, []string{"https://canvas.example.com"}, cfg.AllowedOrigins)

	domain := cfg.Domain()
	assert.Equal(t, 2*time.Second, domain.SaveDebounce)
	assert.Equal(t, "dark", domain.Theme)
	assert.Equal(t, domainconfig.TieBreakSmallestArea, domain.ContainmentTieBreak)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "memory store in production",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: "not allowed in production",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StoreBackend = "sqlite" },
			wantErr: "unknown STORE_BACKEND",
		},
		{
			name: "supabase without key",
			mutate: func(c *Config) {
				c.StoreBackend = StoreSupabase
				c.SupabaseURL = "https://x.supabase.co"
			},
			wantErr: "SUPABASE_SERVICE_ROLE_KEY",
		},
		{
			name: "events without bus",
			mutate: func(c *Config) {
				c.PublishEvents = true
				c.EventBusName = ""
			},
			wantErr: "EVENT_BUS_NAME",
		},
		{
			name:    "unknown tie break",
			mutate:  func(c *Config) { c.ContainmentTieBreak = "largest" },
			wantErr: "CONTAINMENT_TIE_BREAK",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.SaveDebounce = -time.Second },
			wantErr: "SAVE_DEBOUNCE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
