package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("ZENDESK_BASE_URL", "https://example.zendesk.com")
	t.Setenv("ZENDESK_EMAIL", "etl@example.com")
	t.Setenv("ZENDESK_TOKEN", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.zendesk.com", cfg.Zendesk.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Zendesk.Timeout)
	assert.Equal(t, time.Second, cfg.Zendesk.PageDelay)
	assert.Equal(t, 1000, cfg.Zendesk.MaxPages)

	assert.Equal(t, "sac_tickets", cfg.Storage.TicketsTable)
	assert.Equal(t, "sac_activities", cfg.Storage.ActivitiesTable)
	assert.Equal(t, 255, cfg.Storage.MaxColumnWidth)
	assert.Empty(t, cfg.Storage.StatusTable)
	assert.Empty(t, cfg.Storage.MongoDBURI)
	assert.Empty(t, cfg.Storage.RedisURL)

	assert.Equal(t, 500, cfg.Pipeline.BatchSize)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PAGE_DELAY", "250ms")
	t.Setenv("MAX_PAGES", "50")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("WORKERS", "4")
	t.Setenv("TICKETS_TABLE", "tickets_staging")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Zendesk.PageDelay)
	assert.Equal(t, 50, cfg.Zendesk.MaxPages)
	assert.Equal(t, 100, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "tickets_staging", cfg.Storage.TicketsTable)
}

func TestLoad_RequiresZendeskCredentials(t *testing.T) {
	t.Setenv("ZENDESK_BASE_URL", "")
	t.Setenv("ZENDESK_EMAIL", "")
	t.Setenv("ZENDESK_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZENDESK_BASE_URL")

	t.Setenv("ZENDESK_BASE_URL", "https://example.zendesk.com")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZENDESK_EMAIL")
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_PAGES", "lots")
	t.Setenv("PAGE_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Zendesk.MaxPages)
	assert.Equal(t, time.Second, cfg.Zendesk.PageDelay)
}
