package cmd

import (
	"context"
	"testing"

	"tourney/config"
	"tourney/events"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	cfg := config.NewTestConfig()
	cfg.LogLevel = "warn"
	cfg.Environment = "production"
	ConfigureLogging(cfg)

	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	cfg.LogLevel = "chatty"
	cfg.Environment = "development"
	ConfigureLogging(cfg)

	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.NewTestConfig()

	st, err := openStore(context.Background(), cfg, events.NewBus(), clockwork.NewFakeClock())
	require.NoError(t, err)
	defer st.close()

	assert.Nil(t, st.db)
	assert.False(t, st.uowFactory.SupportsTransactions())
}

func TestReconcile_MemoryStore(t *testing.T) {
	defer config.ResetConfig()
	config.SetTestConfig(config.NewTestConfig())

	result, err := Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.Empty(t, result.Failures)
}

func TestAttachNotifiers_NoneConfigured(t *testing.T) {
	closeAll := attachNotifiers(config.NewTestConfig(), events.NewBus())
	assert.NotPanics(t, closeAll)
}
