package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 9090, cfg.WorkerPort)
	assert.Equal(t, TransportMemory, cfg.Performance.Transport)
	assert.Equal(t, 2, cfg.Performance.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Performance.RetryDelay)
	assert.Equal(t, time.Minute, cfg.Dashboard.CacheTTL)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PERFORMANCE_TRANSPORT", " RabbitMQ ")
	v.Set("DASHBOARD_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg := fromViper(v)

	assert.Equal(t, TransportRabbitMQ, cfg.Performance.Transport)
	assert.Equal(t, time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperUnknownTransportFallsBackToMemory(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PERFORMANCE_TRANSPORT", "kafka")

	assert.Equal(t, TransportMemory, fromViper(v).Performance.Transport)
}
