package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/recur/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true}

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
		_, span := tel.StartSpan(context.Background(), "noop")
		span.End()
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled local", func(c *Config) { c.Enabled = true }, false},
		{"enabled remote insecure", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
		}, true},
		{"enabled remote tls", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}, false},
		{"http scheme local", func(c *Config) {
			c.Enabled = true
			c.Protocol = "http/protobuf"
			c.Endpoint = "http://127.0.0.1:4318"
		}, false},
		{"bad protocol", func(c *Config) {
			c.Enabled = true
			c.Protocol = "carrier-pigeon"
		}, true},
		{"bad sample rate", func(c *Config) {
			c.Enabled = true
			c.Sampling.Rate = 1.5
		}, true},
		{"missing service", func(c *Config) {
			c.Enabled = true
			c.ServiceName = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		Protocol:    "http/protobuf",
		Insecure:    true,
		ServiceName: "recur-dev",
		SampleRate:  0.5,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "recur-dev", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.5, cfg.Sampling.Rate)
	assert.NoError(t, cfg.Validate())
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()

	res, err := newResource(cfg)
	require.NoError(t, err)

	var found bool
	for _, attr := range res.Attributes() {
		if string(attr.Key) == "service.name" {
			assert.Equal(t, "recur", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "service.name attribute not found")
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.StartSpan(context.Background(), "recur.round")
	span.SetAttributes(attribute.Int("recur.round", 2))
	EndSpan(span, nil)

	_, failed := tt.StartSpan(context.Background(), "backend.generate")
	EndSpan(failed, errors.New("quota exceeded"))

	tt.AssertSpanExists(t, "recur.round")
	tt.AssertSpanAttribute(t, "recur.round", "recur.round", int64(2))

	got := tt.SpanByName("backend.generate")
	require.NotNil(t, got)
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "quota exceeded", got.Status().Description)
	assert.True(t, tt.IsEnabled())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "host:4318", stripScheme("https://host:4318"))
	assert.Equal(t, "host:4318", stripScheme("http://host:4318"))
	assert.Equal(t, "host:4317", stripScheme("host:4317"))
}
