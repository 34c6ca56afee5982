package otel

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "disabled skips checks", mutate: func(c *Config) { c.ServiceName = "" }},
		{name: "enabled default", mutate: func(c *Config) { c.Enabled = true }},
		{
			name:    "empty service name",
			mutate:  func(c *Config) { c.Enabled = true; c.ServiceName = "" },
			wantErr: ErrInvalidServiceName,
		},
		{
			name: "ratio out of range",
			mutate: func(c *Config) {
				c.Enabled = true
				c.Sampler = SamplerConfig{Type: SamplerTypeRatio, Ratio: 1.5}
			},
			wantErr: ErrInvalidSamplerRatio,
		},
		{
			name:    "unknown exporter",
			mutate:  func(c *Config) { c.Enabled = true; c.ExporterType = "jaeger" },
			wantErr: ErrUnsupportedExporter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDefaultConfigDisabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ExporterTypeOTLPHTTP, cfg.ExporterType)
	assert.Equal(t, SamplerTypeParent, cfg.Sampler.Type)
}
