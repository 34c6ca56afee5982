package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReconnect struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

type testGateway struct {
	URL       string            `mapstructure:"url" validate:"required,url"`
	Token     string            `mapstructure:"token" validate:"required"`
	Intents   int               `mapstructure:"intents"`
	Compress  bool              `mapstructure:"compress"`
	Tags      []string          `mapstructure:"tags"`
	Labels    map[string]string `mapstructure:"labels"`
	Reconnect testReconnect     `mapstructure:"reconnect"`
	Hook      func()            `mapstructure:"-"`
}

type testAppConfig struct {
	Gateway testGateway `mapstructure:"gateway"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMergeConfig(t *testing.T) {
	t.Run("nil handling", func(t *testing.T) {
		_, err := MergeConfig[testGateway](nil, nil)
		assert.True(t, errors.Is(err, ErrNilConfig))

		src := &testGateway{Token: "t"}
		got, err := MergeConfig(nil, src)
		require.NoError(t, err)
		assert.Same(t, src, got)
	})

	t.Run("src overrides non-zero fields only", func(t *testing.T) {
		dst := &testGateway{
			URL:       "wss://gateway.example",
			Intents:   1,
			Tags:      []string{"a"},
			Labels:    map[string]string{"env": "dev", "team": "core"},
			Reconnect: testReconnect{MaxAttempts: 10, InitialDelay: time.Second},
		}
		called := false
		src := &testGateway{
			Token:     "secret",
			Tags:      []string{"b", "c"},
			Labels:    map[string]string{"env": "prod"},
			Reconnect: testReconnect{MaxAttempts: 3},
			Hook:      func() { called = true },
		}

		got, err := MergeConfig(dst, src)
		require.NoError(t, err)
		assert.Equal(t, "wss://gateway.example", got.URL)
		assert.Equal(t, "secret", got.Token)
		assert.Equal(t, 1, got.Intents)
		assert.Equal(t, []string{"b", "c"}, got.Tags)
		assert.Equal(t, map[string]string{"env": "prod", "team": "core"}, got.Labels)
		assert.Equal(t, 3, got.Reconnect.MaxAttempts)
		assert.Equal(t, time.Second, got.Reconnect.InitialDelay)
		require.NotNil(t, got.Hook)
		got.Hook()
		assert.True(t, called)
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.True(t, errors.Is(v.Validate(nil), ErrNilConfig))

	err := v.Validate(&testGateway{URL: "not a url", Reconnect: testReconnect{MaxAttempts: 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "testGateway.Token' is required")
	assert.Contains(t, err.Error(), "valid URL")
	assert.Contains(t, err.Error(), "must be at least 1")

	assert.NoError(t, v.Validate(&testGateway{
		URL:       "wss://gateway.example/?v=10",
		Token:     "t",
		Reconnect: testReconnect{MaxAttempts: 1},
	}))
}

func TestManagerLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
gateway:
  url: "wss://gateway.example/?v=10&encoding=json"
  token: "from-file"
  intents: 513
  compress: true
  tags: "alpha,beta"
  reconnect:
    max_attempts: 5
    initial_delay: 750ms
`)

	m := NewManager()
	require.NoError(t, m.LoadFile(path))

	var cfg testAppConfig
	require.NoError(t, m.Unmarshal(&cfg))
	assert.Equal(t, "from-file", cfg.Gateway.Token)
	assert.Equal(t, 513, cfg.Gateway.Intents)
	assert.True(t, cfg.Gateway.Compress)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Gateway.Tags)
	assert.Equal(t, 5, cfg.Gateway.Reconnect.MaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Gateway.Reconnect.InitialDelay)

	var rc testReconnect
	require.NoError(t, m.UnmarshalKey("gateway.reconnect", &rc))
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.True(t, m.IsSet("gateway.intents"))
}

func TestManagerEnvOverride(t *testing.T) {
	path := writeConfigFile(t, "gateway:\n  token: \"from-file\"\n")
	t.Setenv("GATECORD_GATEWAY_TOKEN", "from-env")

	m := NewManager(WithEnvPrefix(DefaultEnvPrefix))
	require.NoError(t, m.LoadFile(path))
	assert.Equal(t, "from-env", m.GetString("gateway.token"))
}

func TestManagerDefaultsAndOverrides(t *testing.T) {
	path := writeConfigFile(t, "gateway:\n  token: \"from-file\"\n")
	t.Setenv("GATECORD_GATEWAY_TOKEN", "from-env")

	m := NewManager(
		WithEnvPrefix(DefaultEnvPrefix),
		WithDefaults(map[string]any{"gateway.url": "wss://default.example"}),
		WithOverrides(map[string]any{"gateway.token": "from-flag"}),
	)
	require.NoError(t, m.LoadFile(path))
	assert.Equal(t, "from-flag", m.GetString("gateway.token"))
	assert.Equal(t, "wss://default.example", m.GetString("gateway.url"))
}

func TestManagerLoadMissingFile(t *testing.T) {
	err := NewManager().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestManagerWatch(t *testing.T) {
	path := writeConfigFile(t, "gateway:\n  token: \"v1\"\n")
	m := NewManager()
	require.NoError(t, m.LoadFile(path))

	changed := make(chan struct{}, 4)
	require.NoError(t, m.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  token: \"v2\"\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("config change not observed")
	}
	assert.Eventually(t, func() bool { return m.GetString("gateway.token") == "v2" }, time.Second, 10*time.Millisecond)
}
