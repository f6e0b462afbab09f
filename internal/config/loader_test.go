package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSecrets struct {
	token    string
	secret   *ports.Secret
	failures int
	calls    int
}

func (s *stubSecrets) SetToken(token string) { s.token = token }

func (s *stubSecrets) LoginAppRole(_ context.Context, roleID, secretID string) (string, error) {
	if roleID == "" || secretID == "" {
		return "", errors.New("missing credentials")
	}

	return "approle-token", nil
}

func (s *stubSecrets) GetSecrets(_ context.Context, _ string) (*ports.Secret, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("vault unavailable")
	}

	return s.secret, nil
}

func TestInit(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "sandbox")
	t.Setenv("APP_SERVICE_NAME", "svc-chat-gateway")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTH_SECRET_KEY", "test-secret-key")
	t.Setenv("AGENT_BASE_URL", "http://localhost:3001")

	cfg, err := Init()
	require.NoError(t, err)

	assert.Equal(t, "sandbox", cfg.App.Env.Name)
	assert.Equal(t, "svc-chat-gateway", cfg.App.ServiceName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "test-secret-key", cfg.Auth.SecretKey)
	assert.Equal(t, "http://localhost:3001", cfg.Agent.BaseURL)
}

func TestInit_DefaultValues(t *testing.T) {
	cfg, err := Init()
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.App.APIVersion)
	assert.Equal(t, uint(8088), cfg.PublicHTTPServer.Port)
	assert.Equal(t, time.Duration(0), cfg.PublicHTTPServer.WriteTimeout)

	assert.Equal(t, "soraai:", cfg.ResilientCache.KeyPrefix)
	assert.Equal(t, 60*time.Second, cfg.ResilientCache.RetryCooldown)
	assert.Equal(t, uint(3), cfg.ResilientCache.MaxRetries)

	assert.Equal(t, 3*time.Minute, cfg.Suggestions.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.Discover.CacheTTL)
	assert.Equal(t, time.Minute, cfg.Discover.PreviewCacheTTL)
	assert.Equal(t, uint(20), cfg.Chat.GuestMaxMessagesPerDay)
}

func TestInit_RateLimitDefaults(t *testing.T) {
	cfg, err := Init()
	require.NoError(t, err)

	limits := cfg.RateLimiting

	assert.Equal(t, "token", limits.Chat.Mode)
	assert.Equal(t, "ratelimit:chat", limits.Chat.KeyPrefix)
	assert.False(t, limits.Chat.FailOpen)

	assert.Equal(t, "sliding", limits.Search.Mode)
	assert.False(t, limits.Search.FailOpen)

	assert.Equal(t, uint(10), limits.Suggestions.Requests)
	assert.Equal(t, time.Minute, limits.Suggestions.Window)
	assert.True(t, limits.Suggestions.FailOpen)

	assert.Equal(t, uint(20), limits.Discover.Requests)
	assert.Equal(t, 5*time.Minute, limits.Discover.Window)
	assert.True(t, limits.Discover.FailOpen)
}

func TestInit_RateLimitOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_SEARCH_MODE", "fixed")
	t.Setenv("RATE_LIMIT_SEARCH_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_SEARCH_WINDOW", "10s")
	t.Setenv("RATE_LIMIT_SEARCH_FAIL_OPEN", "true")

	cfg, err := Init()
	require.NoError(t, err)

	search := cfg.RateLimiting.Search
	assert.Equal(t, "fixed", search.Mode)
	assert.Equal(t, uint(5), search.Requests)
	assert.Equal(t, 10*time.Second, search.Window)
	assert.True(t, search.FailOpen)
	assert.Equal(t, "ratelimit:search", search.KeyPrefix)
}

func TestGetEnvironment(t *testing.T) {
	cases := []struct {
		env      string
		expected int
	}{
		{env: "production", expected: Production},
		{env: "prod", expected: Production},
		{env: "staging", expected: Staging},
		{env: "sbx", expected: Sandbox},
		{env: "development", expected: Development},
		{env: "unknown", expected: Development},
	}

	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			cfg := &ServiceConfig{App: App{Env: Environment{Name: tc.env}}}
			assert.Equal(t, tc.expected, cfg.GetEnvironment())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ServiceConfig {
		cfg := &ServiceConfig{
			Auth:        Auth{Enabled: true, SecretKey: "secret"},
			Compression: Compression{Level: 5},
		}
		cfg.RateLimiting.applyDefaults()

		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Compression.Level = 10
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.SecretKey = ""
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimiting.Search.Mode = "leaky"
	require.ErrorContains(t, cfg.Validate(), "rate limit search")

	cfg = valid()
	cfg.RateLimiting.Chat.MaxTokens = 0
	cfg.RateLimiting.Chat.RefillRate = 0
	require.Error(t, cfg.Validate())
}

func TestLoader_LoadAppliesSecrets(t *testing.T) {
	cfg := &ServiceConfig{SecretsStorage: SecretsStorage{
		Enabled: true, AuthMethod: "token", Token: "root", MountPath: "svc-chat-gateway", Timeout: time.Second, MaxRetries: 2,
	}}

	repo := &stubSecrets{
		failures: 1,
		secret: &ports.Secret{Data: map[string]any{
			"data": map[string]any{
				"AUTH_SECRET_KEY": "jwt-secret",
				"CACHE_PASSWORD":  "keydb-secret",
				"AGENT_API_KEY":   "",
			},
			"metadata": map[string]any{"version": float64(4)},
		}},
	}

	t.Setenv("AUTH_SECRET_KEY", "")
	t.Setenv("CACHE_PASSWORD", "")

	loader := NewLoader(cfg, repo, 0)
	loader.retryDelay = time.Millisecond

	version, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint(4), version)
	assert.Equal(t, "root", repo.token)
	assert.Equal(t, 2, repo.calls)
	assert.Equal(t, "jwt-secret", cfg.Auth.SecretKey)
	assert.Equal(t, "keydb-secret", cfg.Cache.Password)
	assert.Empty(t, cfg.Agent.APIKey)
}

func TestLoader_LoadErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		loader := NewLoader(&ServiceConfig{}, &stubSecrets{}, 0)
		_, err := loader.Load(context.Background())
		require.ErrorContains(t, err, "not enabled")
	})

	t.Run("approle without credentials", func(t *testing.T) {
		cfg := &ServiceConfig{SecretsStorage: SecretsStorage{Enabled: true, AuthMethod: "approle"}}
		_, err := NewLoader(cfg, &stubSecrets{}, 0).Load(context.Background())
		require.ErrorContains(t, err, "role_id and secret_id")
	})

	t.Run("unsupported method", func(t *testing.T) {
		cfg := &ServiceConfig{SecretsStorage: SecretsStorage{Enabled: true, AuthMethod: "kubernetes"}}
		_, err := NewLoader(cfg, &stubSecrets{}, 0).Load(context.Background())
		require.ErrorContains(t, err, "unsupported auth method")
	})

	t.Run("retries exhausted", func(t *testing.T) {
		cfg := &ServiceConfig{SecretsStorage: SecretsStorage{
			Enabled: true, AuthMethod: "token", Token: "t", Timeout: time.Second, MaxRetries: 1,
		}}
		repo := &stubSecrets{failures: 10}

		loader := NewLoader(cfg, repo, 0)
		loader.retryDelay = time.Millisecond

		_, err := loader.Load(context.Background())
		require.Error(t, err)
		assert.Equal(t, 2, repo.calls)
	})
}

func TestSecretVersion(t *testing.T) {
	version, err := secretVersion(nil)
	require.NoError(t, err)
	assert.Zero(t, version)

	version, err = secretVersion(map[string]any{"current_version": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, uint(7), version)

	_, err = secretVersion(map[string]any{"version": "seven"})
	require.Error(t, err)
}
