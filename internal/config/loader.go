package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/kelseyhightower/envconfig"
)

// Loader reapplies Vault secrets on SIGHUP or on the poll ticker and dumps
// the effective configuration on SIGUSR1.
type Loader struct {
	cfg              *ServiceConfig
	secretsRepo      ports.SecretsRepository
	configSignalChan chan os.Signal
	reloadErrors     chan error
	lastVersion      uint
	retryDelay       time.Duration
}

func NewLoader(cfg *ServiceConfig, secretsRepo ports.SecretsRepository, initialVersion uint) *Loader {
	return &Loader{
		cfg:              cfg,
		secretsRepo:      secretsRepo,
		configSignalChan: make(chan os.Signal, 1),
		reloadErrors:     make(chan error, 1),
		lastVersion:      initialVersion,
		retryDelay:       time.Second,
	}
}

// Init reads the process environment and fills the endpoint policies left
// unset with their defaults.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	prefixed := []struct {
		prefix string
		target any
	}{
		{prefix: "RATE_LIMIT_CHAT", target: &cfg.RateLimiting.Chat},
		{prefix: "RATE_LIMIT_SEARCH", target: &cfg.RateLimiting.Search},
		{prefix: "RATE_LIMIT_SUGGESTIONS", target: &cfg.RateLimiting.Suggestions},
		{prefix: "RATE_LIMIT_DISCOVER", target: &cfg.RateLimiting.Discover},
		{prefix: "AGENT_CB", target: &cfg.Agent.CircuitBreaker},
		{prefix: "SEARXNG_CB", target: &cfg.Searxng.CircuitBreaker},
	}

	for _, p := range prefixed {
		if err := envconfig.Process(p.prefix, p.target); err != nil {
			return nil, fmt.Errorf("unable to parse %s configuration: %w", p.prefix, err)
		}
	}

	cfg.RateLimiting.applyDefaults()

	return cfg, nil
}

func (r *RateLimiting) applyDefaults() {
	r.Chat = r.Chat.withDefaults(EndpointLimit{
		KeyPrefix: "ratelimit:chat", Mode: "token", RefillRate: 10, Interval: time.Minute, MaxTokens: 20,
	})
	r.Search = r.Search.withDefaults(EndpointLimit{
		KeyPrefix: "ratelimit:search", Mode: "sliding", Requests: 30, Window: time.Minute,
	})
	r.Suggestions = r.Suggestions.withDefaults(EndpointLimit{
		KeyPrefix: "ratelimit:suggestions", Mode: "sliding", Requests: 10, Window: time.Minute, FailOpen: true,
	})
	r.Discover = r.Discover.withDefaults(EndpointLimit{
		KeyPrefix: "ratelimit:discover", Mode: "sliding", Requests: 20, Window: 5 * time.Minute, FailOpen: true,
	})
}

func (l EndpointLimit) withDefaults(d EndpointLimit) EndpointLimit {
	if l.Mode == "" {
		// FailOpen only comes from the defaults when no policy was configured.
		l.Mode = d.Mode
		l.FailOpen = l.FailOpen || d.FailOpen
	}

	if l.KeyPrefix == "" {
		l.KeyPrefix = d.KeyPrefix
	}

	if l.Requests == 0 {
		l.Requests = d.Requests
	}

	if l.Window == 0 {
		l.Window = d.Window
	}

	if l.RefillRate == 0 {
		l.RefillRate = d.RefillRate
	}

	if l.Interval == 0 {
		l.Interval = d.Interval
	}

	if l.MaxTokens == 0 {
		l.MaxTokens = d.MaxTokens
	}

	return l
}

func (l *Loader) WatchConfigSignals(ctx context.Context) <-chan error {
	signal.Notify(l.configSignalChan, syscall.SIGHUP, syscall.SIGUSR1)

	var ticker *time.Ticker
	if l.cfg.SecretsStorage.Enabled && l.cfg.SecretsStorage.PollInterval > 0 {
		ticker = time.NewTicker(l.cfg.SecretsStorage.PollInterval)
	}

	go func() {
		defer signal.Stop(l.configSignalChan)
		defer close(l.reloadErrors)

		var tick <-chan time.Time
		if ticker != nil {
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return

			case <-tick:
				l.handleConfigReload(ctx)

			case sig := <-l.configSignalChan:
				switch sig {
				case syscall.SIGHUP:
					l.handleConfigReload(ctx)

				case syscall.SIGUSR1:
					l.DumpConfig()
				}
			}
		}
	}()

	return l.reloadErrors
}

func (l *Loader) DumpConfig() {
	configJSON, err := json.MarshalIndent(l.cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stdout, "Error marshaling config: %v\n", err)

		return
	}

	fmt.Fprintf(os.Stdout, "\n=== Configuration Dump ===\n%s\n=== End Configuration ===\n\n", string(configJSON))
}

// Load authenticates against Vault, applies the secrets and returns the
// version of the secret that was applied.
func (l *Loader) Load(ctx context.Context) (uint, error) {
	if !l.cfg.SecretsStorage.Enabled {
		return 0, fmt.Errorf("secret storage is not enabled")
	}

	if err := l.authenticate(ctx); err != nil {
		return 0, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	data, metadata, err := l.readSecret(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	if err := l.applySecrets(data); err != nil {
		return 0, fmt.Errorf("failed to apply secrets to config: %w", err)
	}

	version, err := secretVersion(metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to get secret version: %w", err)
	}

	l.lastVersion = version

	return version, nil
}

func (l *Loader) authenticate(ctx context.Context) error {
	storage := l.cfg.SecretsStorage

	switch strings.ToLower(storage.AuthMethod) {
	case "token":
		if storage.Token == "" {
			return fmt.Errorf("token is required for token auth method")
		}

		l.secretsRepo.SetToken(storage.Token)

		return nil

	case "approle":
		if storage.RoleID == "" || storage.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for approle auth method")
		}

		token, err := l.secretsRepo.LoginAppRole(ctx, storage.RoleID, storage.SecretID)
		if err != nil {
			return fmt.Errorf("failed to authenticate via approle: %w", err)
		}

		l.secretsRepo.SetToken(token)

		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", storage.AuthMethod)
	}
}

func (l *Loader) handleConfigReload(ctx context.Context) {
	_, metadata, err := l.readSecret(ctx)
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to load secret metadata: %w", err))

		return
	}

	currentVersion, err := secretVersion(metadata)
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to get secret version: %w", err))

		return
	}

	if currentVersion == l.lastVersion {
		return
	}

	if _, err := l.Load(ctx); err != nil {
		l.reportReloadStatus(err)

		return
	}

	l.reportReloadStatus(nil)
}

// readSecret reads the KV v2 secret under apps/data/<mount> once, retrying
// with a linear backoff.
func (l *Loader) readSecret(ctx context.Context) (map[string]any, map[string]any, error) {
	storage := l.cfg.SecretsStorage
	path := fmt.Sprintf("apps/data/%s", storage.MountPath)

	ctx, cancel := context.WithTimeout(ctx, storage.Timeout)
	defer cancel()

	secret, err := backoff.Retry(ctx, func() (*ports.Secret, error) {
		return l.secretsRepo.GetSecrets(ctx, path)
	},
		backoff.WithBackOff(&linearBackOff{step: l.retryDelay}),
		backoff.WithMaxTries(storage.MaxRetries+1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read from path %s after %d retries: %w", path, storage.MaxRetries, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, nil, nil
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("invalid secret format at path %s, missing 'data' key", path)
	}

	metadata, _ := secret.Data["metadata"].(map[string]any)

	return data, metadata, nil
}

func secretVersion(metadata map[string]any) (uint, error) {
	if metadata == nil {
		return 0, nil
	}

	currentVersion, ok := metadata["version"]
	if !ok {
		currentVersion, ok = metadata["current_version"]
	}

	if !ok {
		return 0, nil
	}

	switch v := currentVersion.(type) {
	case float64:
		return uint(v), nil
	case int:
		return uint(v), nil
	case uint:
		return v, nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("failed to parse version: %w", err)
		}

		return uint(version), nil
	default:
		return 0, fmt.Errorf("unexpected version type: %T", currentVersion)
	}
}

func (l *Loader) applySecrets(data map[string]any) error {
	for key, value := range data {
		strValue, ok := value.(string)
		if !ok || strValue == "" {
			continue
		}

		if err := os.Setenv(key, strValue); err != nil {
			return fmt.Errorf("failed to set environment variable %s: %w", key, err)
		}

		switch key {
		case "AUTH_SECRET_KEY":
			l.cfg.Auth.SecretKey = strValue
		case "CACHE_PASSWORD":
			l.cfg.Cache.Password = strValue
		case "DATABASE_DSN":
			l.cfg.Database.DSN = strValue
		case "AGENT_API_KEY":
			l.cfg.Agent.APIKey = strValue
		}
	}

	return nil
}

func (l *Loader) reportReloadStatus(err error) {
	select {
	case l.reloadErrors <- err:
	default:
	}
}

type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++

	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
