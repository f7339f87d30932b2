// Package secrets loads the exchange API credentials the bot trades
// with. Vault is the primary source; when Vault is disabled (local
// development, CI) credentials fall back to an encrypted file on disk
// so a plaintext key never needs to sit in the environment or a config
// file.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
)

// Credentials is the exchange API key pair the bot authenticates with.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Loader resolves Credentials from Vault. When Vault is disabled it holds
// no client and Load returns an error; the encrypted local file is read
// with LoadLocal instead.
type Loader struct {
	log    zerolog.Logger
	cfg    config.VaultConfig
	client *api.Client

	mu     sync.Mutex
	cached *Credentials
}

// NewLoader constructs a Loader. When cfg.Enabled is false, no Vault
// client is created; callers must use LoadLocal instead.
func NewLoader(cfg config.VaultConfig, logger zerolog.Logger) (*Loader, error) {
	l := &Loader{log: logger.With().Str("component", "secrets-loader").Logger(), cfg: cfg}
	if !cfg.Enabled {
		return l, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("secrets: configure vault tls: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("secrets: new vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	l.client = client
	return l, nil
}

// Load returns the bot's exchange credentials, reading from Vault and
// caching the result for the lifetime of the process.
func (l *Loader) Load(ctx context.Context) (Credentials, error) {
	l.mu.Lock()
	if l.cached != nil {
		defer l.mu.Unlock()
		return *l.cached, nil
	}
	l.mu.Unlock()

	if !l.cfg.Enabled {
		return Credentials{}, fmt.Errorf("secrets: vault disabled, use LoadLocal")
	}

	path := fmt.Sprintf("%s/data/%s", l.cfg.MountPath, l.cfg.SecretPath)
	secret, err := l.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("secrets: read vault secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("secrets: no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("secrets: unexpected secret shape at %s", path)
	}

	creds := Credentials{
		APIKey:    stringField(data, "api_key"),
		SecretKey: stringField(data, "secret_key"),
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		return Credentials{}, fmt.Errorf("secrets: incomplete credentials at %s", path)
	}

	l.mu.Lock()
	l.cached = &creds
	l.mu.Unlock()
	return creds, nil
}

// Health reports whether Vault is reachable and unsealed. A no-op when
// Vault is disabled.
func (l *Loader) Health(ctx context.Context) error {
	if !l.cfg.Enabled {
		return nil
	}
	health, err := l.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("secrets: vault health check: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("secrets: vault is sealed")
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
