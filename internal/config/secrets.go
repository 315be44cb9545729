// internal/config/secrets.go
//
// `vault:` reference resolution.
//
// A secret-bearing value may be written as
//
//	vault:<mount>/<path>#<key>      e.g. vault:secret/ingenius/db#password
//
// ResolveSecrets swaps each such value for the string stored in Vault.
// Plain values pass through untouched, so local development needs no Vault.

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// VaultPrefix marks a value as a Vault reference.
const VaultPrefix = "vault:"

// SecretGetter is satisfied by *vault.Client.
type SecretGetter interface {
	GetKV(ctx context.Context, path, key string, ttl time.Duration) (string, error)
}

// SecretOpener builds a SecretGetter from the vault section.  The loader
// calls it only when a reference needs resolving.
type SecretOpener func(ctx context.Context, v Vault) (SecretGetter, error)

// ErrNoSecretSource is returned when a reference is found but no getter was
// configured.
var ErrNoSecretSource = errors.New("config: vault reference without vault client")

// ParseRef splits a `vault:` reference into path and key.
func ParseRef(s string) (path, key string, ok bool) {
	rest, found := strings.CutPrefix(s, VaultPrefix)
	if !found {
		return "", "", false
	}
	path, key, found = strings.Cut(rest, "#")
	if !found || path == "" || key == "" {
		return "", "", false
	}
	return path, key, true
}

// ResolveSecrets replaces every `vault:` reference among the secret-bearing
// fields of cfg.
func ResolveSecrets(ctx context.Context, cfg *Config, g SecretGetter) error {
	fields := map[string]*string{
		"database.dsn":      &cfg.Database.DSN,
		"database.password": &cfg.Database.Password,
		"session.hash_key":  &cfg.Session.HashKey,
		"forms.csrf_key":    &cfg.Forms.CSRFKey,
		"store.api_token":   &cfg.Store.APIToken,
	}
	for name, ptr := range fields {
		if !strings.HasPrefix(*ptr, VaultPrefix) {
			continue
		}
		path, key, ok := ParseRef(*ptr)
		if !ok {
			return fmt.Errorf("config: %s: malformed vault reference", name)
		}
		if g == nil {
			return fmt.Errorf("%w: %s", ErrNoSecretSource, name)
		}
		val, err := g.GetKV(ctx, path, key, cfg.Vault.CacheTTL)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		*ptr = val
	}
	return nil
}

// NeedsVault reports whether any secret-bearing value is a Vault reference.
func NeedsVault(cfg *Config) bool {
	for _, s := range []string{
		cfg.Database.DSN, cfg.Database.Password, cfg.Session.HashKey,
		cfg.Forms.CSRFKey, cfg.Store.APIToken,
	} {
		if strings.HasPrefix(s, VaultPrefix) {
			return true
		}
	}
	return false
}
