// internal/vault/opener.go
//
// Bridge between config.Load and the Vault client.  Both binaries pass
// Opener to the loader; a client is built only when a `vault:` reference
// actually needs resolving.
//
//------------------------------------------------------------------------------

package vault

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yanizio/ingenius/internal/config"
)

// ErrDisabled is returned when configuration holds a `vault:` reference but
// vault.enabled is false.
var ErrDisabled = errors.New("vault: reference found but vault.enabled is false")

// Opener adapts New to the config loader, which calls it only when a
// `vault:` reference needs resolving.
func Opener(log *zap.SugaredLogger) config.SecretOpener {
	return func(ctx context.Context, v config.Vault) (config.SecretGetter, error) {
		if !v.Enabled {
			return nil, ErrDisabled
		}
		c, err := New(ctx, v.Address, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
