// internal/vault/vault.go
//
// Vault client wrapper for ShopSync.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK behind the two calls the worker needs:
//     construct a client from the environment, and read one key of a KV-v2
//     secret.
//   - The config loader uses it to resolve `vault:` URIs so API credentials
//     and the database password never live in flat files or git history.
//   - A background loop keeps the token renewed for long fleet runs.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                  // during boot.
//  2. val, err := cli.Resolve(ctx, "vault:secret/shopsync/be#api_key")
//
// Notes
// -----
// • Environment expectations: VAULT_ADDR, VAULT_TOKEN.
// • Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// RefPrefix marks a config value that must be resolved through Vault.
const RefPrefix = "vault:"

// IsRef reports whether a config value is a Vault URI.
func IsRef(v string) bool { return strings.HasPrefix(v, RefPrefix) }

// Client is safe for concurrent use.  Create once at startup.  Zero value is
// invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger
}

// New constructs a Vault client from VAULT_ADDR / VAULT_TOKEN and starts a
// background token-renewal loop bound to ctx.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{api: apiCli, log: log}
	go c.renewLoop(ctx)
	return c, nil
}

// Resolve turns "vault:<mount>/<path>#<key>" into the secret value.  Values
// without the prefix are returned unchanged, so callers can pass any config
// string through it.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsRef(ref) {
		return ref, nil
	}

	spec := strings.TrimPrefix(ref, RefPrefix)
	secretPath, key, ok := strings.Cut(spec, "#")
	if !ok || secretPath == "" || key == "" {
		return "", fmt.Errorf("malformed vault ref %q (want vault:mount/path#key)", ref)
	}
	return c.getKV(ctx, secretPath, key)
}

// getKV fetches a single key from a KV-v2 secret.
func (c *Client) getKV(ctx context.Context, secretPath, key string) (string, error) {
	mount, rel := splitMount(secretPath)
	if mount == "" || rel == "" {
		return "", errors.New("secret path must include mount and relative path")
	}

	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}
	return sval, nil
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			c.log.Warnw("vault token renew self failed", "err", err)
			sleep(ctx, 30*time.Second)
			continue
		}
		if sec == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token is not renewable, sleeping 1h")
			sleep(ctx, time.Hour)
			continue
		}

		renewer, err := c.api.NewRenewer(&vault.RenewerInput{
			Secret: sec,
			Grace:  15 * time.Second,
		})
		if err != nil {
			c.log.Warnw("vault renewer init error", "err", err)
			sleep(ctx, 30*time.Second)
			continue
		}

		go renewer.Renew()

	watch:
		for {
			select {
			case <-ctx.Done():
				renewer.Stop()
				return
			case err := <-renewer.DoneCh():
				renewer.Stop()
				if err != nil {
					c.log.Warnw("vault token renewal stopped", "err", err)
				}
				sleep(ctx, 15*time.Second)
				break watch
			case ev := <-renewer.RenewCh():
				if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
					c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
				}
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
