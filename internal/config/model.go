// internal/config/model.go
//
// Typed configuration model for ShopSync.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                       – dotenv values,
//   • `conf/global.yaml`                         – primary static file,
//   • `SHOPSYNC_`-prefixed environment overrides – highest precedence.
//
// Per-shop API credentials have a fourth source, kept for compatibility with
// the ops runbooks: `LIGHTSPEED_API_KEY_<TLD>` / `LIGHTSPEED_API_SECRET_<TLD>`
// environment pairs, folded into Credentials after the overlay.  Any value
// whose string begins with `vault:` is resolved through the Vault client
// before validation, so the model never stores Vault URIs—only plain
// strings.
//
// The whole aggregate is snapshotted at load; deep components (fetcher,
// reconciler) receive what they need as plain arguments and never consult
// the environment themselves.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import (
	"fmt"
	"strings"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
)

//
// API section
//

// API holds the Lightspeed eCom endpoint tunables.
type API struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

//
// Database section
//

// Database holds the Postgres DSN for the store of record.  The secret
// portion may be a `vault:` URI in YAML; by the time validation runs it is a
// plain DSN.
type Database struct {
	DSN string `koanf:"dsn" validate:"required"`
}

//
// HTTP section
//

// HTTP configures the metrics/health listener.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Credentials section
//

// Credential is one shop market's Basic-auth key pair, keyed by the shop's
// TLD discriminator ("be", "de", "nl", …).
type Credential struct {
	Key    string `koanf:"key"`
	Secret string `koanf:"secret"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.
type Paths struct {
	Root string // SHOPSYNC_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the run.
type Config struct {
	API         API                   `koanf:"api"`
	Database    Database              `koanf:"database"`
	HTTP        HTTP                  `koanf:"http"`
	Credentials map[string]Credential `koanf:"credentials"`
	Paths       Paths                 `koanf:"-"`
}

// MissingCredentialsError reports a shop whose TLD has no configured key
// pair.  It fails that shop's run immediately; no retry makes sense.
type MissingCredentialsError struct {
	TLD string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("missing API credentials for shop TLD=%s", strings.ToUpper(e.TLD))
}

// CredentialsFor resolves one shop's key pair by TLD.  An absent or
// half-configured pair is a *MissingCredentialsError.
func (c *Config) CredentialsFor(tld string) (lightspeed.Credentials, error) {
	cred, ok := c.Credentials[strings.ToLower(tld)]
	if !ok || cred.Key == "" || cred.Secret == "" {
		return lightspeed.Credentials{}, &MissingCredentialsError{TLD: tld}
	}
	return lightspeed.Credentials{Key: cred.Key, Secret: cred.Secret}, nil
}
