// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load(ctx)` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `conf/.env` dotenv file.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `SHOPSYNC_`, where `__` maps to “.”
     (e.g., `SHOPSYNC_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs, per-TLD
`LIGHTSPEED_API_KEY_*` / `LIGHTSPEED_API_SECRET_*` environment pairs are
folded into the credentials map, `vault:` refs are resolved, and the result
is validated and cached in an `atomic.Pointer` for lock-free reads.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`, so
    `go run ./cmd/sync` works from any sub-directory.
  • The Vault client is only constructed when at least one value actually
    is a `vault:` ref; installs without Vault never touch it.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/vault"
)

var current atomic.Pointer[Config]

const (
	envPrefix     = "SHOPSYNC_"
	credKeyPrefix = "LIGHTSPEED_API_KEY_"
	credSecPrefix = "LIGHTSPEED_API_SECRET_"
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SHOPSYNC_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to the executable heuristic for
// production layout.
func rootDir() string {
	if r := os.Getenv("SHOPSYNC_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves secrets, validates, and
// caches Config.
func Load(ctx context.Context) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}

	// Env overrides: SHOPSYNC_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]Credential)
	}
	overlayCredentialEnv(&cfg, os.Environ())

	if err := resolveVaultRefs(ctx, &cfg); err != nil {
		zap.S().Errorw("config vault resolution failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"api_base", cfg.API.BaseURL,
		"listen_addr", cfg.HTTP.ListenAddr,
		"credential_tlds", credentialTLDs(&cfg),
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the cached aggregate from the last successful Load.
func Get() *Config { return current.Load() }

// overlayCredentialEnv folds LIGHTSPEED_API_KEY_BE / LIGHTSPEED_API_SECRET_BE
// style pairs into the credentials map.  Env pairs win over YAML so an
// operator can rotate a key without editing files.
func overlayCredentialEnv(cfg *Config, environ []string) {
	for _, kv := range environ {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || val == "" {
			continue
		}
		switch {
		case strings.HasPrefix(name, credKeyPrefix):
			tld := strings.ToLower(strings.TrimPrefix(name, credKeyPrefix))
			cred := cfg.Credentials[tld]
			cred.Key = val
			cfg.Credentials[tld] = cred
		case strings.HasPrefix(name, credSecPrefix):
			tld := strings.ToLower(strings.TrimPrefix(name, credSecPrefix))
			cred := cfg.Credentials[tld]
			cred.Secret = val
			cfg.Credentials[tld] = cred
		}
	}
}

// resolveVaultRefs replaces every `vault:` value in the aggregate with the
// secret it points at.  The client is built at most once.
func resolveVaultRefs(ctx context.Context, cfg *Config) error {
	var cli *vault.Client
	resolve := func(ref string) (string, error) {
		if !vault.IsRef(ref) {
			return ref, nil
		}
		if cli == nil {
			var err error
			if cli, err = vault.New(ctx, zap.S()); err != nil {
				return "", err
			}
		}
		return cli.Resolve(ctx, ref)
	}

	var err error
	if cfg.Database.DSN, err = resolve(cfg.Database.DSN); err != nil {
		return err
	}
	for tld, cred := range cfg.Credentials {
		if cred.Key, err = resolve(cred.Key); err != nil {
			return err
		}
		if cred.Secret, err = resolve(cred.Secret); err != nil {
			return err
		}
		cfg.Credentials[tld] = cred
	}
	return nil
}

func credentialTLDs(cfg *Config) []string {
	tlds := make([]string, 0, len(cfg.Credentials))
	for tld := range cfg.Credentials {
		tlds = append(tlds, tld)
	}
	return tlds
}
