// internal/config/loader_test.go

package config

import (
	"errors"
	"testing"
)

func TestOverlayCredentialEnv(t *testing.T) {
	cfg := &Config{Credentials: map[string]Credential{
		"nl": {Key: "yaml-key", Secret: "yaml-secret"},
	}}

	overlayCredentialEnv(cfg, []string{
		"LIGHTSPEED_API_KEY_BE=env-key-be",
		"LIGHTSPEED_API_SECRET_BE=env-secret-be",
		"LIGHTSPEED_API_KEY_NL=env-key-nl", // env wins over yaml
		"PATH=/usr/bin",
		"LIGHTSPEED_API_KEY_DE=", // empty values are ignored
	})

	be, ok := cfg.Credentials["be"]
	if !ok || be.Key != "env-key-be" || be.Secret != "env-secret-be" {
		t.Fatalf("be credentials = %+v", be)
	}
	nl := cfg.Credentials["nl"]
	if nl.Key != "env-key-nl" {
		t.Fatalf("env override lost: nl.Key = %q", nl.Key)
	}
	if nl.Secret != "yaml-secret" {
		t.Fatalf("yaml secret clobbered: nl.Secret = %q", nl.Secret)
	}
	if _, ok := cfg.Credentials["de"]; ok {
		t.Fatal("empty env value created a credential entry")
	}
}

func TestCredentialsFor(t *testing.T) {
	cfg := &Config{Credentials: map[string]Credential{
		"be":   {Key: "k", Secret: "s"},
		"half": {Key: "k"}, // secret missing
	}}

	creds, err := cfg.CredentialsFor("BE") // lookup is case-insensitive
	if err != nil {
		t.Fatalf("CredentialsFor(BE): %v", err)
	}
	if creds.Key != "k" || creds.Secret != "s" {
		t.Fatalf("creds = %+v", creds)
	}

	for _, tld := range []string{"de", "half"} {
		_, err := cfg.CredentialsFor(tld)
		var mce *MissingCredentialsError
		if !errors.As(err, &mce) {
			t.Fatalf("CredentialsFor(%s) error is %T, want *MissingCredentialsError", tld, err)
		}
	}

	if got := (&MissingCredentialsError{TLD: "be"}).Error(); got != "missing API credentials for shop TLD=BE" {
		t.Fatalf("error message %q", got)
	}
}
