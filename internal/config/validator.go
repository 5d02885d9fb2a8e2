// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after the
// merged Koanf tree is unmarshalled and Vault refs are resolved.  Any tag
// mismatch aborts startup, so the worker never begins a fleet run with a
// partial or malformed configuration.
//
// The rules in play are `required`, `url` on the API base, and
// `hostname_port` on the metrics listener.  Credential pairs are deliberately
// not `required` here: a shop whose TLD has no pair fails that shop's run
// with a typed error while the rest of the fleet proceeds.

package config

import "github.com/go-playground/validator/v10"

var v = validator.New()

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
