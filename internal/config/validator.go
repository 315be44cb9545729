// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` after it unmarshals the
// merged Koanf tree and resolves Vault references.  Any tag mismatch or
// validation error aborts startup, ensuring the binary never runs with
// partial, malformed, or missing configuration.
//
// Field rules live on the model tags.  Cross-section rules (a DSN is always
// needed because accounts live in MySQL even when tracks are forwarded, and
// the DSN template needs its password verb) are registered here as a
// struct-level validation on Config.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(validateConfig, Config{})
	return val
}

// validateConfig enforces rules spanning sections.
func validateConfig(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.Database.DSN == "" {
		sl.ReportError(c.Database.DSN, "Database.DSN", "DSN", "required", "")
		return
	}
	if c.Database.Password != "" && strings.Count(c.Database.DSN, "%s") != 1 {
		sl.ReportError(c.Database.DSN, "Database.DSN", "DSN", "password_verb", "")
	}
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
