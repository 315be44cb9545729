// internal/config/model.go
//
// Typed configuration model for ingenius.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                            – dotenv values,
//   • `conf/global.yaml`                         – primary static file,
//   • `INGENIUS_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling and *before* validation,
// so callers never see Vault URIs, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The *template* (`DSN`) keeps one `%s` verb for the password so operators
// can tweak host, port, or flags without touching Vault.  The *secret*
// (`Password`) is normally a `vault:` reference.
type Database struct {
	DSN      string `koanf:"dsn"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
	Retries  int    `koanf:"retries"  validate:"gte=0"`
}

//
// Session section
//

// Session configures the signed login cookie.
type Session struct {
	HashKey string        `koanf:"hash_key" validate:"required"`
	MaxAge  time.Duration `koanf:"max_age"`
}

//
// Forms section
//

// Forms configures definitions, drafts, and validation rules.
type Forms struct {
	CSRFKey       string            `koanf:"csrf_key"       validate:"required"`
	DraftCapacity int               `koanf:"draft_capacity"  validate:"gte=1"`
	DraftsPerUser int               `koanf:"drafts_per_user" validate:"gte=1,ltefield=DraftCapacity"`
	DraftIdleTTL  time.Duration     `koanf:"draft_idle_ttl"  validate:"gt=0"`
	SweepInterval time.Duration     `koanf:"sweep_interval"  validate:"gt=0"`
	OverrideDir   string            `koanf:"override_dir"`
	Rules         map[string]string `koanf:"rules"` // name → regex
}

//
// Store section
//

// Store picks the track store backend.
//
// With `sql` the service persists tracks itself.  With `http` it forwards
// creates to another instance's /api/tracks.  `APIToken` is the bearer
// token accepted by (and, for `http`, sent to) /api/tracks.
type Store struct {
	Backend  string        `koanf:"backend"   validate:"oneof=sql http"`
	APIURL   string        `koanf:"api_url"   validate:"required_if=Backend http"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`
}

//
// Vault section
//

// Vault enables `vault:` references.  Address and token fall back to the
// standard VAULT_ADDR / VAULT_TOKEN variables when blank.
type Vault struct {
	Enabled  bool          `koanf:"enabled"`
	Address  string        `koanf:"address"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

//
// Log section
//

// Log tunes the logger after boot.  The logger starts at info before any
// config is read; cmd binaries apply Level once Load succeeds.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

//
// Geo section
//

// Geo points at an optional MaxMind City database for request enrichment.
type Geo struct {
	CityDB string `koanf:"city_db"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or INGENIUS_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Session  Session  `koanf:"session"`
	Forms    Forms    `koanf:"forms"`
	Store    Store    `koanf:"store"`
	Vault    Vault    `koanf:"vault"`
	Log      Log      `koanf:"log"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}

// defaults seeds the koanf tree before the YAML layer.
var defaults = map[string]any{
	"http.listen_addr":      ":8080",
	"http.shutdown_timeout": "10s",
	"database.max_open":     15,
	"database.max_idle":     5,
	"database.retries":      5,
	"session.max_age":       "336h",
	"forms.draft_capacity":  1024,
	"forms.drafts_per_user": 8,
	"forms.draft_idle_ttl":  "2h",
	"forms.sweep_interval":  "5m",
	"store.backend":         "sql",
	"store.timeout":         "10s",
	"vault.cache_ttl":       "5m",
	"log.level":             "info",
}
