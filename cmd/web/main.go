// cmd/web/main.go
//
// Ingenius – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load configuration; `vault:` references open a Vault client first.
//
//  4. Open MySQL, run component migrations, or point the track store at a
//     remote /api/tracks when store.backend is `http`.
//
//  5. Load form definitions (override dir first, embedded second), compile
//     the rule table, and check every definition against it.
//
//  6. Build components, mount them on chi behind the middleware chain, and
//     expose Prometheus /metrics.
//
//  7. Serve until SIGINT/SIGTERM, then drain.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/ingenius/components/account"
	"github.com/yanizio/ingenius/components/tracks"
	"github.com/yanizio/ingenius/internal/component"
	"github.com/yanizio/ingenius/internal/config"
	"github.com/yanizio/ingenius/internal/database"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/logger"
	"github.com/yanizio/ingenius/internal/middleware"
	"github.com/yanizio/ingenius/internal/requestinfo"
	"github.com/yanizio/ingenius/internal/server"
	"github.com/yanizio/ingenius/internal/session"
	"github.com/yanizio/ingenius/internal/track"
	"github.com/yanizio/ingenius/internal/vault"
	"github.com/yanizio/ingenius/internal/view"
)

const serverEnvPath = "/usr/local/etc/ingenius/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logOut, err := logger.New(logger.Options{Root: config.RootDir(), Name: "web", Tee: runningInTTY()})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	if err := run(ctx, logOut); err != nil {
		logOut.Errorw("ingenius stopped", "err", err)
		_ = logOut.Sync()
		os.Exit(1)
	}
	logOut.Info("ingenius stopped")
}

func run(ctx context.Context, logOut *zap.SugaredLogger) error {
	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx, vault.Opener(logOut.Named("vault")))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}

	closeGeo, err := requestinfo.InitGeo(cfg.Geo.CityDB)
	if err != nil {
		logOut.Warnw("geo database unavailable; continuing without geo", "path", cfg.Geo.CityDB, "err", err)
	} else {
		defer func() { _ = closeGeo() }()
	}

	//
	// ── 2.  Database ────────────────────────────────────────────────────
	//
	logOut.Infow("connecting to database")
	db, err := database.OpenWithOptions(ctx, cfg.DSN(), database.Options{
		MaxOpen: cfg.Database.MaxOpen,
		MaxIdle: cfg.Database.MaxIdle,
		Retries: cfg.Database.Retries,
		Backoff: time.Second,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logOut.Infow("database online")

	var store track.Store
	switch cfg.Store.Backend {
	case "http":
		store = track.NewClient(cfg.Store.APIURL, cfg.Store.APIToken, cfg.Store.Timeout)
		logOut.Infow("track store forwarding", "api_url", cfg.Store.APIURL)
	default:
		store = track.NewSQLStore(db)
	}

	//
	// ── 3.  Forms ───────────────────────────────────────────────────────
	//
	defs := form.NewRegistry()
	var sources []fs.FS
	if cfg.Forms.OverrideDir != "" {
		sources = append(sources, os.DirFS(cfg.Forms.OverrideDir))
	}
	sources = append(sources, tracks.Definitions, account.Definitions)
	if err := defs.LoadFS(sources...); err != nil {
		return err
	}

	rules, err := form.DefaultRules().With(cfg.Forms.Rules)
	if err != nil {
		return fmt.Errorf("forms.rules: %w", err)
	}
	validator := form.NewValidator(rules)

	trackDef, err := lookupDef(defs, validator, tracks.FormID)
	if err != nil {
		return err
	}
	loginDef, err := lookupDef(defs, validator, account.FormID)
	if err != nil {
		return err
	}

	//
	// ── 4.  Components ──────────────────────────────────────────────────
	//
	views := view.New(cfg.Forms.OverrideDir, view.CacheDefault)
	csrf := form.NewCSRF([]byte(cfg.Forms.CSRFKey))
	sessions := session.New([]byte(cfg.Session.HashKey), cfg.Session.MaxAge, cfg.HTTP.ForceHTTPS)

	reg := component.NewRegistry()
	reg.Register(account.New(account.Deps{
		Def:       loginDef,
		Validator: validator,
		Users:     account.NewUsers(db),
		Sessions:  sessions,
		CSRF:      csrf,
		View:      views,
	}))
	reg.Register(tracks.New(tracks.Deps{
		Def:       trackDef,
		Validator: validator,
		Drafts:    track.NewDrafts(cfg.Forms.DraftCapacity, cfg.Forms.DraftsPerUser, trackDef, validator, store, time.Now),
		Store:     store,
		Reader:    track.NewReader(store),
		CSRF:      csrf,
		View:      views,
		APIToken:  cfg.Store.APIToken,

		DraftTTL:   cfg.Forms.DraftIdleTTL,
		SweepEvery: cfg.Forms.SweepInterval,
	}))

	if err := database.Migrate(ctx, db, reg.Migrations()); err != nil {
		return err
	}
	if err := reg.InitAll(ctx); err != nil {
		return err
	}

	//
	// ── 5.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestLog(logOut))
	r.Use(middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS))
	r.Use(middleware.Security(cfg.HTTP.ForceHTTPS))
	r.Use(requestinfo.Enrich)
	r.Use(sessions.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	reg.Mount(r)

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	return server.Run(ctx, server.New(cfg.HTTP.ListenAddr, r), cfg.HTTP.ShutdownTimeout)
}

// lookupDef fetches id and checks its rule references.
func lookupDef(defs *form.Registry, v *form.Validator, id string) (*form.FormDef, error) {
	def, ok := defs.Get(id)
	if !ok {
		return nil, fmt.Errorf("form definition %q not found", id)
	}
	if err := v.Check(def); err != nil {
		return nil, err
	}
	return def, nil
}
