// cmd/ingenius/main.go
//
// Ingenius – operator CLI.
//
// Commands
// --------
//
//	ingenius user add --email jane@example.com --password …
//	ingenius migrate
//	ingenius forms check
//
// Every command reads the same configuration as cmd/web (conf/global.yaml,
// INGENIUS_* overrides, `vault:` references) and logs to the same daily
// file, teed to the console.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/yanizio/ingenius/components/account"
	"github.com/yanizio/ingenius/components/tracks"
	"github.com/yanizio/ingenius/internal/config"
	"github.com/yanizio/ingenius/internal/database"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/logger"
	"github.com/yanizio/ingenius/internal/track"
	"github.com/yanizio/ingenius/internal/vault"
)

func main() {
	logOut, err := logger.New(logger.Options{Root: config.RootDir(), Name: "cli", Tee: true})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	app := &cli.Command{
		Name:  "ingenius",
		Usage: "Operate an Ingenius deployment",
		Commands: []*cli.Command{
			userCommand(logOut),
			{
				Name:   "migrate",
				Usage:  "Create the users and tracks tables",
				Action: withDB(logOut, migrate),
			},
			{
				Name:  "forms",
				Usage: "Form definition tools",
				Commands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "Load every definition and verify its rule references",
						Action: checkForms(logOut),
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logOut.Errorw("command failed", "err", err)
		_ = logOut.Sync()
		os.Exit(1)
	}
}

func userCommand(logOut *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage sign-in accounts",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Sign-in email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    fmt.Sprintf("Password, at least %d characters", account.MinPasswordLength),
						Sources:  cli.EnvVars("INGENIUS_NEW_USER_PASSWORD"),
						Required: true,
					},
				},
				Action: withDB(logOut, func(ctx context.Context, cmd *cli.Command, db *sqlx.DB) error {
					id, err := account.NewUsers(db).Add(ctx, cmd.String("email"), cmd.String("password"))
					if err != nil {
						return err
					}
					logOut.Infow("user added", "id", id, "email", cmd.String("email"))
					return nil
				}),
			},
		},
	}
}

func migrate(ctx context.Context, _ *cli.Command, db *sqlx.DB) error {
	stmts := append(append([]string(nil), account.Schema...), track.Schema...)
	if err := database.Migrate(ctx, db, stmts); err != nil {
		return err
	}
	zap.S().Infow("migrations applied", "statements", len(stmts))
	return nil
}

func loadConfig(ctx context.Context, logOut *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.Load(ctx, vault.Opener(logOut.Named("vault")))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger.SetLevel(cfg.Log.Level)
}

// withDB loads configuration, opens the database, and hands it to fn.
func withDB(logOut *zap.SugaredLogger, fn func(context.Context, *cli.Command, *sqlx.DB) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(ctx, logOut)
		if err != nil {
			return err
		}
		db, err := database.OpenWithOptions(ctx, cfg.DSN(), database.Options{
			MaxOpen: 2,
			MaxIdle: 1,
			Retries: cfg.Database.Retries,
			Backoff: time.Second,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(ctx, cmd, db)
	}
}

func checkForms(logOut *zap.SugaredLogger) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		cfg, err := loadConfig(ctx, logOut)
		if err != nil {
			return err
		}

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
		v := form.NewValidator(rules)
		for _, id := range []string{tracks.FormID, account.FormID} {
			def, ok := defs.Get(id)
			if !ok {
				return fmt.Errorf("form definition %q not found", id)
			}
			if err := v.Check(def); err != nil {
				return err
			}
			logOut.Infow("form ok", "id", id, "fields", len(def.Fields))
		}
		return nil
	}
}
