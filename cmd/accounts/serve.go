package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the accounts HTTP server",
		Long: `Start the accounts HTTP server, exposing the registration,
authentication, and password reset routes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *AppConfig) error {
	db, err := openDatabase(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := accounts.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	provider := accounts.NewAccountProvider(repo.Accounts())
	auther := accounts.NewAuthenticator(provider, cfg.Auth)

	httpAuth, err := accounts.NewHTTPAuthenticator(auther, cfg.Auth)
	if err != nil {
		return err
	}

	var mailer accounts.Mailer = accounts.NoopMailer{}
	if cfg.Mail.LogOnly {
		mailer = accounts.LogMailer{}
	}

	engine := django.New(cfg.Server.Views, ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	accounts.RegisterAccountRoutes(srv.Router().Group("/"),
		func(ac *accounts.AccountsController) *accounts.AccountsController {
			ac.Debug = cfg.Server.Debug
			ac.Repo = repo
			ac.Config = cfg.Auth
			ac.Auther = httpAuth
			ac.Mailer = mailer
			ac.BaseURL = cfg.Server.BaseURL
			return ac
		})

	srv.Serve(cfg.Server.Addr)

	fmt.Printf("accounts server listening on %s\n", cfg.Server.Addr)

	WaitExitSignal()

	return nil
}

// openDatabase opens the SQL store and makes sure the accounts table exists.
func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", dsn, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	createCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.NewCreateTable().
		Model((*accounts.Account)(nil)).
		IfNotExists().
		Exec(createCtx); err != nil {
		return nil, fmt.Errorf("create accounts table: %w", err)
	}

	return db, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
