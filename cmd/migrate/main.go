package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/logger"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the storefront schema and seed catalog data",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.toml"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withMigrator(func(c *cli.Context, m *storage.Migrator) error {
					return m.Up()
				}),
			},
			{
				Name:  "down",
				Usage: "roll back all migrations",
				Action: withMigrator(func(c *cli.Context, m *storage.Migrator) error {
					return m.Down()
				}),
			},
			{
				Name:      "steps",
				Usage:     "apply n migrations, negative n rolls back",
				ArgsUsage: "<n>",
				Action: withMigrator(func(c *cli.Context, m *storage.Migrator) error {
					n, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("steps needs an integer argument: %w", err)
					}
					return m.Steps(n)
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: withMigrator(func(c *cli.Context, m *storage.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version=%d dirty=%t\n", v, dirty)
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "set the schema version without running migrations",
				ArgsUsage: "<version>",
				Action: withMigrator(func(c *cli.Context, m *storage.Migrator) error {
					v, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("force needs an integer argument: %w", err)
					}
					return m.Force(v)
				}),
			},
			{
				Name:  "seed",
				Usage: "create or replace a product in the configured stores",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "price", Value: "0"},
					&cli.IntFlag{Name: "stock", Required: true},
					&cli.StringFlag{Name: "target", Value: "all", Usage: "mysql, redis or all"},
				},
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:  c.String("log-level"),
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func withMigrator(fn func(*cli.Context, *storage.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, log, err := setup(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := sqlx.Open("mysql", cfg.MySQL.DSN())
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		m, err := storage.NewMigrator(db.DB, log)
		if err != nil {
			db.Close()
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("close migrator", zap.Error(err))
			}
		}()

		return fn(c, m)
	}
}

func seed(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	if c.Int("stock") < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	name := c.String("name")
	if name == "" {
		name = c.String("id")
	}
	p := domain.Product{ID: c.String("id"), Name: name, Price: price, Available: c.Int("stock")}

	target := c.String("target")
	if target != "all" && target != config.BackendMySQL && target != config.BackendRedis {
		return fmt.Errorf("unknown target %q", target)
	}

	if target == "all" || target == config.BackendMySQL {
		db, err := sqlx.Open("mysql", cfg.MySQL.DSN())
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		defer db.Close()
		if err := storage.NewMySQLInventory(db).UpsertProduct(c.Context, p); err != nil {
			return err
		}
		log.Info("seeded product in mysql", zap.String("product_id", p.ID), zap.Int("available", p.Available))
	}

	if target == "all" || target == config.BackendRedis {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := storage.NewRedisInventory(rdb).SetProduct(c.Context, p); err != nil {
			return err
		}
		log.Info("seeded product in redis", zap.String("product_id", p.ID), zap.Int("available", p.Available))
	}
	return nil
}
