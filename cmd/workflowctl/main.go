// cmd/workflowctl/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"admissions-workflow/internal/common/config"
	"admissions-workflow/internal/common/database"
	"admissions-workflow/internal/common/logger"
)

// env holds what the commands work against. Commands receive it through an
// opener so tests can substitute sqlmock and miniredis.
type env struct {
	cfg   *config.Config
	db    *sql.DB
	redis redis.Cmdable
	log   logger.Logger
	out   io.Writer
	close func()
}

type opener func(ctx context.Context) (*env, error)

func openFromConfig(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	rdb := database.NewRedis(cfg.Database.Redis)

	return &env{
		cfg:   cfg,
		db:    pg.DB,
		redis: rdb.Client,
		log:   logger.NewStructured(cfg.Logging.Level, "console", "stderr"),
		out:   os.Stdout,
		close: func() {
			rdb.Close()
			pg.Close()
		},
	}, nil
}

func main() {
	if err := newRootCmd(openFromConfig).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
