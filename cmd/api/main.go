package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo-backend/internal/analytics"
	"todo-backend/internal/auth"
	"todo-backend/internal/config"
	"todo-backend/internal/db"
	"todo-backend/internal/logging"
	"todo-backend/internal/mongostore"
	"todo-backend/internal/server"
	"todo-backend/internal/todos"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	configPath := flag.String("config", os.Getenv("TODO_CONFIG"), "optional TOML config file")
	issueToken := flag.Bool("issue-token", false, "print a bearer token for AUTH_SECRET and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return err
	}

	if *issueToken {
		if cfg.AuthSecret == "" {
			return errors.New("AUTH_SECRET is not set")
		}
		tok, err := auth.GenerateToken([]byte(cfg.AuthSecret), "owner", *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := todos.NewHandler(todos.NewService(store), analytics.New(logger), logger)
	if err != nil {
		return fmt.Errorf("handler: %w", err)
	}

	srv := server.New(handler, server.Options{
		Addr:        cfg.Addr(),
		FrontendURL: cfg.FrontendURL,
		AuthSecret:  cfg.AuthSecret,
		MaxConns:    cfg.MaxConns,
		Logger:      logger,
	})
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set, /api routes are open")
	}
	return srv.ListenAndServe(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (todos.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		database, err := db.Connect(ctx, cfg.ConnString())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx, database); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("connected", "driver", cfg.StoreDriver, "host", cfg.DBHost, "db", cfg.DBName)
		return db.NewTodoStore(database), func() { database.Close() }, nil

	case config.DriverMongo:
		store, client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		logger.Info("connected", "driver", cfg.StoreDriver, "db", cfg.MongoDatabase)
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, todos are lost on exit")
		return todos.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
