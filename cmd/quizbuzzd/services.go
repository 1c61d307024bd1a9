package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/gateway"
	"github.com/kunpitech/quizbuzz/internal/questions"
	"github.com/kunpitech/quizbuzz/internal/store"
)

type Services struct {
	Store   store.Store
	Bank    *questions.Bank
	Gateway *gateway.Gateway

	closers []func()
}

func (s *Services) Close() {
	for _, closeFn := range s.closers {
		closeFn()
	}
}

func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	services := &Services{}

	st, err := setupStore(ctx, cfg, services)
	if err != nil {
		return nil, err
	}
	services.Store = st

	bank, err := setupQuestionBank(ctx, cfg, services)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Bank = bank

	services.Gateway = gateway.New(
		st,
		bank,
		clockwork.NewRealClock(),
		cfg.Room,
		gateway.DefaultConnectionConfig(),
	)
	return services, nil
}

func setupStore(ctx context.Context, cfg Config, services *Services) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Info().Msg("using in-memory store")
		return store.NewMemoryStore(), nil
	case "nats":
		natsStore, err := store.NewNATSStore(ctx, cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to set up NATS store: %w", err)
		}
		services.closers = append(services.closers, natsStore.Close)
		return natsStore, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func setupQuestionBank(ctx context.Context, cfg Config, services *Services) (*questions.Bank, error) {
	seed := time.Now().UnixNano()

	switch cfg.QuestionSource {
	case "yaml":
		bank, err := questions.LoadFile(cfg.QuestionFile, seed)
		if err != nil {
			return nil, fmt.Errorf("failed to load question file: %w", err)
		}
		log.Info().Str("file", cfg.QuestionFile).Int("count", bank.Len()).Msg("loaded question catalogue")
		return bank, nil

	case "postgres":
		database, err := setupDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, func() { database.Close() })
		repo := questions.NewRepository(database)
		bank, err := repo.LoadBank(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions from database: %w", err)
		}
		return bank, nil

	default:
		return nil, fmt.Errorf("unknown question source %q", cfg.QuestionSource)
	}
}

func setupDatabase(dbConfig DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Database, dbConfig.SSLMode)

	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("connected to database")
	return database, nil
}
