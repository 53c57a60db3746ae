package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/accounts/dynamo"
	"github.com/MrEthical07/goSignup/accounts/memory"
	"github.com/MrEthical07/goSignup/accounts/postgres"
	"github.com/MrEthical07/goSignup/notify"
	"github.com/MrEthical07/goSignup/notify/smtp"
	"github.com/MrEthical07/goSignup/notify/sns"
)

// openRedis connects to SIGNUP_REDIS_ADDR, or starts an in-process
// miniredis when it is empty. The returned func releases both.
func openRedis(ctx context.Context, cfg serverConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("SIGNUP_REDIS_ADDR not set, using in-process miniredis", slog.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	closeAll := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	if err := client.Ping(ctx).Err(); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, closeAll, nil
}

// accountStore is what the engine needs from a materializer backend.
type accountStore interface {
	goSignup.AccountMaterializer
	goSignup.AccountReconciler
}

func openAccounts(ctx context.Context, cfg serverConfig, logger *slog.Logger) (accountStore, func(), error) {
	switch cfg.Materializer {
	case "memory", "":
		logger.Warn("accounts are kept in memory and lost on restart")
		return memory.New(), func() {}, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("SIGNUP_POSTGRES_DSN is required for the postgres materializer")
		}
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.New(db), func() { _ = db.Close() }, nil

	case "dynamo":
		store, err := dynamo.NewFromOptions(ctx, cfg.AWS, cfg.DynamoTable)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown materializer %q", cfg.Materializer)
	}
}

func buildDeliverer(ctx context.Context, cfg serverConfig, logger *slog.Logger) (notify.Deliverer, error) {
	switch cfg.Deliverer {
	case "log", "":
		logger.Warn("notifications are written to the log, codes included")
		d := notify.LogDeliverer{Logger: logger}
		return notify.Multi{notify.ChannelEmail: d, notify.ChannelSMS: d}, nil

	case "smtp", "sns":
		routes := notify.Multi{}
		if cfg.SMTP.Host != "" {
			routes[notify.ChannelEmail] = smtp.NewMailer(cfg.SMTP)
		}
		sender, err := sns.NewFromOptions(ctx, cfg.AWS)
		if err != nil {
			if cfg.Deliverer == "sns" {
				return nil, err
			}
			logger.Warn("SMS delivery unavailable", slog.Any("error", err))
		} else {
			routes[notify.ChannelSMS] = sender
		}
		if routes[notify.ChannelEmail] == nil {
			return nil, fmt.Errorf("SMTP_HOST is required for email delivery")
		}
		return routes, nil

	default:
		return nil, fmt.Errorf("unknown deliverer %q", cfg.Deliverer)
	}
}
