package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSignup/internal/awsconf"
	"github.com/MrEthical07/goSignup/notify/smtp"
)

// serverConfig holds the process settings. Engine settings are read
// separately by goSignup.ConfigFromEnv.
type serverConfig struct {
	Addr            string
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Materializer is one of memory, postgres or dynamo.
	Materializer string
	PostgresDSN  string
	DynamoTable  string

	// Deliverer is one of log, smtp or sns. SMS always goes through SNS
	// unless the deliverer is log.
	Deliverer string
	SMTP      smtp.Config
	AWS       awsconf.Options

	AllowedOrigins []string
	TrustProxy     bool
	TenantHeader   bool
	Audit          bool
}

func loadServerConfig() serverConfig {
	return serverConfig{
		Addr:            getEnv("SIGNUP_HTTP_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("SIGNUP_HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),

		RedisAddr:     getEnv("SIGNUP_REDIS_ADDR", ""),
		RedisPassword: getEnv("SIGNUP_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SIGNUP_REDIS_DB", 0),

		Materializer: strings.ToLower(getEnv("SIGNUP_MATERIALIZER", "memory")),
		PostgresDSN:  getEnv("SIGNUP_POSTGRES_DSN", ""),
		DynamoTable:  getEnv("SIGNUP_DYNAMO_TABLE", "signup_accounts"),

		Deliverer: strings.ToLower(getEnv("SIGNUP_DELIVERER", "log")),
		SMTP: smtp.Config{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			From:     getEnv("SMTP_FROM", ""),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		AWS: awsconf.Options{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
		},

		AllowedOrigins: splitList(getEnv("SIGNUP_CORS_ORIGINS", "*")),
		TrustProxy:     getEnvBool("SIGNUP_TRUST_PROXY", false),
		TenantHeader:   getEnvBool("SIGNUP_TENANT_HEADER", false),
		Audit:          getEnvBool("SIGNUP_AUDIT", false),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
