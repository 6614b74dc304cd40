package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	JWTSecret           string
	JWTAccessTTLMinutes int

	// request shaping
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
	AuthRPS        float64
	AuthBurst      int
	AllowedOrigins []string

	// event policy
	ConflictWindow time.Duration
	MinLeadTime    time.Duration
	MaxLeadTime    time.Duration
	MinCapacity    int
	MaxCapacity    int

	// optional redis cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)

	return Config{
		Env:   env,
		Port:  port,
		DBURL: buildDBURL(),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),

		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		AuthRPS:        getEnvFloat("AUTH_RATE_LIMIT_RPS", 1),
		AuthBurst:      getEnvInt("AUTH_RATE_LIMIT_BURST", 5),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		ConflictWindow: getEnvDuration("EVENT_CONFLICT_WINDOW", time.Hour),
		MinLeadTime:    getEnvDuration("EVENT_MIN_LEAD_TIME", time.Hour),
		MaxLeadTime:    getEnvDuration("EVENT_MAX_LEAD_TIME", 365*24*time.Hour),
		MinCapacity:    getEnvInt("EVENT_MIN_CAPACITY", 1),
		MaxCapacity:    getEnvInt("EVENT_MAX_CAPACITY", 10000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "gatherly")
	pass := getEnv("DB_PASSWORD", "gatherly")
	name := getEnv("DB_NAME", "gatherly")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.ParseFloat(v, 64)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)

	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return fallback
	}

	return out
}
