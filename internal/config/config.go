package config

import (
	"os"
	"strconv"
)

type Config struct {
	Env           string
	Port          int
	DatabaseURL   string
	JWTSecret     string
	LogJSON       bool
	ExportsDir    string
	NotifyURL     string
	PublicBaseURL string
}

func Default() Config {
	return Config{
		Env:        "dev",
		Port:       5000,
		LogJSON:    true,
		ExportsDir: "./exports",
		NotifyURL:  "mock",
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("PHARM_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("PHARM_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("PHARM_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PHARM_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("PHARM_LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	if v := os.Getenv("PHARM_EXPORTS_DIR"); v != "" {
		c.ExportsDir = v
	}
	if v := os.Getenv("PHARM_NOTIFY_URL"); v != "" {
		c.NotifyURL = v
	}
	if v := os.Getenv("PHARM_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	return c
}
