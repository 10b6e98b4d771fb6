package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	APIConfig
	ChatConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// APIConfig describes the REST backend the session transport talks to.
type APIConfig interface {
	GetAPIURL() string
	GetLoginPath() string
	GetRefreshPath() string
	GetPublicPaths() PublicPaths
	GetRequestTimeout() time.Duration
}

// ChatConfig describes the realtime chat endpoint.
type ChatConfig interface {
	GetChatURL() string
	GetChatOrigin() string
	GetHistoryWait() time.Duration
}

// StoreConfig selects where the credential pair is persisted.
type StoreConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetStorePrefix() string
}

type mainConfig struct {
	EnvVars
	API
	Chat
	Store
}

// New loads the configuration from the environment.
func New() (Config, error) {
	c := mainConfig{}
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
