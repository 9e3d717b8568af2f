package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	agentapi "github.com/iudanet/flocksync/internal/agent/api"
)

// Config keys and their defaults. Every key is also settable through the
// environment with the FLOCKSYNC_AGENT_ prefix.
const (
	cfgKeyServerURL       = "server_url"
	cfgKeyServiceURL      = "service_url"
	cfgKeyDataDir         = "data_dir"
	cfgKeyStateDB         = "state_db"
	cfgKeyManagerInterval = "manager_interval"
	cfgKeyWorkerInterval  = "worker_interval"
	cfgKeyBatchSize       = "batch_size"
	cfgKeyLogLevel        = "log_level"
	cfgKeyLocalUsername   = "local_username"
	cfgKeyLocalPassword   = "local_password"

	defaultServerURL  = "http://127.0.0.1:4676"
	defaultServiceURL = "http://127.0.0.1:5679"
	defaultDataDir    = "instances"
	defaultStateDB    = "flocksync-agent.db"
)

func loadConfig(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyServerURL, defaultServerURL)
	v.SetDefault(cfgKeyServiceURL, defaultServiceURL)
	v.SetDefault(cfgKeyDataDir, defaultDataDir)
	v.SetDefault(cfgKeyStateDB, defaultStateDB)
	v.SetDefault(cfgKeyManagerInterval, "2s")
	v.SetDefault(cfgKeyWorkerInterval, "5s")
	v.SetDefault(cfgKeyBatchSize, 200)
	v.SetDefault(cfgKeyLogLevel, "info")

	v.SetEnvPrefix("FLOCKSYNC_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("flocksync-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newAPIClient builds the coordination service client from config.
func newAPIClient(configFile string) (*agentapi.Client, *viper.Viper, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	return agentapi.NewClient(cfg.GetString(cfgKeyServerURL)), cfg, nil
}
