package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config keys and their defaults. Every key is also settable through the
// environment with the FLOCKSYNC_SERVER_ prefix, dots become underscores.
const (
	cfgKeyListen   = "listen"
	cfgKeyDBPath   = "db_path"
	cfgKeyLogPath  = "aol_path"
	cfgKeyLogLevel = "log_level"

	defaultListen  = "127.0.0.1:4676"
	defaultDBPath  = "flocksync.sqlite"
	defaultLogPath = "flocksync.aol"
)

func loadConfig(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetDefault(cfgKeyDBPath, defaultDBPath)
	v.SetDefault(cfgKeyLogPath, defaultLogPath)
	v.SetDefault(cfgKeyLogLevel, "info")

	v.SetEnvPrefix("FLOCKSYNC_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("flocksync-server")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Running on defaults and environment alone is fine.
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
