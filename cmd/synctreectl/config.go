package main

import (
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the shape of the teacher's cmd/geth toml.Config.
// MissingField returns nil, so keys in the config file that match no
// Config field are ignored rather than reported.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return strings.ToLower(field)
	},
	MissingField: func(rt reflect.Type, field string) error {
		return nil
	},
}

// Config holds synctreectl's tunables, loaded from a TOML file the way
// geth loads config.toml.
type Config struct {
	Verbosity int
	Addr      string

	Retry struct {
		MaxAttempts int
		BackoffMS   int
	}
}

func defaultConfig() Config {
	cfg := Config{Verbosity: 3, Addr: "memory://local"}
	cfg.Retry.MaxAttempts = 25
	cfg.Retry.BackoffMS = 50
	return cfg
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return tomlSettings.NewDecoder(f).Decode(cfg)
}
