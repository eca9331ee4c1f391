package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// runConfig holds the settings of the run command
type runConfig struct {
	Name           string
	LogLevel       zerolog.Level
	LogPretty      bool
	ReplayDeferred bool
	Strict         bool
}

type fileConfig struct {
	Name           string `toml:"name"`
	LogLevel       string `toml:"log_level"`
	LogPretty      bool   `toml:"log_pretty"`
	ReplayDeferred bool   `toml:"replay_deferred"`
	Strict         bool   `toml:"strict"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		LogLevel:       zerolog.InfoLevel,
		ReplayDeferred: true,
	}
}

// loadRunConfig overlays the keys present in the TOML file at path on the
// defaults. An empty path returns the defaults.
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, errors.Wrapf(err, "config load failed (%s)", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runConfig{}, errors.Newf("config load failed (%s): unknown key %s", path, undecoded[0])
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("log_level") {
		level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return runConfig{}, errors.Wrapf(err, "parse log_level")
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("log_pretty") {
		cfg.LogPretty = raw.LogPretty
	}
	if meta.IsDefined("replay_deferred") {
		cfg.ReplayDeferred = raw.ReplayDeferred
	}
	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	return cfg, nil
}
