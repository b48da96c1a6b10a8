package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the looptile configuration file
// (~/.config/looptile/config.yaml). Numeric fields are pointers so an
// absent key is distinguishable from zero.
type Config struct {
	Device string `yaml:"device"`

	Candidates *int64 `yaml:"candidates"`
	Rounds     *int64 `yaml:"rounds"`
	Warmup     *int64 `yaml:"warmup"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "looptile", "config.yaml")
}

// applyCommonConfig fills log and device settings from the config file
// when the matching flag was not set on the command line.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.Device != "" && !c.IsSet("device") {
		deviceName = cfg.Device
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyTuneConfig fills tuning knobs from the config file.
func applyTuneConfig(c *cli.Command, cfg Config, candidates, rounds, warmup *int64) {
	applyCommonConfig(c, cfg)
	if cfg.Candidates != nil && !c.IsSet("candidates") {
		*candidates = *cfg.Candidates
	}
	if cfg.Rounds != nil && !c.IsSet("rounds") {
		*rounds = *cfg.Rounds
	}
	if cfg.Warmup != nil && !c.IsSet("warmup") {
		*warmup = *cfg.Warmup
	}
}

// applyServeConfig fills the listen address from the config file.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. A missing or unreadable file
// yields a zero Config.
func LoadConfig() Config {
	return loadConfigFile(configPath())
}

func loadConfigFile(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
