package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds moatbusd's full runtime configuration, loadable from a
// YAML file and overridable by flags, the way doismellburning-samoyed's
// host binaries layer pflag over a yaml.v3 config struct instead of the
// teacher's bare flag package (the teacher targets a microcontroller
// with no config file at all).
type Config struct {
	NWires  int    `yaml:"nwires"`
	Address uint8  `yaml:"address"`

	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	FakeSocket string `yaml:"fake_socket"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	MQTTBroker string `yaml:"mqtt_broker"`

	LogLevel string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		NWires:   2,
		Address:  1,
		Baud:     115200,
		LogLevel: "info",
	}
}

// loadConfig reads the optional YAML file at path over a defaultConfig,
// then lets flags win, matching the layering order
// doismellburning-samoyed's config loaders use.
func loadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("moatbusd: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("moatbusd: parse config %s: %w", path, err)
		}
	}

	if flags.Changed("device") {
		cfg.Device, _ = flags.GetString("device")
	}
	if flags.Changed("baud") {
		cfg.Baud, _ = flags.GetInt("baud")
	}
	if flags.Changed("nwires") {
		cfg.NWires, _ = flags.GetInt("nwires")
	}
	if flags.Changed("address") {
		addr, _ := flags.GetUint8("address")
		cfg.Address = addr
	}
	if flags.Changed("fake-socket") {
		cfg.FakeSocket, _ = flags.GetString("fake-socket")
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("mqtt-broker") {
		cfg.MQTTBroker, _ = flags.GetString("mqtt-broker")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return cfg, nil
}
