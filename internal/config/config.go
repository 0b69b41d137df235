// Package config loads the broker's configuration: defaults, overridden by
// an optional YAML file, then by the environment (including a .env file),
// then by CLI flags — the precedence order the teacher's cmd/tarsy/main.go
// and pkg/config/loader.go use, narrowed to the three settings §6
// "Configuration" actually names.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the broker's full runtime configuration.
type Config struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
	// Env selects zap's production or development encoder config; set via
	// EVENTBROKER_ENV=dev, defaults to production (§2 "AMBIENT STACK").
	Env string `yaml:"env"`
}

// Defaults matches §6: listen host 127.0.0.1, broker port 3000, data dir
// .data/streams/.
func Defaults() Config {
	return Config{
		Host:    "127.0.0.1",
		Port:    3000,
		DataDir: ".data/streams",
		Env:     "production",
	}
}

// Load builds a Config by layering, in increasing precedence: Defaults(),
// a YAML file at yamlPath (if it exists), the process environment
// (including a .env file at envPath, if present), then flags parsed from
// args.
func Load(yamlPath, envPath string, args []string) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		if err := applyYAML(&cfg, yamlPath); err != nil {
			return Config{}, err
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load .env: %w", err)
		}
	}
	applyEnv(&cfg)

	if err := applyFlags(&cfg, args); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EVENTBROKER_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("EVENTBROKER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Port)
	}
	if v := os.Getenv("EVENTBROKER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("EVENTBROKER_ENV"); v != "" {
		cfg.Env = v
	}
}

func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("eventbrokerd", flag.ContinueOnError)
	host := fs.String("host", cfg.Host, "listen host")
	port := fs.Int("port", cfg.Port, "listen port")
	dataDir := fs.String("data-dir", cfg.DataDir, "data directory (empty for in-memory storage)")
	env := fs.String("env", cfg.Env, "production or dev")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: parse flags: %w", err)
	}

	cfg.Host = *host
	cfg.Port = *port
	cfg.DataDir = *dataDir
	cfg.Env = *env
	return nil
}
