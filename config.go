package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// config holds everything the server needs at boot. Values come from an
// optional TOML file, then environment variables on top of that.
type config struct {
	DBHost        string `toml:"db_host"`
	DBPort        string `toml:"db_port"`
	DBUser        string `toml:"db_user"`
	DBPassword    string `toml:"db_password"`
	DBName        string `toml:"db_name"`
	Port          string `toml:"port"`
	SessionSecret string `toml:"session_secret"`
	PublicDir     string `toml:"public_dir"`
	DemoMode      bool   `toml:"demo_mode"`
}

func defaultConfig() config {
	return config{
		DBHost:        "127.0.0.1",
		DBPort:        "3306",
		DBUser:        "citytracks",
		DBPassword:    "citytracks",
		DBName:        "citytracks",
		Port:          "3000",
		SessionSecret: "citytracks-dev-secret",
		PublicDir:     "./public",
		DemoMode:      false,
	}
}

func getEnv(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// loadConfig reads the config file named by CITYTRACKS_CONFIG (if set),
// then applies environment overrides.
func loadConfig() (config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CITYTRACKS_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("error decode config file %s: %w", path, err)
		}
	}

	cfg.DBHost = getEnv("CITYTRACKS_DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("CITYTRACKS_DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("CITYTRACKS_DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("CITYTRACKS_DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("CITYTRACKS_DB_NAME", cfg.DBName)
	cfg.Port = getEnv("CITYTRACKS_PORT", cfg.Port)
	cfg.SessionSecret = getEnv("CITYTRACKS_SESSION_SECRET", cfg.SessionSecret)
	cfg.PublicDir = getEnv("CITYTRACKS_PUBLIC_DIR", cfg.PublicDir)
	cfg.DemoMode = getEnvBool("CITYTRACKS_DEMO", cfg.DemoMode)

	return cfg, nil
}
