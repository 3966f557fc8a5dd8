package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Engine   EngineConfig   `mapstructure:"engine"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port" default:"8000"`
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EngineConfig holds the tunables of the availability and recommendation
// engine. Slot granularity and top-K are deliberately configuration rather
// than constants; product has not pinned them down yet.
type EngineConfig struct {
	SlotGranularity    time.Duration `mapstructure:"slot_granularity"`
	TopK               int           `mapstructure:"top_k"`
	FeedSyncTimeout    time.Duration `mapstructure:"feed_sync_timeout"`
	BitmapWriteRetries int           `mapstructure:"bitmap_write_retries"`
	AvailabilityTTL    time.Duration `mapstructure:"availability_ttl"`
	RecommendationTTL  time.Duration `mapstructure:"recommendation_ttl"`
	BusyIntervalTTL    time.Duration `mapstructure:"busy_interval_ttl"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultEngineConfig returns the engine defaults applied when the config
// file leaves the engine section out.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SlotGranularity:    30 * time.Minute,
		TopK:               10,
		FeedSyncTimeout:    10 * time.Second,
		BitmapWriteRetries: 3,
		AvailabilityTTL:    10 * time.Minute,
		RecommendationTTL:  30 * time.Minute,
		BusyIntervalTTL:    24 * time.Hour,
	}
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// If CONFIG_FILE environment variable is set, use it
	if envConfigFile := os.Getenv("CONFIG_FILE"); envConfigFile != "" {
		configPath = envConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		dir := filepath.Dir(configPath)
		file := filepath.Base(configPath)
		ext := filepath.Ext(file)
		name := strings.TrimSuffix(file, ext)

		v.AddConfigPath(dir)
		v.SetConfigName(name)
	} else {
		// Fallback to default locations
		_, filename, _, _ := runtime.Caller(0)
		pkgConfigDir := filepath.Dir(filename)
		projectRoot := filepath.Join(pkgConfigDir, "..", "..")

		v.AddConfigPath(pkgConfigDir)
		v.AddConfigPath(projectRoot)
		v.AddConfigPath(filepath.Join(projectRoot, "pkg", "config"))
		v.SetConfigName("config")
	}

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.slot_granularity", defaults.SlotGranularity)
	v.SetDefault("engine.top_k", defaults.TopK)
	v.SetDefault("engine.feed_sync_timeout", defaults.FeedSyncTimeout)
	v.SetDefault("engine.bitmap_write_retries", defaults.BitmapWriteRetries)
	v.SetDefault("engine.availability_ttl", defaults.AvailabilityTTL)
	v.SetDefault("engine.recommendation_ttl", defaults.RecommendationTTL)
	v.SetDefault("engine.busy_interval_ttl", defaults.BusyIntervalTTL)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("server.timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error loading config file: %v", err)
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envVars := map[string]string{
		"database.host":               "DB_HOST",
		"database.port":               "DB_PORT",
		"database.user":               "DB_USER",
		"database.password":           "DB_PASSWORD",
		"database.name":               "DB_NAME",
		"database.sslmode":            "DB_SSLMODE",
		"server.mode":                 "SERVER_MODE",
		"server.timeout":              "SERVER_TIMEOUT",
		"redis.host":                  "REDIS_HOST",
		"redis.port":                  "REDIS_PORT",
		"redis.password":              "REDIS_PASSWORD",
		"redis.db":                    "REDIS_DB",
		"engine.slot_granularity":     "ENGINE_SLOT_GRANULARITY",
		"engine.top_k":                "ENGINE_TOP_K",
		"engine.feed_sync_timeout":    "ENGINE_FEED_SYNC_TIMEOUT",
		"engine.bitmap_write_retries": "ENGINE_BITMAP_WRITE_RETRIES",
		"logging.level":               "LOG_LEVEL",
		"logging.format":              "LOG_FORMAT",
	}

	for configKey, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			// Handle special cases for type conversion
			switch envVar {
			case "DB_PORT", "REDIS_PORT", "REDIS_DB", "ENGINE_TOP_K", "ENGINE_BITMAP_WRITE_RETRIES":
				if intVal, err := strconv.Atoi(value); err == nil {
					v.Set(configKey, intVal)
				}
			case "SERVER_TIMEOUT", "ENGINE_SLOT_GRANULARITY", "ENGINE_FEED_SYNC_TIMEOUT":
				if d, err := time.ParseDuration(value); err == nil {
					v.Set(configKey, d)
				}
			default:
				v.Set(configKey, value)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	return &config, nil
}
