package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"venue-router/internal/common"
)

type Settings struct {
	Symbols         []string
	QuoteWsURL      string
	QuoteBaseURL    string
	Ping            time.Duration
	DataPath        string
	ModelPath       string
	ListenPort      int
	MetricsPort     int
	RESTTimeout     time.Duration
	Clusters        int
	RandomState     int64
	MinTrainSamples int
}

type ConfigFile struct {
	MarketData struct {
		Symbols      []string `yaml:"symbols"`
		WsURL        string   `yaml:"wsURL"`
		BaseURL      string   `yaml:"baseURL"`
		PingInterval string   `yaml:"pingInterval"`
	} `yaml:"marketData"`

	Router struct {
		ModelPath  string `yaml:"modelPath"`
		ListenPort int    `yaml:"listenPort"`
	} `yaml:"router"`

	Training struct {
		Clusters        int   `yaml:"clusters"`
		RandomState     int64 `yaml:"randomState"`
		MinTrainSamples int   `yaml:"minTrainSamples"`
	} `yaml:"training"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	ping, err := time.ParseDuration(config.MarketData.PingInterval)
	if err != nil {
		ping = 15 * time.Second
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 5 * time.Second
	}

	settings := Settings{
		Symbols:         getSymbolsFromEnvOrConfig(config.MarketData.Symbols),
		QuoteWsURL:      getEnvOrDefault(common.EnvQuoteWsURL, config.MarketData.WsURL),
		QuoteBaseURL:    getEnvOrDefault(common.EnvQuoteBaseURL, config.MarketData.BaseURL),
		Ping:            ping,
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, config.Router.ModelPath),
		ListenPort:      getIntFromEnvOrConfig(common.EnvListenPort, config.Router.ListenPort, common.DefaultListenPort),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		RESTTimeout:     restTimeout,
		Clusters:        getIntFromEnvOrConfig(common.EnvClusters, config.Training.Clusters, common.DefaultClusters),
		RandomState:     getInt64FromEnvOrConfig(common.EnvRandomState, config.Training.RandomState, common.DefaultRandomState),
		MinTrainSamples: getIntFromEnvOrConfig(common.EnvMinTrainSamples, config.Training.MinTrainSamples, common.DefaultMinTrainSamples),
	}

	if settings.ModelPath == "" {
		settings.ModelPath = common.DefaultModelPath
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Symbols:         splitOrDefault(os.Getenv(common.EnvSymbols), nil),
		QuoteWsURL:      getEnvOrDefault(common.EnvQuoteWsURL, common.DefaultQuoteWsURL),
		QuoteBaseURL:    getEnvOrDefault(common.EnvQuoteBaseURL, common.DefaultQuoteBaseURL),
		Ping:            getDurationOrDefault(common.EnvPingInterval, 15*time.Second),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ListenPort:      getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		RESTTimeout:     getDurationOrDefault(common.EnvRESTTimeout, 5*time.Second),
		Clusters:        getIntOrDefault(common.EnvClusters, common.DefaultClusters),
		RandomState:     getInt64OrDefault(common.EnvRandomState, common.DefaultRandomState),
		MinTrainSamples: getIntOrDefault(common.EnvMinTrainSamples, common.DefaultMinTrainSamples),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

func getSymbolsFromEnvOrConfig(configSymbols []string) []string {
	if env := os.Getenv(common.EnvSymbols); env != "" {
		return strings.Split(env, ",")
	}
	return configSymbols
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs validation of configuration values.
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}

	// The quote feed is optional; when symbols are configured the URLs are not.
	if len(settings.Symbols) > 0 {
		if settings.QuoteWsURL == "" {
			return fmt.Errorf("quote WebSocket URL is required when symbols are configured")
		}
		if settings.Ping < time.Second || settings.Ping > 5*time.Minute {
			return fmt.Errorf("ping interval must be between 1s and 5m, got %v", settings.Ping)
		}
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	if settings.ListenPort < common.MinPort || settings.ListenPort > common.MaxPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ListenPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ListenPort == settings.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", settings.ListenPort)
	}

	if settings.Clusters <= 0 || settings.Clusters > common.MaxClusters {
		return fmt.Errorf("clusters must be between 1 and %d, got %d", common.MaxClusters, settings.Clusters)
	}
	if settings.MinTrainSamples <= 0 {
		return fmt.Errorf("minimum training samples must be positive, got %d", settings.MinTrainSamples)
	}

	return nil
}
