package common

// Environment variable keys
const (
	EnvSymbols         = "SYMBOLS"
	EnvQuoteWsURL      = "QUOTE_WS_URL"
	EnvQuoteBaseURL    = "QUOTE_BASE_URL"
	EnvDataPath        = "DATA_PATH"
	EnvModelPath       = "MODEL_PATH"
	EnvListenPort      = "LISTEN_PORT"
	EnvMetricsPort     = "METRICS_PORT"
	EnvPingInterval    = "PING_INTERVAL"
	EnvRESTTimeout     = "REST_TIMEOUT"
	EnvClusters        = "CLUSTERS"
	EnvRandomState     = "RANDOM_STATE"
	EnvMinTrainSamples = "MIN_TRAIN_SAMPLES"
)

// Configuration defaults
const (
	DefaultQuoteWsURL      = "wss://quotes.example.com/stream"
	DefaultQuoteBaseURL    = "https://quotes.example.com"
	DefaultModelPath       = "per_venue_price_improvement_models.json"
	DefaultListenPort      = 8090
	DefaultMetricsPort     = 8080
	DefaultClusters        = 5
	DefaultRandomState     = 42
	DefaultMinTrainSamples = 25
)

// Validation constants
const (
	MinPort = 1024
	MaxPort = 65535

	MaxClusters = 100
)
