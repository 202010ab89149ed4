package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	// Daily analysis quota per client fingerprint
	DailyAnalysisLimit int `envconfig:"DAILY_ANALYSIS_LIMIT" default:"3"`

	// External service credentials. Each key may be left empty and resolved
	// from Secret Manager instead (see the *_SECRET_NAME variables).
	VisionAPIKey   string `envconfig:"VISION_API_KEY"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY"`
	SearchEngineID string `envconfig:"SEARCH_ENGINE_ID"`

	VisionAPIKeySecretName string `envconfig:"VISION_API_KEY_SECRET_NAME"`
	GeminiAPIKeySecretName string `envconfig:"GEMINI_API_KEY_SECRET_NAME"`
	SearchAPIKeySecretName string `envconfig:"SEARCH_API_KEY_SECRET_NAME"`

	// Enrichment (Gemini) settings
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Market data (CoinGecko) settings
	CoinGeckoBaseURL string `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com/api/v3"`

	// Per-client request timeouts, in seconds
	RecognitionTimeoutSec int `envconfig:"RECOGNITION_TIMEOUT_SEC" default:"15"`
	EnrichmentTimeoutSec  int `envconfig:"ENRICHMENT_TIMEOUT_SEC" default:"20"`
	SearchTimeoutSec      int `envconfig:"SEARCH_TIMEOUT_SEC" default:"10"`
	MarketTimeoutSec      int `envconfig:"MARKET_TIMEOUT_SEC" default:"10"`

	// Analysis event publishing (disabled when GCP_PROJECT_ID is empty)
	GCPProjectID        string `envconfig:"GCP_PROJECT_ID"`
	AnalysisEventsTopic string `envconfig:"ANALYSIS_EVENTS_TOPIC" default:"analysis_events"`

	// Image archive settings (disabled when S3_BUCKET is empty)
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
