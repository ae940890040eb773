package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures all runtime options for the correction pipeline.
type Config struct {
	DSN        string           `yaml:"dsn"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Validator  ValidatorConfig  `yaml:"validator"`
	Correction CorrectionConfig `yaml:"correction"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Reports    ReportConfig     `yaml:"reports"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    Logging          `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ExecutionConfig bounds query execution against the target database.
type ExecutionConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	RowLimit       int `yaml:"row_limit"`
	PoolSize       int `yaml:"pool_size"`
	MaxOverflow    int `yaml:"max_overflow"`
	RecycleSeconds int `yaml:"recycle_seconds"`
}

// ValidatorConfig tunes confidence scoring for candidate queries.
type ValidatorConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	StructuralPenalty   float64 `yaml:"structural_penalty"`
	ExistencePenalty    float64 `yaml:"existence_penalty"`
	PlausibilityPenalty float64 `yaml:"plausibility_penalty"`
}

// CorrectionConfig bounds the retry loop.
type CorrectionConfig struct {
	MaxAttempts   int  `yaml:"max_attempts"`
	RepairColumns bool `yaml:"repair_columns"`
}

// GeneratorConfig configures the SQL generation backend.
type GeneratorConfig struct {
	Model           string  `yaml:"model"`
	APIKey          string  `yaml:"api_key"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// ResolveAPIKey returns the inline key if set, otherwise the value of
// the configured environment variable.
func (g GeneratorConfig) ResolveAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	return os.Getenv(g.APIKeyEnv)
}

// ReportConfig controls per-session report output.
type ReportConfig struct {
	Enabled            bool   `yaml:"enabled"`
	OutputDir          string `yaml:"output_dir"`
	Archive            bool   `yaml:"archive"`
	UploadFailuresOnly bool   `yaml:"upload_failures_only"`
	MaxRowsPerAttempt  int    `yaml:"max_rows_per_attempt"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose               bool              `yaml:"verbose"`
	ReportIntervalSeconds int               `yaml:"report_interval_seconds"`
	Metrics               MetricsThresholds `yaml:"metrics"`
}

// MetricsThresholds defines alert thresholds for periodic stats logging.
type MetricsThresholds struct {
	SuccessMinRate   float64 `yaml:"success_min_rate"`
	FinalFailMaxRate float64 `yaml:"final_fail_max_rate"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

const (
	executionTimeoutSecondsDefault = 30
	executionRowLimitDefault       = 1000
	executionPoolSizeDefault       = 5
	executionMaxOverflowDefault    = 10
	executionRecycleSecondsDefault = 3600

	validatorThresholdDefault           = 0.7
	validatorStructuralPenaltyDefault   = 0.6
	validatorExistencePenaltyDefault    = 0.4
	validatorPlausibilityPenaltyDefault = 0.2

	correctionMaxAttemptsDefault = 3

	generatorModelDefault           = "gemini-2.0-flash"
	generatorAPIKeyEnvDefault       = "GEMINI_API_KEY"
	generatorTemperatureDefault     = 0.1
	generatorMaxOutputTokensDefault = 1024
	generatorTimeoutSecondsDefault  = 60
)

func normalizeConfig(cfg *Config) {
	if cfg.Execution.TimeoutSeconds <= 0 {
		cfg.Execution.TimeoutSeconds = executionTimeoutSecondsDefault
	}
	if cfg.Execution.RowLimit <= 0 {
		cfg.Execution.RowLimit = executionRowLimitDefault
	}
	if cfg.Execution.PoolSize <= 0 {
		cfg.Execution.PoolSize = executionPoolSizeDefault
	}
	if cfg.Execution.MaxOverflow < 0 {
		cfg.Execution.MaxOverflow = executionMaxOverflowDefault
	}
	if cfg.Execution.RecycleSeconds <= 0 {
		cfg.Execution.RecycleSeconds = executionRecycleSecondsDefault
	}
	if cfg.Validator.ConfidenceThreshold <= 0 {
		cfg.Validator.ConfidenceThreshold = validatorThresholdDefault
	}
	if cfg.Validator.ConfidenceThreshold > 1 {
		cfg.Validator.ConfidenceThreshold = 1
	}
	if cfg.Validator.StructuralPenalty <= 0 {
		cfg.Validator.StructuralPenalty = validatorStructuralPenaltyDefault
	}
	if cfg.Validator.ExistencePenalty <= 0 {
		cfg.Validator.ExistencePenalty = validatorExistencePenaltyDefault
	}
	if cfg.Validator.PlausibilityPenalty <= 0 {
		cfg.Validator.PlausibilityPenalty = validatorPlausibilityPenaltyDefault
	}
	if cfg.Correction.MaxAttempts <= 0 {
		cfg.Correction.MaxAttempts = correctionMaxAttemptsDefault
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = generatorModelDefault
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = generatorAPIKeyEnvDefault
	}
	if cfg.Generator.Temperature <= 0 {
		cfg.Generator.Temperature = generatorTemperatureDefault
	}
	if cfg.Generator.MaxOutputTokens <= 0 {
		cfg.Generator.MaxOutputTokens = generatorMaxOutputTokensDefault
	}
	if cfg.Generator.TimeoutSeconds <= 0 {
		cfg.Generator.TimeoutSeconds = generatorTimeoutSecondsDefault
	}
	if cfg.Reports.OutputDir == "" {
		cfg.Reports.OutputDir = ".sessions"
	}
	if cfg.Reports.MaxRowsPerAttempt <= 0 {
		cfg.Reports.MaxRowsPerAttempt = 20
	}
	if cfg.Logging.ReportIntervalSeconds <= 0 {
		cfg.Logging.ReportIntervalSeconds = 30
	}
	if cfg.Logging.Metrics.SuccessMinRate <= 0 {
		cfg.Logging.Metrics.SuccessMinRate = 0.5
	}
	if cfg.Logging.Metrics.FinalFailMaxRate <= 0 {
		cfg.Logging.Metrics.FinalFailMaxRate = 0.25
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
}

func defaultConfig() Config {
	return Config{
		DSN: "root:@tcp(127.0.0.1:3306)/shop",
		Execution: ExecutionConfig{
			TimeoutSeconds: executionTimeoutSecondsDefault,
			RowLimit:       executionRowLimitDefault,
			PoolSize:       executionPoolSizeDefault,
			MaxOverflow:    executionMaxOverflowDefault,
			RecycleSeconds: executionRecycleSecondsDefault,
		},
		Validator: ValidatorConfig{
			ConfidenceThreshold: validatorThresholdDefault,
			StructuralPenalty:   validatorStructuralPenaltyDefault,
			ExistencePenalty:    validatorExistencePenaltyDefault,
			PlausibilityPenalty: validatorPlausibilityPenaltyDefault,
		},
		Correction: CorrectionConfig{
			MaxAttempts: correctionMaxAttemptsDefault,
		},
		Generator: GeneratorConfig{
			Model:           generatorModelDefault,
			APIKeyEnv:       generatorAPIKeyEnvDefault,
			Temperature:     generatorTemperatureDefault,
			MaxOutputTokens: generatorMaxOutputTokensDefault,
			TimeoutSeconds:  generatorTimeoutSecondsDefault,
		},
		Reports: ReportConfig{
			Enabled:            true,
			OutputDir:          ".sessions",
			Archive:            true,
			UploadFailuresOnly: true,
			MaxRowsPerAttempt:  20,
		},
		Logging: Logging{
			ReportIntervalSeconds: 30,
			Metrics: MetricsThresholds{
				SuccessMinRate:   0.5,
				FinalFailMaxRate: 0.25,
			},
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
	}
}
