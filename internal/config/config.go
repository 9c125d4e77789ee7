package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/docassess/internal/evaluate"
	"github.com/dgallion1/docassess/internal/genext"
	"github.com/dgallion1/docassess/internal/loader"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	LogLevel string

	// Auth for the task entry point
	APIKey string

	// Job service
	EvalAPIBasePath   string
	JobServiceTimeout time.Duration

	// LLM gateway
	GenextBaseURL     string
	TenantID          string
	GenextAPIKey      string
	ClientID          string
	ClientSecret      string
	TokenURL          string
	OAuthScope        string
	CABundlePath      string
	CABundleURL       string
	PollingInterval   time.Duration
	EmbeddingInterval time.Duration
	MaxPolls          int
	GenextHTTPTimeout time.Duration

	// Evaluation
	EvalModel       string
	EvalTemperature float64
	EvalMaxTokens   int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Run state
	RunTTL      time.Duration
	WorkDir     string
	KeepWorkDir bool

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration from the environment, optionally layered over a
// config file. Environment variables win over the file.
func Load(file string) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8090")
	v.SetDefault("log_level", "info")
	v.SetDefault("docassess_api_key", "")

	v.SetDefault("eval_api_base_path", "")
	v.SetDefault("jobsvc_timeout", "60s")

	v.SetDefault("genext_base_url", "")
	v.SetDefault("tenant_id", "")
	v.SetDefault("genext_api_key", "")
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("token_url", "")
	v.SetDefault("oauth_scope", "machine2machine")
	v.SetDefault("ca_bundle_path", "")
	v.SetDefault("ca_bundle_url", "")
	v.SetDefault("polling_interval", "600ms")
	v.SetDefault("embedding_polling_interval", "1s")
	v.SetDefault("max_polls", 50)
	v.SetDefault("genext_http_timeout", "60s")

	v.SetDefault("eval_model", string(genext.ModelGPT4o))
	v.SetDefault("eval_temperature", 0.2)
	v.SetDefault("eval_max_tokens", 400)

	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)

	v.SetDefault("run_ttl", "1h")
	v.SetDefault("work_dir", "")
	v.SetDefault("keep_work_dir", false)

	v.SetDefault("pdf_fallback_pdftotext", true)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:     v.GetString("port"),
		LogLevel: v.GetString("log_level"),

		APIKey: v.GetString("docassess_api_key"),

		EvalAPIBasePath:   strings.TrimSuffix(v.GetString("eval_api_base_path"), "/"),
		JobServiceTimeout: v.GetDuration("jobsvc_timeout"),

		GenextBaseURL:     strings.TrimSuffix(v.GetString("genext_base_url"), "/"),
		TenantID:          v.GetString("tenant_id"),
		GenextAPIKey:      v.GetString("genext_api_key"),
		ClientID:          v.GetString("client_id"),
		ClientSecret:      v.GetString("client_secret"),
		TokenURL:          v.GetString("token_url"),
		OAuthScope:        v.GetString("oauth_scope"),
		CABundlePath:      v.GetString("ca_bundle_path"),
		CABundleURL:       v.GetString("ca_bundle_url"),
		PollingInterval:   v.GetDuration("polling_interval"),
		EmbeddingInterval: v.GetDuration("embedding_polling_interval"),
		MaxPolls:          v.GetInt("max_polls"),
		GenextHTTPTimeout: v.GetDuration("genext_http_timeout"),

		EvalModel:       v.GetString("eval_model"),
		EvalTemperature: v.GetFloat64("eval_temperature"),
		EvalMaxTokens:   v.GetInt("eval_max_tokens"),

		WorkerCount:  v.GetInt("worker_count"),
		MaxQueueSize: v.GetInt("max_queue_size"),

		RunTTL:      v.GetDuration("run_ttl"),
		WorkDir:     v.GetString("work_dir"),
		KeepWorkDir: v.GetBool("keep_work_dir"),

		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 50
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 600 * time.Millisecond
	}
	if cfg.EvalMaxTokens <= 0 {
		cfg.EvalMaxTokens = 400
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg, nil
}

// ValidateGenext checks the settings every LLM call needs.
func (c Config) ValidateGenext() error {
	var errs []error
	if c.GenextBaseURL == "" {
		errs = append(errs, errors.New("GENEXT_BASE_URL is required"))
	}
	if c.TokenURL == "" {
		errs = append(errs, errors.New("TOKEN_URL is required"))
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		errs = append(errs, errors.New("CLIENT_ID and CLIENT_SECRET are required"))
	}
	if c.GenextAPIKey == "" {
		errs = append(errs, errors.New("GENEXT_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// Validate checks everything the server needs.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("DOCASSESS_API_KEY is required"))
	}
	if c.EvalAPIBasePath == "" {
		errs = append(errs, errors.New("EVAL_API_BASE_PATH is required"))
	}
	if err := c.ValidateGenext(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Genext builds the LLM gateway client settings. A tenant id, when set, is
// the last path segment of the base URL.
func (c Config) Genext() genext.Config {
	base := c.GenextBaseURL
	if c.TenantID != "" {
		base += "/" + c.TenantID
	}
	return genext.Config{
		BaseURL:               base,
		TokenURL:              c.TokenURL,
		ClientID:              c.ClientID,
		ClientSecret:          c.ClientSecret,
		Scope:                 c.OAuthScope,
		APIKey:                c.GenextAPIKey,
		CABundlePath:          c.CABundlePath,
		CABundleURL:           c.CABundleURL,
		PollInterval:          c.PollingInterval,
		EmbeddingPollInterval: c.EmbeddingInterval,
		MaxPolls:              c.MaxPolls,
		HTTPTimeout:           c.GenextHTTPTimeout,
	}
}

func (c Config) Evaluation() evaluate.Options {
	return evaluate.Options{
		Model:       genext.Model(c.EvalModel),
		Temperature: c.EvalTemperature,
		MaxTokens:   c.EvalMaxTokens,
	}
}

func (c Config) Loader() loader.Options {
	return loader.Options{PDFFallbackPdftotext: c.PDFFallbackPdftotext}
}
