// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the hyperion server.
// It handles loading and parsing the YAML configuration file and provides
// structured access to pipeline tuning parameters, the expert registry path,
// logging behavior, and API settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for local-only access.
	Host string `yaml:"host" json:"-"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// APIKeys is a list of keys for authenticating clients to this server.
	// When empty, inbound authentication is disabled.
	APIKeys []string `yaml:"api-keys" json:"api-keys"`

	// ManagementKey protects the statistics and registry endpoints.
	// Plaintext values are bcrypt-hashed on load; values with a $2a$/$2b$/$2y$
	// prefix are treated as already hashed.
	ManagementKey string `yaml:"management-key" json:"-"`

	// RegistryPath is the YAML file describing the expert fleet.
	RegistryPath string `yaml:"registry-path" json:"registry-path"`

	// SteeringDir is the directory holding operator steering rule files.
	SteeringDir string `yaml:"steering-dir" json:"steering-dir"`

	// Classifier configures the pattern classifier and its cache.
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`

	// Router configures expert selection and load balancing.
	Router RouterConfig `yaml:"router" json:"router"`

	// Predictor configures the stochastic performance engine.
	Predictor PredictorConfig `yaml:"predictor" json:"predictor"`

	// Supervisor configures decision review and the feedback loop.
	Supervisor SupervisorConfig `yaml:"supervisor" json:"supervisor"`

	// History configures persistent decision history.
	History HistoryConfig `yaml:"history" json:"history"`

	// Invoker configures the backend expert HTTP client.
	Invoker InvokerConfig `yaml:"invoker" json:"invoker"`
}

// ClassifierConfig defines settings for query classification.
type ClassifierConfig struct {
	// CacheCapacity bounds the classification cache. Oldest entries are
	// evicted first once the bound is reached.
	CacheCapacity int `yaml:"cache-capacity" json:"cache-capacity"`

	// DomainThreshold is the accumulated pattern weight a domain must reach
	// to be considered detected.
	DomainThreshold float64 `yaml:"domain-threshold" json:"domain-threshold"`

	// DefaultDomain receives queries that match no domain above threshold.
	DefaultDomain string `yaml:"default-domain" json:"default-domain"`

	// FallbackComplexity is the complexity floor assigned on fallback.
	FallbackComplexity float64 `yaml:"fallback-complexity" json:"fallback-complexity"`
}

// RouterConfig defines settings for expert selection.
type RouterConfig struct {
	// MultiExpertThreshold is the complexity above which a single-domain
	// query may still be routed to several experts.
	MultiExpertThreshold float64 `yaml:"multi-expert-threshold" json:"multi-expert-threshold"`

	// MaxExperts caps the number of experts in a MULTI decision.
	MaxExperts int `yaml:"max-experts" json:"max-experts"`

	// OperabilityFloor is the minimum availability an expert needs to be
	// considered routable at all.
	OperabilityFloor float64 `yaml:"operability-floor" json:"operability-floor"`

	// LoadPenaltyWeight scales how strongly recent load above the fleet
	// average pushes an expert down the ranking.
	LoadPenaltyWeight float64 `yaml:"load-penalty-weight" json:"load-penalty-weight"`
}

// PredictorConfig defines settings for the Monte Carlo engine.
type PredictorConfig struct {
	// MinSimulations is the number of trials always run per expert.
	MinSimulations int `yaml:"min-simulations" json:"min-simulations"`

	// MaxSimulations bounds the total trials per expert.
	MaxSimulations int `yaml:"max-simulations" json:"max-simulations"`

	// BatchSize is the number of trials run between convergence checks.
	BatchSize int `yaml:"batch-size" json:"batch-size"`

	// ConvergenceEpsilon is the half-width of the estimate at which
	// sampling stops early.
	ConvergenceEpsilon float64 `yaml:"convergence-epsilon" json:"convergence-epsilon"`
}

// SupervisorConfig defines settings for the supervising agent.
type SupervisorConfig struct {
	// SuccessRateFloor is the rolling success rate below which an expert is
	// no longer allowed to hold a SINGLE decision.
	SuccessRateFloor float64 `yaml:"success-rate-floor" json:"success-rate-floor"`

	// EWMAAlpha weights how strongly the most recent outcome moves the
	// rolling success rate. Higher values favor recent history.
	EWMAAlpha float64 `yaml:"ewma-alpha" json:"ewma-alpha"`
}

// HistoryConfig defines settings for persistent decision history.
type HistoryConfig struct {
	// Enabled toggles decision history persistence.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// BaseDir is the directory holding history files.
	BaseDir string `yaml:"base-dir" json:"base-dir"`

	// MaxLogSizeMB triggers compaction of the active history file once exceeded.
	MaxLogSizeMB int `yaml:"max-log-size-mb" json:"max-log-size-mb"`

	// Compression gzips archived history files.
	Compression bool `yaml:"compression" json:"compression"`
}

// InvokerConfig defines settings for the backend expert HTTP client.
type InvokerConfig struct {
	// BaseURL is the endpoint of the expert backend (Ollama-compatible).
	BaseURL string `yaml:"base-url" json:"base-url"`

	// TimeoutSeconds bounds a single backend invocation.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds"`
}

// LoadConfig reads the YAML configuration from the given path, applies
// defaults, and hashes a plaintext management key in place.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Sanitize()

	if cfg.ManagementKey != "" && !looksLikeBcrypt(cfg.ManagementKey) {
		hashed, errHash := hashSecret(cfg.ManagementKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash management key: %w", errHash)
		}
		cfg.ManagementKey = hashed
	}

	return &cfg, nil
}

// Sanitize normalizes the configuration and applies defaults for zero values.
func (c *Config) Sanitize() {
	if c == nil {
		return
	}

	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8317
	}
	c.RegistryPath = strings.TrimSpace(c.RegistryPath)
	if c.RegistryPath == "" {
		c.RegistryPath = "experts.yaml"
	}
	c.SteeringDir = strings.TrimSpace(c.SteeringDir)

	c.SanitizeClassifier()
	c.SanitizeRouter()
	c.SanitizePredictor()
	c.SanitizeSupervisor()
	c.SanitizeHistory()
	c.SanitizeInvoker()
}

// SanitizeClassifier normalizes the classifier configuration.
func (c *Config) SanitizeClassifier() {
	if c.Classifier.CacheCapacity <= 0 {
		c.Classifier.CacheCapacity = 1000
	}
	if c.Classifier.DomainThreshold <= 0 {
		c.Classifier.DomainThreshold = 0.4
	}
	c.Classifier.DefaultDomain = strings.TrimSpace(c.Classifier.DefaultDomain)
	if c.Classifier.DefaultDomain == "" {
		c.Classifier.DefaultDomain = "language"
	}
	if c.Classifier.FallbackComplexity <= 0 {
		c.Classifier.FallbackComplexity = 0.2
	}
}

// SanitizeRouter normalizes the router configuration.
func (c *Config) SanitizeRouter() {
	if c.Router.MultiExpertThreshold <= 0 {
		c.Router.MultiExpertThreshold = 0.6
	}
	if c.Router.MaxExperts <= 0 || c.Router.MaxExperts > 3 {
		c.Router.MaxExperts = 3
	}
	if c.Router.OperabilityFloor <= 0 {
		c.Router.OperabilityFloor = 0.2
	}
	if c.Router.LoadPenaltyWeight <= 0 {
		c.Router.LoadPenaltyWeight = 0.15
	}
}

// SanitizePredictor normalizes the predictor configuration.
// MinSimulations never exceeds MaxSimulations after sanitization.
func (c *Config) SanitizePredictor() {
	if c.Predictor.MinSimulations <= 0 {
		c.Predictor.MinSimulations = 60
	}
	if c.Predictor.MaxSimulations <= 0 {
		c.Predictor.MaxSimulations = 150
	}
	if c.Predictor.MaxSimulations < c.Predictor.MinSimulations {
		c.Predictor.MaxSimulations = c.Predictor.MinSimulations
	}
	if c.Predictor.BatchSize <= 0 {
		c.Predictor.BatchSize = 20
	}
	if c.Predictor.ConvergenceEpsilon <= 0 {
		c.Predictor.ConvergenceEpsilon = 0.02
	}
}

// SanitizeSupervisor normalizes the supervisor configuration.
func (c *Config) SanitizeSupervisor() {
	if c.Supervisor.SuccessRateFloor <= 0 {
		c.Supervisor.SuccessRateFloor = 0.5
	}
	if c.Supervisor.EWMAAlpha <= 0 || c.Supervisor.EWMAAlpha > 1 {
		c.Supervisor.EWMAAlpha = 0.3
	}
}

// SanitizeHistory normalizes the history configuration.
func (c *Config) SanitizeHistory() {
	c.History.BaseDir = strings.TrimSpace(c.History.BaseDir)
	if c.History.BaseDir == "" {
		c.History.BaseDir = ".hyperion/history"
	}
	if c.History.MaxLogSizeMB <= 0 {
		c.History.MaxLogSizeMB = 100
	}
}

// SanitizeInvoker normalizes the invoker configuration.
func (c *Config) SanitizeInvoker() {
	c.Invoker.BaseURL = strings.TrimSpace(strings.TrimSuffix(c.Invoker.BaseURL, "/"))
	if c.Invoker.BaseURL == "" {
		c.Invoker.BaseURL = "http://localhost:11434"
	}
	if c.Invoker.TimeoutSeconds <= 0 {
		c.Invoker.TimeoutSeconds = 120
	}
}

// VerifyManagementKey compares a presented key against the stored hash.
func (c *Config) VerifyManagementKey(presented string) bool {
	if c.ManagementKey == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.ManagementKey), []byte(presented)) == nil
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
