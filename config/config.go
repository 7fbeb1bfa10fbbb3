/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT             = "5001"
	DEFAULT_REDIS            = "localhost:6379"
	DEFAULT_ACCEPT_THRESHOLD = 90
	DEFAULT_REVIEW_THRESHOLD = 70
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"IDVERIFY_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"IDVERIFY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"IDVERIFY_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"IDVERIFY_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"IDVERIFY_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"IDVERIFY_SERVER_PORT"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"IDVERIFY_REDIS_DNS"`
}

// VerificationConfig tunes the matching policy and how providers are called.
// Zero values are replaced with defaults by validateAndAddDefaults.
type VerificationConfig struct {
	DefaultProvider     string `json:"default_provider" envconfig:"IDVERIFY_DEFAULT_PROVIDER"`
	AcceptThreshold     int    `json:"accept_threshold" envconfig:"IDVERIFY_ACCEPT_THRESHOLD"`
	ReviewThreshold     int    `json:"review_threshold" envconfig:"IDVERIFY_REVIEW_THRESHOLD"`
	MaxRetries          *int   `json:"max_retries" envconfig:"IDVERIFY_MAX_RETRIES"`
	InitialIntervalMs   int    `json:"initial_interval_ms" envconfig:"IDVERIFY_RETRY_INITIAL_INTERVAL_MS"`
	MaxIntervalMs       int    `json:"max_interval_ms" envconfig:"IDVERIFY_RETRY_MAX_INTERVAL_MS"`
	CallTimeoutSec      int    `json:"call_timeout_sec" envconfig:"IDVERIFY_CALL_TIMEOUT_SEC"`
	PollIntervalSec     int    `json:"poll_interval_sec" envconfig:"IDVERIFY_POLL_INTERVAL_SEC"`
	MaxPolls            int    `json:"max_polls" envconfig:"IDVERIFY_MAX_POLLS"`
	ClaimTTLMinutes     int    `json:"claim_ttl_minutes" envconfig:"IDVERIFY_CLAIM_TTL_MINUTES"`
	ProvidersConfigPath string `json:"providers_config_path" envconfig:"IDVERIFY_PROVIDERS_CONFIG"`
}

func (v VerificationConfig) InitialInterval() time.Duration {
	return time.Duration(v.InitialIntervalMs) * time.Millisecond
}

func (v VerificationConfig) MaxInterval() time.Duration {
	return time.Duration(v.MaxIntervalMs) * time.Millisecond
}

func (v VerificationConfig) CallTimeout() time.Duration {
	return time.Duration(v.CallTimeoutSec) * time.Second
}

func (v VerificationConfig) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSec) * time.Second
}

func (v VerificationConfig) ClaimTTL() time.Duration {
	return time.Duration(v.ClaimTTLMinutes) * time.Minute
}

type DojahConfig struct {
	AppID     string `json:"app_id" envconfig:"IDVERIFY_DOJAH_APP_ID"`
	SecretKey string `json:"secret_key" envconfig:"IDVERIFY_DOJAH_SECRET_KEY"`
	BaseURL   string `json:"base_url" envconfig:"IDVERIFY_DOJAH_BASE_URL"`
}

// Enabled reports whether enough credentials are present to register Dojah.
func (d DojahConfig) Enabled() bool {
	return d.AppID != "" || d.SecretKey != ""
}

type SandboxConfig struct {
	Enabled bool `json:"enabled" envconfig:"IDVERIFY_SANDBOX_ENABLED"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"IDVERIFY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"IDVERIFY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"IDVERIFY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type Notification struct {
	Slack struct {
		WebhookUrl string `json:"webhook_url" envconfig:"IDVERIFY_SLACK_WEBHOOK_URL"`
	} `json:"slack"`
}

type Configuration struct {
	ProjectName         string             `json:"project_name" envconfig:"IDVERIFY_PROJECT_NAME"`
	EnableTelemetry     bool               `json:"enable_telemetry" envconfig:"IDVERIFY_ENABLE_TELEMETRY"`
	PostHogKey          string             `json:"posthog_key" envconfig:"IDVERIFY_POSTHOG_KEY"`
	EnableObservability bool               `json:"enable_observability" envconfig:"IDVERIFY_ENABLE_OBSERVABILITY"`
	Server              ServerConfig       `json:"server"`
	Redis               RedisConfig        `json:"redis"`
	Verification        VerificationConfig `json:"verification"`
	Dojah               DojahConfig        `json:"dojah"`
	Sandbox             SandboxConfig      `json:"sandbox"`
	RateLimit           RateLimitConfig    `json:"rate_limit"`
	Notification        Notification       `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("idverify", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called idverify.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "IDVerify Server"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Verification.DefaultProvider = strings.TrimSpace(cnf.Verification.DefaultProvider)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Redis.Dns == "" {
		cnf.Redis.Dns = DEFAULT_REDIS
		log.Printf("Warning: Redis DNS not specified in config. Setting default: %s", DEFAULT_REDIS)
	}

	if err := cnf.Verification.addDefaults(); err != nil {
		return err
	}

	if cnf.Verification.DefaultProvider == "" {
		switch {
		case cnf.Dojah.Enabled():
			cnf.Verification.DefaultProvider = "dojah"
		case cnf.Sandbox.Enabled:
			cnf.Verification.DefaultProvider = "sandbox"
		}
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (v *VerificationConfig) addDefaults() error {
	if v.AcceptThreshold == 0 {
		v.AcceptThreshold = DEFAULT_ACCEPT_THRESHOLD
	}
	// an unset review threshold never rises above the accept threshold
	if v.ReviewThreshold == 0 {
		v.ReviewThreshold = DEFAULT_REVIEW_THRESHOLD
		if v.AcceptThreshold < v.ReviewThreshold {
			v.ReviewThreshold = v.AcceptThreshold
		}
	}
	if v.ReviewThreshold < 0 || v.AcceptThreshold > 100 || v.ReviewThreshold > v.AcceptThreshold {
		log.Println("Error: thresholds must satisfy 0 <= review <= accept <= 100.")
		return errors.New("invalid verification thresholds")
	}

	if v.MaxRetries == nil {
		defaultRetries := 3
		v.MaxRetries = &defaultRetries
	}
	if *v.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if v.InitialIntervalMs <= 0 {
		v.InitialIntervalMs = 200
	}
	if v.MaxIntervalMs <= 0 {
		v.MaxIntervalMs = 2000
	}
	if v.CallTimeoutSec <= 0 {
		v.CallTimeoutSec = 15
	}
	if v.PollIntervalSec <= 0 {
		v.PollIntervalSec = 30
	}
	if v.MaxPolls <= 0 {
		v.MaxPolls = 20
	}
	if v.ClaimTTLMinutes <= 0 {
		v.ClaimTTLMinutes = 24 * 60
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
