/*
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
	DEFAULT_PORT = "5051"

	// DEFAULT_GRACE_WINDOW is how long a rotated-out webhook secret keeps
	// verifying after rotation.
	DEFAULT_GRACE_WINDOW = 24 * time.Hour
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"LEADFLOW_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"LEADFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"LEADFLOW_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"LEADFLOW_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"LEADFLOW_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"LEADFLOW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LEADFLOW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"LEADFLOW_REDIS_DNS"`
}

// WebhookConfig governs inbound webhook authentication.
type WebhookConfig struct {
	// SecretGraceWindowSec is how many seconds a previous secret stays valid
	// after rotation. Zero falls back to DEFAULT_GRACE_WINDOW.
	SecretGraceWindowSec int `json:"secret_grace_window_sec" envconfig:"LEADFLOW_WEBHOOK_GRACE_WINDOW_SEC"`
}

func (w WebhookConfig) GraceWindow() time.Duration {
	if w.SecretGraceWindowSec <= 0 {
		return DEFAULT_GRACE_WINDOW
	}
	return time.Duration(w.SecretGraceWindowSec) * time.Second
}

// AdsPlatformConfig carries the endpoint and credentials of the external
// advertising platform. They are injected into the client at construction so
// business logic never reads ambient credentials.
type AdsPlatformConfig struct {
	BaseUrl        string `json:"base_url" envconfig:"LEADFLOW_ADS_BASE_URL"`
	AccessToken    string `json:"access_token" envconfig:"LEADFLOW_ADS_ACCESS_TOKEN"`
	TimeoutSec     int    `json:"timeout_sec" envconfig:"LEADFLOW_ADS_TIMEOUT_SEC"`
	MaxRetries     int    `json:"max_retries" envconfig:"LEADFLOW_ADS_MAX_RETRIES"`
	RetryBackoffMs int    `json:"retry_backoff_ms" envconfig:"LEADFLOW_ADS_RETRY_BACKOFF_MS"`
}

// AgentConfig holds account-independent defaults for the optimization agent.
// Per-account overrides live in the agent_configs table.
type AgentConfig struct {
	FatigueFrequency   float64 `json:"fatigue_frequency" envconfig:"LEADFLOW_AGENT_FATIGUE_FREQUENCY"`
	HighSpendThreshold float64 `json:"high_spend_threshold" envconfig:"LEADFLOW_AGENT_HIGH_SPEND"`
	RecentLaunchDays   int     `json:"recent_launch_days" envconfig:"LEADFLOW_AGENT_RECENT_LAUNCH_DAYS"`
	MaxRecsPerBatch    int     `json:"max_recs_per_batch" envconfig:"LEADFLOW_AGENT_MAX_RECS_PER_BATCH"`
	MinSpend           float64 `json:"min_spend" envconfig:"LEADFLOW_AGENT_MIN_SPEND"`
	MinImpressions     int64   `json:"min_impressions" envconfig:"LEADFLOW_AGENT_MIN_IMPRESSIONS"`
	MaxDataAgeHours    int     `json:"max_data_age_hours" envconfig:"LEADFLOW_AGENT_MAX_DATA_AGE_HOURS"`
	SweepIntervalSec   int     `json:"sweep_interval_sec" envconfig:"LEADFLOW_AGENT_SWEEP_INTERVAL_SEC"`
}

type QueueConfig struct {
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"LEADFLOW_QUEUE_MAX_RETRY_ATTEMPTS"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"LEADFLOW_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"LEADFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"LEADFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"LEADFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type TelemetryConfig struct {
	Enabled       bool   `json:"enabled" envconfig:"LEADFLOW_TELEMETRY_ENABLED"`
	PosthogApiKey string `json:"posthog_api_key" envconfig:"LEADFLOW_TELEMETRY_POSTHOG_API_KEY"`
}

type Configuration struct {
	ProjectName  string            `json:"project_name" envconfig:"LEADFLOW_PROJECT_NAME"`
	Server       ServerConfig      `json:"server"`
	DataSource   DataSourceConfig  `json:"data_source"`
	Redis        RedisConfig       `json:"redis"`
	Webhook      WebhookConfig     `json:"webhook"`
	AdsPlatform  AdsPlatformConfig `json:"ads_platform"`
	Agent        AgentConfig       `json:"agent"`
	Queue        QueueConfig       `json:"queue"`
	Notification Notification      `json:"notification"`
	RateLimit    RateLimitConfig   `json:"rate_limit"`
	Telemetry    TelemetryConfig   `json:"telemetry"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("leadflow", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called leadflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Leadflow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.AdsPlatform.BaseUrl = strings.TrimSpace(cnf.AdsPlatform.BaseUrl)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.AdsPlatform.TimeoutSec <= 0 {
		cnf.AdsPlatform.TimeoutSec = 30
	}
	if cnf.AdsPlatform.MaxRetries <= 0 {
		cnf.AdsPlatform.MaxRetries = 3
	}
	if cnf.AdsPlatform.RetryBackoffMs <= 0 {
		cnf.AdsPlatform.RetryBackoffMs = 250
	}

	cnf.Agent.applyDefaults()

	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5052"
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

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (a *AgentConfig) applyDefaults() {
	if a.FatigueFrequency <= 0 {
		a.FatigueFrequency = 3.5
	}
	if a.HighSpendThreshold <= 0 {
		a.HighSpendThreshold = 500
	}
	if a.RecentLaunchDays <= 0 {
		a.RecentLaunchDays = 3
	}
	if a.MaxRecsPerBatch <= 0 {
		a.MaxRecsPerBatch = 10
	}
	if a.MinSpend <= 0 {
		a.MinSpend = 20
	}
	if a.MinImpressions <= 0 {
		a.MinImpressions = 1000
	}
	if a.MaxDataAgeHours <= 0 {
		a.MaxDataAgeHours = 6
	}
	if a.SweepIntervalSec <= 0 {
		a.SweepIntervalSec = 3600
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Agent.applyDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
