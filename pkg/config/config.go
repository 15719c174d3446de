package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	AllowedOrigins  string `mapstructure:"allowedOrigins"`
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
}

// DatabaseConfig holds the PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MonitoringConfig holds the anomaly monitoring schedule configuration
type MonitoringConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	IntervalSeconds         int  `mapstructure:"intervalSeconds"`
	CriticalIntervalSeconds int  `mapstructure:"criticalIntervalSeconds"`
	LookbackMinutes         int  `mapstructure:"lookbackMinutes"`
	BatchSize               int  `mapstructure:"batchSize"`
	Workers                 int  `mapstructure:"workers"`
}

// RateLimitConfig holds the alert rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxAlertsPerRule  int  `mapstructure:"maxAlertsPerRule"`
	TimeWindowMinutes int  `mapstructure:"timeWindowMinutes"`
	CooldownMinutes   int  `mapstructure:"cooldownMinutes"`
}

// NotificationsConfig holds per channel type notification configuration
type NotificationsConfig struct {
	SendTimeoutSeconds int           `mapstructure:"sendTimeoutSeconds"`
	Email              EmailConfig   `mapstructure:"email"`
	Slack              SlackConfig   `mapstructure:"slack"`
	Webhook            WebhookConfig `mapstructure:"webhook"`
}

// EmailConfig holds the SMTP configuration
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"fromName"`
	UseTLS   bool   `mapstructure:"useTLS"`
}

// SlackConfig holds the Slack notification configuration
type SlackConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebhookConfig holds the webhook notification configuration
type WebhookConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	TimeoutSeconds      int  `mapstructure:"timeoutSeconds"`
	RetryOnFailure      bool `mapstructure:"retryOnFailure"`
	MaxAttempts         int  `mapstructure:"maxAttempts"`
	BackoffDelaySeconds int  `mapstructure:"backoffDelaySeconds"`
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.shutdownTimeout", 10)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "alerts")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.intervalSeconds", 60)
	viper.SetDefault("monitoring.criticalIntervalSeconds", 30)
	viper.SetDefault("monitoring.lookbackMinutes", 5)
	viper.SetDefault("monitoring.batchSize", 100)
	viper.SetDefault("monitoring.workers", 4)

	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.maxAlertsPerRule", 10)
	viper.SetDefault("ratelimit.timeWindowMinutes", 60)
	viper.SetDefault("ratelimit.cooldownMinutes", 15)

	viper.SetDefault("notifications.sendTimeoutSeconds", 10)
	viper.SetDefault("notifications.email.enabled", false)
	viper.SetDefault("notifications.email.port", 587)
	viper.SetDefault("notifications.email.fromName", "Alert Engine")
	viper.SetDefault("notifications.slack.enabled", true)
	viper.SetDefault("notifications.webhook.enabled", true)
	viper.SetDefault("notifications.webhook.timeoutSeconds", 10)
	viper.SetDefault("notifications.webhook.retryOnFailure", true)
	viper.SetDefault("notifications.webhook.maxAttempts", 3)
	viper.SetDefault("notifications.webhook.backoffDelaySeconds", 1)

	// Allow environment variables to override config file
	viper.SetEnvPrefix("ALERT_ENGINE")
	viper.AutomaticEnv()

	// If config file is provided, read it
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	// Unmarshal config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
