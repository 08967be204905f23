/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the fulfillment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	SMTPHost                   string `mapstructure:"SMTP_HOST"`
	SMTPPort                   int    `mapstructure:"SMTP_PORT"`
	SMTPUsername               string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword               string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom                   string `mapstructure:"SMTP_FROM"`
	PickupSLADays              int    `mapstructure:"PICKUP_SLA_DAYS"`
	NotifyTimeoutSeconds       int    `mapstructure:"NOTIFY_TIMEOUT_SECONDS"`
	ProofSubmitLimitPerMinute  int    `mapstructure:"PROOF_SUBMIT_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "cecoalimentos:rate_limit")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_FROM", "no-reply@cecoalimentos.coop")
	viper.SetDefault("PICKUP_SLA_DAYS", 1)
	viper.SetDefault("NOTIFY_TIMEOUT_SECONDS", 5)
	viper.SetDefault("PROOF_SUBMIT_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "FULFILLMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "FULFILLMENT_SERVICE_JWT_SECRET")
	_ = viper.BindEnv("SMTP_HOST")
	_ = viper.BindEnv("SMTP_PORT")
	_ = viper.BindEnv("SMTP_USERNAME")
	_ = viper.BindEnv("SMTP_PASSWORD")
	_ = viper.BindEnv("SMTP_FROM")
	_ = viper.BindEnv("PICKUP_SLA_DAYS")
	_ = viper.BindEnv("NOTIFY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PROOF_SUBMIT_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.JWTSecret) == "" {
		config.JWTSecret = strings.TrimSpace(os.Getenv("FULFILLMENT_SERVICE_JWT_SECRET"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "cecoalimentos:rate_limit"
	}

	if config.PickupSLADays <= 0 {
		log.Printf("level=warn component=config msg=\"invalid pickup sla; using default\" days=%d", config.PickupSLADays)
		config.PickupSLADays = 1
	}
	if config.NotifyTimeoutSeconds <= 0 {
		config.NotifyTimeoutSeconds = 5
	}
	if config.ProofSubmitLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative proof submit limit configured; disabling limiter\" limit=%d", config.ProofSubmitLimitPerMinute)
		config.ProofSubmitLimitPerMinute = 0
	}

	return
}
