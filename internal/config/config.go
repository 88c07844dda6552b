/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the escrow-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	DealEventExchange           string `mapstructure:"DEAL_EVENT_EXCHANGE"`
	JWKSURL                     string `mapstructure:"JWKS_URL"`
	JWTAudience                 string `mapstructure:"JWT_AUDIENCE"`
	JWTIssuer                   string `mapstructure:"JWT_ISSUER"`
	CORSAllowedOrigins          string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	PlatformFeeBps              int64  `mapstructure:"PLATFORM_FEE_BPS"`
	MinWithdrawalKobo           int64  `mapstructure:"MIN_WITHDRAWAL_KOBO"`
	JoinRateLimitPerMinute      int    `mapstructure:"JOIN_RATE_LIMIT_PER_MINUTE"`
	InspectionReminderSchedule  string `mapstructure:"INSPECTION_REMINDER_SCHEDULE"`
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
	viper.SetDefault("DEAL_EVENT_EXCHANGE", "escrow.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "escrow:rate_limit")
	viper.SetDefault("PLATFORM_FEE_BPS", 250)              // 2.5%
	viper.SetDefault("MIN_WITHDRAWAL_KOBO", 100000)        // 1000 NGN
	viper.SetDefault("JOIN_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("INSPECTION_REMINDER_SCHEDULE", "*/15 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "ESCROW_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("DEAL_EVENT_EXCHANGE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("PLATFORM_FEE_BPS")
	_ = viper.BindEnv("PLATFORM_FEE_PERCENT")
	_ = viper.BindEnv("MIN_WITHDRAWAL_KOBO")
	_ = viper.BindEnv("MIN_WITHDRAWAL_NAIRA")
	_ = viper.BindEnv("JOIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("INSPECTION_REMINDER_SCHEDULE")

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

	// Allow specifying the fee as a percentage via PLATFORM_FEE_PERCENT
	// (e.g. "2.5" -> 250 basis points).
	if viper.IsSet("PLATFORM_FEE_PERCENT") {
		pctStr := strings.TrimSpace(viper.GetString("PLATFORM_FEE_PERCENT"))
		if pctStr != "" {
			pctValue, parseErr := strconv.ParseFloat(pctStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid PLATFORM_FEE_PERCENT\" value=%q err=%v", pctStr, parseErr)
			} else {
				config.PlatformFeeBps = int64(math.Round(pctValue * 100))
			}
		}
	}

	// Allow specifying the withdrawal minimum in whole naira.
	if viper.IsSet("MIN_WITHDRAWAL_NAIRA") {
		minStr := strings.TrimSpace(viper.GetString("MIN_WITHDRAWAL_NAIRA"))
		if minStr != "" {
			minValue, parseErr := strconv.ParseFloat(minStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MIN_WITHDRAWAL_NAIRA\" value=%q err=%v", minStr, parseErr)
			} else {
				config.MinWithdrawalKobo = int64(math.Round(minValue * 100))
			}
		}
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "escrow:rate_limit"
	}

	return
}
