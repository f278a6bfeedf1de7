package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	ServerPort      string `mapstructure:"SERVER_PORT"`
	FrontendURL     string `mapstructure:"FRONTEND_URL"`
	AllowedOrigins  string `mapstructure:"ALLOWED_ORIGINS"`
	ScorecardAPIKey string `mapstructure:"SCORECARD_API_KEY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if AppConfig.ServerPort == "" {
		AppConfig.ServerPort = ":8080"
	}
	if !strings.HasPrefix(AppConfig.ServerPort, ":") {
		AppConfig.ServerPort = ":" + AppConfig.ServerPort
	}
}

// Origins returns the allowed WebSocket origins as a slice.
// An empty list means same-host origins only.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
