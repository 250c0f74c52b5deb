package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location relative to the working dir.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	GeminiAPIKey       string `yaml:"geminiAPIKey"`
	ChatModel          string `yaml:"chatModel"`
	ImageModel         string `yaml:"imageModel"`
	HistoryLimit       int    `yaml:"historyLimit"`
	DefaultInstruction string `yaml:"defaultInstruction"`

	JWTSecret    string `yaml:"jwtSecret"`
	CookieName   string `yaml:"cookieName"`
	CookieDomain string `yaml:"cookieDomain"`
	CookieSecure bool   `yaml:"cookieSecure"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`

	AuthRateLimit        int `yaml:"authRateLimit"`
	AuthRateWindowSecs   int `yaml:"authRateWindowSeconds"`

	StripeSecretKey     string `yaml:"stripeSecretKey"`
	StripeWebhookSecret string `yaml:"stripeWebhookSecret"`
	PosterPriceCents    int64  `yaml:"posterPriceCents"`
	CheckoutSuccessURL  string `yaml:"checkoutSuccessURL"`
	CheckoutCancelURL   string `yaml:"checkoutCancelURL"`
	PosterFontPath      string `yaml:"posterFontPath"`

	ResendAPIKey string `yaml:"resendAPIKey"`
	EmailFrom    string `yaml:"emailFrom"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_CHAT_MODEL"); v != "" {
		cfg.ChatModel = v
	}
	if v := os.Getenv("GEMINI_IMAGE_MODEL"); v != "" {
		cfg.ImageModel = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.StripeSecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.StripeWebhookSecret = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.ResendAPIKey = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("POSTER_PRICE_CENTS"); v != "" {
		if cents, err := strconv.ParseInt(v, 10, 64); err == nil && cents > 0 {
			cfg.PosterPriceCents = cents
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.CookieName == "" {
		cfg.CookieName = "auth_token"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.PosterPriceCents <= 0 {
		cfg.PosterPriceCents = 199
	}
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 10
	}
	if cfg.AuthRateWindowSecs <= 0 {
		cfg.AuthRateWindowSecs = 60
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.0-flash-preview-image-generation"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if cfg.StripeSecretKey == "" {
		return errors.New("config: stripeSecretKey is required (set in config.yaml or STRIPE_SECRET_KEY)")
	}
	if cfg.StripeWebhookSecret == "" {
		return errors.New("config: stripeWebhookSecret is required (set in config.yaml or STRIPE_WEBHOOK_SECRET)")
	}
	if cfg.ResendAPIKey == "" {
		return errors.New("config: resendAPIKey is required (set in config.yaml or RESEND_API_KEY)")
	}
	if cfg.EmailFrom == "" {
		return errors.New("config: emailFrom is required (set in config.yaml)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.CheckoutSuccessURL == "" || cfg.CheckoutCancelURL == "" {
		return errors.New("config: checkoutSuccessURL and checkoutCancelURL are required (set in config.yaml)")
	}
	return nil
}
