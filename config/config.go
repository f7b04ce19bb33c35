package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	Daraja DarajaConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DarajaConfig is the gateway identity. Immutable for the process lifetime;
// a bad value here is a startup failure, not a runtime error.
type DarajaConfig struct {
	ConsumerKey     string
	ConsumerSecret  string
	PassKey         string
	ShortCode       string
	BaseURL         string
	CallbackBaseURL string // public base; callback path is appended
}

// CallbackURL is the full webhook URL registered with each STK push.
func (d DarajaConfig) CallbackURL() string {
	return d.CallbackBaseURL + "/api/v1/webhooks/mpesa"
}

var shortCodePattern = regexp.MustCompile(`^\d{5,7}$`)

func (d DarajaConfig) validate() error {
	if d.ConsumerKey == "" || d.ConsumerSecret == "" {
		return fmt.Errorf("daraja consumer key and secret are required")
	}
	if d.PassKey == "" {
		return fmt.Errorf("daraja pass key is required")
	}
	if !shortCodePattern.MatchString(d.ShortCode) {
		return fmt.Errorf("daraja business short code must be 5-7 digits, got %q", d.ShortCode)
	}
	if d.CallbackBaseURL == "" {
		return fmt.Errorf("callback base URL is required")
	}
	return nil
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8080"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute, // the wait endpoint holds connections open
		},
		Daraja: DarajaConfig{
			ConsumerKey:     os.Getenv("DARAJA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("DARAJA_CONSUMER_SECRET"),
			PassKey:         os.Getenv("DARAJA_PASS_KEY"),
			ShortCode:       os.Getenv("DARAJA_BUSINESS_SHORT_CODE"),
			BaseURL:         getenv("DARAJA_API_URL", "https://sandbox.safaricom.co.ke"),
			CallbackBaseURL: os.Getenv("CALLBACK_BASE_URL"),
		},
	}
	if err := cfg.Daraja.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
