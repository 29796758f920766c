package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration. Secrets are taken from the
// environment, not the YAML file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Classifier struct {
		BaseURL        string `yaml:"base_url"` // empty = api.openai.com
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"classifier"`
	Safety struct {
		EscalationThreshold int    `yaml:"escalation_threshold"`
		AdviceThreshold     int    `yaml:"advice_threshold"`
		ReviewBaseURL       string `yaml:"review_base_url"`
		KeywordTableFile    string `yaml:"keyword_table_file"`  // empty = compiled-in table
		HelplineTableFile   string `yaml:"helpline_table_file"` // empty = compiled-in table
	} `yaml:"safety"`
	Alerts struct {
		Email struct {
			Enabled   bool   `yaml:"enabled"`
			AppName   string `yaml:"app_name"`
			FromEmail string `yaml:"from_email"`
		} `yaml:"email"`
		Telegram struct {
			Enabled bool  `yaml:"enabled"`
			ChatID  int64 `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"alerts"`

	// Populated from the environment by LoadConfig.
	ClassifierAPIKey string `yaml:"-"`
	SendgridAPIKey   string `yaml:"-"`
	TelegramBotToken string `yaml:"-"`
	JWTSecret        string `yaml:"-"`
}

// LoadConfig reads configuration from the specified YAML file and fills in
// secrets from the environment.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	config.ClassifierAPIKey = os.Getenv("CLASSIFIER_API_KEY")
	config.SendgridAPIKey = os.Getenv("SENDGRID_API_KEY")
	config.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	config.JWTSecret = os.Getenv("JWT_SECRET")

	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = ":8085"
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = 8
	}
	if c.Safety.EscalationThreshold <= 0 {
		c.Safety.EscalationThreshold = 3
	}
	if c.Safety.AdviceThreshold <= 0 {
		c.Safety.AdviceThreshold = 2
	}
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Safety.AdviceThreshold > c.Safety.EscalationThreshold {
		return fmt.Errorf("safety.advice_threshold (%d) must not exceed safety.escalation_threshold (%d)",
			c.Safety.AdviceThreshold, c.Safety.EscalationThreshold)
	}
	if c.Alerts.Email.Enabled && c.SendgridAPIKey == "" {
		return fmt.Errorf("alerts.email.enabled requires SENDGRID_API_KEY")
	}
	if c.Alerts.Telegram.Enabled && c.TelegramBotToken == "" {
		return fmt.Errorf("alerts.telegram.enabled requires TELEGRAM_BOT_TOKEN")
	}
	return nil
}
