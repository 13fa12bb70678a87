package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	OpenAIAPIKey               string
	OpenAIBaseURL              string
	OpenAIModel                string
	OpenAITimeoutSec           int
	DefaultSourceLanguage      string
	DefaultTargetLanguage      string
	PauseThresholdMs           int
	TranslationDebounceMs      int
	TranslationPauseDebounceMs int
	TranscriptTimezone         string
	DocumentWebhookURL         string
	DiscordToken               string
	DiscordGuildID             string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") &&
		!strings.HasPrefix(c.DatabaseURL, "sqlite://") {
		return fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite://")
	}
	if c.PauseThresholdMs <= 0 {
		return fmt.Errorf("PAUSE_THRESHOLD_MS must be positive, got %d", c.PauseThresholdMs)
	}
	if c.TranslationDebounceMs < 0 || c.TranslationPauseDebounceMs < 0 {
		return fmt.Errorf("translation debounce delays must not be negative")
	}
	if c.OpenAITimeoutSec <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT_SEC must be positive, got %d", c.OpenAITimeoutSec)
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	if c.DiscordEnabled() {
		for _, req := range c.discordFieldChecks() {
			if req.value == "" {
				return fmt.Errorf("%s is required when DISCORD_TOKEN is set", req.name)
			}
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "OPENAI_BASE_URL", value: c.OpenAIBaseURL},
		{name: "OPENAI_MODEL", value: c.OpenAIModel},
		{name: "DEFAULT_SOURCE_LANGUAGE", value: c.DefaultSourceLanguage},
		{name: "DEFAULT_TARGET_LANGUAGE", value: c.DefaultTargetLanguage},
		{name: "TRANSCRIPT_TIMEZONE", value: c.TranscriptTimezone},
	}
}

func (c *Config) discordFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DiscordEnabled reports whether the voice channel capture is configured.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != ""
}

func (c *Config) PauseThreshold() time.Duration {
	return time.Duration(c.PauseThresholdMs) * time.Millisecond
}

func (c *Config) TranslationDebounce() time.Duration {
	return time.Duration(c.TranslationDebounceMs) * time.Millisecond
}

func (c *Config) TranslationPauseDebounce() time.Duration {
	return time.Duration(c.TranslationPauseDebounceMs) * time.Millisecond
}

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAITimeoutSec) * time.Second
}

// Location falls back to UTC when the timezone cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TranscriptTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
