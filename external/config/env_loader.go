package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/tsuyaku/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	HTTPAddr                   string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL                string `env:"DATABASE_URL,required"`
	OpenAIAPIKey               string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL              string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel                string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITimeoutSec           int    `env:"OPENAI_TIMEOUT_SEC" envDefault:"30"`
	DefaultSourceLanguage      string `env:"DEFAULT_SOURCE_LANGUAGE" envDefault:"en-US"`
	DefaultTargetLanguage      string `env:"DEFAULT_TARGET_LANGUAGE" envDefault:"zh"`
	PauseThresholdMs           int    `env:"PAUSE_THRESHOLD_MS" envDefault:"5000"`
	TranslationDebounceMs      int    `env:"TRANSLATION_DEBOUNCE_MS" envDefault:"300"`
	TranslationPauseDebounceMs int    `env:"TRANSLATION_PAUSE_DEBOUNCE_MS" envDefault:"100"`
	TranscriptTimezone         string `env:"TRANSCRIPT_TIMEZONE" envDefault:"UTC"`
	DocumentWebhookURL         string `env:"DOCUMENT_WEBHOOK_URL"`
	DiscordToken               string `env:"DISCORD_TOKEN"`
	DiscordGuildID             string `env:"DISCORD_GUILD_ID"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"asia-northeast1"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
}

// Load reads an optional .env file, then the process environment.
func Load(dotenvPaths ...string) (*internalconfig.Config, error) {
	if err := godotenv.Load(dotenvPaths...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env file: %w", err)
		}
		slog.Debug("no .env file found; using process environment only")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		DatabaseURL:                raw.DatabaseURL,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		OpenAIModel:                raw.OpenAIModel,
		OpenAITimeoutSec:           raw.OpenAITimeoutSec,
		DefaultSourceLanguage:      raw.DefaultSourceLanguage,
		DefaultTargetLanguage:      raw.DefaultTargetLanguage,
		PauseThresholdMs:           raw.PauseThresholdMs,
		TranslationDebounceMs:      raw.TranslationDebounceMs,
		TranslationPauseDebounceMs: raw.TranslationPauseDebounceMs,
		TranscriptTimezone:         raw.TranscriptTimezone,
		DocumentWebhookURL:         raw.DocumentWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
