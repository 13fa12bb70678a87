package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/repository"
)

// Preferences is what clients see of the stored settings. The API key itself
// is never returned.
type Preferences struct {
	SourceLanguage   string `json:"sourceLanguage"`
	TargetLanguage   string `json:"targetLanguage"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
}

type PreferencesUpdate struct {
	SourceLanguage string  `json:"sourceLanguage,omitempty"`
	TargetLanguage string  `json:"targetLanguage,omitempty"`
	APIKey         *string `json:"apiKey,omitempty"`
}

func (m *Manager) Preferences(ctx context.Context) (Preferences, error) {
	stored, err := m.prefs.GetPreferences(ctx)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return m.publicPreferences(*stored), nil
}

// UpdatePreferences stores the given fields. Language changes take effect on
// a running recording immediately.
func (m *Manager) UpdatePreferences(ctx context.Context, upd PreferencesUpdate) (Preferences, error) {
	stored, err := m.prefs.GetPreferences(ctx)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	if upd.APIKey != nil {
		stored.APIKey = strings.TrimSpace(*upd.APIKey)
		stored.UpdatedAt = m.now()
		if err := m.prefs.SavePreferences(ctx, *stored); err != nil {
			return Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
		}
	}

	if upd.SourceLanguage != "" || upd.TargetLanguage != "" {
		source := firstNonEmpty(upd.SourceLanguage, stored.SourceLanguage, m.cfg.DefaultSourceLanguage)
		target := firstNonEmpty(upd.TargetLanguage, stored.TargetLanguage, m.cfg.DefaultTargetLanguage)
		if err := m.SetLanguages(ctx, source, target); err != nil {
			return Preferences{}, err
		}
	}
	return m.Preferences(ctx)
}

func (m *Manager) publicPreferences(stored repository.Preferences) Preferences {
	return Preferences{
		SourceLanguage:   firstNonEmpty(stored.SourceLanguage, m.cfg.DefaultSourceLanguage),
		TargetLanguage:   firstNonEmpty(stored.TargetLanguage, m.cfg.DefaultTargetLanguage),
		APIKeyConfigured: llm.ValidAPIKey(m.cfg.OpenAIAPIKey) || llm.ValidAPIKey(stored.APIKey),
	}
}

// resolveLanguages fills missing languages from the stored preferences and
// then from the configured defaults.
func (m *Manager) resolveLanguages(ctx context.Context, source, target string) (string, string) {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source != "" && target != "" {
		return source, target
	}
	stored, err := m.prefs.GetPreferences(ctx)
	if err != nil || stored == nil {
		slog.Warn("failed to load preferences; using defaults", "error", err)
		stored = &repository.Preferences{}
	}
	return firstNonEmpty(source, stored.SourceLanguage, m.cfg.DefaultSourceLanguage),
		firstNonEmpty(target, stored.TargetLanguage, m.cfg.DefaultTargetLanguage)
}

func (m *Manager) saveLanguages(ctx context.Context, source, target string) error {
	stored, err := m.prefs.GetPreferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if stored.SourceLanguage == source && stored.TargetLanguage == target {
		return nil
	}
	stored.SourceLanguage = source
	stored.TargetLanguage = target
	stored.UpdatedAt = m.now()
	if err := m.prefs.SavePreferences(ctx, *stored); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
