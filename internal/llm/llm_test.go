package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/tsuyaku/internal/repository"
)

type mockPreferenceRepository struct {
	prefs repository.Preferences
	err   error
}

func (m *mockPreferenceRepository) GetPreferences(context.Context) (*repository.Preferences, error) {
	if m.err != nil {
		return nil, m.err
	}
	p := m.prefs
	return &p, nil
}

func (m *mockPreferenceRepository) SavePreferences(_ context.Context, p repository.Preferences) error {
	m.prefs = p
	return nil
}

func TestStoredCredentials_PrefersConfiguredKey(t *testing.T) {
	c := NewStoredCredentials(" sk-config ", &mockPreferenceRepository{prefs: repository.Preferences{APIKey: "sk-stored"}})
	key, err := c.APIKey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-config" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestStoredCredentials_FallsBackToStoredKey(t *testing.T) {
	c := NewStoredCredentials(PlaceholderAPIKey, &mockPreferenceRepository{prefs: repository.Preferences{APIKey: "sk-stored"}})
	key, err := c.APIKey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-stored" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestStoredCredentials_Missing(t *testing.T) {
	tests := []struct {
		name  string
		prefs *mockPreferenceRepository
	}{
		{name: "no repository"},
		{name: "empty stored key", prefs: &mockPreferenceRepository{}},
		{name: "placeholder stored key", prefs: &mockPreferenceRepository{prefs: repository.Preferences{APIKey: PlaceholderAPIKey}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prefs repository.PreferenceRepository
			if tt.prefs != nil {
				prefs = tt.prefs
			}
			_, err := NewStoredCredentials("", prefs).APIKey(context.Background())
			if !errors.Is(err, ErrMissingCredential) {
				t.Fatalf("expected ErrMissingCredential, got %v", err)
			}
		})
	}
}
