package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/foxseedlab/tsuyaku/internal/repository"
)

// PlaceholderAPIKey is shipped in sample configs and never valid.
const PlaceholderAPIKey = "your-openai-api-key"

var ErrMissingCredential = errors.New("language model api key is not configured")

type SummaryRequest struct {
	Text string
	// Language is the language the text is written in.
	Language string
}

type Summary struct {
	Title         string `json:"title"`
	FormattedText string `json:"formattedText"`
	Summary       string `json:"summary"`
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (Summary, error)
}

type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

func ValidAPIKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// StoredCredentials prefers the configured key and falls back to the key saved
// with the user preferences.
type StoredCredentials struct {
	configured string
	prefs      repository.PreferenceRepository
}

func NewStoredCredentials(configured string, prefs repository.PreferenceRepository) *StoredCredentials {
	return &StoredCredentials{configured: configured, prefs: prefs}
}

func (c *StoredCredentials) APIKey(ctx context.Context) (string, error) {
	if ValidAPIKey(c.configured) {
		return strings.TrimSpace(c.configured), nil
	}
	if c.prefs == nil {
		return "", ErrMissingCredential
	}
	p, err := c.prefs.GetPreferences(ctx)
	if err != nil {
		return "", err
	}
	if !ValidAPIKey(p.APIKey) {
		return "", ErrMissingCredential
	}
	return strings.TrimSpace(p.APIKey), nil
}
