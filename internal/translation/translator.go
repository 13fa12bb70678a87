package translation

import "context"

// Mode selects the prompt used for a translation request.
type Mode string

const (
	// ModeLiteral asks for a word-for-word rendering of a short utterance.
	ModeLiteral Mode = "literal"
	// ModeContextual asks for a meaning-preserving translation that keeps line breaks.
	ModeContextual Mode = "contextual"
)

type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Mode           Mode
}

type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}
