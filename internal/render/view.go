package render

import (
	"strings"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/transcript"
	"github.com/foxseedlab/tsuyaku/internal/translation"
)

// Row pairs one original line with the translated line at the same index.
type Row struct {
	Index       int       `json:"index"`
	Original    string    `json:"original"`
	Translation string    `json:"translation,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
	Pending     bool      `json:"pending,omitempty"`
	Interim     bool      `json:"interim,omitempty"`
}

type View struct {
	Rows               []Row  `json:"rows"`
	Interim            string `json:"interim,omitempty"`
	Translating        bool   `json:"translating"`
	TranslationEnabled bool   `json:"translationEnabled"`
}

type Input struct {
	Lines              []transcript.Line
	Translated         []string
	Interim            string
	Translating        bool
	TranslationEnabled bool
}

// FromSession captures the render input of the live session.
func FromSession(s *transcript.Session) Input {
	source, target := s.Languages()
	return Input{
		Lines:              s.Lines(),
		Translated:         s.TranslatedLines(),
		Interim:            s.Interim(),
		Translating:        s.Translating(),
		TranslationEnabled: translation.NeedsTranslation(source, target),
	}
}

// Build aligns original and translated lines by index. Blank lines on either side
// are dropped first. Translations are never re-indexed after a later pause splits
// the original differently.
func Build(in Input) View {
	originals := make([]transcript.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		originals = append(originals, l)
	}
	translated := make([]string, 0, len(in.Translated))
	for _, t := range in.Translated {
		if strings.TrimSpace(t) == "" {
			continue
		}
		translated = append(translated, t)
	}

	n := max(len(originals), len(translated))
	rows := make([]Row, 0, n+1)
	for i := range n {
		row := Row{Index: i}
		if i < len(originals) {
			row.Original = strings.TrimSpace(originals[i].Text)
			row.Timestamp = originals[i].Timestamp
		}
		if in.TranslationEnabled && i < len(translated) {
			row.Translation = translated[i]
		}
		rows = append(rows, row)
	}

	if in.TranslationEnabled && in.Translating && len(rows) > 0 {
		last := &rows[len(rows)-1]
		if last.Original != "" && last.Translation == "" {
			last.Pending = true
		}
	}

	if in.Interim != "" {
		rows = append(rows, Row{
			Index:    len(rows),
			Original: strings.TrimSpace(in.Interim),
			Pending:  in.TranslationEnabled,
			Interim:  true,
		})
	}

	return View{
		Rows:               rows,
		Interim:            in.Interim,
		Translating:        in.Translating,
		TranslationEnabled: in.TranslationEnabled,
	}
}
