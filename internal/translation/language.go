package translation

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// BaseLanguage normalizes a BCP 47 code such as "en-US" to its base language "en".
func BaseLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		lower := strings.ToLower(code)
		if len(lower) > 2 {
			return lower[:2]
		}
		return lower
	}
	base, _ := tag.Base()
	return base.String()
}

// NeedsTranslation is false when the base of the source language equals the target
// code. The target keeps its region or script, so en-US to en-GB is still translated.
func NeedsTranslation(source, target string) bool {
	return BaseLanguage(source) != strings.ToLower(strings.TrimSpace(target))
}

// LanguageName returns an English display name for prompts, or the code itself
// when it cannot be resolved.
func LanguageName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
