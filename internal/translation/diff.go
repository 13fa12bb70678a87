package translation

import (
	"regexp"
	"strings"
)

type ChangeKind int

const (
	NoChange ChangeKind = iota
	// Suffix means current extends previous; Text holds only the appended part.
	Suffix
	// FullReplace means current diverged from previous; Text holds all of it.
	FullReplace
)

func (k ChangeKind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case Suffix:
		return "suffix"
	case FullReplace:
		return "full_replace"
	default:
		return "unknown"
	}
}

type Change struct {
	Kind ChangeKind
	Text string
}

// Diff compares the last submitted snapshot with the current transcript.
func Diff(previous, current string) Change {
	if current == previous {
		return Change{Kind: NoChange}
	}
	if previous != "" && strings.HasPrefix(current, previous) {
		suffix := current[len(previous):]
		if strings.TrimSpace(suffix) == "" {
			return Change{Kind: NoChange}
		}
		return Change{Kind: Suffix, Text: suffix}
	}
	if strings.TrimSpace(current) == "" {
		return Change{Kind: NoChange}
	}
	return Change{Kind: FullReplace, Text: current}
}

const literalWordLimit = 10

var unitSeparator = regexp.MustCompile(`\n|\. `)

// SplitUnits splits text into candidate translation units on newlines and
// sentence breaks.
func SplitUnits(text string) []string {
	parts := unitSeparator.Split(text, -1)
	units := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		units = append(units, p)
	}
	return units
}

// SelectMode picks the literal prompt for a single short unit and the contextual
// prompt for anything longer.
func SelectMode(text string) Mode {
	if len(SplitUnits(text)) <= 1 && len(strings.Fields(text)) < literalWordLimit {
		return ModeLiteral
	}
	return ModeContextual
}
