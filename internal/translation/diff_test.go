package translation

import "testing"

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		current  string
		kind     ChangeKind
		text     string
	}{
		{name: "identical", previous: "a b ", current: "a b ", kind: NoChange},
		{name: "first submission", previous: "", current: "hello ", kind: FullReplace, text: "hello "},
		{name: "extension", previous: "hello ", current: "hello world ", kind: Suffix, text: "world "},
		{name: "whitespace only extension", previous: "hello", current: "hello  ", kind: NoChange},
		{name: "divergence", previous: "hello world", current: "help", kind: FullReplace, text: "help"},
		{name: "empty current", previous: "", current: "  ", kind: NoChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.previous, tt.current)
			if got.Kind != tt.kind || got.Text != tt.text {
				t.Fatalf("Diff(%q, %q) = %s %q, want %s %q", tt.previous, tt.current, got.Kind, got.Text, tt.kind, tt.text)
			}
		})
	}
}

func TestSelectMode(t *testing.T) {
	if got := SelectMode("Hello world."); got != ModeLiteral {
		t.Fatalf("expected literal for a short utterance, got %s", got)
	}
	if got := SelectMode("First sentence. Second sentence."); got != ModeContextual {
		t.Fatalf("expected contextual for two units, got %s", got)
	}
	if got := SelectMode("one two three four five six seven eight nine ten"); got != ModeContextual {
		t.Fatalf("expected contextual for ten words, got %s", got)
	}
	if got := SelectMode("line one\nline two"); got != ModeContextual {
		t.Fatalf("expected contextual for multiple lines, got %s", got)
	}
}

func TestSplitUnits(t *testing.T) {
	units := SplitUnits("A. B\n\nC. ")
	if len(units) != 3 || units[0] != "A" || units[1] != "B" || units[2] != "C" {
		t.Fatalf("unexpected units: %q", units)
	}
}

func TestNeedsTranslation(t *testing.T) {
	tests := []struct {
		source, target string
		want           bool
	}{
		{"en-US", "en", false},
		{"zh-CN", "zh", false},
		{"en-US", "zh", true},
		{"ja-JP", "en", true},
		{"en-US", " EN ", false},
		{"en-US", "en-GB", true},
		{"zh-CN", "zh-TW", true},
	}
	for _, tt := range tests {
		if got := NeedsTranslation(tt.source, tt.target); got != tt.want {
			t.Fatalf("NeedsTranslation(%q, %q) = %v, want %v", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName("ja"); got != "Japanese" {
		t.Fatalf("unexpected name for ja: %q", got)
	}
	if got := LanguageName("!!"); got != "!!" {
		t.Fatalf("expected unresolvable code to be returned as is, got %q", got)
	}
}
