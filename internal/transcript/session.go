package transcript

import (
	"strings"
	"sync"
	"time"
)

// Line is one pause-delimited line of the final transcript.
type Line struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the mutable state of one recording. It is shared by reference between
// the accumulator, the translation batcher and the finalizer; every access goes
// through its methods.
type Session struct {
	mu sync.Mutex

	lines         []Line
	interim       string
	translation   string
	lastSubmitted string
	lastRequested string
	pause         bool
	lastSpeechAt  time.Time
	translating   bool

	// prefixEpoch advances on every explicit prefix reset. Results submitted under an
	// older epoch are not merged.
	prefixEpoch uint64

	sourceLanguage string
	targetLanguage string

	live       bool
	generation uint64
}

func NewSession() *Session {
	return &Session{}
}

// Begin resets the session for a new recording and marks it live. The returned
// generation identifies this recording for late asynchronous results.
func (s *Session) Begin(now time.Time, sourceLanguage, targetLanguage string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.lastSpeechAt = now
	s.sourceLanguage = sourceLanguage
	s.targetLanguage = targetLanguage
	s.live = true
	s.generation++
	return s.generation
}

// Reset destroys the session contents. Results still in flight for the previous
// generation are dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.sourceLanguage = ""
	s.targetLanguage = ""
	s.live = false
	s.generation++
}

func (s *Session) clearLocked() {
	s.lines = nil
	s.interim = ""
	s.translation = ""
	s.lastSubmitted = ""
	s.lastRequested = ""
	s.pause = false
	s.lastSpeechAt = time.Time{}
	s.translating = false
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Live reports whether gen still names the active recording.
func (s *Session) Live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live && s.generation == gen
}

func (s *Session) Languages() (source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLanguage, s.targetLanguage
}

func (s *Session) SetLanguages(source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceLanguage = source
	s.targetLanguage = target
}

// Lines returns a copy of the transcript lines.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Session) FinalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalTextLocked()
}

func (s *Session) finalTextLocked() string {
	texts := make([]string, len(s.lines))
	for i, l := range s.lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

func (s *Session) Interim() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interim
}

func (s *Session) Translation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translation
}

// TranslatedLines splits the translation buffer into display lines, dropping
// empty ones.
func (s *Session) TranslatedLines() []string {
	return SplitLines(s.Translation())
}

func (s *Session) Translating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translating
}

func (s *Session) SetTranslating(gen uint64, translating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live || s.generation != gen {
		return
	}
	s.translating = translating
}

func (s *Session) PauseDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause
}

// ConsumePause returns the pause flag and clears it.
func (s *Session) ConsumePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pause
	s.pause = false
	return p
}

// MarkRequested records fullText as the latest text handed to the batcher. It
// reports false when fullText repeats the previous request exactly.
func (s *Session) MarkRequested(fullText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fullText == s.lastRequested {
		return false
	}
	s.lastRequested = fullText
	return true
}

func (s *Session) LastRequested() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequested
}

func (s *Session) LastSubmitted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSubmitted
}

// TranslationCheckpoint is the translation state a batcher call starts from.
type TranslationCheckpoint struct {
	Submitted string
	Requested string
	Epoch     uint64
}

func (s *Session) TranslationCheckpoint() TranslationCheckpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TranslationCheckpoint{
		Submitted: s.lastSubmitted,
		Requested: s.lastRequested,
		Epoch:     s.prefixEpoch,
	}
}

// ResetTranslatedPrefix forgets what was already sent for translation so the next
// request is evaluated in full. Calls still in flight can no longer commit.
func (s *Session) ResetTranslatedPrefix() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetPrefixLocked()
	s.prefixEpoch++
}

func (s *Session) resetPrefixLocked() {
	s.lastSubmitted = ""
	s.lastRequested = ""
}

// CommitTranslation merges a translation result for gen. With appendLine set and a
// non-empty buffer the result becomes a new line; otherwise it replaces the buffer.
// cp.Requested becomes the new translated prefix. Results of a stale generation or
// of an epoch that was reset since cp was taken are ignored.
func (s *Session) CommitTranslation(gen uint64, cp TranslationCheckpoint, result string, appendLine bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live || s.generation != gen || s.prefixEpoch != cp.Epoch {
		return false
	}
	if appendLine && s.translation != "" {
		s.translation = s.translation + "\n" + result
	} else {
		s.translation = result
	}
	s.lastSubmitted = cp.Requested
	s.translating = false
	return true
}

// Snapshot is a frozen copy of the session used by the finalizer.
type Snapshot struct {
	Lines          []Line
	RawText        string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)
	return Snapshot{
		Lines:          lines,
		RawText:        s.finalTextLocked(),
		TranslatedText: s.translation,
		SourceLanguage: s.sourceLanguage,
		TargetLanguage: s.targetLanguage,
	}
}

// SplitLines splits text on newlines and drops blank lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
