package transcript

import (
	"strings"
	"time"
)

// DefaultPauseThreshold is the silence after which the next speech starts a new line.
const DefaultPauseThreshold = 5000 * time.Millisecond

// Fragment is one recognition result inside an event.
type Fragment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Update is what the renderer needs right after an event.
type Update struct {
	FinalText     string
	InterimText   string
	PauseDetected bool
}

// Accumulator turns recognition events into timestamped transcript lines.
type Accumulator struct {
	session        *Session
	pauseThreshold time.Duration
}

func NewAccumulator(session *Session, pauseThreshold time.Duration) *Accumulator {
	if pauseThreshold <= 0 {
		pauseThreshold = DefaultPauseThreshold
	}
	return &Accumulator{session: session, pauseThreshold: pauseThreshold}
}

// OnRecognitionEvent folds one event into the session. Events must be delivered in
// arrival order.
func (a *Accumulator) OnRecognitionEvent(fragments []Fragment, eventTime time.Time) Update {
	finals, interim := splitFragments(fragments)

	s := a.session
	s.mu.Lock()
	defer s.mu.Unlock()

	gap := eventTime.Sub(s.lastSpeechAt)
	if eventTime.After(s.lastSpeechAt) {
		s.lastSpeechAt = eventTime
	}

	hasContent := strings.TrimSpace(s.finalTextLocked()) != ""
	hasIncoming := len(finals) > 0 || interim != ""
	paused := false

	if gap > a.pauseThreshold && hasContent && hasIncoming {
		paused = true
		s.pause = true
		s.resetPrefixLocked()
		last := &s.lines[len(s.lines)-1]
		if strings.TrimSpace(last.Text) == "" {
			refreshTimestamp(last, eventTime)
		} else {
			s.lines = append(s.lines, Line{Index: len(s.lines), Timestamp: eventTime})
		}
	} else if len(finals) > 0 {
		if len(s.lines) == 0 {
			s.lines = append(s.lines, Line{Index: 0, Timestamp: eventTime})
		} else {
			refreshTimestamp(&s.lines[len(s.lines)-1], eventTime)
		}
	}

	if len(finals) > 0 {
		last := &s.lines[len(s.lines)-1]
		for _, f := range finals {
			last.Text += f + " "
		}
	}
	s.interim = interim

	return Update{
		FinalText:     s.finalTextLocked(),
		InterimText:   interim,
		PauseDetected: paused,
	}
}

func splitFragments(fragments []Fragment) ([]string, string) {
	var finals []string
	var interim strings.Builder
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if f.IsFinal {
			finals = append(finals, text)
			continue
		}
		if interim.Len() > 0 {
			interim.WriteByte(' ')
		}
		interim.WriteString(text)
	}
	return finals, interim.String()
}

func refreshTimestamp(line *Line, at time.Time) {
	if at.After(line.Timestamp) {
		line.Timestamp = at
	}
}
