package translation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/transcript"
)

type mockTranslator struct {
	mu      sync.Mutex
	calls   []Request
	err     error
	reply   func(req Request) string
	release chan struct{}
}

func (m *mockTranslator) Translate(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	release := m.release
	err := m.err
	reply := m.reply
	m.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return "", err
	}
	if reply != nil {
		return reply(req), nil
	}
	return "T(" + req.Text + ")", nil
}

func (m *mockTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockTranslator) call(i int) Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

var testStart = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newTestBatcher(tr Translator, source, target string) (*transcript.Session, *Batcher) {
	s := transcript.NewSession()
	s.Begin(testStart, source, target)
	b := NewBatcher(s, tr, Options{Delay: 20 * time.Millisecond, PauseDelay: 5 * time.Millisecond})
	return s, b
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestRequestTranslation_IdenticalTextCallsOnce(t *testing.T) {
	tr := &mockTranslator{}
	s, b := newTestBatcher(tr, "en-US", "zh")

	b.RequestTranslation("Hello world. ")
	waitUntil(t, time.Second, func() bool { return s.Translation() != "" }, "expected translation to be merged")
	if b.RequestTranslation("Hello world. ") {
		t.Fatal("identical text must not be rescheduled")
	}
	time.Sleep(60 * time.Millisecond)

	if tr.callCount() != 1 {
		t.Fatalf("expected one network call, got %d", tr.callCount())
	}
}

func TestRequestTranslation_AppendModeSendsOnlySuffix(t *testing.T) {
	tr := &mockTranslator{}
	s, b := newTestBatcher(tr, "en-US", "zh")

	b.RequestTranslation("Good morning. ")
	waitUntil(t, time.Second, func() bool { return s.Translation() == "T(Good morning.)" }, "first translation not merged")

	b.RequestTranslation("Good morning. How are you? ")
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 2 && !s.Translating() }, "second translation not merged")

	if got := tr.call(1).Text; got != "How are you?" {
		t.Fatalf("expected only the suffix to be sent, got %q", got)
	}
	if got := s.Translation(); got != "T(Good morning.)\nT(How are you?)" {
		t.Fatalf("unexpected buffer: %q", got)
	}
}

func TestRequestTranslation_DebounceCoalescesRapidUpdates(t *testing.T) {
	tr := &mockTranslator{}
	s, b := newTestBatcher(tr, "en-US", "ja")

	b.RequestTranslation("one ")
	b.RequestTranslation("one two ")
	b.RequestTranslation("one two three ")
	waitUntil(t, time.Second, func() bool { return s.Translation() != "" }, "expected translation")
	time.Sleep(50 * time.Millisecond)

	if tr.callCount() != 1 {
		t.Fatalf("expected one coalesced call, got %d", tr.callCount())
	}
	if got := tr.call(0).Text; got != "one two three" {
		t.Fatalf("expected latest text to be sent, got %q", got)
	}
}

func TestRequestTranslation_FailureKeepsBuffer(t *testing.T) {
	tr := &mockTranslator{}
	s, b := newTestBatcher(tr, "en-US", "zh")

	b.RequestTranslation("First. ")
	waitUntil(t, time.Second, func() bool { return s.Translation() == "T(First.)" }, "first translation not merged")

	tr.mu.Lock()
	tr.err = errors.New("network down")
	tr.mu.Unlock()
	b.RequestTranslation("First. Second. ")
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 2 && !s.Translating() }, "failed call did not settle")

	if got := s.Translation(); got != "T(First.)" {
		t.Fatalf("translation buffer must be unchanged after failure, got %q", got)
	}
	if s.LastSubmitted() != "First. " {
		t.Fatalf("failed text must not count as translated, got %q", s.LastSubmitted())
	}
}

func TestRequestTranslation_SameLanguageSkipsNetwork(t *testing.T) {
	tr := &mockTranslator{}
	s, b := newTestBatcher(tr, "en-US", "en")

	long := "this is a rather long sentence that would normally use the contextual prompt. and another one. "
	if b.RequestTranslation(long) {
		t.Fatal("expected no scheduling when source equals target")
	}
	time.Sleep(60 * time.Millisecond)
	if tr.callCount() != 0 {
		t.Fatalf("expected no network calls, got %d", tr.callCount())
	}
	if s.Translating() {
		t.Fatal("no pending indicator expected when translation is disabled")
	}
}

func TestRequestTranslation_PauseUsesFastPathAndClearsFlag(t *testing.T) {
	tr := &mockTranslator{}
	s := transcript.NewSession()
	s.Begin(testStart, "en-US", "zh")
	acc := transcript.NewAccumulator(s, transcript.DefaultPauseThreshold)
	b := NewBatcher(s, tr, Options{Delay: time.Hour, PauseDelay: 5 * time.Millisecond})

	acc.OnRecognitionEvent([]transcript.Fragment{{Text: "A.", IsFinal: true}}, testStart.Add(time.Second))
	acc.OnRecognitionEvent([]transcript.Fragment{{Text: "B.", IsFinal: true}}, testStart.Add(7*time.Second))
	if !s.PauseDetected() {
		t.Fatal("expected pause flag before requesting translation")
	}

	b.RequestTranslation(s.FinalText())
	if s.PauseDetected() {
		t.Fatal("expected pause flag to be consumed by the batcher")
	}
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 1 }, "pause fast path did not fire")
	if got := tr.call(0).Text; got != "A. \nB." {
		t.Fatalf("expected full re-evaluation after pause, got %q", got)
	}
}

func TestRequestTranslation_LateResultDroppedAfterReset(t *testing.T) {
	tr := &mockTranslator{release: make(chan struct{})}
	s, b := newTestBatcher(tr, "en-US", "zh")

	b.RequestTranslation("Hello. ")
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 1 }, "call was not sent")
	s.Reset()
	close(tr.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if s.Translation() != "" {
		t.Fatalf("late result must be dropped, got %q", s.Translation())
	}
}

func TestCancel_DropsPendingTimer(t *testing.T) {
	tr := &mockTranslator{}
	_, b := newTestBatcher(tr, "en-US", "zh")

	b.RequestTranslation("Pending. ")
	b.Cancel()
	time.Sleep(60 * time.Millisecond)
	if tr.callCount() != 0 {
		t.Fatalf("expected cancelled request to never be sent, got %d calls", tr.callCount())
	}
}

func TestRetranslate_ReplacesBuffer(t *testing.T) {
	tr := &mockTranslator{}
	s := transcript.NewSession()
	s.Begin(testStart, "en-US", "zh")
	acc := transcript.NewAccumulator(s, transcript.DefaultPauseThreshold)
	b := NewBatcher(s, tr, Options{Delay: 10 * time.Millisecond, PauseDelay: 5 * time.Millisecond})

	acc.OnRecognitionEvent([]transcript.Fragment{{Text: "Hello.", IsFinal: true}}, testStart.Add(time.Second))
	b.RequestTranslation(s.FinalText())
	waitUntil(t, time.Second, func() bool { return s.Translation() == "T(Hello.)" }, "first translation not merged")

	tr.mu.Lock()
	tr.reply = func(req Request) string { return "R(" + req.Text + ")" }
	tr.mu.Unlock()
	s.SetLanguages("en-US", "ja")
	if !b.Retranslate() {
		t.Fatal("expected retranslation to be scheduled")
	}
	waitUntil(t, time.Second, func() bool { return s.Translation() == "R(Hello.)" }, "retranslation did not replace the buffer")
	if got := tr.call(1).TargetLanguage; got != "Japanese" {
		t.Fatalf("unexpected target language name: %q", got)
	}
}

func TestRetranslate_DuringInFlightCallTranslatesWithNewLanguage(t *testing.T) {
	release := make(chan struct{})
	tr := &mockTranslator{
		release: release,
		reply:   func(req Request) string { return req.TargetLanguage + ":" + req.Text },
	}
	s := transcript.NewSession()
	s.Begin(testStart, "en-US", "zh")
	acc := transcript.NewAccumulator(s, transcript.DefaultPauseThreshold)
	b := NewBatcher(s, tr, Options{Delay: 10 * time.Millisecond, PauseDelay: 5 * time.Millisecond})

	acc.OnRecognitionEvent([]transcript.Fragment{{Text: "Hello world.", IsFinal: true}}, testStart.Add(time.Second))
	b.RequestTranslation(s.FinalText())
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 1 }, "expected the first call to be in flight")

	s.SetLanguages("en-US", "fr")
	if !b.Retranslate() {
		t.Fatal("expected retranslation to be scheduled")
	}
	tr.mu.Lock()
	tr.release = nil
	tr.mu.Unlock()
	close(release)

	waitUntil(t, time.Second, func() bool { return s.Translation() == "French:Hello world." }, "retranslation was not applied")
	if tr.callCount() != 2 {
		t.Fatalf("expected exactly two calls, got %d", tr.callCount())
	}
	if got := tr.call(1).TargetLanguage; got != "French" {
		t.Fatalf("unexpected target language for retranslation: %q", got)
	}
	waitUntil(t, time.Second, func() bool { return !s.Translating() }, "translating flag was not cleared")
}

func TestRequestTranslation_HelloWorldScenario(t *testing.T) {
	tr := &mockTranslator{}
	s := transcript.NewSession()
	s.Begin(testStart, "en-US", "zh")
	acc := transcript.NewAccumulator(s, transcript.DefaultPauseThreshold)
	b := NewBatcher(s, tr, Options{})

	acc.OnRecognitionEvent([]transcript.Fragment{{Text: "Hello", IsFinal: false}}, testStart.Add(100*time.Millisecond))
	update := acc.OnRecognitionEvent([]transcript.Fragment{{Text: "Hello world.", IsFinal: true}}, testStart.Add(600*time.Millisecond))
	if update.FinalText != "Hello world. " {
		t.Fatalf("unexpected raw transcript: %q", update.FinalText)
	}

	requested := time.Now()
	b.RequestTranslation(update.FinalText)
	waitUntil(t, time.Second, func() bool { return tr.callCount() == 1 }, "expected one translation call")
	if elapsed := time.Since(requested); elapsed > 450*time.Millisecond {
		t.Fatalf("translation call took too long to fire: %v", elapsed)
	}
	req := tr.call(0)
	if req.Text != "Hello world." {
		t.Fatalf("unexpected text sent: %q", req.Text)
	}
	if req.Mode != ModeLiteral {
		t.Fatalf("expected literal mode for a short utterance, got %s", req.Mode)
	}
}
