package translation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/transcript"
)

const (
	DefaultDelay          = 300 * time.Millisecond
	DefaultPauseDelay     = 100 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
)

type Options struct {
	// Delay coalesces updates during active speech.
	Delay time.Duration
	// PauseDelay is used right after a pause closed a line.
	PauseDelay     time.Duration
	RequestTimeout time.Duration
	// OnChange is called whenever the translation state visible to the renderer changed.
	OnChange func()
	// OnError receives failed calls. They are logged here when unset.
	OnError func(err error)
}

// Batcher debounces translation requests for one session and merges the results
// back into the session's translation buffer.
type Batcher struct {
	session    *transcript.Session
	translator Translator
	opts       Options

	mu        sync.Mutex
	timer     *time.Timer
	scheduled uint64

	// sem serializes network calls so results merge in submission order.
	sem chan struct{}
}

func NewBatcher(session *transcript.Session, translator Translator, opts Options) *Batcher {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.PauseDelay <= 0 {
		opts.PauseDelay = DefaultPauseDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Batcher{
		session:    session,
		translator: translator,
		opts:       opts,
		sem:        make(chan struct{}, 1),
	}
}

// RequestTranslation schedules fullText for translation, superseding any request
// still waiting for its debounce delay. It reports whether a request was scheduled.
func (b *Batcher) RequestTranslation(fullText string) bool {
	source, target := b.session.Languages()
	if !NeedsTranslation(source, target) {
		b.session.ConsumePause()
		return false
	}
	if !b.session.MarkRequested(fullText) {
		return false
	}

	delay := b.opts.Delay
	if b.session.ConsumePause() {
		delay = b.opts.PauseDelay
	}
	gen := b.session.Generation()
	b.session.SetTranslating(gen, true)
	b.schedule(delay, gen)
	return true
}

// Retranslate discards the translated prefix so the whole transcript is translated
// again and replaces the buffer. Used after a language change.
func (b *Batcher) Retranslate() bool {
	b.session.ResetTranslatedPrefix()
	text := b.session.FinalText()
	if strings.TrimSpace(text) == "" {
		return false
	}
	return b.RequestTranslation(text)
}

func (b *Batcher) schedule(delay time.Duration, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.scheduled++
	id := b.scheduled
	b.timer = time.AfterFunc(delay, func() {
		b.fire(id, gen)
	})
}

// Cancel drops the pending debounce timer. A call already on the wire is not
// interrupted.
func (b *Batcher) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.scheduled++
}

// Wait blocks until no translation call is in flight.
func (b *Batcher) Wait(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		<-b.sem
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher) fire(id, gen uint64) {
	b.mu.Lock()
	if id != b.scheduled {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.mu.Unlock()

	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	if b.superseded(id) {
		return
	}
	if !b.session.Live(gen) {
		slog.Debug("skipping translation for inactive session", "generation", gen)
		return
	}

	cp := b.session.TranslationCheckpoint()
	change := Diff(cp.Submitted, cp.Requested)
	if change.Kind == NoChange {
		b.session.SetTranslating(gen, false)
		b.notify()
		return
	}

	source, target := b.session.Languages()
	text := strings.TrimSpace(change.Text)
	req := Request{
		Text:           text,
		SourceLanguage: LanguageName(source),
		TargetLanguage: LanguageName(target),
		Mode:           SelectMode(text),
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.RequestTimeout)
	defer cancel()
	result, err := b.translator.Translate(ctx, req)
	if err != nil {
		if b.opts.OnError != nil {
			b.opts.OnError(err)
		} else {
			slog.Warn("translation failed; keeping previous translation", "error", err, "change", change.Kind.String(), "mode", req.Mode)
		}
		b.session.SetTranslating(gen, false)
		b.notify()
		return
	}

	if !b.session.CommitTranslation(gen, cp, strings.TrimSpace(result), change.Kind == Suffix) {
		slog.Debug("dropping stale translation result", "generation", gen, "epoch", cp.Epoch)
		return
	}
	slog.Debug("translation merged", "change", change.Kind.String(), "mode", req.Mode, "chars", len(text))
	b.notify()
}

func (b *Batcher) superseded(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return id != b.scheduled
}

func (b *Batcher) notify() {
	if b.opts.OnChange != nil {
		b.opts.OnChange()
	}
}
