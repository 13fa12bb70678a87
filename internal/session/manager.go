package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/config"
	"github.com/foxseedlab/tsuyaku/internal/library"
	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/render"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
	"github.com/foxseedlab/tsuyaku/internal/translation"
)

const finalizeWaitTimeout = 30 * time.Second

type StartInput struct {
	Source         Source
	SourceLanguage string
	TargetLanguage string
	// Voice is required for SourceVoice.
	Voice *VoiceTarget
}

type Status struct {
	State              State     `json:"state"`
	Source             Source    `json:"source,omitempty"`
	SourceLanguage     string    `json:"sourceLanguage,omitempty"`
	TargetLanguage     string    `json:"targetLanguage,omitempty"`
	StartedAt          time.Time `json:"startedAt,omitzero"`
	TranslationEnabled bool      `json:"translationEnabled"`
	PendingDocumentID  string    `json:"pendingDocumentId,omitempty"`
	VoiceAvailable     bool      `json:"voiceAvailable"`
}

// Manager owns the single recording of this process and drives it from start
// through finalization and review.
type Manager struct {
	cfg       *config.Config
	prefs     repository.PreferenceRepository
	library   *library.Service
	finalizer *Finalizer
	voiceDeps *VoiceDeps
	now       func() time.Time

	session     *transcript.Session
	accumulator *transcript.Accumulator
	batcher     *translation.Batcher

	// eventMu serializes recognition events with start and stop.
	eventMu sync.Mutex

	mu        sync.Mutex
	state     State
	source    Source
	startedAt time.Time
	pending   *repository.Document
	voice     *voiceCapture
	sinks     []EventSink
}

// NewManager wires the recording pipeline. voiceDeps may be nil when voice
// channel capture is not configured.
func NewManager(cfg *config.Config, prefs repository.PreferenceRepository, lib *library.Service, translator translation.Translator, summarizer llm.Summarizer, voiceDeps *VoiceDeps) *Manager {
	s := transcript.NewSession()
	m := &Manager{
		cfg:         cfg,
		prefs:       prefs,
		library:     lib,
		finalizer:   NewFinalizer(summarizer, cfg.Location(), cfg.OpenAITimeout()),
		voiceDeps:   voiceDeps,
		now:         time.Now,
		session:     s,
		accumulator: transcript.NewAccumulator(s, cfg.PauseThreshold()),
		state:       StateIdle,
	}
	m.batcher = translation.NewBatcher(s, translator, translation.Options{
		Delay:          cfg.TranslationDebounce(),
		PauseDelay:     cfg.TranslationPauseDebounce(),
		RequestTimeout: cfg.OpenAITimeout(),
		OnChange:       m.emitView,
		OnError:        onTranslationError,
	})
	return m
}

func (m *Manager) AddSink(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

func (m *Manager) VoiceAvailable() bool {
	return m.voiceDeps != nil
}

func (m *Manager) Start(ctx context.Context, in StartInput) error {
	source := in.Source
	if source == "" {
		source = SourceBrowser
	}
	if source == SourceVoice && (m.voiceDeps == nil || in.Voice == nil) {
		return fmt.Errorf("%w: voice channel capture is not configured", ErrCapabilityUnavailable)
	}

	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	m.mu.Lock()
	if m.state == StateRecording || m.state == StateFinalizing {
		m.mu.Unlock()
		return ErrAlreadyRecording
	}
	m.mu.Unlock()

	sourceLanguage, targetLanguage := m.resolveLanguages(ctx, in.SourceLanguage, in.TargetLanguage)

	m.mu.Lock()
	if m.pending != nil {
		slog.Info("dropping unsaved document for new recording", "document_id", m.pending.ID)
		m.pending = nil
	}
	now := m.now()
	gen := m.session.Begin(now, sourceLanguage, targetLanguage)
	m.state = StateRecording
	m.source = source
	m.startedAt = now
	m.mu.Unlock()

	if source == SourceVoice {
		vc, err := m.startVoiceCapture(gen, *in.Voice, sourceLanguage)
		if err != nil {
			m.session.Reset()
			m.mu.Lock()
			m.state = StateIdle
			m.source = ""
			m.startedAt = time.Time{}
			m.mu.Unlock()
			slog.Error("failed to start voice capture", "error", err, "guild_id", in.Voice.GuildID, "channel_id", in.Voice.ChannelID)
			return fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
		}
		m.mu.Lock()
		m.voice = vc
		m.mu.Unlock()
	}

	if err := m.saveLanguages(ctx, sourceLanguage, targetLanguage); err != nil {
		slog.Warn("failed to persist language preferences", "error", err)
	}
	slog.Info("recording started", "source", source, "source_language", sourceLanguage, "target_language", targetLanguage, "generation", gen)
	m.emitState(StateRecording, ReasonStarted)
	m.emitView()
	return nil
}

// HandleRecognition folds one recognition event into the running transcript.
func (m *Manager) HandleRecognition(fragments []transcript.Fragment, at time.Time) error {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	if !m.isRecording() {
		return ErrNotRecording
	}
	if at.IsZero() {
		at = m.now()
	}
	update := m.accumulator.OnRecognitionEvent(fragments, at)
	if update.PauseDetected {
		slog.Debug("pause detected; starting a new line", "at", at)
	}
	if strings.TrimSpace(update.FinalText) != "" {
		m.batcher.RequestTranslation(update.FinalText)
	}
	m.emitView()
	return nil
}

// HandleRecognitionError reports a recognition fault to the user and stops the
// recording. What was transcribed so far is still finalized.
func (m *Manager) HandleRecognitionError(ctx context.Context, err error) {
	slog.Error("speech recognition failed", "error", err, "error_code", ErrorRecognition)
	m.emitError(ErrorRecognition, err.Error())
	if _, stopErr := m.Stop(ctx, ReasonRecognitionError); stopErr != nil && !errors.Is(stopErr, ErrNotRecording) {
		slog.Error("failed to stop recording after recognition error", "error", stopErr)
	}
}

// Stop ends the recording and finalizes it. The result is nil when nothing was
// transcribed. Browser recordings are held for review; voice recordings are
// saved right away.
func (m *Manager) Stop(ctx context.Context, reason Reason) (*repository.Document, error) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	m.mu.Lock()
	if m.state != StateRecording {
		m.mu.Unlock()
		return nil, ErrNotRecording
	}
	m.state = StateFinalizing
	source := m.source
	vc := m.voice
	m.voice = nil
	m.mu.Unlock()

	slog.Info("stopping recording", "source", source, "reason", reason)
	m.emitState(StateFinalizing, reason)

	if vc != nil {
		vc.close()
	}
	m.batcher.Cancel()
	waitCtx, cancel := context.WithTimeout(ctx, finalizeWaitTimeout)
	if err := m.batcher.Wait(waitCtx); err != nil {
		slog.Warn("in-flight translation did not finish before finalizing", "error", err)
	}
	cancel()

	snap := m.session.Snapshot()
	m.session.Reset()
	doc := m.finalizer.Finalize(ctx, snap, m.now())

	if doc == nil {
		slog.Info("recording stopped with an empty transcript; no document created")
		if vc != nil {
			m.postVoiceResult(vc.target, nil)
		}
		m.finish(StateIdle, nil)
		m.emitState(StateIdle, ReasonEmptyTranscript)
		return nil, nil
	}

	if source == SourceVoice && vc != nil {
		saved, err := m.library.Save(ctx, *doc)
		if err != nil {
			slog.Error("failed to save voice channel document", "error", err, "document_id", doc.ID)
		} else {
			doc = saved
		}
		m.postVoiceResult(vc.target, doc)
		m.finish(StateIdle, nil)
		m.emitDocument(*doc)
		m.emitState(StateIdle, ReasonSaved)
		return doc, nil
	}

	m.finish(StateReview, doc)
	slog.Info("document ready for review", "document_id", doc.ID, "title", doc.Title)
	m.emitDocument(*doc)
	m.emitState(StateReview, ReasonDocumentReady)
	return doc, nil
}

func (m *Manager) finish(state State, pending *repository.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.source = ""
	m.startedAt = time.Time{}
	m.pending = pending
}

// SavePending stores the document waiting for review, applying edit first.
func (m *Manager) SavePending(ctx context.Context, edit library.Edit) (*repository.Document, error) {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return nil, ErrNoPendingDocument
	}
	doc := *m.pending
	m.mu.Unlock()

	edit.Apply(&doc)
	saved, err := m.library.Save(ctx, doc)
	if err != nil {
		return nil, err
	}
	if m.clearPending(doc.ID) {
		m.emitState(StateIdle, ReasonSaved)
	}
	return saved, nil
}

func (m *Manager) DiscardPending() error {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return ErrNoPendingDocument
	}
	id := m.pending.ID
	m.mu.Unlock()

	if m.clearPending(id) {
		slog.Info("document discarded", "document_id", id)
		m.emitState(StateIdle, ReasonDiscarded)
	}
	return nil
}

func (m *Manager) clearPending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil || m.pending.ID != id {
		return false
	}
	m.pending = nil
	if m.state == StateReview {
		m.state = StateIdle
	}
	return true
}

// SetLanguages persists the language pair. During a recording the whole
// transcript is translated again for the new pair.
func (m *Manager) SetLanguages(ctx context.Context, sourceLanguage, targetLanguage string) error {
	sourceLanguage = strings.TrimSpace(sourceLanguage)
	targetLanguage = strings.TrimSpace(targetLanguage)
	if translation.BaseLanguage(sourceLanguage) == "" || translation.BaseLanguage(targetLanguage) == "" {
		return fmt.Errorf("%w: source and target languages are required", ErrInvalidLanguage)
	}
	if err := m.saveLanguages(ctx, sourceLanguage, targetLanguage); err != nil {
		return err
	}
	if !m.isRecording() {
		return nil
	}

	prevSource, prevTarget := m.session.Languages()
	m.session.SetLanguages(sourceLanguage, targetLanguage)
	if prevSource != sourceLanguage || prevTarget != targetLanguage {
		slog.Info("languages changed during recording; retranslating", "source_language", sourceLanguage, "target_language", targetLanguage)
		m.batcher.Retranslate()
	}
	m.emitView()
	return nil
}

func (m *Manager) Status() Status {
	source, target := m.session.Languages()
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:          m.state,
		Source:         m.source,
		StartedAt:      m.startedAt,
		VoiceAvailable: m.voiceDeps != nil,
	}
	if m.state == StateRecording || m.state == StateFinalizing {
		st.SourceLanguage = source
		st.TargetLanguage = target
		st.TranslationEnabled = translation.NeedsTranslation(source, target)
	}
	if m.pending != nil {
		st.PendingDocumentID = m.pending.ID
	}
	return st
}

// PendingDocument returns a copy of the document waiting for review.
func (m *Manager) PendingDocument() *repository.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	doc := *m.pending
	return &doc
}

// View returns the current line-paired view of the running recording.
func (m *Manager) View() render.View {
	return render.Build(render.FromSession(m.session))
}

// Shutdown stops a running recording and keeps its document instead of
// leaving it unsaved.
func (m *Manager) Shutdown(ctx context.Context) {
	if _, err := m.Stop(ctx, ReasonServerClosed); err != nil && !errors.Is(err, ErrNotRecording) {
		slog.Error("failed to stop recording on shutdown", "error", err)
	}
	if doc, err := m.SavePending(ctx, library.Edit{}); err == nil {
		slog.Info("saved pending document on shutdown", "document_id", doc.ID)
	} else if !errors.Is(err, ErrNoPendingDocument) {
		slog.Error("failed to save pending document on shutdown", "error", err)
	}
}

func (m *Manager) isRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRecording
}

func (m *Manager) emitState(state State, reason Reason) {
	for _, s := range m.sinkSnapshot() {
		s.SessionStateChanged(state, reason)
	}
}

func (m *Manager) emitView() {
	if !m.session.Live(m.session.Generation()) {
		return
	}
	view := m.View()
	for _, s := range m.sinkSnapshot() {
		s.ViewUpdated(view)
	}
}

func (m *Manager) emitDocument(doc repository.Document) {
	for _, s := range m.sinkSnapshot() {
		s.DocumentReady(doc)
	}
}

func (m *Manager) emitError(code ErrorCode, detail string) {
	for _, s := range m.sinkSnapshot() {
		s.SessionError(code, detail)
	}
}

func (m *Manager) sinkSnapshot() []EventSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventSink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

func onTranslationError(err error) {
	code := ErrorTranslation
	if errors.Is(err, llm.ErrMissingCredential) {
		code = ErrorConfiguration
	}
	slog.Warn("translation failed; showing original text only", "error_code", code, "error", err)
}
