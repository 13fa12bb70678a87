package session

import (
	"errors"

	"github.com/foxseedlab/tsuyaku/internal/render"
	"github.com/foxseedlab/tsuyaku/internal/repository"
)

var (
	ErrAlreadyRecording      = errors.New("a recording is already in progress")
	ErrNotRecording          = errors.New("no recording in progress")
	ErrCapabilityUnavailable = errors.New("speech capability is unavailable")
	ErrNoPendingDocument     = errors.New("no document is waiting for review")
	ErrInvalidLanguage       = errors.New("invalid language")
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	// StateReview holds a finalized document until it is saved or discarded.
	StateReview State = "review"
)

type Source string

const (
	SourceBrowser Source = "browser"
	SourceVoice   Source = "voice"
)

type Reason string

const (
	ReasonStarted          Reason = "started"
	ReasonStopped          Reason = "stopped"
	ReasonRecognitionError Reason = "recognition_error"
	ReasonServerClosed     Reason = "server_closed"
	ReasonEmptyTranscript  Reason = "empty_transcript"
	ReasonDocumentReady    Reason = "document_ready"
	ReasonSaved            Reason = "saved"
	ReasonDiscarded        Reason = "discarded"
)

// ErrorCode classifies failures. Only capability and recognition errors reach
// the user; the others are logged and degraded locally.
type ErrorCode string

const (
	ErrorCapabilityUnavailable ErrorCode = "capability_unavailable"
	ErrorRecognition           ErrorCode = "recognition"
	ErrorTranslation           ErrorCode = "translation"
	ErrorSummarization         ErrorCode = "summarization"
	ErrorConfiguration         ErrorCode = "configuration"
)

// EventSink receives everything the presentation layer needs.
type EventSink interface {
	SessionStateChanged(state State, reason Reason)
	ViewUpdated(view render.View)
	DocumentReady(doc repository.Document)
	SessionError(code ErrorCode, detail string)
}
