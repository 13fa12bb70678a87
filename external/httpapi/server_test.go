package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	repositoryimpl "github.com/foxseedlab/tsuyaku/external/repository"
	"github.com/foxseedlab/tsuyaku/internal/config"
	"github.com/foxseedlab/tsuyaku/internal/library"
	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/session"
	"github.com/foxseedlab/tsuyaku/internal/translation"
	"github.com/gorilla/websocket"
)

type echoTranslator struct{}

func (echoTranslator) Translate(_ context.Context, req translation.Request) (string, error) {
	return req.Text, nil
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, llm.SummaryRequest) (llm.Summary, error) {
	return llm.Summary{}, errors.New("summarizer unavailable")
}

type testEnv struct {
	server  *httptest.Server
	manager *session.Manager
	library *library.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repositoryimpl.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(repo.Close)

	cfg := &config.Config{
		Env:                        "test",
		DefaultSourceLanguage:      "en-US",
		DefaultTargetLanguage:      "en",
		PauseThresholdMs:           5000,
		TranslationDebounceMs:      10,
		TranslationPauseDebounceMs: 5,
		OpenAITimeoutSec:           5,
		TranscriptTimezone:         "UTC",
	}
	lib := library.NewService(repo, nil, cfg.Location(), cfg.TranscriptTimezone)
	manager := session.NewManager(cfg, repo, lib, echoTranslator{}, failingSummarizer{}, nil)
	srv := NewServer(manager, lib)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testEnv{server: ts, manager: manager, library: lib}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
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

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
}

func TestDocumentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	if _, err := env.library.Save(ctx, repository.Document{
		ID:               "doc-1",
		Title:            "Standup",
		FormattedContent: "<p>We <b>shipped</b>.</p>",
		Summary:          "<ul><li>Shipped</li></ul>",
		RawText:          "We shipped. ",
		SourceLanguage:   "en-US",
		TargetLanguage:   "en",
		CreatedAt:        created,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, body := env.do(t, http.MethodGet, "/api/documents", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	var list struct {
		Documents []repository.Document `json:"documents"`
	}
	if err := json.Unmarshal(body, &list); err != nil || len(list.Documents) != 1 {
		t.Fatalf("unexpected list: %s (%v)", body, err)
	}

	resp, body = env.do(t, http.MethodPut, "/api/documents/doc-1", `{"title":"  Retro  "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status: %d %s", resp.StatusCode, body)
	}
	var edited repository.Document
	if err := json.Unmarshal(body, &edited); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if edited.Title != "Retro" || edited.ID != "doc-1" || !edited.CreatedAt.Equal(created) {
		t.Fatalf("unexpected edited document: %+v", edited)
	}

	resp, body = env.do(t, http.MethodGet, "/api/documents/doc-1/share?type=copy", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Key Takeaways") || strings.Contains(string(body), "<b>") {
		t.Fatalf("unexpected share text: %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodGet, "/api/documents/doc-1/share?type=email", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "mailto:") {
		t.Fatalf("unexpected share link: %d %s", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/documents/doc-1/share?type=fax", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for unknown share type, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/documents/doc-1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/documents/doc-1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/documents/doc-1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", resp.StatusCode)
	}
}

func TestPreferencesEndpoint_KeyIsWriteOnly(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/preferences", `{"apiKey":"sk-secret","targetLanguage":"ja"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status: %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "sk-secret") {
		t.Fatalf("api key must never be returned: %s", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/preferences", "")
	var prefs session.Preferences
	if err := json.Unmarshal(body, &prefs); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get: %d %s", resp.StatusCode, body)
	}
	if !prefs.APIKeyConfigured || prefs.TargetLanguage != "ja" || prefs.SourceLanguage != "en-US" {
		t.Fatalf("unexpected preferences: %+v", prefs)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/preferences", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for invalid body, got %d", resp.StatusCode)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{session.ErrNoPendingDocument, http.StatusNotFound},
		{session.ErrInvalidLanguage, http.StatusBadRequest},
		{session.ErrAlreadyRecording, http.StatusConflict},
		{session.ErrCapabilityUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(outboundMessage) bool) outboundMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg outboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocket_RecordingReviewAndSave(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateIdle })
	sendWS(t, conn, map[string]any{"type": msgHello, "speechRecognition": true})
	sendWS(t, conn, map[string]any{"type": msgStart, "sourceLanguage": "en-US", "targetLanguage": "en"})
	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateRecording })

	sendWS(t, conn, map[string]any{
		"type":      msgResult,
		"fragments": []map[string]any{{"text": "Hello there.", "isFinal": true}},
		"timestamp": time.Now().UnixMilli(),
	})
	view := readUntil(t, conn, func(m outboundMessage) bool {
		return m.Type == msgView && m.View != nil && len(m.View.Rows) == 1 && m.View.Rows[0].Original == "Hello there."
	})
	if view.View.TranslationEnabled {
		t.Fatal("translation must be disabled for en-US -> en")
	}

	sendWS(t, conn, map[string]any{"type": msgStop})
	doc := readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgDocument })
	if doc.Document == nil || strings.TrimSpace(doc.Document.RawText) != "Hello there." {
		t.Fatalf("unexpected document: %+v", doc.Document)
	}
	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateReview })

	sendWS(t, conn, map[string]any{"type": msgSave, "title": "Greeting"})
	saved := readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgSaved })
	if saved.Document == nil || saved.Document.Title != "Greeting" {
		t.Fatalf("unexpected saved document: %+v", saved.Document)
	}
	list, err := env.library.List(context.Background())
	if err != nil || len(list) != 1 || list[0].Title != "Greeting" {
		t.Fatalf("expected saved document in library, got %+v (%v)", list, err)
	}
}

func TestWebSocket_SpeechUnavailable(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	sendWS(t, conn, map[string]any{"type": msgHello, "speechRecognition": false})
	msg := readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgError })
	if msg.Code != session.ErrorCapabilityUnavailable {
		t.Fatalf("unexpected error code: %s", msg.Code)
	}

	sendWS(t, conn, map[string]any{"type": msgStart})
	msg = readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgError })
	if msg.Code != session.ErrorCapabilityUnavailable {
		t.Fatalf("unexpected error code: %s", msg.Code)
	}
	if st := env.manager.Status(); st.State != session.StateIdle {
		t.Fatalf("recording must not start without speech recognition, got %s", st.State)
	}
}

func TestWebSocket_ResultsFromOtherClientsAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	owner := dialWS(t, env)
	viewer := dialWS(t, env)

	sendWS(t, owner, map[string]any{"type": msgStart})
	readUntil(t, viewer, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateRecording })

	sendWS(t, viewer, map[string]any{
		"type":      msgResult,
		"fragments": []map[string]any{{"text": "Intruder.", "isFinal": true}},
	})
	sendWS(t, owner, map[string]any{
		"type":      msgResult,
		"fragments": []map[string]any{{"text": "Owner.", "isFinal": true}},
	})
	msg := readUntil(t, viewer, func(m outboundMessage) bool {
		return m.Type == msgView && m.View != nil && len(m.View.Rows) > 0
	})
	if len(msg.View.Rows) != 1 || msg.View.Rows[0].Original != "Owner." {
		t.Fatalf("unexpected rows: %+v", msg.View.Rows)
	}
}

func TestWebSocket_OwnerDisconnectStopsRecording(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	sendWS(t, conn, map[string]any{"type": msgStart})
	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateRecording })
	sendWS(t, conn, map[string]any{
		"type":      msgResult,
		"fragments": []map[string]any{{"text": "Before leaving.", "isFinal": true}},
	})
	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgView && m.View != nil && len(m.View.Rows) == 1 })
	_ = conn.Close()

	waitUntil(t, 2*time.Second, func() bool { return env.manager.Status().State == session.StateReview }, "expected recording to be finalized after its client left")
}

func TestWebSocket_RecognitionErrorIsBroadcast(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	sendWS(t, conn, map[string]any{"type": msgStart})
	readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateRecording })
	sendWS(t, conn, map[string]any{"type": msgRecognitionError, "error": "network"})

	msg := readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgError })
	if msg.Code != session.ErrorRecognition || msg.Detail != "network" {
		t.Fatalf("unexpected error message: %+v", msg)
	}
	state := readUntil(t, conn, func(m outboundMessage) bool { return m.Type == msgState && m.State == session.StateIdle })
	if state.Reason != session.ReasonEmptyTranscript {
		t.Fatalf("unexpected reason: %s", state.Reason)
	}
}
