package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/library"
	"github.com/foxseedlab/tsuyaku/internal/render"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/session"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBufferSize = 64
)

// errorCodeRequest marks a client message that could not be applied.
const errorCodeRequest session.ErrorCode = "request"

const (
	msgHello            = "hello"
	msgStart            = "start"
	msgResult           = "result"
	msgRecognitionError = "recognitionError"
	msgStop             = "stop"
	msgLanguages        = "languages"
	msgSave             = "save"
	msgDiscard          = "discard"

	msgState    = "state"
	msgView     = "view"
	msgDocument = "document"
	msgSaved    = "saved"
	msgError    = "error"
)

type inboundMessage struct {
	Type              string                `json:"type"`
	SpeechRecognition *bool                 `json:"speechRecognition,omitempty"`
	SourceLanguage    string                `json:"sourceLanguage,omitempty"`
	TargetLanguage    string                `json:"targetLanguage,omitempty"`
	Fragments         []transcript.Fragment `json:"fragments,omitempty"`
	// Timestamp is the event time in Unix milliseconds.
	Timestamp        int64   `json:"timestamp,omitempty"`
	Error            string  `json:"error,omitempty"`
	Title            *string `json:"title,omitempty"`
	FormattedContent *string `json:"formattedContent,omitempty"`
	Summary          *string `json:"summary,omitempty"`
}

type outboundMessage struct {
	Type     string               `json:"type"`
	State    session.State        `json:"state,omitempty"`
	Reason   session.Reason       `json:"reason,omitempty"`
	View     *render.View         `json:"view,omitempty"`
	Document *repository.Document `json:"document,omitempty"`
	Code     session.ErrorCode    `json:"code,omitempty"`
	Detail   string               `json:"detail,omitempty"`
}

// Hub fans session events out to every connected browser and feeds browser
// recognition results into the session. Only the client that started the
// recording may send results for it.
type Hub struct {
	manager  *session.Manager
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	owner   *client
}

func NewHub(manager *session.Manager) *Hub {
	return &Hub{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: map[*client]struct{}{},
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu                sync.Mutex
	speechRecognition bool
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		hub:               h,
		conn:              conn,
		send:              make(chan []byte, sendBufferSize),
		done:              make(chan struct{}),
		speechRecognition: true,
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("websocket client connected", "remote_addr", r.RemoteAddr, "clients", count)

	go c.writePump()
	h.sendSnapshot(c)
	c.readPump()
	h.unregister(c)
}

// sendSnapshot brings a new client up to date with the running session.
func (h *Hub) sendSnapshot(c *client) {
	st := h.manager.Status()
	c.enqueue(outboundMessage{Type: msgState, State: st.State})
	if st.State == session.StateRecording || st.State == session.StateFinalizing {
		view := h.manager.View()
		c.enqueue(outboundMessage{Type: msgView, View: &view})
	}
	if doc := h.manager.PendingDocument(); doc != nil {
		c.enqueue(outboundMessage{Type: msgDocument, Document: doc})
	}
}

func (h *Hub) unregister(c *client) {
	c.close()
	h.mu.Lock()
	delete(h.clients, c)
	wasOwner := h.owner == c
	if wasOwner {
		h.owner = nil
	}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("websocket client disconnected", "clients", count)

	if wasOwner {
		if _, err := h.manager.Stop(context.Background(), session.ReasonStopped); err != nil && !errors.Is(err, session.ErrNotRecording) {
			slog.Error("failed to stop recording after its client left", "error", err)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) isOwner(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner == c
}

func (h *Hub) handleMessage(c *client, msg inboundMessage) {
	ctx := context.Background()
	switch msg.Type {
	case msgHello:
		supported := msg.SpeechRecognition == nil || *msg.SpeechRecognition
		c.mu.Lock()
		c.speechRecognition = supported
		c.mu.Unlock()
		if !supported {
			c.sendError(session.ErrorCapabilityUnavailable, "speech recognition is not available in this browser")
		}
	case msgStart:
		if !c.supportsSpeech() {
			c.sendError(session.ErrorCapabilityUnavailable, "speech recognition is not available in this browser")
			return
		}
		err := h.manager.Start(ctx, session.StartInput{
			Source:         session.SourceBrowser,
			SourceLanguage: msg.SourceLanguage,
			TargetLanguage: msg.TargetLanguage,
		})
		if err != nil {
			c.sendError(errorCodeRequest, err.Error())
			return
		}
		h.mu.Lock()
		h.owner = c
		h.mu.Unlock()
	case msgResult:
		if !h.isOwner(c) {
			slog.Debug("ignoring recognition result from a client that does not own the recording")
			return
		}
		var at time.Time
		if msg.Timestamp > 0 {
			at = time.UnixMilli(msg.Timestamp)
		}
		if err := h.manager.HandleRecognition(msg.Fragments, at); err != nil && !errors.Is(err, session.ErrNotRecording) {
			c.sendError(errorCodeRequest, err.Error())
		}
	case msgRecognitionError:
		if !h.isOwner(c) {
			return
		}
		detail := msg.Error
		if detail == "" {
			detail = "speech recognition failed"
		}
		go h.manager.HandleRecognitionError(ctx, errors.New(detail))
	case msgStop:
		go func() {
			if _, err := h.manager.Stop(ctx, session.ReasonStopped); err != nil {
				c.sendError(errorCodeRequest, err.Error())
			}
		}()
	case msgLanguages:
		if err := h.manager.SetLanguages(ctx, msg.SourceLanguage, msg.TargetLanguage); err != nil {
			c.sendError(errorCodeRequest, err.Error())
		}
	case msgSave:
		doc, err := h.manager.SavePending(ctx, library.Edit{
			Title:            msg.Title,
			FormattedContent: msg.FormattedContent,
			Summary:          msg.Summary,
		})
		if err != nil {
			c.sendError(errorCodeRequest, err.Error())
			return
		}
		c.enqueue(outboundMessage{Type: msgSaved, Document: doc})
	case msgDiscard:
		if err := h.manager.DiscardPending(); err != nil {
			c.sendError(errorCodeRequest, err.Error())
		}
	default:
		c.sendError(errorCodeRequest, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) broadcast(msg outboundMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode websocket message", "error", err, "type", msg.Type)
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.enqueueBytes(b)
	}
}

func (h *Hub) SessionStateChanged(state session.State, reason session.Reason) {
	if state != session.StateRecording {
		h.mu.Lock()
		h.owner = nil
		h.mu.Unlock()
	}
	h.broadcast(outboundMessage{Type: msgState, State: state, Reason: reason})
}

func (h *Hub) ViewUpdated(view render.View) {
	h.broadcast(outboundMessage{Type: msgView, View: &view})
}

func (h *Hub) DocumentReady(doc repository.Document) {
	h.broadcast(outboundMessage{Type: msgDocument, Document: &doc})
}

func (h *Hub) SessionError(code session.ErrorCode, detail string) {
	h.broadcast(outboundMessage{Type: msgError, Code: code, Detail: detail})
}

func (c *client) supportsSpeech() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speechRecognition
}

func (c *client) sendError(code session.ErrorCode, detail string) {
	c.enqueue(outboundMessage{Type: msgError, Code: code, Detail: detail})
}

func (c *client) enqueue(msg outboundMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode websocket message", "error", err, "type", msg.Type)
		return
	}
	c.enqueueBytes(b)
}

func (c *client) enqueueBytes(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		slog.Warn("websocket client is not keeping up; disconnecting")
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError(errorCodeRequest, "invalid message")
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
