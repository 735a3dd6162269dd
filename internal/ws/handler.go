// Package ws implements the Message Dispatcher (spec §4.6): it upgrades
// the HTTP connection to a WebSocket, demultiplexes inbound JSON text
// frames and binary frames to the Session State and Conversation
// Orchestrator, and serializes all outbound writes onto one sink per
// connection. Adapted from the teacher's internal/ws runSession/
// processMessages/newEventSender trio.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talkloop/gateway/internal/audio"
	"github.com/talkloop/gateway/internal/metrics"
	"github.com/talkloop/gateway/internal/orchestrator"
	"github.com/talkloop/gateway/internal/session"
	"github.com/talkloop/gateway/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared, immutable backend collaborators every
// session is built against.
type HandlerConfig struct {
	Orchestrator *orchestrator.Orchestrator
	Recorder     *trace.Recorder
}

// Handler manages WebSocket conversation sessions at /ws/conversation.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a dispatcher handler sharing one Orchestrator and
// trace Recorder across all connections.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// textMessage is the client→server JSON text frame shape (spec §6): a
// text-triggered turn or a control action, with the per-session
// ConversationConfig fields (§6's table) carried optionally on the
// "text" variant so config is resolved fresh at each turn start.
type textMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Action string `json:"action"`

	ASRProvider string `json:"asrProvider"`
	ASRModel    string `json:"asrModel"`
	LLMProvider string `json:"llmProvider"`
	LLMModel    string `json:"llmModel"`
	TTSProvider string `json:"ttsProvider"`
	TTSModel    string `json:"ttsModel"`
	TTSVoice    string `json:"ttsVoice"`
	CharacterID string `json:"characterId"`
	MaxTokens   int    `json:"maxTokens"`
}

func (m *textMessage) applyConfig(cfg session.Config) session.Config {
	if m.ASRProvider != "" {
		cfg.ASRProvider = m.ASRProvider
	}
	if m.ASRModel != "" {
		cfg.ASRModel = m.ASRModel
	}
	if m.LLMProvider != "" {
		cfg.LLMProvider = m.LLMProvider
	}
	if m.LLMModel != "" {
		cfg.LLMModel = m.LLMModel
	}
	if m.TTSProvider != "" {
		cfg.TTSProvider = m.TTSProvider
	}
	if m.TTSModel != "" {
		cfg.TTSModel = m.TTSModel
	}
	if m.TTSVoice != "" {
		cfg.TTSVoice = m.TTSVoice
	}
	if m.CharacterID != "" {
		cfg.CharacterID = m.CharacterID
	}
	if m.MaxTokens > 0 {
		cfg.MaxTokens = m.MaxTokens
	}
	return cfg
}

// ServeHTTP upgrades the connection and runs the conversation session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(r.Context(), conn)
}

func (h *Handler) runSession(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sessionID := uuid.NewString()
	sess := session.New(sessionID, session.Config{})

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	var tracer *trace.Tracer
	if h.cfg.Recorder != nil {
		_ = h.cfg.Recorder.CreateSession(sessionID, "")
		tracer = trace.NewTracer(h.cfg.Recorder, sessionID)
		defer func() {
			tracer.Close()
			_ = h.cfg.Recorder.EndSession(sessionID)
		}()
	}

	slog.Info("conversation started", "session_id", sessionID)

	emit := newConnEmitter(conn)
	h.processMessages(ctx, conn, sess, emit, tracer)
	sess.Close()

	slog.Info("conversation ended", "session_id", sessionID)
}

// processMessages is the dispatcher loop: it drains inbound frames until
// the socket closes, routing each to the session/orchestrator.
func (h *Handler) processMessages(ctx context.Context, conn *websocket.Conn, sess *session.Session, emit orchestrator.Emitter, tracer *trace.Tracer) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleOneMessage(ctx, msgType, data, sess, emit, tracer)
	}
}

func (h *Handler) handleOneMessage(ctx context.Context, msgType int, data []byte, sess *session.Session, emit orchestrator.Emitter, tracer *trace.Tracer) {
	switch msgType {
	case websocket.TextMessage:
		h.handleTextFrame(ctx, data, sess, emit, tracer)
	case websocket.BinaryMessage:
		h.handleBinaryFrame(ctx, data, sess, emit, tracer)
	}
}

// handleTextFrame routes a JSON text frame per spec §4.6: `type="text"`
// starts a text-triggered turn, `type="control"` with `action="abort"`
// cancels the current turn, any other control action or unknown type is
// logged and dropped without closing the session.
func (h *Handler) handleTextFrame(ctx context.Context, data []byte, sess *session.Session, emit orchestrator.Emitter, tracer *trace.Tracer) {
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("dropping malformed text frame", "error", err)
		return
	}

	switch msg.Type {
	case "text":
		preemptActiveTurn(sess)
		sess.SetConfig(msg.applyConfig(sess.Config()))
		go h.cfg.Orchestrator.RunTextTurn(ctx, sess, emit, tracer, msg.Text)
	case "control":
		h.handleControl(msg.Action, sess)
	default:
		slog.Info("dropping unknown text frame type", "type", msg.Type)
	}
}

// preemptActiveTurn implements spec §4.7's mid-turn tie-break: a new user
// input while a turn is active aborts the old one first. A fresh
// connection (Idle) or one already winding down needs no preemption.
func preemptActiveTurn(sess *session.Session) {
	switch sess.Phase() {
	case session.Idle, session.Aborted, session.Closed:
		return
	default:
		sess.Abort()
		metrics.AbortsTotal.Inc()
		sess.ObserveCancelAndReset()
	}
}

func (h *Handler) handleControl(action string, sess *session.Session) {
	switch action {
	case "abort":
		sess.Abort()
		metrics.AbortsTotal.Inc()
		sess.ObserveCancelAndReset()
	case "start", "stop", "config":
		// Reserved per spec §4.6; currently a no-op.
		slog.Info("control action is reserved", "action", action)
	default:
		slog.Info("dropping unknown control action", "action", action)
	}
}

// handleBinaryFrame routes an audio-in binary frame per spec §4.6: a
// non-final chunk appends to the in-progress utterance buffer; a final
// chunk appends then starts the audio-triggered turn.
func (h *Handler) handleBinaryFrame(ctx context.Context, data []byte, sess *session.Session, emit orchestrator.Emitter, tracer *trace.Tracer) {
	frame, err := audio.DecodeFrame(data)
	if err != nil {
		metrics.FrameCodecErrors.WithLabelValues("in").Inc()
		slog.Warn("malformed binary frame", "error", err)
		return
	}
	if frame.Type != audio.FrameTypeAudioIn {
		return
	}

	metrics.AudioChunksReceived.Inc()
	if sess.Phase() == session.Generating || sess.Phase() == session.Synthesizing {
		preemptActiveTurn(sess)
	}
	sess.BeginAudio(frame.Format)
	sess.AppendAudio(frame.Payload)

	if !frame.Final {
		return
	}

	audioBytes, format := sess.FinishAudio()
	go h.cfg.Orchestrator.RunAudioTurn(ctx, sess, emit, tracer, audioBytes, format)
}

// connEmitter serializes one connection's outbound writes with a mutex,
// mirroring the teacher's newEventSender closure. Callers write through it
// directly; there is no separate writer goroutine or outbound queue.
type connEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnEmitter(conn *websocket.Conn) *connEmitter {
	return &connEmitter{conn: conn}
}

func (e *connEmitter) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal outbound event", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err = e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("write outbound event", "error", err)
	}
}

func (e *connEmitter) SendBinary(frame []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		slog.Error("write outbound frame", "error", err)
	}
}
