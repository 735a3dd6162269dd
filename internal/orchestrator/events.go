package orchestrator

import (
	"time"

	"github.com/talkloop/gateway/internal/providers"
)

// Emitter is the orchestrator's only way to reach the client: a single
// serialized sink (one mutex-guarded writer per connection, teacher idiom
// from internal/ws's newEventSender) so concurrent turn stages never race
// on the socket.
type Emitter interface {
	SendJSON(v any)
	SendBinary(frame []byte)
}

// SttEvent is emitted once per audio-triggered turn, before any sentence
// or TTS frame (spec §6/§8).
type SttEvent struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Timestamp int64  `json:"timestamp"`
}

// LLMTokenEvent is optional UI feedback, emitted per streamed token.
type LLMTokenEvent struct {
	Type        string `json:"type"`
	Token       string `json:"token"`
	Accumulated string `json:"accumulated"`
	Finished    bool   `json:"finished"`
	Timestamp   int64  `json:"timestamp"`
}

// SentenceEvent announces a completed sentence boundary; it MUST precede
// any TTS binary frame belonging to that sentence (spec §8).
type SentenceEvent struct {
	Type      string `json:"type"`
	EventType string `json:"eventType"`
	Text      string `json:"text"`
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorEvent carries a short human-readable message, never a stack trace
// or provider-internal error code (spec §7).
type ErrorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ClassificationEvent reports the audio classification side-channel's
// best-effort result. It is fire-and-forget: the orchestrator never waits
// on it before starting generation, so it may arrive after the `stt`
// event or not at all.
type ClassificationEvent struct {
	Type       string             `json:"type"`
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Timestamp  int64              `json:"timestamp"`
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func sendStt(e Emitter, text string, final bool) {
	e.SendJSON(SttEvent{Type: "stt", Text: text, Final: final, Timestamp: nowMs()})
}

func sendLLMToken(e Emitter, token, accumulated string, finished bool) {
	e.SendJSON(LLMTokenEvent{Type: "llm_token", Token: token, Accumulated: accumulated, Finished: finished, Timestamp: nowMs()})
}

func sendSentence(e Emitter, text string, index int) {
	e.SendJSON(SentenceEvent{Type: "sentence", EventType: "sentence_end", Text: text, Index: index, Timestamp: nowMs()})
}

func sendError(e Emitter, message string) {
	e.SendJSON(ErrorEvent{Type: "error", Message: message, Timestamp: nowMs()})
}

func sendClassification(e Emitter, result *providers.ClassifyResult) {
	e.SendJSON(ClassificationEvent{
		Type:       "classification",
		Label:      result.Label,
		Confidence: result.Confidence,
		Scores:     result.Scores,
		Timestamp:  nowMs(),
	})
}
