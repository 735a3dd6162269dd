// Package session implements the per-connection Session State record
// (spec §3/§4.0): the single mutable record a WebSocket connection's
// dispatcher and orchestrator tasks share, guarded by one mutex since,
// unlike the teacher's single-owner-goroutine pipeline, those two tasks
// run concurrently here.
package session

import (
	"sync"

	"github.com/talkloop/gateway/internal/audio"
)

// Phase is a Session's position in its state machine (spec §4.7's table).
type Phase int

const (
	Idle Phase = iota
	Receiving
	Transcribing
	Generating
	Synthesizing
	Aborted
	Closed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Transcribing:
		return "transcribing"
	case Generating:
		return "generating"
	case Synthesizing:
		return "synthesizing"
	case Aborted:
		return "aborted"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config is the per-session snapshot of ConversationConfig (spec §6),
// resolved at the start of each turn.
type Config struct {
	ASRProvider string
	ASRModel    string
	LLMProvider string
	LLMModel    string
	TTSProvider string
	TTSModel    string
	TTSVoice    string
	CharacterID string
	MaxTokens   int
}

// Session is the single mutable per-connection record. All access goes
// through its methods, which take the internal mutex; callers never reach
// into fields directly.
type Session struct {
	mu sync.Mutex

	id     string
	config Config
	phase  Phase

	audioBuffer []byte
	audioFormat audio.Format

	cancelFlag    bool
	currentTurnID int64
	ttsSeq        int
}

// New creates a Session in Idle phase with the given id and config.
func New(id string, cfg Config) *Session {
	return &Session{id: id, config: cfg, phase: Idle}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns a copy of the session's current conversation config.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig replaces the session's conversation config. The dispatcher
// calls it with the optional config fields carried on a `text` message;
// the `control`/`config` action does not reach it.
func (s *Session) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// setPhase is the only place phase is mutated; unexported so every
// transition goes through a named method documenting the trigger.
func (s *Session) setPhase(p Phase) {
	s.phase = p
}

// BeginAudio transitions Idle→Receiving on the first non-final audio-in
// frame and records the declared format from that frame's header.
func (s *Session) BeginAudio(format audio.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Idle {
		s.setPhase(Receiving)
		s.audioFormat = format
	}
}

// AppendAudio appends payload to the in-progress utterance buffer. Only
// meaningful in Receiving; callers should have called BeginAudio first.
func (s *Session) AppendAudio(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBuffer = append(s.audioBuffer, payload...)
}

// FinishAudio transitions Receiving→Transcribing on a final=true audio-in
// frame, returning the accumulated buffer and its format for the caller to
// hand to the ASR port. The buffer is cleared as part of the handoff.
func (s *Session) FinishAudio() (data []byte, format audio.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPhase(Transcribing)
	data, format = s.audioBuffer, s.audioFormat
	s.audioBuffer = nil
	return data, format
}

// BeginTurn advances the phase for a text-triggered turn (Idle→Generating)
// or an ASR-triggered one (Transcribing→Generating), clears the cancel
// flag for the new turn, bumps currentTurnId, and resets ttsSeq to 0. It
// returns the new turnId.
func (s *Session) BeginTurn() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTurnID++
	s.cancelFlag = false
	s.ttsSeq = 0
	s.setPhase(Generating)
	return s.currentTurnID
}

// BeginSynthesis marks the logical Generating→Synthesizing overlap (spec
// §4.7 step 4): the two phases coexist, so this only updates the visible
// phase; it never resets turn-scoped counters.
func (s *Session) BeginSynthesis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Generating {
		s.setPhase(Synthesizing)
	}
}

// EndTurn returns the session to Idle from any phase other than Aborted or
// Closed. The orchestrator calls it when a turn completes and when a turn
// fails before any abort.
func (s *Session) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Aborted && s.phase != Closed {
		s.setPhase(Idle)
	}
}

// CurrentTurnID returns the currently active turnId without mutating state.
func (s *Session) CurrentTurnID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTurnID
}

// NextTTSSeq returns the next ttsSeq for the current turn and increments
// the counter; sequence numbers are 0-based and strictly monotonic within
// a turn (spec §5's ordering guarantee).
func (s *Session) NextTTSSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.ttsSeq
	s.ttsSeq++
	return seq
}

// Abort is the sole cancellation primitive (spec §5): idempotent, it sets
// cancelFlag and bumps currentTurnId so any in-flight stage's captured
// turnId becomes stale. Safe to call from any phase; repeated calls before
// the prior abort is observed are no-ops beyond the first.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Closed || s.cancelFlag {
		return
	}
	s.cancelFlag = true
	s.currentTurnID++
	s.audioBuffer = nil
	s.setPhase(Aborted)
}

// ObserveCancelAndReset transitions Aborted→Idle once the orchestrator
// task for the aborted turn has unwound and released its resources.
func (s *Session) ObserveCancelAndReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Aborted {
		s.cancelFlag = false
		s.setPhase(Idle)
	}
}

// Close is the terminal transition, raised on socket close; any in-flight
// provider call must observe this within a bounded period.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFlag = true
	s.setPhase(Closed)
}

// IsClosed reports whether the session has reached the terminal phase.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == Closed
}

// CancelRequested reports the monotonic cancel flag: once true for a
// turnId, every stage of that turn must exit promptly.
func (s *Session) CancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelFlag
}

// IsCurrentTurn reports whether turnID is still the session's active
// turn — the check every suspension point makes before emitting a frame,
// so stale output from an aborted turn is dropped at the source (spec §5).
func (s *Session) IsCurrentTurn(turnID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTurnID == turnID && !s.cancelFlag
}
