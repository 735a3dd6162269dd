package trace

import (
	"sync"
	"time"
)

// maxRunsPerSession bounds the ring buffer per session: spec.md's
// Non-goals exclude persistent conversation history, so the recorder only
// needs to hold enough recent runs for live debugging, not an archive.
const maxRunsPerSession = 64

// Recorder is a bounded in-memory trace store: it replaces the teacher's
// Postgres-backed persistence with a ring buffer per session, keeping the
// same non-blocking write contract (Tracer's drain goroutine) without a
// database dependency, since persistent conversation history is out of
// scope.
type Recorder struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

type sessionRecord struct {
	session Session
	runs    []Run
	spans   map[string][]Span // by runID
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{sessions: make(map[string]*sessionRecord)}
}

// CreateSession registers a new session with its metadata blob.
func (r *Recorder) CreateSession(sessionID, metadata string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &sessionRecord{
		session: Session{ID: sessionID, Metadata: metadata, StartedAt: now()},
		spans:   make(map[string][]Span),
	}
	return nil
}

// EndSession marks a session's end time.
func (r *Recorder) EndSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	ended := now()
	rec.session.EndedAt = &ended
	return nil
}

// CreateRun registers a new run (one turn's ASR→LLM→TTS execution) under
// sessionID, evicting the oldest run if the per-session ring buffer is
// full.
func (r *Recorder) CreateRun(runID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		rec = &sessionRecord{session: Session{ID: sessionID, StartedAt: now()}, spans: make(map[string][]Span)}
		r.sessions[sessionID] = rec
	}
	if len(rec.runs) >= maxRunsPerSession {
		evicted := rec.runs[0]
		delete(rec.spans, evicted.ID)
		rec.runs = rec.runs[1:]
	}
	rec.runs = append(rec.runs, Run{ID: runID, SessionID: sessionID, StartedAt: now(), Status: "running"})
	return nil
}

// UpdateRun finalizes a run with its outcome.
func (r *Recorder) UpdateRun(runID string, durationMs float64, transcript, response, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.sessions {
		for i := range rec.runs {
			if rec.runs[i].ID == runID {
				rec.runs[i].DurationMs = durationMs
				rec.runs[i].Transcript = transcript
				rec.runs[i].Response = response
				rec.runs[i].Status = status
				return nil
			}
		}
	}
	return nil
}

// CreateSpan appends a completed span under its run.
func (r *Recorder) CreateSpan(span Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.sessions {
		for i := range rec.runs {
			if rec.runs[i].ID == span.RunID {
				rec.spans[span.RunID] = append(rec.spans[span.RunID], span)
				return nil
			}
		}
	}
	return nil
}

// Runs returns a copy of the recorded runs for sessionID, most recent last.
func (r *Recorder) Runs(sessionID string) []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Run, len(rec.runs))
	copy(out, rec.runs)
	return out
}

// Spans returns a copy of the recorded spans for a run.
func (r *Recorder) Spans(runID string) []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.sessions {
		if spans, ok := rec.spans[runID]; ok {
			out := make([]Span, len(spans))
			copy(out, spans)
			return out
		}
	}
	return nil
}

// now is a seam so tests can avoid relying on wall-clock ordering; in
// production it is simply time.Now.
var now = time.Now
