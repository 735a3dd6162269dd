package trace

import "testing"

func TestRecorderRunLifecycle(t *testing.T) {
	r := NewRecorder()
	if err := r.CreateSession("sess-1", `{"mode":"talk"}`); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.CreateRun("run-1", "sess-1"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := r.UpdateRun("run-1", 123.4, "hello", "hi there", "ok"); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	if err := r.CreateSpan(Span{ID: "span-1", RunID: "run-1", Name: "asr", Status: "ok"}); err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}

	runs := r.Runs("sess-1")
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != "ok" || runs[0].Response != "hi there" {
		t.Fatalf("unexpected run state: %+v", runs[0])
	}

	spans := r.Spans("run-1")
	if len(spans) != 1 || spans[0].Name != "asr" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
}

func TestRecorderEvictsOldestRunWhenFull(t *testing.T) {
	r := NewRecorder()
	_ = r.CreateSession("sess-1", "")
	for i := 0; i < maxRunsPerSession+5; i++ {
		_ = r.CreateRun(string(rune('a'+i%26))+"-run", "sess-1")
	}
	runs := r.Runs("sess-1")
	if len(runs) != maxRunsPerSession {
		t.Fatalf("expected ring buffer capped at %d, got %d", maxRunsPerSession, len(runs))
	}
	// The first 5 runs (i=0..4) were evicted, so the oldest kept is i=5.
	if want := string(rune('a'+5)) + "-run"; runs[0].ID != want {
		t.Fatalf("expected oldest kept run %q, got %q", want, runs[0].ID)
	}
}

func TestTracerNilSafe(t *testing.T) {
	var tr *Tracer
	tr.EndRun("x", 1, "a", "b", "ok")
	tr.RecordSpan("x", "asr", now(), 1, "in", "out", "ok", "")
	tr.Close()
	if id := tr.StartRun(); id != "" {
		t.Fatalf("expected empty run id from nil tracer, got %q", id)
	}
}

func TestTracerDrainsToRecorder(t *testing.T) {
	r := NewRecorder()
	_ = r.CreateSession("sess-1", "")
	tr := NewTracer(r, "sess-1")

	runID := tr.StartRun()
	tr.RecordSpan(runID, "llm", now(), 42, "hi", "hello", "ok", "")
	tr.EndRun(runID, 99, "hi", "hello", "ok")
	tr.Close()

	runs := r.Runs("sess-1")
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after drain, got %d", len(runs))
	}
	if runs[0].Status != "ok" {
		t.Fatalf("expected run finalized, got %+v", runs[0])
	}
	spans := r.Spans(runID)
	if len(spans) != 1 || spans[0].Name != "llm" {
		t.Fatalf("expected 1 llm span, got %+v", spans)
	}
}
