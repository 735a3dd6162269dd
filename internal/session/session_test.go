package session

import (
	"testing"

	"github.com/talkloop/gateway/internal/audio"
)

func TestAudioLifecycleTransitions(t *testing.T) {
	s := New("sess-1", Config{})
	if s.Phase() != Idle {
		t.Fatalf("expected Idle at start, got %v", s.Phase())
	}

	s.BeginAudio(audio.FormatPCM16LE)
	if s.Phase() != Receiving {
		t.Fatalf("expected Receiving after BeginAudio, got %v", s.Phase())
	}

	s.AppendAudio([]byte{1, 2, 3})
	s.AppendAudio([]byte{4, 5})

	data, format := s.FinishAudio()
	if s.Phase() != Transcribing {
		t.Fatalf("expected Transcribing after FinishAudio, got %v", s.Phase())
	}
	if len(data) != 5 {
		t.Fatalf("expected 5 accumulated bytes, got %d", len(data))
	}
	if format != audio.FormatPCM16LE {
		t.Fatalf("expected format to be preserved, got %v", format)
	}
}

func TestTurnLifecycleAndTTSSeq(t *testing.T) {
	s := New("sess-1", Config{})
	turnID := s.BeginTurn()
	if turnID != 1 {
		t.Fatalf("expected first turnId 1, got %d", turnID)
	}
	if s.Phase() != Generating {
		t.Fatalf("expected Generating, got %v", s.Phase())
	}

	s.BeginSynthesis()
	if s.Phase() != Synthesizing {
		t.Fatalf("expected Synthesizing, got %v", s.Phase())
	}

	for i := 0; i < 3; i++ {
		seq := s.NextTTSSeq()
		if seq != i {
			t.Fatalf("expected ttsSeq %d, got %d", i, seq)
		}
	}

	s.EndTurn()
	if s.Phase() != Idle {
		t.Fatalf("expected Idle after EndTurn, got %v", s.Phase())
	}

	turnID2 := s.BeginTurn()
	if turnID2 != 2 {
		t.Fatalf("expected second turnId 2, got %d", turnID2)
	}
	if s.NextTTSSeq() != 0 {
		t.Fatal("expected ttsSeq to reset to 0 on new turn")
	}
}

func TestAbortBumpsTurnAndInvalidatesStale(t *testing.T) {
	s := New("sess-1", Config{})
	turnID := s.BeginTurn()

	if !s.IsCurrentTurn(turnID) {
		t.Fatal("expected turn to be current before abort")
	}

	s.Abort()
	if s.Phase() != Aborted {
		t.Fatalf("expected Aborted, got %v", s.Phase())
	}
	if s.IsCurrentTurn(turnID) {
		t.Fatal("expected stale turn to no longer be current after abort")
	}
	if !s.CancelRequested() {
		t.Fatal("expected cancel flag set after abort")
	}

	s.ObserveCancelAndReset()
	if s.Phase() != Idle {
		t.Fatalf("expected Idle after observing cancel, got %v", s.Phase())
	}
	if s.CancelRequested() {
		t.Fatal("expected cancel flag cleared after reset")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	s := New("sess-1", Config{})
	s.Close()
	if !s.IsClosed() {
		t.Fatal("expected IsClosed true after Close")
	}

	s.Abort()
	if s.Phase() != Closed {
		t.Fatal("expected Close to remain terminal even after Abort is called")
	}
}
