package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/talkloop/gateway/internal/audio"
	"github.com/talkloop/gateway/internal/characters"
	"github.com/talkloop/gateway/internal/providers"
	"github.com/talkloop/gateway/internal/session"
)

// recordingEmitter captures every JSON event and binary frame sent, in
// order, so tests can assert on the turn's wire-level ordering invariants.
type recordingEmitter struct {
	mu     sync.Mutex
	events []any
	frames [][]byte
}

func (e *recordingEmitter) SendJSON(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, v)
}

func (e *recordingEmitter) SendBinary(frame []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, frame)
}

type stubASR struct {
	text string
	err  error
}

func (s *stubASR) Transcribe(ctx context.Context, audioBytes []byte, opts providers.ASROptions) (providers.ASRResult, error) {
	if s.err != nil {
		return providers.ASRResult{}, s.err
	}
	return providers.ASRResult{Text: s.text}, nil
}

func (s *stubASR) TranscribeStream(ctx context.Context, chunks <-chan []byte, opts providers.ASROptions) (<-chan providers.ASRPartial, error) {
	out := make(chan providers.ASRPartial, 1)
	out <- providers.ASRPartial{Text: s.text, Final: true}
	close(out)
	return out, nil
}

// stubLLM streams the given sentences as a sequence of deltas, one delta
// per sentence so each Add() call completes a sentence immediately.
type stubLLM struct {
	sentences []string
}

func (s *stubLLM) GenerateStream(ctx context.Context, systemPrompt, userText string, opts providers.LLMOptions) (<-chan providers.LLMChunk, error) {
	out := make(chan providers.LLMChunk, len(s.sentences)+1)
	var acc string
	for _, sentence := range s.sentences {
		acc += sentence
		out <- providers.LLMChunk{Delta: sentence, Accumulated: acc}
	}
	out <- providers.LLMChunk{Accumulated: acc, Finished: true}
	close(out)
	return out, nil
}

type stubTTS struct {
	// one non-empty PCM16LE payload per call, enough samples for 2 Opus
	// frames so final-frame detection is exercised within a sentence too.
	samples int
}

func (s *stubTTS) SynthesizeStream(ctx context.Context, text string, opts providers.TTSOptions) (<-chan providers.TTSChunk, error) {
	n := s.samples
	if n == 0 {
		n = audio.OpusFrameSamples * 2
	}
	pcm := make([]int16, n)
	out := make(chan providers.TTSChunk, 1)
	out <- providers.TTSChunk{Bytes: audio.Int16ToPCM16LE(pcm), Format: "pcm"}
	close(out)
	return out, nil
}

func newTestOrchestrator(asrText string, sentences []string) (*Orchestrator, *session.Session) {
	reg := providers.NewRegistry()
	reg.RegisterASR("stub", &stubASR{text: asrText})
	reg.RegisterLLM("stub", &stubLLM{sentences: sentences})
	reg.RegisterTTS("stub", &stubTTS{})
	reg.SetDefaults("stub", "stub-model", "stub", "stub-model", "stub", "stub-model")

	o := New(reg, characters.NewRegistry(), nil)
	sess := session.New("sess-1", session.Config{})
	return o, sess
}

func TestAudioTurnOrdering(t *testing.T) {
	o, sess := newTestOrchestrator("hello there", []string{"First sentence. ", "Second sentence."})
	sess.BeginAudio(audio.FormatPCM16LE)
	sess.AppendAudio([]byte{0, 0})
	sess.FinishAudio()

	emit := &recordingEmitter{}
	o.RunAudioTurn(context.Background(), sess, emit, nil, []byte{0, 0, 0, 0}, audio.FormatPCM16LE)

	if len(emit.events) == 0 {
		t.Fatalf("expected at least one event")
	}
	stt, ok := emit.events[0].(SttEvent)
	if !ok || stt.Type != "stt" || stt.Text != "hello there" {
		t.Fatalf("expected stt event first, got %+v", emit.events[0])
	}

	sentenceCount := 0
	for _, ev := range emit.events {
		if _, ok := ev.(SentenceEvent); ok {
			sentenceCount++
		}
	}
	if sentenceCount != 2 {
		t.Fatalf("expected 2 sentence events, got %d", sentenceCount)
	}
	if len(emit.frames) == 0 {
		t.Fatalf("expected TTS frames to be written")
	}

	last := emit.frames[len(emit.frames)-1]
	frame, err := audio.DecodeFrame(last)
	if err != nil {
		t.Fatalf("decode last frame: %v", err)
	}
	if !frame.Final {
		t.Fatalf("expected last TTS frame to be final")
	}

	for _, f := range emit.frames[:len(emit.frames)-1] {
		frame, err := audio.DecodeFrame(f)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Final {
			t.Fatalf("expected only the last frame to be final")
		}
	}

	if sess.Phase() != session.Idle {
		t.Fatalf("expected session back to idle after turn, got %v", sess.Phase())
	}
}

func TestAudioTurnEmptyTranscriptEmitsFinalEmptyFrame(t *testing.T) {
	o, sess := newTestOrchestrator("", nil)
	sess.BeginAudio(audio.FormatPCM16LE)
	sess.FinishAudio()

	emit := &recordingEmitter{}
	o.RunAudioTurn(context.Background(), sess, emit, nil, nil, audio.FormatPCM16LE)

	if len(emit.frames) != 1 {
		t.Fatalf("expected exactly 1 frame for empty transcript, got %d", len(emit.frames))
	}
	frame, err := audio.DecodeFrame(emit.frames[0])
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if !frame.Final || len(frame.Payload) != 0 {
		t.Fatalf("expected final empty frame, got %+v", frame)
	}
}

func TestTextTurnAbortedMidGenerationDropsLaterFrames(t *testing.T) {
	o, sess := newTestOrchestrator("", []string{"First. ", "Second. ", "Third."})
	emit := &recordingEmitter{}

	turnID := sess.BeginTurn()
	sess.Abort() // abort before the turn's pipeline observes any sentence

	o.runGenerationTurn(context.Background(), sess, emit, nil, "", time.Now(), turnID, "hi", sess.Config())

	for _, f := range emit.frames {
		frame, err := audio.DecodeFrame(f)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Final {
			t.Fatalf("aborted turn should not emit a final frame")
		}
	}
}
