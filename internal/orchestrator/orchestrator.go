// Package orchestrator implements the Conversation Orchestrator (spec
// §2/§4.7): the pipeline engine that runs ASR on a completed audio
// capture, streams LLM tokens, hands completed sentences to TTS, pipes
// resulting audio through the Opus re-encoder, and writes ordered TTS
// frames back to the client. It is a generalization of the teacher's
// streamLLMWithTTS/consumeSentences/synthesizeSentence trio
// (services/gateway/internal/pipeline/pipeline.go).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talkloop/gateway/internal/audio"
	"github.com/talkloop/gateway/internal/characters"
	"github.com/talkloop/gateway/internal/metrics"
	"github.com/talkloop/gateway/internal/providers"
	"github.com/talkloop/gateway/internal/sentence"
	"github.com/talkloop/gateway/internal/session"
	"github.com/talkloop/gateway/internal/trace"
)

// sentenceChannelBuffer bounds the backlog of completed sentences waiting
// for TTS, per spec §9 (the teacher uses 4; this gateway uses 8 so the LLM
// producer can run further ahead of a single serial TTS consumer).
const sentenceChannelBuffer = 8

// providerCallTimeout is the default 30s wall-clock deadline spec §5
// imposes on provider calls.
const providerCallTimeout = 30 * time.Second

// classifyTimeout caps how long the fire-and-forget emotion
// classification goroutine waits before giving up.
const classifyTimeout = 5 * time.Second

// Orchestrator is immutable after construction; all mutable state lives
// in the Session it is handed per turn.
type Orchestrator struct {
	registry   *providers.Registry
	characters *characters.Registry
	classify   *providers.ClassifyClient // optional emotion side-channel, off when nil
}

// New builds an Orchestrator over a Provider Registry and Character Card
// registry. classify may be nil to disable the optional classification
// side-channel.
func New(registry *providers.Registry, chars *characters.Registry, classify *providers.ClassifyClient) *Orchestrator {
	return &Orchestrator{registry: registry, characters: chars, classify: classify}
}

// RunAudioTurn runs ASR on a completed utterance, emits the `stt` event,
// and if the transcript is non-empty (spec's noise/empty-transcript
// handling), continues into the shared generation+synthesis pipeline.
func (o *Orchestrator) RunAudioTurn(ctx context.Context, sess *session.Session, emit Emitter, tr *trace.Tracer, audioBytes []byte, format audio.Format) {
	turnID := sess.CurrentTurnID()
	cfg := sess.Config()

	runID := tr.StartRun()
	start := time.Now()

	if o.classify != nil && format == audio.FormatPCM16LE {
		samples := audio.PCM16LEToFloat32(audioBytes)
		go o.classifyEmotion(samples, emit, runID, tr)
	}

	asrPort, asrModel, err := o.registry.ResolveASR(cfg.ASRProvider, cfg.ASRModel)
	if err != nil {
		sendError(emit, "speech recognition unavailable")
		metrics.Errors.WithLabelValues("asr", "registry").Inc()
		sess.EndTurn()
		return
	}

	ctxASR, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	asrStart := time.Now()
	result, err := asrPort.Transcribe(ctxASR, audioBytes, providers.ASROptions{
		Model:      asrModel,
		Format:     formatName(format),
		SampleRate: 16000,
	})
	metrics.StageDuration.WithLabelValues("asr").Observe(time.Since(asrStart).Seconds())
	if !sess.IsCurrentTurn(turnID) {
		return // aborted while transcribing; drop silently
	}
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "call").Inc()
		sendError(emit, "speech recognition failed")
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), "", "", "error")
		sess.EndTurn()
		return
	}

	sendStt(emit, result.Text, true)
	if result.Text == "" {
		// Empty transcript: release the client's audio pipeline with a
		// single final=true empty TTS frame rather than running the LLM.
		o.writeFinalEmptyFrame(emit, turnID, sess)
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), "", "", "empty")
		sess.EndTurn()
		return
	}

	turnID = sess.BeginTurn()
	o.runGenerationTurn(ctx, sess, emit, tr, runID, start, turnID, result.Text, cfg)
}

// classifyEmotion runs the optional audio classification side-channel in
// parallel with ASR. It never blocks the turn and never aborts it: a
// failed or slow classification is simply dropped.
func (o *Orchestrator) classifyEmotion(samples []float32, emit Emitter, runID string, tr *trace.Tracer) {
	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	start := time.Now()
	result, err := o.classify.ClassifyEmotion(ctx, samples)
	status := "ok"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	tr.RecordSpan(runID, "emotion_classify", start, float64(time.Since(start).Milliseconds()),
		fmt.Sprintf("samples=%d", len(samples)), "", status, errMsg)
	if err != nil {
		slog.Warn("emotion classification failed", "error", err)
		return
	}
	sendClassification(emit, result)
}

// RunTextTurn starts a turn directly from an inbound text message (spec
// §4.7's Idle→Generating trigger), skipping ASR.
func (o *Orchestrator) RunTextTurn(ctx context.Context, sess *session.Session, emit Emitter, tr *trace.Tracer, text string) {
	turnID := sess.BeginTurn()
	cfg := sess.Config()
	runID := tr.StartRun()
	start := time.Now()
	o.runGenerationTurn(ctx, sess, emit, tr, runID, start, turnID, text, cfg)
}

func (o *Orchestrator) runGenerationTurn(ctx context.Context, sess *session.Session, emit Emitter, tr *trace.Tracer, runID string, start time.Time, turnID int64, userText string, cfg session.Config) {
	llmPort, llmModel, err := o.registry.ResolveLLM(cfg.LLMProvider, cfg.LLMModel)
	if err != nil {
		sendError(emit, "language model unavailable")
		metrics.Errors.WithLabelValues("llm", "registry").Inc()
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, "", "error")
		sess.EndTurn()
		return
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	systemPrompt := o.characters.SystemPrompt(cfg.CharacterID, maxTokens)

	ctxLLM, cancelLLM := context.WithTimeout(ctx, providerCallTimeout)
	defer cancelLLM()

	llmStart := time.Now()
	chunks, err := llmPort.GenerateStream(ctxLLM, systemPrompt, userText, providers.LLMOptions{Model: llmModel, MaxTokens: maxTokens})
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "call").Inc()
		sendError(emit, "language model failed")
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, "", "error")
		sess.EndTurn()
		return
	}

	sess.BeginSynthesis()

	type pendingSentence struct {
		text  string
		index int
	}

	sentenceCh := make(chan pendingSentence, sentenceChannelBuffer)
	var accumulated string
	var llmErr error

	go func() {
		defer close(sentenceCh)
		var seg sentence.Segmenter
		index := 0
		for chunk := range chunks {
			if !sess.IsCurrentTurn(turnID) {
				return
			}
			accumulated = chunk.Accumulated
			if chunk.Err != nil {
				llmErr = chunk.Err
				return
			}
			if chunk.Delta != "" {
				sendLLMToken(emit, chunk.Delta, chunk.Accumulated, false)
				for _, s := range seg.Add(chunk.Delta) {
					metrics.SentencesEmitted.Inc()
					select {
					case sentenceCh <- pendingSentence{text: s, index: index}:
						index++
					case <-ctx.Done():
						return
					}
				}
			}
			if chunk.Finished {
				sendLLMToken(emit, "", chunk.Accumulated, true)
				if s, ok := seg.Flush(); ok {
					metrics.SentencesEmitted.Inc()
					select {
					case sentenceCh <- pendingSentence{text: s, index: index}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(llmStart).Seconds())

	ttsPort, ttsModel, err := o.registry.ResolveTTS(cfg.TTSProvider, cfg.TTSModel)
	if err != nil {
		sendError(emit, "speech synthesis unavailable")
		metrics.Errors.WithLabelValues("tts", "registry").Inc()
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, accumulated, "error")
		sess.EndTurn()
		return
	}

	aborted := false
	wroteAnyFrame := false

	var pending *pendingSentence
	flush := func(item pendingSentence, isLastSentence bool) bool {
		if !sess.IsCurrentTurn(turnID) {
			return false
		}
		sendSentence(emit, item.text, item.index)
		ok := o.synthesizeSentence(ctx, sess, emit, turnID, item.text, isLastSentence, ttsPort, ttsModel, cfg, wroteAnyFrame)
		if ok {
			wroteAnyFrame = true
		}
		return ok
	}

	for item := range sentenceCh {
		if !sess.IsCurrentTurn(turnID) {
			aborted = true
			break
		}
		if pending != nil {
			if !flush(*pending, false) {
				aborted = true
				break
			}
		}
		cp := item
		pending = &cp
	}

	if !aborted && pending != nil {
		if !flush(*pending, true) {
			aborted = true
		}
	}

	if !aborted && !sess.IsCurrentTurn(turnID) {
		aborted = true
	}

	if aborted {
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, accumulated, "aborted")
		return
	}

	if llmErr != nil {
		metrics.Errors.WithLabelValues("llm", "stream").Inc()
		sendError(emit, "language model failed")
		if wroteAnyFrame {
			o.writeFinalEmptyFrame(emit, turnID, sess)
		}
		sess.Abort()
		sess.ObserveCancelAndReset()
		tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, accumulated, "error")
		return
	}

	if !wroteAnyFrame {
		o.writeFinalEmptyFrame(emit, turnID, sess)
	}

	metrics.TurnsTotal.Inc()
	tr.EndRun(runID, float64(time.Since(start).Milliseconds()), userText, accumulated, "ok")
	sess.EndTurn()
}

// synthesizeSentence calls the TTS port, strips any WAV container, batches
// PCM16LE into Opus frames, and writes each as a binary TTS-out frame.
// Only the very last packet of the very last sentence of the turn is
// flagged final. Returns false if the turn was aborted (in which case the
// caller already owns cancellation bookkeeping) or if TTS itself failed,
// in which case this method owns the full ProviderCallFailure handling
// per spec §7: send `error`, close out the frame stream if frames were
// already emitted for this turn, and release the session back to Idle.
func (o *Orchestrator) synthesizeSentence(ctx context.Context, sess *session.Session, emit Emitter, turnID int64, text string, isLastSentence bool, ttsPort providers.TTSPort, ttsModel string, cfg session.Config, framesAlreadyWritten bool) bool {
	ctxTTS, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	fail := func(component, stage string, err error) bool {
		metrics.Errors.WithLabelValues(component, stage).Inc()
		slog.Warn("tts stage failed", "component", component, "stage", stage, "error", err)
		sendError(emit, "speech synthesis failed")
		if framesAlreadyWritten {
			o.writeFinalEmptyFrame(emit, turnID, sess)
		}
		sess.Abort()
		sess.ObserveCancelAndReset()
		return false
	}

	text = providers.NormalizeForSpeech(text)
	if text == "" {
		if isLastSentence {
			o.writeFinalEmptyFrame(emit, turnID, sess)
		}
		return true
	}

	ttsStart := time.Now()
	chunks, err := ttsPort.SynthesizeStream(ctxTTS, text, providers.TTSOptions{
		Model:  ttsModel,
		Voice:  cfg.TTSVoice,
		Format: "pcm",
	})
	if err != nil {
		return fail("tts", "call", err)
	}

	enc, err := audio.NewOpusEncoder()
	if err != nil {
		return fail("opus", "init", err)
	}

	var pcm []int16
	for chunk := range chunks {
		if !sess.IsCurrentTurn(turnID) {
			return false
		}
		if len(chunk.Bytes) == 0 {
			continue
		}
		switch chunk.Format {
		case "wav":
			stripped, _, err := audio.StripWAV(chunk.Bytes)
			if err != nil {
				return fail("tts", "wav", err)
			}
			pcm = append(pcm, audio.PCM16LEToInt16(stripped)...)
		default:
			pcm = append(pcm, audio.PCM16LEToInt16(chunk.Bytes)...)
		}
	}
	metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(ttsStart).Seconds())

	opusStart := time.Now()
	packets, err := enc.EncodePCM(pcm)
	metrics.StageDuration.WithLabelValues("opus").Observe(time.Since(opusStart).Seconds())
	if err != nil {
		return fail("opus", "encode", err)
	}

	for i, packet := range packets {
		if !sess.IsCurrentTurn(turnID) {
			return false
		}
		final := isLastSentence && i == len(packets)-1
		_ = sess.NextTTSSeq()
		emit.SendBinary(audio.EncodeTTSFrame(packet, final))
		metrics.TTSFramesSent.Inc()
	}
	return true
}

// writeFinalEmptyFrame releases the client's audio pipeline with a single
// final=true empty TTS frame, used both for an empty ASR transcript and
// for a zero-sentence LLM response (spec §4.7's tie-breaks).
func (o *Orchestrator) writeFinalEmptyFrame(emit Emitter, turnID int64, sess *session.Session) {
	_ = sess.NextTTSSeq()
	emit.SendBinary(audio.EncodeTTSFrame(nil, true))
	metrics.TTSFramesSent.Inc()
}

func formatName(f audio.Format) string {
	switch f {
	case audio.FormatOpus:
		return "opus"
	case audio.FormatPCM16LE:
		return "pcm16le"
	case audio.FormatWAV:
		return "wav"
	case audio.FormatMP3:
		return "mp3"
	case audio.FormatWebM:
		return "webm"
	default:
		return "unknown"
	}
}
