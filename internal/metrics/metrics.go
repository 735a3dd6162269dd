// Package metrics exposes the gateway's Prometheus instrumentation: one
// set of counters/histograms per pipeline stage, mirroring the teacher's
// internal/metrics package but retargeted at this spec's components
// (sessions, turns, aborts, frame codec) instead of its RAG/embedding
// subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_sessions_active",
		Help: "Currently open WebSocket conversation sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_total",
		Help: "Total conversation sessions opened",
	})

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_turns_total",
		Help: "Total turns completed (ASR/text trigger through final TTS frame)",
	})

	AbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_turn_aborts_total",
		Help: "Total turns cancelled via session.abort()",
	})

	// StageDuration is observed for the "asr", "llm", "tts", and "opus"
	// stages named in spec §2/§5.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_turn_e2e_duration_seconds",
		Help:    "End-to-end latency from turn start to first TTS frame",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})

	FrameCodecErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_frame_codec_errors_total",
		Help: "Malformed binary frames rejected, by direction",
	}, []string{"direction"})

	AudioChunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_audio_chunks_received_total",
		Help: "Total binary audio-in frames received",
	})

	SentencesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sentences_emitted_total",
		Help: "Total sentence boundaries emitted by the segmenter",
	})

	TTSFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_tts_frames_sent_total",
		Help: "Total binary TTS-out frames written to clients",
	})

	ASRWEREstimate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_asr_wer_estimate",
		Help: "Latest WER estimate from reference transcript evaluation",
	})
)
