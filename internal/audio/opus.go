package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

// OpusSampleRate and OpusFrameSamples fix the wire format the orchestrator
// re-encodes synthesized speech to: 24kHz mono, 20ms frames (480 samples),
// per spec §4.2.
const (
	OpusSampleRate   = 24000
	OpusChannels     = 1
	OpusFrameSamples = 480 // 20ms @ 24kHz
	opusMaxPacket    = 4000
)

// OpusEncoder batches PCM16LE into fixed 20ms frames and emits one Opus
// packet per frame. It is not safe for concurrent use; the orchestrator
// creates a fresh one for each sentence it synthesizes.
type OpusEncoder struct {
	enc *opus.Encoder
}

// NewOpusEncoder constructs an encoder tuned for speech (VoIP application
// profile), matching the teacher's voice-call use case.
func NewOpusEncoder() (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(OpusSampleRate, OpusChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("audio: new opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc}, nil
}

// EncodePCM splits pcm (16-bit mono samples at OpusSampleRate) into
// OpusFrameSamples-sized frames, zero-padding the final partial frame,
// and returns one Opus packet per frame in order. The caller is
// responsible for marking the last returned packet as the final frame
// on the wire if the underlying sentence is itself final.
func (e *OpusEncoder) EncodePCM(pcm []int16) ([][]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	frameCount := (len(pcm) + OpusFrameSamples - 1) / OpusFrameSamples
	packets := make([][]byte, 0, frameCount)
	frame := make([]int16, OpusFrameSamples)

	for offset := 0; offset < len(pcm); offset += OpusFrameSamples {
		end := min(offset+OpusFrameSamples, len(pcm))
		n := copy(frame, pcm[offset:end])
		for i := n; i < OpusFrameSamples; i++ {
			frame[i] = 0
		}

		out := make([]byte, opusMaxPacket)
		written, err := e.enc.Encode(frame, out)
		if err != nil {
			return nil, fmt.Errorf("audio: opus encode: %w", err)
		}
		packets = append(packets, out[:written])
	}
	return packets, nil
}

// OpusDecoder reverses OpusEncoder, used by tests and by any future
// ingestion path that accepts Opus-encoded audio-in frames.
type OpusDecoder struct {
	dec *opus.Decoder
}

// NewOpusDecoder constructs a decoder matched to OpusSampleRate/OpusChannels.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(OpusSampleRate, OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: new opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// DecodePacket decodes a single Opus packet back into OpusFrameSamples
// 16-bit mono samples.
func (d *OpusDecoder) DecodePacket(packet []byte) ([]int16, error) {
	pcm := make([]int16, OpusFrameSamples)
	n, err := d.dec.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return pcm[:n], nil
}
