package providers

import (
	"bytes"
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// ZhipuClient is the default ASR/LLM/TTS engine: a single OpenAI-wire-
// compatible HTTP client pointed at a custom base URL, backing the
// `chirp-beta` (ASR), `glm-4-flash` (LLM), and `glm-tts` (TTS) models per
// spec §6's defaults. One struct implements all three ports because the
// wire protocol and credentials are shared.
type ZhipuClient struct {
	sdk      *openai.Client
	asrModel string
	llmModel string
	ttsModel string
	ttsVoice string
}

// NewZhipuClient builds a client against baseURL using apiKey, defaulting
// to the models spec §6 names.
func NewZhipuClient(apiKey, baseURL string) *ZhipuClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ZhipuClient{
		sdk:      openai.NewClientWithConfig(cfg),
		asrModel: "chirp-beta",
		llmModel: "glm-4-flash",
		ttsModel: "glm-tts",
		ttsVoice: "female",
	}
}

// Transcribe implements ASRPort by buffering audioBytes as a WAV upload.
func (z *ZhipuClient) Transcribe(ctx context.Context, audioBytes []byte, opts ASROptions) (ASRResult, error) {
	model := opts.Model
	if model == "" {
		model = z.asrModel
	}

	resp, err := z.sdk.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audioBytes),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return ASRResult{}, &ProviderUnavailable{Provider: "zhipu", Reason: err.Error()}
	}
	return ASRResult{Text: resp.Text}, nil
}

// TranscribeStream buffers the full chunk sequence, then calls Transcribe
// once and emits a single final partial — the zhipu backend has no true
// incremental ASR, which matches the spec's stated Non-goal.
func (z *ZhipuClient) TranscribeStream(ctx context.Context, chunks <-chan []byte, opts ASROptions) (<-chan ASRPartial, error) {
	out := make(chan ASRPartial, 1)
	go func() {
		defer close(out)
		var buf bytes.Buffer
		for chunk := range chunks {
			buf.Write(chunk)
		}
		result, err := z.Transcribe(ctx, buf.Bytes(), opts)
		if err != nil {
			return
		}
		out <- ASRPartial{Text: result.Text, Final: true, Sequence: 0}
	}()
	return out, nil
}

// GenerateStream implements LLMPort via a streaming chat completion.
func (z *ZhipuClient) GenerateStream(ctx context.Context, systemPrompt, userText string, opts LLMOptions) (<-chan LLMChunk, error) {
	model := opts.Model
	if model == "" {
		model = z.llmModel
	}

	stream, err := z.sdk.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: opts.MaxTokens,
		Stream:    true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return nil, &ProviderUnavailable{Provider: "zhipu", Reason: err.Error()}
	}

	out := make(chan LLMChunk, 8)
	go func() {
		defer close(out)
		defer stream.Close()
		var accumulated string
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- LLMChunk{Accumulated: accumulated, Finished: true}
				return
			}
			if err != nil {
				out <- LLMChunk{Accumulated: accumulated, Err: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			accumulated += delta
			select {
			case out <- LLMChunk{Delta: delta, Accumulated: accumulated}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SynthesizeStream implements TTSPort. The SDK's speech endpoint is not
// itself incremental, so the WAV payload is emitted as one chunk followed
// by a Finished sentinel — the orchestrator's Opus re-encoder is what
// turns this into frame-sized output on the wire.
func (z *ZhipuClient) SynthesizeStream(ctx context.Context, text string, opts TTSOptions) (<-chan TTSChunk, error) {
	model := opts.Model
	if model == "" {
		model = z.ttsModel
	}
	voice := opts.Voice
	if voice == "" {
		voice = z.ttsVoice
	}

	resp, err := z.sdk.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          NormalizeForSpeech(text),
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, &ProviderUnavailable{Provider: "zhipu", Reason: err.Error()}
	}

	out := make(chan TTSChunk, 1)
	go func() {
		defer close(out)
		defer resp.Close()
		data, err := io.ReadAll(resp)
		if err != nil {
			return
		}
		select {
		case out <- TTSChunk{Bytes: data, Format: "wav"}:
		case <-ctx.Done():
			return
		}
		select {
		case out <- TTSChunk{Finished: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
