package providers

import (
	"context"
	"strings"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"
)

// OpenAIAgentLLM implements LLMPort via the openai-agents-go SDK's
// streamed agent run — the `openai` engine named in spec §6.
type OpenAIAgentLLM struct {
	provider     agents.ModelProvider
	defaultModel string
}

// NewOpenAIAgentLLM builds an LLM port backed by provider, defaulting to
// defaultModel when a turn doesn't request one.
func NewOpenAIAgentLLM(provider agents.ModelProvider, defaultModel string) *OpenAIAgentLLM {
	return &OpenAIAgentLLM{provider: provider, defaultModel: defaultModel}
}

// GenerateStream runs a single-turn agent and forwards
// response.output_text.delta events as LLMChunks.
func (o *OpenAIAgentLLM) GenerateStream(ctx context.Context, systemPrompt, userText string, opts LLMOptions) (<-chan LLMChunk, error) {
	model := opts.Model
	if model == "" {
		model = o.defaultModel
	}

	agent := agents.New("assistant").
		WithInstructions(systemPrompt).
		WithModel(model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(opts.MaxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   o.provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, userText)
	if err != nil {
		return nil, &ProviderUnavailable{Provider: "openai", Reason: err.Error()}
	}

	out := make(chan LLMChunk, 8)
	go func() {
		defer close(out)
		var accumulated strings.Builder
		for ev := range events {
			delta, ok := textDelta(ev)
			if !ok {
				continue
			}
			accumulated.WriteString(delta)
			select {
			case out <- LLMChunk{Delta: delta, Accumulated: accumulated.String()}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr := <-errCh; streamErr != nil {
			select {
			case out <- LLMChunk{Accumulated: accumulated.String(), Err: streamErr}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- LLMChunk{Accumulated: accumulated.String(), Finished: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func textDelta(ev agents.StreamEvent) (string, bool) {
	raw, ok := ev.(agents.RawResponsesStreamEvent)
	if !ok {
		return "", false
	}
	if raw.Data.Type != "response.output_text.delta" {
		return "", false
	}
	return raw.Data.Delta, true
}
