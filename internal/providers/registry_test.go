package providers

import (
	"context"
	"testing"
)

type stubLLM struct{ model string }

func (s *stubLLM) GenerateStream(ctx context.Context, systemPrompt, userText string, opts LLMOptions) (<-chan LLMChunk, error) {
	out := make(chan LLMChunk, 1)
	out <- LLMChunk{Accumulated: "ok", Finished: true}
	close(out)
	return out, nil
}

func TestRegistryResolveLLMDefaults(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterLLM("zhipu", &stubLLM{}, "glm-4-flash")
	reg.SetDefaults("", "", "zhipu", "glm-4-flash", "", "")

	port, model, err := reg.ResolveLLM("", "")
	if err != nil {
		t.Fatalf("ResolveLLM: %v", err)
	}
	if port == nil {
		t.Fatal("expected non-nil port")
	}
	if model != "glm-4-flash" {
		t.Fatalf("expected default model glm-4-flash, got %q", model)
	}
}

func TestRegistryResolveLLMNoSuchProvider(t *testing.T) {
	reg := NewRegistry()
	_, _, err := reg.ResolveLLM("nonexistent", "")
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
	if _, ok := err.(*NoSuchProvider); !ok {
		t.Fatalf("expected *NoSuchProvider, got %T", err)
	}
}

func TestRegistryResolveLLMNoSuchModel(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterLLM("zhipu", &stubLLM{}, "glm-4-flash")

	_, _, err := reg.ResolveLLM("zhipu", "not-a-real-model")
	if err == nil {
		t.Fatal("expected error for unregistered model")
	}
	if _, ok := err.(*NoSuchModel); !ok {
		t.Fatalf("expected *NoSuchModel, got %T", err)
	}
}

func TestRouterFallback(t *testing.T) {
	r := NewRouter(map[string]string{"a": "A", "b": "B"}, "a")
	got, err := r.Route("missing")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got != "A" {
		t.Fatalf("expected fallback %q, got %q", "A", got)
	}
}
