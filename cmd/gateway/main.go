package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/talkloop/gateway/internal/characters"
	"github.com/talkloop/gateway/internal/orchestrator"
	"github.com/talkloop/gateway/internal/providers"
	"github.com/talkloop/gateway/internal/trace"
	"github.com/talkloop/gateway/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	cfg := loadConfig()

	registry := buildProviderRegistry(cfg)
	charRegistry := characters.NewRegistry()
	recorder := trace.NewRecorder()

	var classify *providers.ClassifyClient
	if cfg.audioClassifyURL != "" {
		classify = providers.NewClassifyClient(cfg.audioClassifyURL)
	}

	orch := orchestrator.New(registry, charRegistry, classify)
	handler := ws.NewHandler(ws.HandlerConfig{Orchestrator: orch, Recorder: recorder})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{wsHandler: handler, recorder: recorder})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv)

	slog.Info("gateway starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

// buildProviderRegistry wires every adapter the domain stack supports
// into the Provider Registry: `zhipu` is the always-on default engine
// (ASR+LLM+TTS); `openai` and `anthropic` register as additional LLM
// engines only when their API keys are configured.
func buildProviderRegistry(cfg config) *providers.Registry {
	registry := providers.NewRegistry()

	zhipu := providers.NewZhipuClient(cfg.zhipuAPIKey, cfg.zhipuBaseURL)
	registry.RegisterASR("zhipu", zhipu, "chirp-beta")
	registry.RegisterLLM("zhipu", zhipu, "glm-4-flash", "glm-4-air")
	registry.RegisterTTS("zhipu", zhipu, "glm-tts")

	if cfg.openaiAPIKey != "" {
		provider := agents.NewOpenAIProvider(agents.OpenAIProviderParams{
			BaseURL:      param.NewOpt(cfg.openaiBaseURL),
			APIKey:       param.NewOpt(cfg.openaiAPIKey),
			UseResponses: param.NewOpt(true),
		})
		registry.RegisterLLM("openai", providers.NewOpenAIAgentLLM(provider, cfg.openaiModel), cfg.openaiModel)
	}

	if cfg.anthropicAPIKey != "" {
		registry.RegisterLLM("anthropic",
			providers.NewAnthropicLLM(cfg.anthropicAPIKey, cfg.anthropicBaseURL, cfg.anthropicModel, cfg.anthropicPool),
			cfg.anthropicModel)
	}

	registry.SetDefaults(
		cfg.defaultASRProvider, cfg.defaultASRModel,
		cfg.defaultLLMProvider, cfg.defaultLLMModel,
		cfg.defaultTTSProvider, cfg.defaultTTSModel,
	)
	return registry
}

// awaitShutdown blocks until SIGINT/SIGTERM, then calls srv.Shutdown with
// a 30s deadline. Shutdown stops accepting new connections; it does not
// close or wait for hijacked WebSocket connections, so open sessions are
// not cancelled by it.
func awaitShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
