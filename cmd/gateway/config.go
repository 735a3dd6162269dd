package main

import (
	"os"
	"strconv"
)

// config holds the deployment-time knobs loaded from the environment
// (plus an optional .env file, via godotenv) — URLs, API keys, and the
// Provider Registry's default provider/model selections (spec §6's
// ConversationConfig defaults).
type config struct {
	port string

	zhipuAPIKey  string
	zhipuBaseURL string

	openaiAPIKey  string
	openaiBaseURL string
	openaiModel   string

	anthropicAPIKey  string
	anthropicBaseURL string
	anthropicModel   string
	anthropicPool    int

	audioClassifyURL string

	defaultASRProvider, defaultASRModel string
	defaultLLMProvider, defaultLLMModel string
	defaultTTSProvider, defaultTTSModel string
}

func loadConfig() config {
	return config{
		port: envStr("GATEWAY_PORT", "8000"),

		zhipuAPIKey:  envStr("ZHIPU_API_KEY", ""),
		zhipuBaseURL: envStr("ZHIPU_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"),

		openaiAPIKey:  envStr("OPENAI_API_KEY", ""),
		openaiBaseURL: envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		openaiModel:   envStr("OPENAI_MODEL", "gpt-4.1-nano"),

		anthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		anthropicBaseURL: envStr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		anthropicModel:   envStr("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		anthropicPool:    envInt("ANTHROPIC_POOL_SIZE", 20),

		audioClassifyURL: envStr("AUDIOCLASSIFY_URL", ""),

		defaultASRProvider: envStr("DEFAULT_ASR_PROVIDER", "zhipu"),
		defaultASRModel:    envStr("DEFAULT_ASR_MODEL", "chirp-beta"),
		defaultLLMProvider: envStr("DEFAULT_LLM_PROVIDER", "zhipu"),
		defaultLLMModel:    envStr("DEFAULT_LLM_MODEL", "glm-4-flash"),
		defaultTTSProvider: envStr("DEFAULT_TTS_PROVIDER", "zhipu"),
		defaultTTSModel:    envStr("DEFAULT_TTS_MODEL", "glm-tts"),
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
