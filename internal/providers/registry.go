package providers

// Registry resolves (providerName, model) to a concrete ASR/LLM/TTS
// adapter. It is built once at startup and never mutated afterward, so
// reads from concurrent orchestrator tasks are lock-free.
type Registry struct {
	asr map[string]ASRPort
	llm map[string]LLMPort
	tts map[string]TTSPort

	defaultASRProvider, defaultASRModel string
	defaultLLMProvider, defaultLLMModel string
	defaultTTSProvider, defaultTTSModel string

	asrModels map[string]map[string]bool
	llmModels map[string]map[string]bool
	ttsModels map[string]map[string]bool
}

// NewRegistry creates an empty registry; call the Register* methods to
// populate it before serving any sessions.
func NewRegistry() *Registry {
	return &Registry{
		asr:       make(map[string]ASRPort),
		llm:       make(map[string]LLMPort),
		tts:       make(map[string]TTSPort),
		asrModels: make(map[string]map[string]bool),
		llmModels: make(map[string]map[string]bool),
		ttsModels: make(map[string]map[string]bool),
	}
}

// RegisterASR adds an ASR adapter under providerName, accepting the given
// model names.
func (r *Registry) RegisterASR(providerName string, port ASRPort, models ...string) {
	r.asr[providerName] = port
	r.asrModels[providerName] = toSet(models)
}

// RegisterLLM adds an LLM adapter under providerName, accepting the given
// model names.
func (r *Registry) RegisterLLM(providerName string, port LLMPort, models ...string) {
	r.llm[providerName] = port
	r.llmModels[providerName] = toSet(models)
}

// RegisterTTS adds a TTS adapter under providerName, accepting the given
// model names.
func (r *Registry) RegisterTTS(providerName string, port TTSPort, models ...string) {
	r.tts[providerName] = port
	r.ttsModels[providerName] = toSet(models)
}

// SetDefaults records the provider/model pair used when a session's
// session.Config leaves a field unset, per spec §6.
func (r *Registry) SetDefaults(asrProvider, asrModel, llmProvider, llmModel, ttsProvider, ttsModel string) {
	r.defaultASRProvider, r.defaultASRModel = asrProvider, asrModel
	r.defaultLLMProvider, r.defaultLLMModel = llmProvider, llmModel
	r.defaultTTSProvider, r.defaultTTSModel = ttsProvider, ttsModel
}

// ResolveASR resolves a (providerName, model) pair, applying defaults for
// empty fields, and validates the model is registered for that provider.
func (r *Registry) ResolveASR(providerName, model string) (ASRPort, string, error) {
	if providerName == "" {
		providerName = r.defaultASRProvider
	}
	if model == "" {
		model = r.defaultASRModel
	}
	port, ok := r.asr[providerName]
	if !ok {
		return nil, "", &NoSuchProvider{Kind: "asr", Provider: providerName}
	}
	if models := r.asrModels[providerName]; len(models) > 0 && !models[model] {
		return nil, "", &NoSuchModel{Kind: "asr", Provider: providerName, Model: model}
	}
	return port, model, nil
}

// ResolveLLM resolves a (providerName, model) pair, applying defaults for
// empty fields, and validates the model is registered for that provider.
func (r *Registry) ResolveLLM(providerName, model string) (LLMPort, string, error) {
	if providerName == "" {
		providerName = r.defaultLLMProvider
	}
	if model == "" {
		model = r.defaultLLMModel
	}
	port, ok := r.llm[providerName]
	if !ok {
		return nil, "", &NoSuchProvider{Kind: "llm", Provider: providerName}
	}
	if models := r.llmModels[providerName]; len(models) > 0 && !models[model] {
		return nil, "", &NoSuchModel{Kind: "llm", Provider: providerName, Model: model}
	}
	return port, model, nil
}

// ResolveTTS resolves a (providerName, model) pair, applying defaults for
// empty fields, and validates the model is registered for that provider.
func (r *Registry) ResolveTTS(providerName, model string) (TTSPort, string, error) {
	if providerName == "" {
		providerName = r.defaultTTSProvider
	}
	if model == "" {
		model = r.defaultTTSModel
	}
	port, ok := r.tts[providerName]
	if !ok {
		return nil, "", &NoSuchProvider{Kind: "tts", Provider: providerName}
	}
	if models := r.ttsModels[providerName]; len(models) > 0 && !models[model] {
		return nil, "", &NoSuchModel{Kind: "tts", Provider: providerName, Model: model}
	}
	return port, model, nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
