package factory

import (
	"context"
	"fmt"

	"clinical-intake-be/internal/config"
	"clinical-intake-be/pkg/embedding"
	"clinical-intake-be/pkg/llm"
	"clinical-intake-be/pkg/llm/gemini"
	"clinical-intake-be/pkg/llm/ollama"
)

func NewLLMProvider(ctx context.Context, cfg *config.Config) (llm.LLMProvider, error) {
	switch cfg.Ai.LLMProvider {
	case "ollama":
		baseURL := cfg.Ai.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Ai.LLMModel, cfg.Ai.LLMTemperature), nil
	case "gemini":
		return gemini.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Ai.LLMModel, cfg.Ai.LLMTemperature)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Ai.LLMProvider)
	}
}

func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel), nil
	case "gemini":
		return embedding.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}
