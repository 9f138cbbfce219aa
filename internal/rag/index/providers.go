package index

import (
	"context"
	"fmt"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/rag/embedding"
	"github.com/akolanti/rightsbot/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/rightsbot/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/rightsbot/internal/rag/llm"
	"github.com/akolanti/rightsbot/internal/rag/llm/anthropicLLM"
	"github.com/akolanti/rightsbot/internal/rag/llm/gemini"
	"github.com/akolanti/rightsbot/internal/rag/llm/openaiLLM"
)

const (
	EmbeddingProviderGoogle = "google"
	EmbeddingProviderOpenAI = "openai"
)

// Providers names the hosted services used for generation and embeddings
type Providers struct {
	LLM       string
	Embedding string
}

// ProvidersFromEnv reads LLM_PROVIDER and EMBEDDING_PROVIDER, Gemini being the default
func ProvidersFromEnv() Providers {
	p := Providers{
		LLM:       config.EnvOrDefault("LLM_PROVIDER", config.LLMProviderGemini),
		Embedding: config.EnvOrDefault("EMBEDDING_PROVIDER", ""),
	}
	if p.Embedding == "" {
		p.Embedding = EmbeddingProviderGoogle
		if p.LLM == config.LLMProviderOpenAI {
			p.Embedding = EmbeddingProviderOpenAI
		}
	}
	return p
}

func (p Providers) llmKeyName() (string, error) {
	switch p.LLM {
	case config.LLMProviderGemini:
		return config.GeminiAPIKeyName, nil
	case config.LLMProviderOpenAI:
		return config.OpenAIAPIKeyName, nil
	case config.LLMProviderAnthropic:
		return config.AnthropicAPIKeyName, nil
	}
	return "", fmt.Errorf("%w: LLM_PROVIDER=%q", ErrUnknownProvider, p.LLM)
}

func (p Providers) embeddingKeyName() (string, error) {
	switch p.Embedding {
	case EmbeddingProviderGoogle:
		return config.GeminiAPIKeyName, nil
	case EmbeddingProviderOpenAI:
		return config.OpenAIAPIKeyName, nil
	}
	return "", fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", ErrUnknownProvider, p.Embedding)
}

// Validate checks both provider names without touching any credential
func (p Providers) Validate() error {
	if _, err := p.llmKeyName(); err != nil {
		return err
	}
	_, err := p.embeddingKeyName()
	return err
}

// Credential resolves the generation key, and checks the embedding key exists when it is a different one
func (p Providers) Credential() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	llmKey, _ := p.llmKeyName()
	embKey, _ := p.embeddingKeyName()

	key, err := config.GetSecret(llmKey)
	if err != nil {
		return "", err
	}
	if embKey != llmKey {
		if _, err = config.GetSecret(embKey); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (p Providers) NewClients(ctx context.Context, key string) (Clients, error) {
	llmKey, _ := p.llmKeyName()
	embKeyName, err := p.embeddingKeyName()
	if err != nil {
		return Clients{}, err
	}
	embKey := key
	if embKeyName != llmKey {
		if embKey, err = config.GetSecret(embKeyName); err != nil {
			return Clients{}, err
		}
	}

	var embedder embedding.Embedder
	switch p.Embedding {
	case EmbeddingProviderOpenAI:
		embedder, err = openaiEmbedding.New(config.OpenAIEmbeddingModel, embKey)
	default:
		embedder, err = googleEmbedding.New(ctx, config.GoogleEmbeddingModel, embKey)
	}
	if err != nil {
		return Clients{}, err
	}

	var provider llm.Provider
	switch p.LLM {
	case config.LLMProviderOpenAI:
		provider, err = openaiLLM.New(config.OpenAIModelName, key)
	case config.LLMProviderAnthropic:
		provider, err = anthropicLLM.New(config.AnthropicModelName, key)
	default:
		provider, err = gemini.New(ctx, config.GeminiModelName, key)
	}
	if err != nil {
		return Clients{}, err
	}
	return Clients{Embedder: embedder, LLM: provider}, nil
}
