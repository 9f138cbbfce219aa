package anthropicLLM

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/customHttpClient"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/rag/llm"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type LLMClient struct {
	client    *anthropic.Client
	modelName string
	logger    *logger_i.Logger
}

func New(modelName string, apikey string) (*LLMClient, error) {
	if apikey == "" {
		return nil, errors.New("anthropic: empty api key")
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apikey),
		option.WithHTTPClient(customHttpClient.GetPooledClient()),
	)
	logger := logger_i.NewLogger("llm_anthropic")
	logger.Info("Anthropic client created", "model", modelName)
	return &LLMClient{client: &client, modelName: modelName, logger: logger}, nil
}

func (c *LLMClient) Generate(ctx context.Context, userQuery string, matches []string, history []commonModels.Message) (string, error) {
	log := c.logger.WithTrace(ctx)

	conversation := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range llm.HistoryTurns(history) {
		if turn.User {
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(userQuery)))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelName),
		MaxTokens:   int64(config.AnthropicMaxTokens),
		System:      []anthropic.TextBlockParam{{Text: llm.SystemInstruction(matches)}},
		Messages:    conversation,
		Temperature: anthropic.Float(float64(config.ModelTemperature)),
	})
	if err != nil {
		log.Error("Anthropic generation failed", "error", err)
		return "", err
	}

	var b strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: empty response")
	}
	return b.String(), nil
}
