package openaiLLM

import (
	"context"
	"errors"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/customHttpClient"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/rag/llm"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type LLMClient struct {
	client    openai.Client
	modelName string
	logger    *logger_i.Logger
}

func New(modelName string, apikey string) (*LLMClient, error) {
	if apikey == "" {
		return nil, errors.New("openai: empty api key")
	}
	client := openai.NewClient(
		option.WithAPIKey(apikey),
		option.WithHTTPClient(customHttpClient.GetPooledClient()),
	)
	logger := logger_i.NewLogger("llm_openai")
	logger.Info("OpenAI client created", "model", modelName)
	return &LLMClient{client: client, modelName: modelName, logger: logger}, nil
}

func (c *LLMClient) Generate(ctx context.Context, userQuery string, matches []string, history []commonModels.Message) (string, error) {
	log := c.logger.WithTrace(ctx)

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(llm.SystemInstruction(matches))}
	for _, turn := range llm.HistoryTurns(history) {
		if turn.User {
			messages = append(messages, openai.UserMessage(turn.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userQuery))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.modelName),
		Messages:    messages,
		Temperature: openai.Float(float64(config.ModelTemperature)),
	})
	if err != nil {
		log.Error("OpenAI generation failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
