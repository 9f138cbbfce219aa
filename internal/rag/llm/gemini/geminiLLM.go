package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/customHttpClient"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/rag/llm"
	"github.com/akolanti/rightsbot/pkg/logger_i"
	"google.golang.org/genai"
)

type LLMClient struct {
	client    *genai.Client
	modelName string
	logger    *logger_i.Logger
}

func New(ctx context.Context, modelName string, apikey string) (*LLMClient, error) {
	if apikey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apikey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.GetPooledClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini client created", "model", modelName)
	return &LLMClient{client: c, modelName: modelName, logger: logger}, nil
}

func (c *LLMClient) Generate(ctx context.Context, userQuery string, matches []string, history []commonModels.Message) (string, error) {
	log := c.logger.WithTrace(ctx)

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range llm.HistoryTurns(history) {
		role := genai.Role(genai.RoleModel)
		if turn.User {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(userQuery, genai.RoleUser))

	temperature := config.ModelTemperature
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.SystemInstruction(matches), genai.RoleUser),
		Temperature:       &temperature,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	answer := result.Text()
	if answer == "" {
		return "", errors.New("gemini: empty response")
	}
	log.Debug("Gemini answered", "length", len(answer))
	return answer, nil
}
