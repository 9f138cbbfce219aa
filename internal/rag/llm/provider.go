package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

type Provider interface {
	// Generate answers query grounded on matches, history is the earlier conversation oldest first
	Generate(ctx context.Context, query string, matches []string, history []commonModels.Message) (string, error)
}

// SystemInstruction is the persona followed by the retrieved context block
func SystemInstruction(matches []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(config.SystemPrompt))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf(config.ContextPromptTemplate, strings.Join(matches, "\n\n")))
	b.WriteString("Use the context information above and the previous chat history to answer the user's question.")
	return b.String()
}

// Turn is one prior message in provider neutral form
type Turn struct {
	User    bool
	Content string
}

// HistoryTurns drops empty messages and makes sure the conversation starts with a user turn
func HistoryTurns(history []commonModels.Message) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, Turn{User: m.Role == commonModels.RoleUser, Content: m.Content})
	}
	for len(turns) > 0 && !turns[0].User {
		turns = turns[1:]
	}
	return turns
}
