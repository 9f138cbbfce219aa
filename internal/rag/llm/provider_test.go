package llm

import (
	"strings"
	"testing"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
)

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction([]string{"Section 420: Cheating", "Section 302: Murder"})

	if !strings.HasPrefix(got, "You are Urimaikural") {
		t.Errorf("persona should come first, got %q", got[:40])
	}
	if !strings.Contains(got, "Context information is below.") {
		t.Error("missing context header")
	}
	if !strings.Contains(got, "Section 420: Cheating\n\nSection 302: Murder") {
		t.Error("matches should be joined in order")
	}
}

func TestHistoryTurns(t *testing.T) {
	history := []commonModels.Message{
		commonModels.NewMessage(commonModels.RoleAssistant, config.Greeting),
		commonModels.NewMessage(commonModels.RoleUser, "What is FIR?"),
		commonModels.NewMessage(commonModels.RoleAssistant, "A First Information Report."),
		commonModels.NewMessage(commonModels.RoleUser, "  "),
	}

	turns := HistoryTurns(history)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(turns), turns)
	}
	if !turns[0].User || turns[0].Content != "What is FIR?" {
		t.Errorf("first turn should be the user question, got %+v", turns[0])
	}
	if turns[1].User {
		t.Error("second turn should be the assistant")
	}
	if len(HistoryTurns(nil)) != 0 {
		t.Error("nil history should give no turns")
	}
}
