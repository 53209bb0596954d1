package qualifiernode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
	promptx "github.com/redlitmus-in/real-estate-crm/agent/prompt"
	statex "github.com/redlitmus-in/real-estate-crm/agent/state"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Complete(context.Context, []*schema.Message) (string, error) {
	return s.reply, s.err
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return testNow }

	if _, err := ValidateRequest(GraphInput{Customer: contractx.Customer{ID: "c1"}, ConversationID: "v1", Text: " "}, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidMessage", err)
	}
	if _, err := ValidateRequest(GraphInput{ConversationID: "v1", Text: "hi"}, now); !errors.Is(err, ErrInvalidCustomer) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidCustomer", err)
	}
	if _, err := ValidateRequest(GraphInput{Customer: contractx.Customer{ID: "c1"}, Text: "hi"}, now); !errors.Is(err, statex.ErrInvalidKey) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidKey", err)
	}

	st, err := ValidateRequest(GraphInput{
		Customer:       contractx.Customer{ID: " c1 ", TelegramChatID: "42"},
		ConversationID: "v1",
		Text:           "  hello ",
	}, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.Key != "2:c1:v1" || st.Text != "hello" || st.Channel != "Telegram" || !st.Now.Equal(testNow) {
		t.Fatalf("unexpected turn state: %+v", st)
	}
}

func TestRebuildHistory(t *testing.T) {
	t.Parallel()

	log := []contractx.HistoryMessage{
		{Content: "hi", SenderType: contractx.SenderCustomer, CreatedAt: testNow},
		{Content: "Hello! May I know your name?", SenderType: contractx.SenderAgent, CreatedAt: testNow.Add(time.Second)},
		{Content: "lead assigned", SenderType: contractx.SenderSystem, CreatedAt: testNow.Add(2 * time.Second)},
		{Content: "   ", SenderType: contractx.SenderCustomer, CreatedAt: testNow.Add(3 * time.Second)},
		{Content: "I'm Meena", SenderType: contractx.SenderCustomer, CreatedAt: testNow.Add(4 * time.Second)},
	}

	turns := RebuildHistory(log, "I'm Meena", testNow.Add(5*time.Second))
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d: %+v", len(turns), turns)
	}
	if turns[1].Role != contractx.RoleAssistant || turns[2].Content != "I'm Meena" {
		t.Fatalf("unexpected turns: %+v", turns)
	}

	turns = RebuildHistory(log, "looking for a plot", testNow.Add(5*time.Second))
	if len(turns) != 4 || turns[3].Content != "looking for a plot" || turns[3].Role != contractx.RoleUser {
		t.Fatalf("current message not appended: %+v", turns)
	}

	turns = RebuildHistory(nil, "hello", testNow)
	if len(turns) != 1 || !turns[0].Timestamp.Equal(testNow) {
		t.Fatalf("unexpected turns for empty log: %+v", turns)
	}
}

func TestCoverageScore(t *testing.T) {
	t.Parallel()

	budget := 5_000_000.0
	tests := []struct {
		name string
		info contractx.LeadInfo
		want int
	}{
		{name: "empty", info: contractx.LeadInfo{}, want: 0},
		{name: "qualifying fields", info: contractx.LeadInfo{Name: "Ravi", PropertyType: contractx.PropertyVilla, Budget: &budget, Location: "chennai"}, want: 80},
		{name: "range counts as budget", info: contractx.LeadInfo{BudgetRange: &contractx.BudgetRange{Min: 1, Max: 2}}, want: 20},
		{name: "everything", info: contractx.LeadInfo{Name: "Ravi", PropertyType: contractx.PropertyVilla, Budget: &budget, Location: "chennai", BHKType: "3BHK", Timeline: "asap"}, want: 100},
	}

	for _, tc := range tests {
		if got := CoverageScore(tc.info); got != tc.want {
			t.Fatalf("%s: CoverageScore() = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestGenerateReplyStageFallback(t *testing.T) {
	t.Parallel()

	st := statex.NewAgentState("c1", "v1", testNow)
	st.CurrentStage = contractx.StageBudgetCollection
	st.AppendTurn(contractx.RoleUser, "hmm", testNow)

	in := &TurnState{
		Customer: contractx.Customer{ID: "c1"},
		State:    st,
		Memory:   contractx.FallbackMemoryContext(),
		Channel:  "chat",
	}
	cfg := ReplyConfig{AgentName: "Priya", CompanyName: "Acme", Persona: promptx.LoadPromptSet().Persona, HistoryWindow: 5}

	out, err := GenerateReply(context.Background(), in, stubCompleter{reply: "canned", err: contractx.ErrDependencyUnavailable}, cfg)
	if err != nil {
		t.Fatalf("GenerateReply() error = %v", err)
	}
	if !out.Canned || out.Response.NextStage != contractx.StageLocationCollection {
		t.Fatalf("expected successor stage fallback, got %+v", out.Response)
	}
	if out.Response.Message != StageQuestion(contractx.StageLocationCollection) || out.Response.Confidence != FallbackConfidence {
		t.Fatalf("unexpected fallback response: %+v", out.Response)
	}
}

func TestGenerateReplyBrokenPersonaIsOrchestrationError(t *testing.T) {
	t.Parallel()

	in := &TurnState{State: statex.NewAgentState("c1", "v1", testNow)}
	_, err := GenerateReply(context.Background(), in, stubCompleter{reply: "hi"}, ReplyConfig{Persona: "{{.Missing"})
	if !errors.Is(err, contractx.ErrOrchestration) {
		t.Fatalf("GenerateReply() error = %v, want ErrOrchestration", err)
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	if _, err := Finalize(&TurnState{}); !errors.Is(err, contractx.ErrOrchestration) {
		t.Fatalf("Finalize() error = %v, want ErrOrchestration", err)
	}

	out, err := Finalize(&TurnState{Response: contractx.AIResponse{Message: "hi"}})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if out.Response.Actions == nil || out.Response.ExtractedInfo == nil {
		t.Fatalf("Finalize() must not return nil collections: %+v", out.Response)
	}
}

func TestFallbackResponse(t *testing.T) {
	t.Parallel()

	resp := FallbackResponse()
	if resp.NextStage != contractx.StageGreeting || resp.Confidence != 0.7 || len(resp.ExtractedInfo) != 0 {
		t.Fatalf("unexpected fallback: %+v", resp)
	}
	if resp.ShouldCreateLead || resp.ShouldScheduleFollowUp {
		t.Fatal("fallback must not signal intents")
	}
}

func TestMergeHistoryCustomerRecordNameWins(t *testing.T) {
	t.Parallel()

	history := []contractx.Turn{
		{Role: contractx.RoleUser, Content: "3BHK villa in Coimbatore, 50 lakhs", Timestamp: testNow},
		{Role: contractx.RoleUser, Content: "my name is Arjun, call me at 6pm", Timestamp: testNow},
	}

	tests := []struct {
		name     string
		customer string
		want     string
	}{
		{name: "record name", customer: "Ravi Kumar", want: "Ravi"},
		{name: "no record name", customer: "", want: "Arjun"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			st := statex.NewAgentState("c1", "v1", testNow)
			st.ConversationHistory = history
			in := &TurnState{Customer: contractx.Customer{ID: "c1", Name: tc.customer}, State: st}

			out, err := MergeHistory(in)
			if err != nil {
				t.Fatalf("MergeHistory() error = %v", err)
			}
			if got := out.State.CollectedInfo.Name; got != tc.want {
				t.Fatalf("Name = %q, want %q", got, tc.want)
			}
			if out.HistoryInfo.Name != "Arjun" {
				t.Fatalf("HistoryInfo.Name = %q, want Arjun", out.HistoryInfo.Name)
			}
			if !out.EnoughContext {
				t.Fatalf("EnoughContext = false, want true")
			}
		})
	}
}
