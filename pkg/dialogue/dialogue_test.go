package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/printworks/voicedesk/pkg/llm"
)

func echoTool(name string, calls *[]map[string]any) Tool {
	return Tool{
		Name:        name,
		Description: "test tool",
		Parameters: map[string]any{
			"value": map[string]any{"type": "string"},
		},
		Handler: func(args map[string]any) (string, error) {
			if calls != nil {
				*calls = append(*calls, args)
			}
			return "tool ok", nil
		},
	}
}

func TestRespondPlainText(t *testing.T) {
	mock := llm.NewMock(llm.NewAssistantMessage("We open at nine."))
	o := New(mock, nil, Config{SystemPrompt: "You are a helper."})

	reply, err := o.Respond(context.Background(), "When do you open?")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "We open at nine." {
		t.Errorf("reply = %q", reply)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", mock.CallCount())
	}

	// The system prompt leads every request but stays out of history.
	req := mock.Requests()[0]
	if req.Messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q, want system", req.Messages[0].Role)
	}
	hist := o.History()
	if len(hist) != 2 || hist[0].Role != llm.RoleUser || hist[1].Role != llm.RoleAssistant {
		t.Errorf("history = %+v, want user+assistant", hist)
	}
}

func TestRespondStructuredToolCall(t *testing.T) {
	var calls []map[string]any
	registry := NewRegistry()
	registry.Register(echoTool("create_quote", &calls))

	toolReply := llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "create_quote",
			Arguments: `{"value": "fifty tees"}`,
		}},
	}
	mock := llm.NewMock(toolReply, llm.NewAssistantMessage("Done, quote created."))
	o := New(mock, registry, Config{})

	reply, err := o.Respond(context.Background(), "Quote fifty tees for Acme")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "Done, quote created." {
		t.Errorf("reply = %q", reply)
	}
	if len(calls) != 1 || calls[0]["value"] != "fifty tees" {
		t.Errorf("tool calls = %v", calls)
	}
	if mock.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want tool turn plus follow-up", mock.CallCount())
	}

	// The follow-up request must carry the tool result message.
	followUp := mock.Requests()[1]
	found := false
	for _, msg := range followUp.Messages {
		if msg.Role == llm.RoleTool && msg.Content == "tool ok" {
			found = true
		}
	}
	if !found {
		t.Error("follow-up request missing tool result message")
	}
}

func TestRespondInlineToolCall(t *testing.T) {
	var calls []map[string]any
	registry := NewRegistry()
	registry.Register(echoTool("lookup_customer", &calls))

	mock := llm.NewMock(
		llm.NewAssistantMessage(`Let me check. {"tool": "lookup_customer", "arguments": {"value": "Acme"}}`),
		llm.NewAssistantMessage("Acme has two open quotes."),
	)
	o := New(mock, registry, Config{})

	reply, err := o.Respond(context.Background(), "What's open for Acme?")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "Acme has two open quotes." {
		t.Errorf("reply = %q", reply)
	}
	if len(calls) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(calls))
	}

	// Inline calls have no call ID; the result goes back as user text.
	followUp := mock.Requests()[1]
	found := false
	for _, msg := range followUp.Messages {
		if msg.Role == llm.RoleUser && strings.HasPrefix(msg.Content, "tool executed: ") {
			found = true
		}
	}
	if !found {
		t.Error("follow-up request missing inline tool result")
	}
}

func TestRespondToolFailure(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Tool{
		Name:       "broken",
		Parameters: map[string]any{},
		Handler: func(args map[string]any) (string, error) {
			return "", errors.New("db on fire")
		},
	})

	mock := llm.NewMock(llm.NewAssistantMessage(`{"tool": "broken"}`))
	o := New(mock, registry, Config{})

	reply, err := o.Respond(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != apologyToolFailed {
		t.Errorf("reply = %q, want apology", reply)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want no follow-up after failure", mock.CallCount())
	}
}

func TestRespondUnknownTool(t *testing.T) {
	mock := llm.NewMock(llm.NewAssistantMessage(`{"tool": "no_such_tool"}`))
	o := New(mock, NewRegistry(), Config{})

	reply, err := o.Respond(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != apologyToolFailed {
		t.Errorf("reply = %q, want apology", reply)
	}
}

func TestRespondMalformedToolAttempt(t *testing.T) {
	mock := llm.NewMock(llm.NewAssistantMessage(`{"tool": "create_quote", "arguments": {"x": }`))
	o := New(mock, NewRegistry(), Config{})

	reply, err := o.Respond(context.Background(), "quote something")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != apologyUnparseable {
		t.Errorf("reply = %q, want apology", reply)
	}
	if strings.Contains(reply, "{") {
		t.Error("raw JSON leaked into the spoken reply")
	}
}

func TestHistoryTrimming(t *testing.T) {
	mock := llm.NewMock(llm.NewAssistantMessage("ok"))
	o := New(mock, nil, Config{MaxHistoryTurns: 6, RetainPrefix: 2})

	for i := 0; i < 10; i++ {
		if _, err := o.Respond(context.Background(), fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
	}

	hist := o.History()
	if len(hist) != 6 {
		t.Fatalf("history length = %d, want 6", len(hist))
	}
	// The opening exchange survives trimming.
	if hist[0].Content != "message 0" || hist[1].Content != "ok" {
		t.Errorf("retained prefix = %q, %q", hist[0].Content, hist[1].Content)
	}
	// The tail is the most recent messages.
	if hist[len(hist)-2].Content != "message 9" {
		t.Errorf("newest user message = %q, want message 9", hist[len(hist)-2].Content)
	}
}

func TestReset(t *testing.T) {
	mock := llm.NewMock(llm.NewAssistantMessage("ok"))
	o := New(mock, nil, Config{})

	if _, err := o.Respond(context.Background(), "hello"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	o.Reset()
	if len(o.History()) != 0 {
		t.Error("history survived Reset")
	}
	// Reset is idempotent.
	o.Reset()
	if len(o.History()) != 0 {
		t.Error("second Reset changed state")
	}
}

func TestChatError(t *testing.T) {
	mock := llm.WithError(errors.New("rate limited"))
	o := New(mock, nil, Config{})

	if _, err := o.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("Respond() error = nil, want chat failure")
	}
}

func TestRegistryValidationIsAdvisory(t *testing.T) {
	var calls []map[string]any
	registry := NewRegistry()
	registry.Register(echoTool("strict", &calls))

	// Off-schema arguments still dispatch; validation only warns.
	result, err := registry.Execute(Call{Name: "strict", Arguments: map[string]any{"value": 42}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "tool ok" {
		t.Errorf("result = %q", result)
	}
}

func TestRegistryNilArguments(t *testing.T) {
	var calls []map[string]any
	registry := NewRegistry()
	registry.Register(echoTool("tool", &calls))

	if _, err := registry.Execute(Call{Name: "tool"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(calls) != 1 || calls[0] == nil {
		t.Error("handler did not receive an empty argument map")
	}
}
