// Package dialogue turns transcripts into assistant replies.
//
// An Orchestrator keeps the bounded conversation history for one session,
// sends each user turn to the language model together with the registered
// tool catalog, executes at most one tool call per turn, and always comes
// back with speakable text.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/printworks/voicedesk/internal/log"
	"github.com/printworks/voicedesk/pkg/llm"
)

const (
	// DefaultMaxHistoryTurns bounds the stored conversation history.
	DefaultMaxHistoryTurns = 20

	// DefaultRetainPrefix is how many of the oldest messages survive
	// trimming, so the opening context is never lost.
	DefaultRetainPrefix = 2

	apologyToolFailed  = "Sorry, I ran into a problem doing that. Could you try again?"
	apologyUnparseable = "Sorry, I didn't manage to complete that action. Could you rephrase?"
)

// Config controls an Orchestrator.
type Config struct {
	SystemPrompt    string
	MaxHistoryTurns int
	RetainPrefix    int
}

// Orchestrator manages one session's conversation with the model.
type Orchestrator struct {
	provider llm.Provider
	registry *Registry
	logger   *slog.Logger

	systemPrompt string
	maxTurns     int
	retainPrefix int

	mu      sync.Mutex
	history []llm.Message
}

// New creates an Orchestrator backed by the given model provider and tool
// registry. A nil registry means the assistant runs without tools.
func New(provider llm.Provider, registry *Registry, cfg Config) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	maxTurns := cfg.MaxHistoryTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxHistoryTurns
	}
	retain := cfg.RetainPrefix
	if retain < 0 {
		retain = DefaultRetainPrefix
	}
	if retain >= maxTurns {
		retain = 0
	}
	return &Orchestrator{
		provider:     provider,
		registry:     registry,
		logger:       log.With("component", "dialogue"),
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     maxTurns,
		retainPrefix: retain,
	}
}

// Respond processes one user turn and returns the assistant's reply text.
// At most one tool call is honored per turn; after a tool runs, the model
// gets exactly one follow-up request to phrase the result, and whatever it
// says then is final.
func (o *Orchestrator) Respond(ctx context.Context, userText string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.appendLocked(llm.NewUserMessage(userText))

	resp, err := o.chatLocked(ctx, true)
	if err != nil {
		// The failed turn stays in history; the user may retry.
		return "", fmt.Errorf("chat request: %w", err)
	}

	call, raw := o.resolveCall(resp.Message)
	if call == nil {
		if raw != "" {
			// Tool-shaped text we could not parse; never read JSON aloud.
			o.logger.Warn("unparseable tool attempt in model reply")
			o.appendLocked(llm.NewAssistantMessage(apologyUnparseable))
			return apologyUnparseable, nil
		}
		reply := strings.TrimSpace(resp.Message.Content)
		o.appendLocked(llm.NewAssistantMessage(reply))
		return reply, nil
	}

	o.logger.Info("executing tool", "tool", call.Name)
	result, execErr := o.registry.Execute(*call)
	if execErr != nil {
		o.logger.Warn("tool execution failed", "tool", call.Name, "error", execErr)
		o.appendLocked(llm.NewAssistantMessage(apologyToolFailed))
		return apologyToolFailed, nil
	}

	if call.ID != "" {
		o.appendLocked(resp.Message)
		o.appendLocked(llm.NewToolMessage(call.ID, result))
	} else {
		o.appendLocked(llm.NewUserMessage("tool executed: " + result))
	}

	followUp, err := o.chatLocked(ctx, false)
	if err != nil {
		// The tool already ran; report its result rather than failing the turn.
		o.logger.Warn("follow-up chat failed, replying with raw tool result", "error", err)
		o.appendLocked(llm.NewAssistantMessage(result))
		return result, nil
	}

	reply := strings.TrimSpace(followUp.Message.Content)
	if reply == "" {
		reply = result
	}
	o.appendLocked(llm.NewAssistantMessage(reply))
	return reply, nil
}

// Reset clears the conversation history.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}

// History returns a copy of the stored conversation.
func (o *Orchestrator) History() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]llm.Message, len(o.history))
	copy(out, o.history)
	return out
}

// chatLocked sends the current history to the model. Tools are only
// declared on the first request of a turn; the follow-up after a tool run
// must produce text.
func (o *Orchestrator) chatLocked(ctx context.Context, withTools bool) (*llm.ChatResponse, error) {
	messages := make([]llm.Message, 0, len(o.history)+1)
	if o.systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(o.systemPrompt))
	}
	messages = append(messages, o.history...)

	req := &llm.ChatRequest{Messages: messages}
	if withTools {
		req.Tools = o.registry.LLMTools()
	}
	return o.provider.Chat(ctx, req)
}

// resolveCall finds the turn's tool call, preferring the structured
// tool_calls field and falling back to scanning the reply text. The second
// return is non-empty when the text looks like a failed tool attempt.
func (o *Orchestrator) resolveCall(msg llm.Message) (*Call, string) {
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		call := &Call{ID: tc.ID, Name: tc.Name}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &call.Arguments); err != nil {
				o.logger.Warn("tool call arguments not valid JSON, using empty set",
					"tool", tc.Name, "error", err)
			}
		}
		return call, ""
	}

	call, found, malformed := ExtractCall(msg.Content)
	if found {
		return call, ""
	}
	if malformed {
		return nil, msg.Content
	}
	return nil, ""
}

// appendLocked adds a message and trims the history to the configured
// bound, keeping the retained prefix and the most recent messages.
func (o *Orchestrator) appendLocked(msg llm.Message) {
	o.history = append(o.history, msg)
	if len(o.history) <= o.maxTurns {
		return
	}

	keep := o.maxTurns - o.retainPrefix
	trimmed := make([]llm.Message, 0, o.maxTurns)
	trimmed = append(trimmed, o.history[:o.retainPrefix]...)
	trimmed = append(trimmed, o.history[len(o.history)-keep:]...)
	o.history = trimmed

	o.logger.Debug("history trimmed", "kept", len(o.history))
}
