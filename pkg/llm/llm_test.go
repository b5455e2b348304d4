package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/printworks/voicedesk/pkg/llm"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("replies in order, last repeats", func(t *testing.T) {
		mock := llm.NewMock(
			llm.NewAssistantMessage("first"),
			llm.NewAssistantMessage("second"),
		)
		for _, want := range []string{"first", "second", "second"} {
			resp, err := mock.Chat(ctx, &llm.ChatRequest{})
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}
			if resp.Message.Content != want {
				t.Errorf("Content = %q, want %q", resp.Message.Content, want)
			}
		}
		if mock.CallCount() != 3 {
			t.Errorf("CallCount() = %d", mock.CallCount())
		}
	})

	t.Run("error mock", func(t *testing.T) {
		boom := errors.New("boom")
		mock := llm.WithError(boom)
		if _, err := mock.Chat(ctx, &llm.ChatRequest{}); !errors.Is(err, boom) {
			t.Errorf("Chat() error = %v", err)
		}
	})
}

func TestClientChat(t *testing.T) {
	t.Run("sends messages and tools, parses tool calls", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}

			var payload map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload["model"] != "gpt-4o-mini" {
				t.Errorf("model = %v", payload["model"])
			}
			tools, _ := payload["tools"].([]interface{})
			if len(tools) != 1 {
				t.Errorf("tools = %v", payload["tools"])
			}
			messages, _ := payload["messages"].([]interface{})
			if len(messages) != 2 {
				t.Errorf("messages = %v", payload["messages"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"model": "gpt-4o-mini",
				"choices": [{
					"finish_reason": "tool_calls",
					"message": {
						"role": "assistant",
						"content": "",
						"tool_calls": [{
							"id": "call_abc",
							"type": "function",
							"function": {"name": "create_quote", "arguments": "{\"customer_name\": \"Acme\"}"}
						}]
					}
				}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}`))
		}))
		defer server.Close()

		client, err := llm.NewClient(
			llm.WithBaseURL(server.URL),
			llm.WithAPIKey("test-key"),
			llm.WithModel("gpt-4o-mini"),
		)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		defer client.Close()

		resp, err := client.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{
				llm.NewSystemMessage("You are a helper."),
				llm.NewUserMessage("Quote fifty tees for Acme"),
			},
			Tools: []llm.Tool{
				llm.NewTool("create_quote", "Create a quote", map[string]interface{}{"type": "object"}),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if len(resp.Message.ToolCalls) != 1 {
			t.Fatalf("ToolCalls = %+v", resp.Message.ToolCalls)
		}
		tc := resp.Message.ToolCalls[0]
		if tc.ID != "call_abc" || tc.Name != "create_quote" {
			t.Errorf("tool call = %+v", tc)
		}
		var args map[string]string
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil || args["customer_name"] != "Acme" {
			t.Errorf("arguments = %q", tc.Arguments)
		}
		if resp.Usage.TotalTokens != 15 {
			t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
		}
	})

	t.Run("retries on rate limit", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"choices": [{"finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}]}`))
		}))
		defer server.Close()

		client, err := llm.NewClient(
			llm.WithBaseURL(server.URL),
			llm.WithAPIKey("test-key"),
			llm.WithRetry(2, time.Millisecond),
		)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}

		resp, err := client.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("hi")},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if resp.Message.Content != "ok" {
			t.Errorf("Content = %q", resp.Message.Content)
		}
		if got := atomic.LoadInt32(&attempts); got != 2 {
			t.Errorf("attempts = %d, want 2", got)
		}
	})

	t.Run("empty choices rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		client, err := llm.NewClient(llm.WithBaseURL(server.URL), llm.WithAPIKey("k"))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		_, err = client.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("hi")},
		})
		if !errors.Is(err, llm.ErrNoChoices) {
			t.Errorf("error = %v, want ErrNoChoices", err)
		}
	})

	t.Run("api error surfaces status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "context too long", "code": "context_length_exceeded"}}`))
		}))
		defer server.Close()

		client, err := llm.NewClient(llm.WithBaseURL(server.URL), llm.WithAPIKey("k"))
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		_, err = client.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.NewUserMessage("hi")},
		})
		var apiErr *llm.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d", apiErr.StatusCode)
		}
	})
}

func TestToolMessageRoundTrip(t *testing.T) {
	msg := llm.NewToolMessage("call_1", "quote created")
	if msg.Role != llm.RoleTool || msg.ToolCallID != "call_1" || msg.Content != "quote created" {
		t.Errorf("message = %+v", msg)
	}
}
