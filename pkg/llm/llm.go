// Package llm provides a unified interface for tool-calling chat completion.
//
// The package abstracts chat completions behind a single Provider interface,
// enabling seamless switching between providers that implement the
// OpenAI-compatible API (OpenAI, Ollama, vLLM, Together, Groq, and others).
//
// Example usage:
//
//	client, _ := llm.NewClient(
//	    llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    llm.WithModel("gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &llm.ChatRequest{
//	    Messages: []llm.Message{
//	        {Role: llm.RoleUser, Content: "Hello!"},
//	    },
//	})
package llm

import "context"

// Provider is the chat completion interface.
// All implementations must satisfy this interface.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// Tools available for the model to call.
	Tools []Tool

	// ToolChoice controls tool use: "auto", "none", "required".
	ToolChoice string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
