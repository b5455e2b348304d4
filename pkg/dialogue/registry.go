package dialogue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/printworks/voicedesk/internal/log"
	"github.com/printworks/voicedesk/pkg/llm"
)

// Registry holds the tools the assistant may call and validates arguments
// against each tool's parameter schema before dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  log.With("component", "dialogue"),
	}
}

// Register adds a tool. Its parameter schema is compiled eagerly; a schema
// that fails to compile disables validation for that tool but does not
// reject it, since validation here is advisory.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool

	schema, err := compileParameterSchema(tool.Name, tool.Parameters)
	if err != nil {
		r.logger.Warn("tool schema failed to compile, skipping validation",
			"tool", tool.Name, "error", err)
		return
	}
	r.schemas[tool.Name] = schema
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LLMTools converts the registry into the tool declarations sent with each
// chat request.
func (r *Registry) LLMTools() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]llm.Tool, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		t := r.tools[name]
		params := map[string]any{
			"type":       "object",
			"properties": t.Parameters,
		}
		out = append(out, llm.NewTool(t.Name, t.Description, params))
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute validates the arguments and runs the named tool. Validation
// problems are logged but do not block execution; the model's arguments are
// often slightly off-schema and the handlers defend themselves anyway.
func (r *Registry) Execute(call Call) (string, error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	args := call.Arguments
	if args == nil {
		r.logger.Warn("tool call without arguments, using empty set", "tool", call.Name)
		args = map[string]any{}
	}

	r.mu.RLock()
	schema := r.schemas[call.Name]
	r.mu.RUnlock()
	if schema != nil {
		if err := schema.Validate(normalizeForSchema(args)); err != nil {
			r.logger.Warn("tool arguments failed schema validation",
				"tool", call.Name, "error", err)
		}
	}

	return tool.Handler(args)
}

func compileParameterSchema(name string, properties map[string]any) (*jsonschema.Schema, error) {
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("inline://tool/%s.json", name)
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// normalizeForSchema round-trips the arguments through JSON so the value
// tree uses the types the validator expects.
func normalizeForSchema(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}
