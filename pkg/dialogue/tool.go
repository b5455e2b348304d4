package dialogue

// Tool represents a function the assistant can invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "create_quote").
	Name string `json:"name"`

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema properties for the tool's
	// arguments.
	Parameters map[string]any `json:"parameters"`

	// Handler is called when the model invokes this tool. It receives the
	// parsed arguments and returns a result string to feed back into the
	// conversation.
	Handler func(args map[string]any) (string, error) `json:"-"`
}

// Call is a tool invocation requested by the model.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}
