package dialogue

import (
	"encoding/json"
	"strings"
)

// ExtractCall scans assistant text for an inline tool invocation. Models
// running without native tool-call support tend to emit the call as a JSON
// object somewhere in the reply, often wrapped in prose or a code fence, so
// the scan is tolerant: the first well-formed JSON object that names a tool
// wins and everything around it is ignored.
//
// The second return reports whether a call was found. The third reports
// that the text looks like an attempted tool call but no well-formed
// payload could be recovered.
func ExtractCall(text string) (*Call, bool, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		candidate, end := balancedObject(text[i:])
		if candidate == "" {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			continue
		}
		if call := callFromPayload(payload); call != nil {
			return call, true, false
		}

		// Well-formed JSON but not a tool shape; keep scanning after it.
		i += end - 1
	}

	return nil, false, looksLikeToolAttempt(text)
}

// callFromPayload interprets a decoded JSON object as a tool call. Accepted
// shapes name the tool under "tool" or "name" and carry arguments under
// "arguments", "parameters" or "args"; a call without arguments is valid.
func callFromPayload(payload map[string]any) *Call {
	name := firstString(payload, "tool", "name", "function")
	if name == "" {
		return nil
	}

	call := &Call{Name: name}
	for _, key := range []string{"arguments", "parameters", "args", "input"} {
		if m, ok := payload[key].(map[string]any); ok {
			call.Arguments = m
			break
		}
		// Some models double-encode the arguments as a JSON string.
		if s, ok := payload[key].(string); ok && s != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(s), &m); err == nil {
				call.Arguments = m
				break
			}
		}
	}
	return call
}

// balancedObject returns the substring covering the JSON object starting at
// s[0] (which must be '{'), honoring strings and escapes, plus the index
// just past the closing brace. Returns "" if the object never closes.
func balancedObject(s string) (string, int) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], i + 1
			}
		}
	}
	return "", 0
}

// looksLikeToolAttempt reports whether text resembles a tool invocation
// that failed to parse, so the caller can apologize instead of reading raw
// JSON fragments aloud.
func looksLikeToolAttempt(text string) bool {
	if !strings.Contains(text, "{") {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range []string{`"tool"`, `"name"`, `"arguments"`, `"function"`} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
