package tts

// Voices maps friendly preset names to ElevenLabs voice IDs, so config
// files can say "sarah" instead of an opaque ID.
var Voices = map[string]string{
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"aria":      "9BWtsMINqrJLrRacOk9x", // American female, expressive
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// DefaultVoice is the default voice preset.
const DefaultVoice = "sarah"

// ResolveVoice returns the voice ID for a preset name, or the input
// unchanged if it's already a voice ID.
func ResolveVoice(name string) string {
	if id, ok := Voices[name]; ok {
		return id
	}
	return name
}
