package summarization

import "strings"

// End-of-sequence markers some models leave in their output
var residualMarkers = []string{"</s>", "<|end_of_text|>", "<|eot_id|>"}

// BuildPrompt lays out instruction, the text under a "Texto:" header and the cue
// the model continues from.
func BuildPrompt(instruction, text, cue string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nTexto:\n")
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(cue)
	return b.String()
}

// CleanOutput removes residual markers and any prompt echo up to the last cue.
func CleanOutput(raw, cue string) string {
	out := raw
	for _, marker := range residualMarkers {
		out = strings.ReplaceAll(out, marker, "")
	}
	if cue != "" {
		if i := strings.LastIndex(out, cue); i >= 0 {
			out = out[i+len(cue):]
		}
	}
	return strings.TrimSpace(out)
}
