package openai

import "strings"

// maxInputRunes bounds what is sent to the extractor model.
const maxInputRunes = 12000

// cleanText collapses whitespace and truncates very long inputs.
func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxInputRunes {
		return string(runes[:maxInputRunes])
	}
	return s
}

// stripCodeFence removes a markdown code fence around a model response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
