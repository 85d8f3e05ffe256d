package openai

import (
	"strings"
	"unicode"
)

// repairJSON fixes the formatting slips small models make in JSON mode:
// trailing commas before a closing bracket and keys missing their quotes.
// String contents are never touched.
func repairJSON(s string) string {
	runes := []rune(s)
	var out strings.Builder
	out.Grow(len(s) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inString {
			out.WriteRune(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out.WriteRune(ch)
		case '{':
			out.WriteRune(ch)
			i = quoteBareKey(&out, runes, i+1) - 1
		case ',':
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
			out.WriteRune(ch)
			i = quoteBareKey(&out, runes, i+1) - 1
		default:
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// quoteBareKey copies leading whitespace and, if a key without its opening
// quote (or without any quotes) follows, writes it properly quoted.
// It returns the index of the first rune not consumed.
func quoteBareKey(out *strings.Builder, runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		out.WriteRune(runes[i])
		i++
	}
	if i >= len(runes) || !isLetter(runes[i]) {
		return i
	}

	j := i
	for j < len(runes) && (isLetter(runes[j]) || runes[j] == '_') {
		j++
	}
	switch {
	case j+1 < len(runes) && runes[j] == '"' && runes[j+1] == ':':
		writeQuoted(out, runes[i:j])
		return j + 1
	case j < len(runes) && runes[j] == ':':
		writeQuoted(out, runes[i:j])
		return j
	default:
		return i
	}
}

func writeQuoted(out *strings.Builder, key []rune) {
	out.WriteRune('"')
	out.WriteString(string(key))
	out.WriteRune('"')
}
