package chunker

import (
	"strings"
	"unicode/utf8"
)

// Fragments at or below this trimmed length are discarded as likely
// false splits (abbreviations, list markers).
const minSentenceChars = 10

// SplitSentences splits text into sentence-like units on terminal
// punctuation (. ! ?) followed by whitespace. Empty input yields an
// empty result, not an error.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		appendSentence(&sentences, text[start:i+1])
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		appendSentence(&sentences, text[start:])
	}
	return sentences
}

func appendSentence(sentences *[]string, s string) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > minSentenceChars {
		*sentences = append(*sentences, s)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
