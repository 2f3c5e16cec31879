// internal/providers/mock/respond.go
package mock

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/mwiater/aiplay/internal/capability"
)

// Respond produces the deterministic answer for a capability.
func Respond(name capability.Name, cfg capability.Config, input string, opts capability.InvokeOptions) string {
	text := strings.TrimSpace(input)
	switch name {
	case capability.Translator:
		return fmt.Sprintf("[%s] %s", cfg.TargetLanguage, text)
	case capability.Summarizer:
		return summarize(text, cfg)
	case capability.Writer:
		out := fmt.Sprintf("A %s %s piece about: %s", cfg.Tone, cfg.Length, text)
		if opts.Context != "" {
			out += "\n\n(" + opts.Context + ")"
		}
		return out
	case capability.Rewriter:
		return rewrite(text, cfg.Tone)
	case capability.LanguageModel:
		return "You said: " + text
	case capability.LanguageDetector:
		d := Detect(text)
		if len(d) == 0 {
			return ""
		}
		return d[0].Language
	}
	return text
}

func summarize(text string, cfg capability.Config) string {
	sentences := splitSentences(text)
	n := 2
	switch cfg.Length {
	case "short":
		n = 1
	case "long":
		n = 4
	}
	if cfg.Type == "headline" || cfg.Type == "tldr" {
		n = 1
	}
	if len(sentences) < n {
		n = len(sentences)
	}
	picked := sentences[:n]
	if cfg.Type == "key-points" {
		lines := make([]string, len(picked))
		for i, s := range picked {
			lines[i] = "- " + s
		}
		return strings.Join(lines, "\n")
	}
	return strings.Join(picked, " ")
}

func rewrite(text, tone string) string {
	switch tone {
	case "more-formal":
		return "Kindly note: " + text
	case "more-casual":
		return strings.ToLower(text)
	}
	return text
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// CountTokens approximates the token count as one token per word plus one per
// four characters of longer words.
func CountTokens(input string) int {
	total := 0
	for _, w := range strings.Fields(input) {
		total += 1 + len([]rune(w))/4
	}
	return total
}

var scripts = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Han, "zh"},
	{unicode.Cyrillic, "ru"},
	{unicode.Arabic, "ar"},
	{unicode.Devanagari, "hi"},
	{unicode.Greek, "el"},
	{unicode.Hebrew, "he"},
	{unicode.Thai, "th"},
}

var stopwords = map[string][]string{
	"en": {"the", "and", "is", "of", "to", "you", "it", "in", "that", "hello"},
	"fr": {"le", "la", "les", "et", "est", "de", "un", "une", "bonjour", "je"},
	"es": {"el", "los", "las", "y", "es", "de", "que", "hola", "una", "por"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ich", "ein", "guten", "tag"},
	"it": {"il", "gli", "e", "che", "di", "non", "ciao", "sono", "una", "per"},
	"pt": {"o", "os", "as", "e", "de", "que", "não", "olá", "uma", "com"},
	"nl": {"de", "het", "een", "en", "is", "van", "niet", "ik", "hallo", "dat"},
}

// Detect guesses languages from scripts and stopwords. Results are sorted by
// descending confidence and confidences sum to at most one.
func Detect(input string) []capability.Detection {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	for _, r := range text {
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				return []capability.Detection{{Language: s.code, Confidence: 0.95}, {Language: "en", Confidence: 0.03}}
			}
		}
	}

	scores := map[string]int{}
	total := 0
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for code, list := range stopwords {
			for _, sw := range list {
				if sw == word {
					scores[code]++
					total++
				}
			}
		}
	}
	if total == 0 {
		return []capability.Detection{{Language: "en", Confidence: 0.3}}
	}
	out := make([]capability.Detection, 0, len(scores))
	for code, n := range scores {
		out = append(out, capability.Detection{Language: code, Confidence: math.Round(float64(n)/float64(total)*100) / 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence == out[j].Confidence {
			return out[i].Language < out[j].Language
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
