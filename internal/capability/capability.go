// internal/capability/capability.go
// Package capability describes the on-device AI capabilities a host can expose, the
// availability states they report, and the session options each one accepts.
package capability

import (
	"fmt"
	"strings"
)

// Name identifies a logical capability such as translation or summarization.
type Name string

const (
	// Translator translates text between a source and a target language.
	Translator Name = "translator"
	// LanguageDetector ranks the languages an input is likely written in.
	LanguageDetector Name = "languageDetector"
	// Summarizer condenses long input into a shorter form.
	Summarizer Name = "summarizer"
	// LanguageModel answers free-form prompts.
	LanguageModel Name = "languageModel"
	// Writer produces new content from a writing task.
	Writer Name = "writer"
	// Rewriter rephrases existing text.
	Rewriter Name = "rewriter"
)

var all = []Name{Translator, LanguageDetector, Summarizer, LanguageModel, Writer, Rewriter}

var aliases = map[string]Name{
	"translator":       Translator,
	"translate":        Translator,
	"translation":      Translator,
	"languagedetector": LanguageDetector,
	"detector":         LanguageDetector,
	"detect":           LanguageDetector,
	"detect-language":  LanguageDetector,
	"summarizer":       Summarizer,
	"summarize":        Summarizer,
	"languagemodel":    LanguageModel,
	"prompt":           LanguageModel,
	"writer":           Writer,
	"write":            Writer,
	"rewriter":         Rewriter,
	"rewrite":          Rewriter,
}

// All returns every known capability in display order.
func All() []Name {
	out := make([]Name, len(all))
	copy(out, all)
	return out
}

// Parse resolves a capability from its canonical name or a command alias.
// Matching is case-insensitive because configuration keys arrive lowercased.
func Parse(s string) (Name, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if name, ok := aliases[key]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Title returns the display title used by pages and command output.
func (n Name) Title() string {
	switch n {
	case Translator:
		return "Translation"
	case LanguageDetector:
		return "Language Detection"
	case Summarizer:
		return "Summarization"
	case LanguageModel:
		return "Prompt"
	case Writer:
		return "Writer"
	case Rewriter:
		return "Rewriter"
	default:
		return string(n)
	}
}

// SupportsStreaming reports whether the capability produces text that can be streamed.
func (n Name) SupportsStreaming() bool {
	return n != LanguageDetector && n != ""
}

// Availability is the probed state of a capability on a host.
type Availability int

const (
	// Unknown means the capability has not been probed yet.
	Unknown Availability = iota
	// Unavailable means the capability cannot be used on this host.
	Unavailable
	// Downloadable means the capability can be used once its model is fetched.
	Downloadable
	// Available means the capability is ready to use.
	Available
)

// String returns the lowercase name of the availability state.
func (a Availability) String() string {
	switch a {
	case Unavailable:
		return "unavailable"
	case Downloadable:
		return "downloadable"
	case Available:
		return "available"
	default:
		return "unknown"
	}
}

// Usable reports whether a session can be created in this state.
func (a Availability) Usable() bool {
	return a == Available || a == Downloadable
}

// ParseAvailability maps host answers, including the older readily/after-download/no
// vocabulary, onto an Availability. Anything unrecognized is Unavailable.
func ParseAvailability(s string) Availability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "readily":
		return Available
	case "downloadable", "downloading", "after-download":
		return Downloadable
	case "unknown", "":
		return Unknown
	default:
		return Unavailable
	}
}

// ChunkMode declares how the chunks of a streaming invocation relate to each other.
type ChunkMode int

const (
	// Incremental chunks are deltas appended to the text so far.
	Incremental ChunkMode = iota
	// Cumulative chunks each carry the full text so far.
	Cumulative
)

// String returns the name of the chunk mode.
func (m ChunkMode) String() string {
	if m == Cumulative {
		return "cumulative"
	}
	return "incremental"
}

// Detection is a single ranked language guess.
type Detection struct {
	Language   string  `json:"detectedLanguage"`
	Confidence float64 `json:"confidence"`
}

// InvokeOptions carries per-invocation settings that do not require a new session.
type InvokeOptions struct {
	Context     string
	Temperature *float64
	TopK        *int
}
