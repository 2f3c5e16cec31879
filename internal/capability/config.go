// internal/capability/config.go
package capability

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// DefaultTemperature is the sampling temperature the prompt page starts with.
	DefaultTemperature = 0.7
	// DefaultTopK is the top-k value the prompt page starts with.
	DefaultTopK = 40
	// MaxTopK is the largest top-k the prompt page offers.
	MaxTopK = 100
)

// Option vocabularies accepted by the writing capabilities.
var (
	WriterTones       = []string{"formal", "neutral", "casual"}
	WriterFormats     = []string{"plain-text", "markdown"}
	WriterLengths     = []string{"short", "medium", "long"}
	RewriterTones     = []string{"as-is", "more-formal", "more-casual"}
	RewriterFormats   = []string{"as-is", "plain-text", "markdown"}
	RewriterLengths   = []string{"as-is", "shorter", "longer"}
	SummarizerTypes   = []string{"key-points", "tldr", "teaser", "headline"}
	SummarizerFormats = []string{"markdown", "plain-text"}
	SummarizerLengths = []string{"short", "medium", "long"}
)

// Config is the immutable set of options a session is created with.
// A session must be recreated whenever its Config changes.
type Config struct {
	Type                   string   `json:"type,omitempty"`
	Tone                   string   `json:"tone,omitempty"`
	Format                 string   `json:"format,omitempty"`
	Length                 string   `json:"length,omitempty"`
	SharedContext          string   `json:"sharedContext,omitempty"`
	SourceLanguage         string   `json:"sourceLanguage,omitempty"`
	TargetLanguage         string   `json:"targetLanguage,omitempty"`
	ExpectedInputLanguages []string `json:"expectedInputLanguages,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	TopK                   *int     `json:"topK,omitempty"`
	SystemPrompt           string   `json:"systemPrompt,omitempty"`
}

// Equal reports whether two configs would produce identical sessions.
func (c Config) Equal(o Config) bool {
	return c.Type == o.Type &&
		c.Tone == o.Tone &&
		c.Format == o.Format &&
		c.Length == o.Length &&
		c.SharedContext == o.SharedContext &&
		c.SourceLanguage == o.SourceLanguage &&
		c.TargetLanguage == o.TargetLanguage &&
		slices.Equal(c.ExpectedInputLanguages, o.ExpectedInputLanguages) &&
		floatPtrEqual(c.Temperature, o.Temperature) &&
		intPtrEqual(c.TopK, o.TopK) &&
		c.SystemPrompt == o.SystemPrompt
}

// AvailabilityKey returns the part of the config that availability depends on.
// Two configs with the same key never need a re-probe.
func (c Config) AvailabilityKey() string {
	return c.SourceLanguage + "->" + c.TargetLanguage
}

// Defaults returns the config a page starts with for the given capability.
func Defaults(name Name) Config {
	switch name {
	case Translator:
		return Config{SourceLanguage: "en", TargetLanguage: "zh"}
	case Summarizer:
		return Config{Type: "key-points", Format: "markdown", Length: "medium"}
	case Writer:
		return Config{Tone: "neutral", Format: "markdown", Length: "medium"}
	case Rewriter:
		return Config{Tone: "as-is", Format: "as-is", Length: "as-is"}
	case LanguageModel:
		t, k := DefaultTemperature, DefaultTopK
		return Config{Temperature: &t, TopK: &k}
	default:
		return Config{}
	}
}

// Normalize fills empty options with the capability defaults.
func Normalize(name Name, cfg Config) Config {
	def := Defaults(name)
	if cfg.Type == "" {
		cfg.Type = def.Type
	}
	if cfg.Tone == "" {
		cfg.Tone = def.Tone
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.Length == "" {
		cfg.Length = def.Length
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = def.SourceLanguage
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = def.TargetLanguage
	}
	if cfg.Temperature == nil && def.Temperature != nil {
		v := *def.Temperature
		cfg.Temperature = &v
	}
	if cfg.TopK == nil && def.TopK != nil {
		v := *def.TopK
		cfg.TopK = &v
	}
	return cfg
}

// Validate checks the options against the vocabulary of the capability.
func Validate(name Name, cfg Config) error {
	switch name {
	case Translator:
		if strings.TrimSpace(cfg.SourceLanguage) == "" || strings.TrimSpace(cfg.TargetLanguage) == "" {
			return fmt.Errorf("translator: source and target language are required")
		}
		if cfg.SourceLanguage == cfg.TargetLanguage {
			return fmt.Errorf("translator: source and target language must differ (%s)", cfg.SourceLanguage)
		}
	case Summarizer:
		if err := oneOf("type", cfg.Type, SummarizerTypes); err != nil {
			return err
		}
		if err := oneOf("format", cfg.Format, SummarizerFormats); err != nil {
			return err
		}
		return oneOf("length", cfg.Length, SummarizerLengths)
	case Writer:
		if err := oneOf("tone", cfg.Tone, WriterTones); err != nil {
			return err
		}
		if err := oneOf("format", cfg.Format, WriterFormats); err != nil {
			return err
		}
		return oneOf("length", cfg.Length, WriterLengths)
	case Rewriter:
		if err := oneOf("tone", cfg.Tone, RewriterTones); err != nil {
			return err
		}
		if err := oneOf("format", cfg.Format, RewriterFormats); err != nil {
			return err
		}
		return oneOf("length", cfg.Length, RewriterLengths)
	case LanguageModel:
		if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 1) {
			return fmt.Errorf("temperature must be within [0,1], got %v", *cfg.Temperature)
		}
		if cfg.TopK != nil && (*cfg.TopK < 1 || *cfg.TopK > MaxTopK) {
			return fmt.Errorf("topK must be within [1,%d], got %d", MaxTopK, *cfg.TopK)
		}
	case LanguageDetector:
	default:
		return fmt.Errorf("unknown capability %q", name)
	}
	return nil
}

// EmptyInputMessage is shown when an action is attempted without input.
func EmptyInputMessage(name Name) string {
	switch name {
	case Translator:
		return "Please enter some text to translate."
	case Summarizer:
		return "Please enter some text to summarize."
	case Writer, LanguageModel:
		return "Please enter a prompt."
	case Rewriter:
		return "Please enter some text to rewrite."
	case LanguageDetector:
		return "Please enter some text to detect its language."
	default:
		return "Please enter some text."
	}
}

// FailureMessage is shown when an invocation fails.
func FailureMessage(name Name) string {
	switch name {
	case Translator:
		return "Failed to translate text. Please try again."
	case LanguageDetector:
		return "Failed to detect language. Please try again."
	case Summarizer:
		return "An error occurred while summarizing the text. Please try again."
	case LanguageModel:
		return "Failed to generate response. Please try again."
	case Writer:
		return "Failed to generate text. Please try again."
	case Rewriter:
		return "Failed to rewrite text. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

func oneOf(field, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
