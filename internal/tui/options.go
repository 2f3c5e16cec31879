// internal/tui/options.go
package tui

import (
	"fmt"
	"math"

	"github.com/mwiater/aiplay/internal/capability"
)

// optionSlot is one page option bound to a key that cycles its value.
type optionSlot struct {
	key   string
	label string
	value func(capability.Config) string
	next  func(capability.Config) capability.Config
}

var slotKeys = []string{"ctrl+t", "ctrl+f", "ctrl+g"}

// topKPresets are the top-k stops offered by the prompt page.
var topKPresets = []int{1, 10, 20, 40, 60, 80, capability.MaxTopK}

// optionSlots returns the cycling options a capability page offers.
func optionSlots(name capability.Name) []optionSlot {
	var slots []optionSlot
	switch name {
	case capability.Translator:
		slots = []optionSlot{
			{label: "Source", value: func(c capability.Config) string { return capability.LanguageName(c.SourceLanguage) },
				next: func(c capability.Config) capability.Config {
					c.SourceLanguage = capability.NextLanguage(c.SourceLanguage, "", 1)
					return c
				}},
			{label: "Target", value: func(c capability.Config) string { return capability.LanguageName(c.TargetLanguage) },
				next: func(c capability.Config) capability.Config {
					c.TargetLanguage = capability.NextLanguage(c.TargetLanguage, c.SourceLanguage, 1)
					return c
				}},
		}
	case capability.Summarizer:
		slots = vocabularySlots("Type", capability.SummarizerTypes, capability.SummarizerFormats, capability.SummarizerLengths,
			func(c *capability.Config) *string { return &c.Type })
	case capability.Writer:
		slots = vocabularySlots("Tone", capability.WriterTones, capability.WriterFormats, capability.WriterLengths,
			func(c *capability.Config) *string { return &c.Tone })
	case capability.Rewriter:
		slots = vocabularySlots("Tone", capability.RewriterTones, capability.RewriterFormats, capability.RewriterLengths,
			func(c *capability.Config) *string { return &c.Tone })
	case capability.LanguageModel:
		slots = []optionSlot{
			{label: "Temperature", value: func(c capability.Config) string {
				if c.Temperature == nil {
					return "default"
				}
				return fmt.Sprintf("%.1f", *c.Temperature)
			}, next: func(c capability.Config) capability.Config {
				t := capability.DefaultTemperature
				if c.Temperature != nil {
					t = math.Round((*c.Temperature+0.1)*10) / 10
				}
				if t > 1 {
					t = 0
				}
				c.Temperature = &t
				return c
			}},
			{label: "Top-K", value: func(c capability.Config) string {
				if c.TopK == nil {
					return "default"
				}
				return fmt.Sprintf("%d", *c.TopK)
			}, next: func(c capability.Config) capability.Config {
				k := topKPresets[0]
				if c.TopK != nil {
					for _, p := range topKPresets {
						if p > *c.TopK {
							k = p
							break
						}
					}
				}
				c.TopK = &k
				return c
			}},
		}
	}
	for i := range slots {
		slots[i].key = slotKeys[i]
	}
	return slots
}

func vocabularySlots(first string, firsts, formats, lengths []string, field func(*capability.Config) *string) []optionSlot {
	return []optionSlot{
		{label: first, value: func(c capability.Config) string { return *field(&c) },
			next: func(c capability.Config) capability.Config {
				*field(&c) = cycle(firsts, *field(&c))
				return c
			}},
		{label: "Format", value: func(c capability.Config) string { return c.Format },
			next: func(c capability.Config) capability.Config {
				c.Format = cycle(formats, c.Format)
				return c
			}},
		{label: "Length", value: func(c capability.Config) string { return c.Length },
			next: func(c capability.Config) capability.Config {
				c.Length = cycle(lengths, c.Length)
				return c
			}},
	}
}

// cycle returns the value after current, wrapping around.
func cycle(values []string, current string) string {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}

// settingLabel names the free-text session option a page edits next to its input.
// The option applies to every request of the session, unlike the per-call context.
func settingLabel(name capability.Name) (string, bool) {
	switch name {
	case capability.Writer, capability.Rewriter:
		return "Shared context", true
	case capability.LanguageModel:
		return "System prompt", true
	}
	return "", false
}

func settingValue(name capability.Name, cfg capability.Config) string {
	if name == capability.LanguageModel {
		return cfg.SystemPrompt
	}
	return cfg.SharedContext
}

func withSetting(name capability.Name, cfg capability.Config, value string) capability.Config {
	if name == capability.LanguageModel {
		cfg.SystemPrompt = value
	} else {
		cfg.SharedContext = value
	}
	return cfg
}
