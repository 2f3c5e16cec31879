// internal/prompts/prompts.go
// Package prompts turns a capability request into the chat messages and sampling
// parameters sent to an LLM host, and parses structured answers coming back.
package prompts

import (
	"fmt"
	"strings"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
)

var summaryTypes = map[string]string{
	"key-points": "a list of the key points as bullet items",
	"tldr":       "a short TL;DR overview",
	"teaser":     "an engaging teaser that makes the reader want more",
	"headline":   "a single headline",
}

var summaryLengths = map[string]string{
	"short":  "Keep it very brief (about 3 bullet points or one sentence).",
	"medium": "Keep it moderate (about 5 bullet points or a short paragraph).",
	"long":   "Be thorough (about 7 bullet points or a full paragraph).",
}

var writerLengths = map[string]string{
	"short":  "Keep it short, one paragraph at most.",
	"medium": "Aim for a few paragraphs.",
	"long":   "Write a long, detailed piece.",
}

var rewriterTones = map[string]string{
	"more-formal": "Make the tone more formal.",
	"more-casual": "Make the tone more casual.",
}

var rewriterLengths = map[string]string{
	"shorter": "Make it shorter.",
	"longer":  "Make it longer.",
}

// Messages builds the chat messages for one invocation of a text capability.
// The system message carries the session options; the user message carries the input
// and the per-call context.
func Messages(name capability.Name, cfg capability.Config, input string, opts capability.InvokeOptions) []providers.ChatMessage {
	system := SystemPrompt(name, cfg)
	user := strings.TrimSpace(input)
	if ctx := strings.TrimSpace(opts.Context); ctx != "" {
		user = fmt.Sprintf("Context: %s\n\n%s", ctx, user)
	}

	var msgs []providers.ChatMessage
	if system != "" {
		msgs = append(msgs, providers.ChatMessage{Role: "system", Content: system})
	}
	return append(msgs, providers.ChatMessage{Role: "user", Content: user})
}

// SystemPrompt returns the instructions that configure a session of the capability.
func SystemPrompt(name capability.Name, cfg capability.Config) string {
	var b strings.Builder
	switch name {
	case capability.Translator:
		fmt.Fprintf(&b, "You are a translation engine. Translate the user's text from %s to %s. ",
			capability.LanguageName(cfg.SourceLanguage), capability.LanguageName(cfg.TargetLanguage))
		b.WriteString("Reply with the translation only, without notes, quotes or explanations.")
	case capability.Summarizer:
		kind := summaryTypes[cfg.Type]
		if kind == "" {
			kind = summaryTypes["key-points"]
		}
		fmt.Fprintf(&b, "Summarize the user's text as %s. ", kind)
		if l := summaryLengths[cfg.Length]; l != "" {
			b.WriteString(l + " ")
		}
		writeFormat(&b, cfg.Format)
	case capability.Writer:
		b.WriteString("You are a writing assistant. Write new content for the task the user describes. ")
		if cfg.Tone != "" {
			fmt.Fprintf(&b, "Use a %s tone. ", cfg.Tone)
		}
		if l := writerLengths[cfg.Length]; l != "" {
			b.WriteString(l + " ")
		}
		writeFormat(&b, cfg.Format)
	case capability.Rewriter:
		b.WriteString("You are an editor. Rewrite the user's text while keeping its meaning. ")
		if t := rewriterTones[cfg.Tone]; t != "" {
			b.WriteString(t + " ")
		}
		if l := rewriterLengths[cfg.Length]; l != "" {
			b.WriteString(l + " ")
		}
		writeFormat(&b, cfg.Format)
		b.WriteString("Reply with the rewritten text only.")
	case capability.LanguageModel:
		b.WriteString(strings.TrimSpace(cfg.SystemPrompt))
	}
	if shared := strings.TrimSpace(cfg.SharedContext); shared != "" && name != capability.LanguageModel {
		fmt.Fprintf(&b, "\nBackground for every request: %s", shared)
	}
	return strings.TrimSpace(b.String())
}

func writeFormat(b *strings.Builder, format string) {
	switch format {
	case "markdown":
		b.WriteString("Format the answer as Markdown. ")
	case "plain-text":
		b.WriteString("Answer in plain text without Markdown. ")
	}
}

// Sampling merges the host parameters with the session and per-call overrides.
// Per-call values win over the session config, which wins over the host defaults.
func Sampling(base appconfig.Parameters, cfg capability.Config, opts capability.InvokeOptions) appconfig.Parameters {
	out := base
	if cfg.Temperature != nil {
		v := *cfg.Temperature
		out.Temperature = &v
	}
	if cfg.TopK != nil {
		v := *cfg.TopK
		out.TopK = &v
	}
	if opts.Temperature != nil {
		v := *opts.Temperature
		out.Temperature = &v
	}
	if opts.TopK != nil {
		v := *opts.TopK
		out.TopK = &v
	}
	return out
}
