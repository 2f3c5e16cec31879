// internal/capability/guide.go
package capability

import "fmt"

// GuideStep is one titled group of setup instructions.
type GuideStep struct {
	Title string
	Items []string
}

// Guide returns the setup instructions shared by every capability.
func Guide() []GuideStep {
	return []GuideStep{
		{
			Title: "Run a local host",
			Items: []string{
				"Install Ollama (https://ollama.com) or build llama.cpp with router mode enabled",
				"Start the server and confirm it answers on its URL (ollama: http://localhost:11434)",
			},
		},
		{
			Title: "Configure the host",
			Items: []string{
				"Add the host to config/config.json under \"hosts\" with its name, url, type and models",
				"Optionally bind capabilities to hosts under \"capabilities\" (e.g. \"translator\": {\"host\": \"local\"})",
				"Use a host of type \"mock\" to try every page without a model",
			},
		},
		{
			Title: "Download the models",
			Items: []string{
				"Run `aiplay pull models` to fetch every configured model ahead of time",
				"Models that are missing are otherwise downloaded the first time a page creates a session",
			},
		},
		{
			Title: "Check the result",
			Items: []string{
				"Run `aiplay status` to probe every capability",
				"If a capability still shows as unavailable, check the log file and the host binding",
			},
		},
	}
}

// Remediation returns the steps shown on a page whose capability is unavailable.
func Remediation(name Name) []string {
	steps := []string{
		fmt.Sprintf("Bind %q to a running host in config/config.json", string(name)),
		"Make sure the host is reachable (aiplay status)",
	}
	switch name {
	case Translator:
		steps = append(steps,
			"Pick a source and target language from the catalogue; identical languages are not supported",
			"Use a multilingual model for the translator binding")
	case LanguageDetector:
		steps = append(steps, "The detector needs a model that can answer in JSON mode")
	case Summarizer, Writer, Rewriter, LanguageModel:
		steps = append(steps, "Any instruction-tuned chat model can serve this page")
	}
	return append(steps, "Run `aiplay pull models` if the model has not been downloaded yet")
}
