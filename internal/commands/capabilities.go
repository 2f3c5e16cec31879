// internal/commands/capabilities.go
package aiplay

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/aiplay/internal/capability"
)

// autoLanguage asks translate to detect the source language.
const autoLanguage = "auto"

var (
	translateFrom string
	translateTo   string

	summarizeType   string
	summarizeFormat string
	summarizeLength string

	writeTone    string
	writeFormat  string
	writeLength  string
	writeContext string
	writeShared  string

	rewriteTone    string
	rewriteFormat  string
	rewriteLength  string
	rewriteContext string
	rewriteShared  string

	promptSystem      string
	promptTemperature float64
	promptTopK        int
)

// translateCmd implements 'translate', which translates text between two catalogue languages.
var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Translate text",
	Long:  `The 'translate' command translates the text given as arguments (or on stdin). With --from auto the source language is detected first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		run := capabilityRun{
			name:  capability.Translator,
			cfg:   capability.Config{SourceLanguage: translateFrom, TargetLanguage: translateTo},
			input: input,
		}
		if strings.EqualFold(translateFrom, autoLanguage) {
			run.autoSource = true
		}
		return runCapability(cmd, run)
	},
}

// detectCmd implements 'detect', which lists the likely languages of a text.
var detectCmd = &cobra.Command{
	Use:   "detect [text]",
	Short: "Detect the language of text",
	Long:  `The 'detect' command prints every language guess above the display threshold with its confidence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runCapability(cmd, capabilityRun{name: capability.LanguageDetector, input: input, detect: true})
	},
}

// summarizeCmd implements 'summarize'.
var summarizeCmd = &cobra.Command{
	Use:   "summarize [text]",
	Short: "Summarize text",
	Long:  `The 'summarize' command condenses the text given as arguments (or on stdin).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runCapability(cmd, capabilityRun{
			name:  capability.Summarizer,
			cfg:   capability.Config{Type: summarizeType, Format: summarizeFormat, Length: summarizeLength},
			input: input,
		})
	},
}

// promptCmd implements 'prompt', a single exchange with the general language model.
var promptCmd = &cobra.Command{
	Use:   "prompt [text]",
	Short: "Send a prompt to the language model",
	Long:  `The 'prompt' command sends one prompt to the language model with optional system prompt and sampling settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		cfg := capability.Config{SystemPrompt: promptSystem}
		if cfg.SystemPrompt == "" && GetConfig() != nil {
			if host, _, ok := GetConfig().BindingFor(string(capability.LanguageModel)); ok {
				cfg.SystemPrompt = host.SystemPrompt
			}
		}
		if cmd.Flags().Changed("temperature") {
			t := promptTemperature
			cfg.Temperature = &t
		}
		if cmd.Flags().Changed("top-k") {
			k := promptTopK
			cfg.TopK = &k
		}
		return runCapability(cmd, capabilityRun{name: capability.LanguageModel, cfg: cfg, input: input})
	},
}

// writeCmd implements 'write', which drafts new text from a task description.
var writeCmd = &cobra.Command{
	Use:   "write [task]",
	Short: "Write new text",
	Long:  `The 'write' command drafts text for the task given as arguments (or on stdin).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runCapability(cmd, capabilityRun{
			name:  capability.Writer,
			cfg:   capability.Config{Tone: writeTone, Format: writeFormat, Length: writeLength, SharedContext: writeShared},
			input: input,
			opts:  capability.InvokeOptions{Context: writeContext},
		})
	},
}

// rewriteCmd implements 'rewrite', which reworks existing text.
var rewriteCmd = &cobra.Command{
	Use:   "rewrite [text]",
	Short: "Rewrite text",
	Long:  `The 'rewrite' command rewrites the text given as arguments (or on stdin) with a new tone, format or length.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runCapability(cmd, capabilityRun{
			name:  capability.Rewriter,
			cfg:   capability.Config{Tone: rewriteTone, Format: rewriteFormat, Length: rewriteLength, SharedContext: rewriteShared},
			input: input,
			opts:  capability.InvokeOptions{Context: rewriteContext},
		})
	},
}

func init() {
	def := capability.Defaults(capability.Translator)
	translateCmd.Flags().StringVar(&translateFrom, "from", def.SourceLanguage, "source language code, or \"auto\" to detect it")
	translateCmd.Flags().StringVar(&translateTo, "to", def.TargetLanguage, "target language code")

	def = capability.Defaults(capability.Summarizer)
	summarizeCmd.Flags().StringVar(&summarizeType, "type", def.Type, "summary type: "+strings.Join(capability.SummarizerTypes, ", "))
	summarizeCmd.Flags().StringVar(&summarizeFormat, "format", def.Format, "output format: "+strings.Join(capability.SummarizerFormats, ", "))
	summarizeCmd.Flags().StringVar(&summarizeLength, "length", def.Length, "summary length: "+strings.Join(capability.SummarizerLengths, ", "))

	def = capability.Defaults(capability.Writer)
	writeCmd.Flags().StringVar(&writeTone, "tone", def.Tone, "tone: "+strings.Join(capability.WriterTones, ", "))
	writeCmd.Flags().StringVar(&writeFormat, "format", def.Format, "output format: "+strings.Join(capability.WriterFormats, ", "))
	writeCmd.Flags().StringVar(&writeLength, "length", def.Length, "length: "+strings.Join(capability.WriterLengths, ", "))
	writeCmd.Flags().StringVar(&writeContext, "context", "", "context for this request")
	writeCmd.Flags().StringVar(&writeShared, "shared-context", "", "context shared by every request of the session")

	def = capability.Defaults(capability.Rewriter)
	rewriteCmd.Flags().StringVar(&rewriteTone, "tone", def.Tone, "tone: "+strings.Join(capability.RewriterTones, ", "))
	rewriteCmd.Flags().StringVar(&rewriteFormat, "format", def.Format, "output format: "+strings.Join(capability.RewriterFormats, ", "))
	rewriteCmd.Flags().StringVar(&rewriteLength, "length", def.Length, "length: "+strings.Join(capability.RewriterLengths, ", "))
	rewriteCmd.Flags().StringVar(&rewriteContext, "context", "", "context for this request")
	rewriteCmd.Flags().StringVar(&rewriteShared, "shared-context", "", "context shared by every request of the session")

	promptCmd.Flags().StringVar(&promptSystem, "system", "", "system prompt")
	promptCmd.Flags().Float64Var(&promptTemperature, "temperature", capability.DefaultTemperature, "sampling temperature (0-1)")
	promptCmd.Flags().IntVar(&promptTopK, "top-k", capability.DefaultTopK, "top-k sampling")

	rootCmd.AddCommand(translateCmd, detectCmd, summarizeCmd, promptCmd, writeCmd, rewriteCmd)
}
