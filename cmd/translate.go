package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"labscan/internal/logger"
	"labscan/internal/pipeline"
)

var translateCmd = &cobra.Command{
	Use:   "translate [text-file|-]",
	Short: "Translate a lab report table",
	Long: fmt.Sprintf(`Ask the chat completion model to translate text, usually the table printed
by "labscan structure", into the target language.

Text is read from the given file, or from stdin when the file is omitted or "-".
Supported languages: %v (default from TARGET_LANGUAGE).

Required environment variables:
  OPENAI_API_KEY - bearer credential for the completion service`, pipeline.Languages()),
	Example: `  labscan recognize report.jpg | labscan structure | labscan translate --language german`,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	translateCmd.Flags().StringP("language", "l", "", "Target language")
	translateCmd.Flags().Int("timeout", defaultTimeoutSecs, "Processing timeout in seconds")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("translate")

	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	completer, err := createCompleter(cfg)
	if err != nil {
		return err
	}

	text, err := readInput(args)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	session := startSession(ctx, nil, completer, cfg.TargetLanguage)

	log.Info().
		Int("input_chars", len(text)).
		Str("language", string(cfg.TargetLanguage)).
		Msg("Requesting translation")
	translated, err := session.Translate(text, cfg.TargetLanguage).Wait(ctx)
	if err != nil {
		return handleLLMError(err, log)
	}

	return writeOutput([]byte(translated), outputPath, log)
}
