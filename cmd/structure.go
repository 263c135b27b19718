package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"labscan/internal/logger"
	"labscan/internal/report"
)

var structureCmd = &cobra.Command{
	Use:   "structure [text-file|-]",
	Short: "Arrange recognized lab report text into a table",
	Long: `Ask the chat completion model to convert lab report text into a markdown
table with the columns measurement, measured value, low and high.

Text is read from the given file, or from stdin when the file is omitted or "-".

Required environment variables:
  OPENAI_API_KEY - bearer credential for the completion service`,
	Example: `  # Tabulate a report photo in one go
  labscan recognize report.jpg | labscan structure

  # Print the parsed rows as JSON
  labscan structure text.txt --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStructure,
}

func init() {
	rootCmd.AddCommand(structureCmd)

	structureCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	structureCmd.Flags().Bool("json", false, "Output the parsed table rows as JSON")
	structureCmd.Flags().Int("timeout", defaultTimeoutSecs, "Processing timeout in seconds")
}

func runStructure(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("structure")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
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

	log.Info().Int("input_chars", len(text)).Msg("Requesting structured table")
	table, err := session.ExtractStructuredData(text).Wait(ctx)
	if err != nil {
		return handleLLMError(err, log)
	}

	if !jsonOutput {
		return writeOutput([]byte(table), outputPath, log)
	}

	rows, err := report.ParseTable(table)
	if err != nil && !errors.Is(err, report.ErrNoTable) {
		return err
	}
	if errors.Is(err, report.ErrNoTable) {
		log.Warn().Msg("Model answer contains no table")
	}
	if rows == nil {
		rows = []report.Row{}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(data, outputPath, log)
}
