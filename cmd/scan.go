package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"labscan/internal/logger"
	"labscan/internal/pipeline"
	"labscan/internal/report"
	"labscan/internal/sheets"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Recognize, tabulate and translate a lab report photo",
	Long: `Run the whole pipeline over a lab report photo:

  1. recognize the text of the image
  2. ask the model to arrange it into a measurement table
  3. translate the table into the target language (skip with --no-translate)

With --export-sheet the table rows are appended to the Google Sheet in
GOOGLE_SHEET_URL, worksheet GOOGLE_SHEET_WORKSHEET.

Required environment variables:
  OPENAI_API_KEY - bearer credential for the completion service
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - cloud OCR engines and Sheets`,
	Example: `  labscan scan report.jpg --language spanish
  labscan scan report.png --no-translate --export-sheet --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput represents the JSON output structure when --json flag is used
type ScanOutput struct {
	FileName       string       `json:"file_name"`
	RecognizedText string       `json:"recognized_text"`
	StructuredText string       `json:"structured_text"`
	TranslatedText string       `json:"translated_text,omitempty"`
	Language       string       `json:"language,omitempty"`
	Rows           []report.Row `json:"rows"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().StringP("language", "l", "", "Target language")
	scanCmd.Flags().Bool("no-translate", false, "Stop after the table")
	scanCmd.Flags().Bool("export-sheet", false, "Append the table rows to Google Sheets")
	scanCmd.Flags().Int("timeout", defaultTimeoutSecs, "Processing timeout in seconds")
	addEngineFlags(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	noTranslate, _ := cmd.Flags().GetBool("no-translate")
	exportSheet, _ := cmd.Flags().GetBool("export-sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if exportSheet {
		if err := cfg.RequireSheets(); err != nil {
			return err
		}
	}
	completer, err := createCompleter(cfg)
	if err != nil {
		return err
	}

	imagePath := args[0]
	img, err := loadImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	recognizer, engine, err := createRecognizer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	session := startSession(ctx, recognizer, completer, cfg.TargetLanguage)
	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()
	go logProgress(updates, log)

	log.Info().
		Str("file", imagePath).
		Str("engine", cfg.OCREngine).
		Str("language", string(cfg.TargetLanguage)).
		Bool("translate", !noTranslate).
		Msg("Starting scan")

	recognized, err := session.Recognize(img).Wait(ctx)
	if err != nil {
		return handleOCRError(err, log)
	}
	if strings.TrimSpace(recognized) == "" {
		log.Warn().Msg("No text recognized in the image")
	}

	if _, err := session.ExtractStructuredData(recognized).Wait(ctx); err != nil {
		return handleLLMError(err, log)
	}

	if !noTranslate {
		if _, err := session.TranslateCurrent().Wait(ctx); err != nil {
			return handleLLMError(err, log)
		}
	}

	state := session.Snapshot()
	rows, err := report.ParseTable(state.StructuredText)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read a table from the model answer")
	}

	if exportSheet {
		if err := exportRows(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet, filepath.Base(imagePath), rows, log); err != nil {
			return err
		}
	}

	if jsonOutput {
		out := ScanOutput{
			FileName:       filepath.Base(imagePath),
			RecognizedText: state.RecognizedText,
			StructuredText: state.StructuredText,
			Rows:           rows,
		}
		if out.Rows == nil {
			out.Rows = []report.Row{}
		}
		if !noTranslate {
			out.TranslatedText = state.TranslatedText
			out.Language = string(state.Language)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		return writeOutput(data, outputPath, log)
	}

	var output strings.Builder
	output.WriteString("=== Recognized Text ===\n\n")
	output.WriteString(state.RecognizedText)
	output.WriteString("\n=== Lab Results ===\n\n")
	output.WriteString(state.StructuredText)
	output.WriteString("\n")
	if !noTranslate {
		fmt.Fprintf(&output, "\n=== Translation (%s) ===\n\n", state.Language)
		output.WriteString(state.TranslatedText)
		output.WriteString("\n")
	}
	return writeOutput([]byte(output.String()), outputPath, log)
}

// logProgress reports stage transitions until the subscription ends.
func logProgress(updates <-chan pipeline.State, log zerolog.Logger) {
	var previous pipeline.State
	for state := range updates {
		for _, stage := range []pipeline.Stage{pipeline.StageRecognize, pipeline.StageStructure, pipeline.StageTranslate} {
			was, is := previous.InFlight(stage), state.InFlight(stage)
			switch {
			case !was && is:
				log.Info().Str("stage", string(stage)).Msg("Stage started")
			case was && !is:
				if msg, failed := state.Errors[stage]; failed {
					log.Warn().Str("stage", string(stage)).Str("error", msg).Msg("Stage failed")
					continue
				}
				log.Info().Str("stage", string(stage)).Object("state", state).Msg("Stage finished")
			}
		}
		previous = state
	}
}

func exportRows(ctx context.Context, sheetURL, worksheet, source string, rows []report.Row, log zerolog.Logger) error {
	if len(rows) == 0 {
		log.Warn().Msg("No table rows to export")
		return nil
	}

	service, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create sheets service: %w", err)
	}
	if err := service.AppendReport(ctx, worksheet, source, rows); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("export to Google Sheets timed out: %w", err)
		}
		return fmt.Errorf("failed to export to Google Sheets: %w", err)
	}
	return nil
}
