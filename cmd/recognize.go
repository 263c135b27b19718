package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"labscan/internal/logger"
	"labscan/internal/ocr"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image-file]",
	Short: "Extract text from a lab report photo",
	Long: `Run optical character recognition over a photo or scan of a lab report.

The recognized lines are printed in detection order, one per line. JPEG, PNG,
HEIC/HEIF, GIF, BMP, TIFF and WebP images are accepted, as is a PDF (first page
only), up to 20MB.

Engines:
  vision      Google Cloud Vision (default)
  documentai  Google Document AI OCR processor
  tesseract   local Tesseract (build with -tags tesseract)

Environment variables for the cloud engines:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID - Document AI only`,
	Example: `  # Print the text of a report photo
  labscan recognize report.jpg

  # Fast recognition with Document AI, saved as JSON
  labscan recognize report.heic --engine documentai --level fast --json -o text.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

// RecognizeOutput represents the JSON output structure when --json flag is used
type RecognizeOutput struct {
	Text               string `json:"text"`
	Lines              int    `json:"lines"`
	Engine             string `json:"engine"`
	Level              string `json:"level"`
	FileName           string `json:"file_name"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	ProcessingDuration string `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().Int("timeout", defaultTimeoutSecs, "Processing timeout in seconds")
	addEngineFlags(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("recognize")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	imagePath := args[0]
	log.Info().
		Str("file", imagePath).
		Str("engine", cfg.OCREngine).
		Str("level", cfg.OCRLevel.String()).
		Int("timeout", timeoutSecs).
		Msg("Starting text recognition")

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

	start := time.Now()
	text, err := recognizer.Recognize(ctx, img)
	if err != nil {
		return handleOCRError(err, log)
	}
	duration := time.Since(start)

	log.Info().
		Int("lines", strings.Count(text, "\n")).
		Dur("duration", duration).
		Msg("Text recognition completed successfully")

	if !jsonOutput {
		return writeOutput([]byte(text), outputPath, log)
	}

	data, err := json.MarshalIndent(RecognizeOutput{
		Text:               text,
		Lines:              strings.Count(text, "\n"),
		Engine:             engine.Name(),
		Level:              cfg.OCRLevel.String(),
		FileName:           filepath.Base(imagePath),
		Width:              img.Width,
		Height:             img.Height,
		ProcessingDuration: duration.String(),
	}, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(data, outputPath, log)
}

// loadImageFile checks the path and decodes the capture
func loadImageFile(imagePath string, log zerolog.Logger) (*ocr.CapturedImage, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	img, err := ocr.LoadImage(imagePath)
	if err != nil {
		return nil, handleOCRError(err, log)
	}

	log.Debug().
		Str("file", imagePath).
		Str("format", img.Format).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("Image loaded")
	return img, nil
}
