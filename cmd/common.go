package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"labscan/internal/config"
	"labscan/internal/llm"
	"labscan/internal/ocr"
	"labscan/internal/pipeline"
)

const defaultTimeoutSecs = 300

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// loadConfig reads the environment and applies the command's engine flags, if it has them.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if f := cmd.Flags().Lookup("engine"); f != nil && f.Changed {
		cfg.OCREngine = strings.ToLower(f.Value.String())
	}
	if f := cmd.Flags().Lookup("level"); f != nil && f.Changed {
		if cfg.OCRLevel, err = ocr.ParseLevel(f.Value.String()); err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("language"); f != nil && f.Changed {
		if cfg.TargetLanguage, err = pipeline.ParseLanguage(f.Value.String()); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "", "OCR engine: vision, documentai or tesseract (default from OCR_ENGINE)")
	cmd.Flags().String("level", "", "Recognition level: accurate or fast (default from OCR_LEVEL)")
}

// createRecognizer builds the configured OCR engine. The caller closes the engine.
func createRecognizer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ocr.Recognizer, ocr.Engine, error) {
	if cfg.OCREngine == ocr.EngineDocumentAI {
		if err := cfg.RequireDocumentAI(); err != nil {
			return nil, nil, err
		}
	}

	engine, err := ocr.NewEngine(ctx, cfg.GetEngineConfig())
	if err != nil {
		log.Error().
			Err(err).
			Str("engine", cfg.OCREngine).
			Msg("Failed to create OCR engine")
		if errors.Is(err, ocr.ErrMissingCredentials) {
			return nil, nil, fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS "+
				"to a service account JSON file or GOOGLE_CREDENTIALS to inline JSON: %w", err)
		}
		return nil, nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	log.Debug().Str("engine", engine.Name()).Msg("OCR engine created successfully")
	return ocr.NewRecognizer(engine, ocr.WithLevel(cfg.OCRLevel)), engine, nil
}

// createCompleter builds the chat completion client, de-duplicated when configured.
func createCompleter(cfg *config.Config) (llm.Completer, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.GetLLMConfig())
	if err != nil {
		return nil, err
	}
	if cfg.LLMDeduplicate {
		return llm.NewDeduplicator(client), nil
	}
	return client, nil
}

// startSession runs a pipeline session until ctx is done.
func startSession(ctx context.Context, recognizer pipeline.TextRecognizer, completer llm.Completer, lang pipeline.Language) *pipeline.Session {
	session := pipeline.NewSession(recognizer, completer, pipeline.WithLanguage(lang))
	go func() { _ = session.Run(ctx) }()
	return session
}

// readInput returns the contents of args[0], or stdin when it is missing or "-".
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

// writeOutput writes data to outputPath, or to stdout with a trailing newline.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout or using --level fast")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller or compressed photo")
	case errors.Is(err, ocr.ErrUnsupportedImage):
		return fmt.Errorf("unsupported or corrupted image. Use JPEG, PNG, HEIC, GIF, BMP, TIFF, WebP or PDF: %w", err)
	case errors.Is(err, ocr.ErrEngineNotEnabled):
		return fmt.Errorf("the tesseract engine is not part of this build. Rebuild with -tags tesseract")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account may use the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// handleLLMError provides user-friendly error messages for completion failures
func handleLLMError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Completion failed")

	var llmErr *llm.Error
	status := 0
	if errors.As(err, &llmErr) {
		status = llmErr.Status
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("the model did not answer in time. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request was canceled")
	case status == 401:
		return fmt.Errorf("the completion service rejected the credential. Check OPENAI_API_KEY")
	case status == 429:
		return fmt.Errorf("the completion service is rate limiting requests. Try again later")
	case errors.Is(err, llm.ErrTransport):
		return fmt.Errorf("could not reach the completion service at OPENAI_BASE_URL: %w", err)
	case errors.Is(err, llm.ErrNoContent):
		return fmt.Errorf("the model returned no answer")
	default:
		return fmt.Errorf("completion failed: %w", err)
	}
}
