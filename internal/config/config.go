package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"labscan/internal/llm"
	"labscan/internal/logger"
	"labscan/internal/ocr"
	"labscan/internal/pipeline"
)

var (
	// ErrMissingSetting is wrapped by the Require* checks.
	ErrMissingSetting = errors.New("missing required setting")

	// ErrInvalidSetting is wrapped by Load when a value cannot be parsed.
	ErrInvalidSetting = errors.New("invalid setting")
)

type Config struct {
	// OpenAI Configuration
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float32
	LLMDeduplicate    bool

	// OCR Configuration
	OCREngine          string
	OCRLevel           ocr.RecognitionLevel
	TesseractLanguages []string

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Pipeline Configuration
	TargetLanguage pipeline.Language

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:              getEnv("OPENAI_BASE_URL", llm.DefaultBaseURL),
		OpenAIModel:                getEnv("OPENAI_MODEL", llm.DefaultModel),
		OCREngine:                  strings.ToLower(getEnv("OCR_ENGINE", ocr.EngineVision)),
		TesseractLanguages:         strings.Split(getEnv("TESSERACT_LANGUAGES", "eng"), "+"),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "LabResults"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.OpenAITemperature, err = parseFloatEnv("OPENAI_TEMPERATURE", llm.DefaultTemperature); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.LLMDeduplicate, err = parseBoolEnv("LLM_DEDUPLICATE", false); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.OCRLevel, err = ocr.ParseLevel(getEnv("OCR_LEVEL", "accurate")); err != nil {
		return nil, fmt.Errorf("config validation failed: %w: OCR_LEVEL: %v", ErrInvalidSetting, err)
	}
	if config.TargetLanguage, err = pipeline.ParseLanguage(getEnv("TARGET_LANGUAGE", string(pipeline.English))); err != nil {
		return nil, fmt.Errorf("config validation failed: %w: TARGET_LANGUAGE: %v", ErrInvalidSetting, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case ocr.EngineVision, ocr.EngineDocumentAI, ocr.EngineTesseract:
	default:
		return fmt.Errorf("%w: OCR_ENGINE must be one of %s, %s, %s (got %q)",
			ErrInvalidSetting, ocr.EngineVision, ocr.EngineDocumentAI, ocr.EngineTesseract, c.OCREngine)
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		return fmt.Errorf("%w: OPENAI_TEMPERATURE must be between 0 and 2", ErrInvalidSetting)
	}
	return nil
}

// RequireOpenAI reports whether the chat-completion settings are usable
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrMissingSetting)
	}
	return nil
}

// RequireDocumentAI reports whether the Document AI engine can be constructed
func (c *Config) RequireDocumentAI() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("%w: GOOGLE_CLOUD_PROJECT is required", ErrMissingSetting)
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("%w: DOCUMENT_AI_PROCESSOR_ID is required", ErrMissingSetting)
	}
	return nil
}

// RequireSheets reports whether the Google Sheets export is configured
func (c *Config) RequireSheets() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("%w: GOOGLE_SHEET_URL is required", ErrMissingSetting)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetLLMConfig returns the chat-completion client configuration
func (c *Config) GetLLMConfig() llm.Config {
	return llm.Config{
		APIKey:      c.OpenAIAPIKey,
		BaseURL:     c.OpenAIBaseURL,
		Model:       c.OpenAIModel,
		Temperature: c.OpenAITemperature,
	}
}

// GetEngineConfig returns the OCR engine configuration
func (c *Config) GetEngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{
		Engine:             c.OCREngine,
		ProjectID:          c.GoogleCloudProject,
		Location:           c.GoogleCloudLocation,
		ProcessorID:        c.DocumentAIProcessorID,
		ProcessorVersion:   c.DocumentAIProcessorVersion,
		TesseractLanguages: c.TesseractLanguages,
	}
}

// MarshalZerologObject logs the configuration without the credential itself.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("openai_key_set", c.OpenAIAPIKey != "").
		Str("openai_base_url", c.OpenAIBaseURL).
		Str("openai_model", c.OpenAIModel).
		Float32("openai_temperature", c.OpenAITemperature).
		Bool("llm_deduplicate", c.LLMDeduplicate).
		Str("ocr_engine", c.OCREngine).
		Str("ocr_level", c.OCRLevel.String()).
		Str("target_language", string(c.TargetLanguage)).
		Bool("sheet_configured", c.GoogleSheetURL != "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float32) (float32, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
	}
	return float32(parsed), nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
	}
	return parsed, nil
}
