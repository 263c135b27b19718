package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"labscan/internal/llm"
	"labscan/internal/ocr"
	"labscan/internal/pipeline"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_TEMPERATURE", "LLM_DEDUPLICATE",
		"OCR_ENGINE", "OCR_LEVEL", "TESSERACT_LANGUAGES", "TARGET_LANGUAGE",
		"GOOGLE_CLOUD_PROJECT", "DOCUMENT_AI_PROCESSOR_ID", "GOOGLE_SHEET_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, llm.DefaultModel, cfg.OpenAIModel)
	assert.Equal(t, llm.DefaultBaseURL, cfg.OpenAIBaseURL)
	assert.InDelta(t, 0.7, cfg.OpenAITemperature, 1e-6)
	assert.Equal(t, ocr.EngineVision, cfg.OCREngine)
	assert.Equal(t, ocr.LevelAccurate, cfg.OCRLevel)
	assert.Equal(t, pipeline.English, cfg.TargetLanguage)
	assert.Equal(t, []string{"eng"}, cfg.TesseractLanguages)
	assert.False(t, cfg.LLMDeduplicate)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_ENGINE", "Tesseract")
	t.Setenv("OCR_LEVEL", "fast")
	t.Setenv("TESSERACT_LANGUAGES", "eng+deu")
	t.Setenv("TARGET_LANGUAGE", "french")
	t.Setenv("LLM_DEDUPLICATE", "true")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ocr.EngineTesseract, cfg.OCREngine)
	assert.Equal(t, ocr.LevelFast, cfg.OCRLevel)
	assert.Equal(t, []string{"eng", "deu"}, cfg.TesseractLanguages)
	assert.Equal(t, pipeline.French, cfg.TargetLanguage)
	assert.True(t, cfg.LLMDeduplicate)
	assert.InDelta(t, 0.2, cfg.OpenAITemperature, 1e-6)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"engine":      {"OCR_ENGINE", "abbyy"},
		"level":       {"OCR_LEVEL", "sloppy"},
		"language":    {"TARGET_LANGUAGE", "Klingon"},
		"temperature": {"OPENAI_TEMPERATURE", "warm"},
		"range":       {"OPENAI_TEMPERATURE", "3.5"},
		"dedupe":      {"LLM_DEDUPLICATE", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSetting), "got %v", err)
		})
	}
}

func TestRequireChecks(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireOpenAI(), ErrMissingSetting)
	assert.ErrorIs(t, cfg.RequireDocumentAI(), ErrMissingSetting)
	assert.ErrorIs(t, cfg.RequireSheets(), ErrMissingSetting)

	cfg.OpenAIAPIKey = "sk-test"
	cfg.GoogleCloudProject = "project"
	cfg.DocumentAIProcessorID = "processor"
	cfg.GoogleSheetURL = "https://docs.google.com/spreadsheets/d/abc/edit"
	assert.NoError(t, cfg.RequireOpenAI())
	assert.NoError(t, cfg.RequireDocumentAI())
	assert.NoError(t, cfg.RequireSheets())
}

func TestLoggedConfigOmitsCredential(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	cfg := &Config{OpenAIAPIKey: "sk-very-secret", OpenAIModel: "gpt-4o"}

	log.Info().Object("config", cfg).Msg("loaded")

	assert.NotContains(t, buf.String(), "sk-very-secret")
	assert.Contains(t, buf.String(), `"openai_key_set":true`)
}
