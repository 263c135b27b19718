// Package ocr turns a captured document photo into plain text.
//
// The package is split in two layers:
//   - An Engine wraps an external recognizer (Google Cloud Vision, Document AI or a
//     local Tesseract install) and yields one Observation per detected text line, in
//     detection order, each with the engine's ranked candidate strings.
//   - The Recognizer adapts an Engine to the pipeline: it keeps only the top-ranked
//     candidate of each observation and joins them, one line each, into a single block.
//
// Required Environment Variables (cloud engines):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: Document AI engine only
//
// The Tesseract engine needs the tesseract C library and the "tesseract" build tag:
//
//	go build -tags tesseract
package ocr

import (
	"context"
	"fmt"
	"image"
	"iter"
	"strings"
)

// Engine names accepted by NewEngine.
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineTesseract  = "tesseract"
)

// RecognitionLevel trades accuracy for speed.
type RecognitionLevel int

const (
	LevelAccurate RecognitionLevel = iota
	LevelFast
)

func (l RecognitionLevel) String() string {
	switch l {
	case LevelAccurate:
		return "accurate"
	case LevelFast:
		return "fast"
	default:
		return fmt.Sprintf("RecognitionLevel(%d)", int(l))
	}
}

// ParseLevel parses "accurate" or "fast".
func ParseLevel(s string) (RecognitionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accurate":
		return LevelAccurate, nil
	case "fast":
		return LevelFast, nil
	default:
		return LevelAccurate, fmt.Errorf("unknown recognition level %q", s)
	}
}

// Candidate is one reading of a detected text line.
type Candidate struct {
	Text string `json:"text"`

	// Confidence is the engine's score in the range 0.0 to 1.0.
	Confidence float32 `json:"confidence"`
}

// Observation is a single detected text region.
type Observation struct {
	// Candidates are ordered best first, as ranked by the engine.
	Candidates []Candidate

	// Bounds is the region in image pixels, when the engine reports one.
	Bounds image.Rectangle
}

// TopCandidates returns at most n candidates in engine order.
func (o Observation) TopCandidates(n int) []Candidate {
	if n <= 0 {
		return nil
	}
	if n > len(o.Candidates) {
		n = len(o.Candidates)
	}
	return o.Candidates[:n]
}

// Engine is an external optical character recognizer.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Recognize runs recognition over img. The returned sequence is lazy and yields
	// observations in detection order.
	Recognize(ctx context.Context, img *CapturedImage, level RecognitionLevel) (iter.Seq[Observation], error)

	// Close releases the engine's resources.
	Close() error
}

// EngineConfig selects and configures an Engine.
type EngineConfig struct {
	Engine string

	// Document AI
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// Tesseract
	TesseractLanguages []string
}

// NewEngine constructs the engine named in cfg.
func NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error) {
	const op = "NewEngine"

	switch cfg.Engine {
	case "", EngineVision:
		engine, err := NewVisionEngine(ctx)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineDocumentAI:
		engine, err := NewDocumentAIEngine(ctx, DocumentAIConfig{
			ProjectID:        cfg.ProjectID,
			Location:         cfg.Location,
			ProcessorID:      cfg.ProcessorID,
			ProcessorVersion: cfg.ProcessorVersion,
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineTesseract:
		engine, err := NewTesseractEngine(cfg.TesseractLanguages...)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, NewRecognitionError(op, ErrUnknownEngine, cfg.Engine)
	}
}
