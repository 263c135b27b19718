package ocr

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"labscan/internal/logger"
)

// Recognizer converts a captured image into a single block of text.
type Recognizer struct {
	engine Engine
	level  RecognitionLevel
	log    zerolog.Logger
}

// RecognizerOption configures a Recognizer.
type RecognizerOption func(*Recognizer)

// WithLevel overrides the default LevelAccurate.
func WithLevel(level RecognitionLevel) RecognizerOption {
	return func(r *Recognizer) { r.level = level }
}

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) RecognizerOption {
	return func(r *Recognizer) { r.log = log }
}

// NewRecognizer wraps engine.
func NewRecognizer(engine Engine, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		engine: engine,
		level:  LevelAccurate,
		log:    logger.WithComponent("recognizer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize returns the top candidate of every observation, in detection order, each
// followed by a newline. A nil image yields ErrNoImage without calling the engine.
func (r *Recognizer) Recognize(ctx context.Context, img *CapturedImage) (string, error) {
	const op = "Recognize"

	if img == nil {
		return "", NewRecognitionError(op, ErrNoImage, "")
	}

	start := time.Now()
	observations, err := r.engine.Recognize(ctx, img, r.level)
	if err != nil {
		r.log.Error().
			Err(err).
			Str("engine", r.engine.Name()).
			Str("level", r.level.String()).
			Msg("Text recognition failed")
		return "", NewRecognitionError(op, fmt.Errorf("%w: %w", ErrRecognitionFailed, err), r.engine.Name())
	}

	text := JoinTopCandidates(observations)

	r.log.Debug().
		Str("engine", r.engine.Name()).
		Int("lines", strings.Count(text, "\n")).
		Dur("duration", time.Since(start)).
		Msg("Text recognition completed")

	return text, nil
}

// JoinTopCandidates concatenates the first candidate of each observation, each followed
// by a newline. Observations without candidates are skipped.
func JoinTopCandidates(observations iter.Seq[Observation]) string {
	var text strings.Builder
	for obs := range observations {
		top := obs.TopCandidates(1)
		if len(top) == 0 {
			continue
		}
		text.WriteString(top[0].Text)
		text.WriteByte('\n')
	}
	return text.String()
}
