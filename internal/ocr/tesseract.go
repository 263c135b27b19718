//go:build tesseract

package ocr

import (
	"context"
	"iter"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine with a local Tesseract install.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine creates an engine for the given traineddata languages (default "eng").
func NewTesseractEngine(languages ...string) (*TesseractEngine, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{languages: languages, clientFactory: gosseract.NewClient}, nil
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// Recognize runs Tesseract with automatic page segmentation. LevelAccurate also enables
// orientation and script detection.
func (e *TesseractEngine) Recognize(ctx context.Context, img *CapturedImage, level RecognitionLevel) (iter.Seq[Observation], error) {
	const op = "TesseractEngine.Recognize"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A gosseract client is not safe for concurrent use
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return nil, WrapRecognitionError(op, err, "set languages")
	}
	mode := gosseract.PSM_AUTO_OSD
	if level == LevelFast {
		mode = gosseract.PSM_AUTO
	}
	if err := c.SetPageSegMode(mode); err != nil {
		return nil, WrapRecognitionError(op, err, "set page segmentation mode")
	}
	if err := c.SetImageFromBytes(img.Data); err != nil {
		return nil, WrapRecognitionError(op, err, "set image")
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, WrapRecognitionError(op, err, "recognize text")
	}

	observations := make([]Observation, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		observations = append(observations, Observation{
			Candidates: []Candidate{{Text: text, Confidence: float32(b.Confidence / 100.0)}},
			Bounds:     b.Box,
		})
	}

	return func(yield func(Observation) bool) {
		for _, obs := range observations {
			if !yield(obs) {
				return
			}
		}
	}, nil
}

func (e *TesseractEngine) Close() error { return nil }
