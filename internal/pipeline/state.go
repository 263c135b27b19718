package pipeline

import (
	"maps"

	"github.com/rs/zerolog"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageRecognize Stage = "recognize"
	StageStructure Stage = "structure"
	StageTranslate Stage = "translate"
)

// State is a snapshot of everything the user sees.
type State struct {
	RecognizedText string   `json:"recognized_text"`
	StructuredText string   `json:"structured_text"`
	TranslatedText string   `json:"translated_text"`
	Language       Language `json:"language"`

	Recognizing bool `json:"recognizing"`
	Structuring bool `json:"structuring"`
	Translating bool `json:"translating"`

	// Errors holds the most recent failure of each stage. A later success clears it.
	Errors map[Stage]string `json:"errors,omitempty"`
}

// Busy reports whether any stage is in flight.
func (s State) Busy() bool {
	return s.Recognizing || s.Structuring || s.Translating
}

// InFlight reports whether stage has a call outstanding.
func (s State) InFlight(stage Stage) bool {
	switch stage {
	case StageRecognize:
		return s.Recognizing
	case StageStructure:
		return s.Structuring
	case StageTranslate:
		return s.Translating
	}
	return false
}

func (s *State) setInFlight(stage Stage, v bool) {
	switch stage {
	case StageRecognize:
		s.Recognizing = v
	case StageStructure:
		s.Structuring = v
	case StageTranslate:
		s.Translating = v
	}
}

func (s State) clone() State {
	s.Errors = maps.Clone(s.Errors)
	return s
}

// MarshalZerologObject logs sizes and flags, not document contents.
func (s State) MarshalZerologObject(e *zerolog.Event) {
	e.Int("recognized_chars", len(s.RecognizedText)).
		Int("structured_chars", len(s.StructuredText)).
		Int("translated_chars", len(s.TranslatedText)).
		Str("language", string(s.Language)).
		Bool("recognizing", s.Recognizing).
		Bool("structuring", s.Structuring).
		Bool("translating", s.Translating)
}
