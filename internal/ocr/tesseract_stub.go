//go:build !tesseract

package ocr

// NewTesseractEngine reports ErrEngineNotEnabled. Rebuild with -tags tesseract to
// enable the local engine.
func NewTesseractEngine(languages ...string) (Engine, error) {
	return nil, NewRecognitionError("NewTesseractEngine", ErrEngineNotEnabled, "rebuild with -tags tesseract")
}
