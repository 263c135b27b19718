package ocr

import (
	"errors"
	"fmt"
)

// Common recognition errors
var (
	// ErrNoImage is returned when recognition is requested without a captured image.
	ErrNoImage = errors.New("no image selected")

	// ErrImageTooLarge is returned when the capture exceeds MaxImageSizeBytes.
	ErrImageTooLarge = errors.New("image exceeds the maximum size limit (20MB)")

	// ErrUnsupportedImage is returned when the capture cannot be decoded.
	ErrUnsupportedImage = errors.New("unsupported or corrupted image")

	// ErrRecognitionFailed is returned when the engine reports a failure.
	ErrRecognitionFailed = errors.New("text recognition failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when an engine is missing required settings.
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")

	// ErrUnknownEngine is returned by NewEngine for unrecognized engine names.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrEngineNotEnabled is returned when an engine was compiled out.
	ErrEngineNotEnabled = errors.New("OCR engine not enabled in this build")
)

// RecognitionError wraps errors with additional context about the recognition failure.
type RecognitionError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionEngine").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RecognitionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// NewRecognitionError creates a new RecognitionError with the specified operation and underlying error.
func NewRecognitionError(op string, err error, details string) *RecognitionError {
	return &RecognitionError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapRecognitionError wraps an error as a RecognitionError if it isn't already one.
func WrapRecognitionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return err
	}

	return NewRecognitionError(op, err, details)
}
