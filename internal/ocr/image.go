package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// MaxImageSizeBytes is the largest capture accepted (20MB), which is also the inline
// request limit of the Google Cloud engines.
const MaxImageSizeBytes = 20 * 1024 * 1024

// Image formats kept byte-for-byte; everything else is re-encoded as PNG.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// CapturedImage is an in-memory bitmap ready to be sent to an Engine.
type CapturedImage struct {
	// Data holds the encoded image in Format.
	Data []byte

	// Format is FormatPNG or FormatJPEG.
	Format string

	Width  int
	Height int
}

// MimeType returns the MIME type of Data.
func (c *CapturedImage) MimeType() string {
	if c.Format == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// LoadImage reads and decodes a capture from disk.
func LoadImage(path string) (*CapturedImage, error) {
	const op = "LoadImage"

	info, err := os.Stat(path)
	if err != nil {
		return nil, WrapRecognitionError(op, err, "failed to access image file")
	}
	if info.Size() > MaxImageSizeBytes {
		return nil, NewRecognitionError(op, ErrImageTooLarge, fmt.Sprintf("file size: %d bytes", info.Size()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapRecognitionError(op, err, "failed to read image file")
	}
	return DecodeImage(data, "")
}

// DecodeImage normalizes a capture. JPEG and PNG are kept as-is; HEIC/HEIF, GIF, BMP,
// TIFF and WebP are re-encoded as PNG; a PDF is rendered from its first page. An empty
// contentType is sniffed from the data.
func DecodeImage(data []byte, contentType string) (*CapturedImage, error) {
	const op = "DecodeImage"

	if len(data) == 0 {
		return nil, NewRecognitionError(op, ErrUnsupportedImage, "empty image data")
	}
	if len(data) > MaxImageSizeBytes {
		return nil, NewRecognitionError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(data)))
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	var (
		img image.Image
		err error
	)
	switch {
	case mimeType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF")):
		img, err = renderFirstPage(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err = heic.Decode(bytes.NewReader(data))
	default:
		var format string
		img, format, err = image.Decode(bytes.NewReader(data))
		if err == nil && (format == FormatPNG || format == FormatJPEG) {
			b := img.Bounds()
			return &CapturedImage{Data: data, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
		}
	}
	if err != nil {
		return nil, NewRecognitionError(op, ErrUnsupportedImage, err.Error())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, WrapRecognitionError(op, err, "failed to encode PNG")
	}
	b := img.Bounds()
	return &CapturedImage{Data: buf.Bytes(), Format: FormatPNG, Width: b.Dx(), Height: b.Dy()}, nil
}

func renderFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
