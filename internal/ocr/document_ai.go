package ocr

import (
	"context"
	"fmt"
	"image"
	"iter"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"labscan/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the ID of a Document OCR processor.
	ProcessorID string

	// ProcessorVersion pins a processor version. Optional.
	ProcessorVersion string

	// Timeout bounds a single process call.
	Timeout time.Duration
}

// DocumentAIEngine implements Engine using a Google Document AI OCR processor.
// Document AI has no fast mode, so the recognition level is ignored.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIEngine creates an engine with credentials from environment.
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" {
		return nil, NewRecognitionError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, NewRecognitionError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption

	// Processors outside "us" are only reachable through their regional endpoint
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	hasCredentials := false
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
		hasCredentials = true
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
		hasCredentials = true
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !hasCredentials {
			return nil, NewRecognitionError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapRecognitionError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIEngineWithClient(config, client), nil
}

// NewDocumentAIEngineWithClient creates an engine with explicit config and client.
func NewDocumentAIEngineWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIEngine {
	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

func (p *DocumentAIEngine) Name() string { return EngineDocumentAI }

// Recognize sends the image inline and yields one observation per page line.
func (p *DocumentAIEngine) Recognize(ctx context.Context, img *CapturedImage, _ RecognitionLevel) (iter.Seq[Observation], error) {
	const op = "DocumentAIEngine.Recognize"

	processCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  img.Data,
				MimeType: img.MimeType(),
			},
		},
	}

	p.log.Debug().
		Str("processor", req.Name).
		Int("bytes", len(img.Data)).
		Msg("Sending document to Document AI")

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, WrapRecognitionError(op, err, "Document AI call failed")
	}
	if resp.GetDocument() == nil {
		return nil, NewRecognitionError(op, ErrRecognitionFailed, "no document in Document AI response")
	}

	return documentLines(resp.GetDocument()), nil
}

// Close closes the underlying Document AI client.
func (p *DocumentAIEngine) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// processorName constructs the full processor name for Document AI API.
func (p *DocumentAIEngine) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// documentLines yields the detected lines of every page in reading order.
func documentLines(doc *documentaipb.Document) iter.Seq[Observation] {
	return func(yield func(Observation) bool) {
		for _, page := range doc.GetPages() {
			for _, line := range page.GetLines() {
				layout := line.GetLayout()
				text := strings.TrimSpace(anchorText(doc.GetText(), layout.GetTextAnchor()))
				if text == "" {
					continue
				}
				obs := Observation{
					Candidates: []Candidate{{Text: text, Confidence: layout.GetConfidence()}},
					Bounds:     documentBounds(layout.GetBoundingPoly()),
				}
				if !yield(obs) {
					return
				}
			}
		}
	}
}

// anchorText resolves a text anchor against the document text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func documentBounds(poly *documentaipb.BoundingPoly) image.Rectangle {
	var r image.Rectangle
	for i, v := range poly.GetVertices() {
		pt := image.Rect(int(v.GetX()), int(v.GetY()), int(v.GetX())+1, int(v.GetY())+1)
		if i == 0 {
			r = pt
			continue
		}
		r = r.Union(pt)
	}
	return r
}
