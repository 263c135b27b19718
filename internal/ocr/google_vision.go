package ocr

import (
	"context"
	"fmt"
	"image"
	"iter"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine implements Engine using Google Cloud Vision API.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, NewRecognitionError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapRecognitionError(op, err, "failed to create Vision client")
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client.
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{client: client}
}

func (v *VisionEngine) Name() string { return EngineVision }

// Recognize runs DOCUMENT_TEXT_DETECTION for LevelAccurate and TEXT_DETECTION for LevelFast.
func (v *VisionEngine) Recognize(ctx context.Context, img *CapturedImage, level RecognitionLevel) (iter.Seq[Observation], error) {
	const op = "VisionEngine.Recognize"

	feature := visionpb.Feature_DOCUMENT_TEXT_DETECTION
	if level == LevelFast {
		feature = visionpb.Feature_TEXT_DETECTION
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: img.Data},
				Features: []*visionpb.Feature{{Type: feature}},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapRecognitionError(op, err, "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return nil, NewRecognitionError(op, ErrRecognitionFailed, "no response from Vision API")
	}

	annotated := resp.Responses[0]
	if annotated.Error != nil {
		return nil, NewRecognitionError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API error: %s", annotated.Error.Message))
	}

	if annotated.FullTextAnnotation != nil {
		return visionLines(annotated.FullTextAnnotation), nil
	}
	if len(annotated.TextAnnotations) > 0 {
		return plainLines(annotated.TextAnnotations[0].Description, 0), nil
	}
	return func(func(Observation) bool) {}, nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// visionLines walks the annotation hierarchy and yields one observation per text line.
// Vision reports line ends as detected breaks on the last symbol of a line.
func visionLines(annotation *visionpb.TextAnnotation) iter.Seq[Observation] {
	return func(yield func(Observation) bool) {
		var (
			line     strings.Builder
			confSum  float32
			confN    int
			bounds   image.Rectangle
			hasBound bool
		)

		flush := func() bool {
			text := strings.TrimSpace(line.String())
			line.Reset()
			defer func() { confSum, confN, bounds, hasBound = 0, 0, image.Rectangle{}, false }()
			if text == "" {
				return true
			}
			var conf float32
			if confN > 0 {
				conf = confSum / float32(confN)
			}
			return yield(Observation{
				Candidates: []Candidate{{Text: text, Confidence: conf}},
				Bounds:     bounds,
			})
		}

		for _, page := range annotation.GetPages() {
			for _, block := range page.GetBlocks() {
				for _, paragraph := range block.GetParagraphs() {
					for _, word := range paragraph.GetWords() {
						confSum += word.GetConfidence()
						confN++
						if r, ok := polyBounds(word.GetBoundingBox()); ok {
							if hasBound {
								bounds = bounds.Union(r)
							} else {
								bounds, hasBound = r, true
							}
						}

						for _, symbol := range word.GetSymbols() {
							line.WriteString(symbol.GetText())

							switch symbol.GetProperty().GetDetectedBreak().GetType() {
							case visionpb.TextAnnotation_DetectedBreak_SPACE,
								visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
								line.WriteByte(' ')
							case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
								line.WriteByte('-')
								if !flush() {
									return
								}
							case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
								visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
								if !flush() {
									return
								}
							}
						}
					}
					// A paragraph never continues a line into the next one
					if !flush() {
						return
					}
				}
			}
		}
	}
}

func polyBounds(poly *visionpb.BoundingPoly) (image.Rectangle, bool) {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return image.Rectangle{}, false
	}
	r := image.Rect(int(vertices[0].GetX()), int(vertices[0].GetY()), int(vertices[0].GetX()), int(vertices[0].GetY()))
	for _, v := range vertices[1:] {
		r = r.Union(image.Rect(int(v.GetX()), int(v.GetY()), int(v.GetX())+1, int(v.GetY())+1))
	}
	return r, true
}

// plainLines yields one observation per non-blank line of text.
func plainLines(text string, confidence float32) iter.Seq[Observation] {
	return func(yield func(Observation) bool) {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !yield(Observation{Candidates: []Candidate{{Text: line, Confidence: confidence}}}) {
				return
			}
		}
	}
}
