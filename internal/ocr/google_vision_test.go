package ocr

import (
	"slices"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brk = visionpb.TextAnnotation_DetectedBreak_BreakType

func word(text string, conf float32, last brk) *visionpb.Word {
	w := &visionpb.Word{Confidence: conf}
	for i, r := range text {
		s := &visionpb.Symbol{Text: string(r)}
		if i == len(text)-1 && last != visionpb.TextAnnotation_DetectedBreak_UNKNOWN {
			s.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: last},
			}
		}
		w.Symbols = append(w.Symbols, s)
	}
	return w
}

func texts(obs []Observation) []string {
	out := make([]string, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.Candidates[0].Text)
	}
	return out
}

func TestVisionLines(t *testing.T) {
	annotation := &visionpb.TextAnnotation{
		Pages: []*visionpb.Page{{
			Blocks: []*visionpb.Block{{
				Paragraphs: []*visionpb.Paragraph{
					{Words: []*visionpb.Word{
						word("Glucose", 0.9, visionpb.TextAnnotation_DetectedBreak_SPACE),
						word("95", 0.7, visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE),
						word("Hemo", 0.8, visionpb.TextAnnotation_DetectedBreak_HYPHEN),
						word("globin", 0.8, visionpb.TextAnnotation_DetectedBreak_SURE_SPACE),
						word("13.5", 0.8, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK),
					}},
					{Words: []*visionpb.Word{
						word("LDL", 0.6, visionpb.TextAnnotation_DetectedBreak_UNKNOWN),
					}},
				},
			}},
		}},
	}

	obs := slices.Collect(visionLines(annotation))
	require.Len(t, obs, 4)
	assert.Equal(t, []string{"Glucose 95", "Hemo-", "globin 13.5", "LDL"}, texts(obs))
	assert.InDelta(t, 0.8, obs[0].Candidates[0].Confidence, 1e-6)
	assert.InDelta(t, 0.6, obs[3].Candidates[0].Confidence, 1e-6)
}

func TestVisionLinesStopsEarly(t *testing.T) {
	annotation := &visionpb.TextAnnotation{
		Pages: []*visionpb.Page{{
			Blocks: []*visionpb.Block{{
				Paragraphs: []*visionpb.Paragraph{{Words: []*visionpb.Word{
					word("one", 1, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK),
					word("two", 1, visionpb.TextAnnotation_DetectedBreak_LINE_BREAK),
				}}},
			}},
		}},
	}

	var got []string
	for obs := range visionLines(annotation) {
		got = append(got, obs.Candidates[0].Text)
		break
	}
	assert.Equal(t, []string{"one"}, got)
}

func TestPlainLines(t *testing.T) {
	obs := slices.Collect(plainLines("Glucose 95\n\n  LDL 130  \n", 0))
	assert.Equal(t, []string{"Glucose 95", "LDL 130"}, texts(obs))
}

func TestPolyBounds(t *testing.T) {
	r, ok := polyBounds(&visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
		{X: 10, Y: 5}, {X: 40, Y: 5}, {X: 40, Y: 20}, {X: 10, Y: 20},
	}})
	require.True(t, ok)
	assert.Equal(t, 10, r.Min.X)
	assert.Equal(t, 5, r.Min.Y)
	assert.Equal(t, 41, r.Max.X)
	assert.Equal(t, 21, r.Max.Y)

	_, ok = polyBounds(nil)
	assert.False(t, ok)
}
