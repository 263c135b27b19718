package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

type captureKey struct{}

// capture records the raw response of one Complete call.
type capture struct {
	responded bool
	status    int
	body      []byte
}

func withCapture(ctx context.Context) (context.Context, *capture) {
	c := &capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// capturingDoer buffers response bodies and records them in the request's capture.
type capturingDoer struct {
	client *http.Client
}

func (d capturingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if c, ok := req.Context().Value(captureKey{}).(*capture); ok {
		c.responded = true
		c.status = resp.StatusCode
		c.body = body
	}
	return resp, nil
}
