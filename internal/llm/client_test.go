package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-test-secret-credential"

type recorded struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

func newTestClient(t *testing.T, status int, body string) (*Client, *bytes.Buffer, *atomic.Int32, chan recorded) {
	t.Helper()

	var calls atomic.Int32
	requests := make(chan recorded, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		_ = json.Unmarshal(raw, &rec.body)
		requests <- rec

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c, err := NewClient(Config{APIKey: testKey, BaseURL: srv.URL + "/v1"}, WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	return c, &logs, &calls, requests
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"model":   "gpt-4o",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
	})
	return string(b)
}

func TestCompleteTrimsContent(t *testing.T) {
	c, logs, _, requests := newTestClient(t, http.StatusOK, completion("  X  \n"))

	got, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "X", got)

	req := <-requests
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/chat/completions", req.path)
	assert.Equal(t, "Bearer "+testKey, req.header.Get("Authorization"))
	assert.Contains(t, req.header.Get("Content-Type"), "application/json")
	assert.Equal(t, "gpt-4o", req.body["model"])
	assert.InDelta(t, 0.7, req.body["temperature"], 1e-6)
	messages, ok := req.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "user", message["role"])
	assert.Equal(t, "hello", message["content"])

	assert.NotContains(t, logs.String(), testKey)
}

func TestCompleteEmptyPrompt(t *testing.T) {
	c, _, calls, _ := newTestClient(t, http.StatusOK, completion("unused"))

	_, err := c.Complete(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Zero(t, calls.Load())
}

func TestCompleteFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		reason  error
		logBody bool
	}{
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, reason: ErrNoContent},
		{name: "not json", status: http.StatusOK, body: `<html>oops</html>`, reason: ErrDecode, logBody: true},
		{name: "missing choices", status: http.StatusOK, body: `{"foo":1}`, reason: ErrDecode, logBody: true},
		{name: "choice without content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant"}}]}`, reason: ErrDecode, logBody: true},
		{name: "error body", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`, reason: ErrDecode, logBody: true},
		{name: "empty body", status: http.StatusOK, body: "", reason: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, logs, calls, _ := newTestClient(t, tt.status, tt.body)

			_, err := c.Complete(context.Background(), "prompt")
			require.ErrorIs(t, err, tt.reason)
			assert.Equal(t, int32(1), calls.Load())

			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.status, llmErr.Status)

			if tt.logBody {
				entry := findLogEntry(t, logs, "Could not decode completion response")
				assert.Equal(t, tt.body, entry["body"])
				assert.EqualValues(t, tt.status, entry["status"])
				assert.NotContains(t, err.Error(), tt.body)
			}
			assert.NotContains(t, logs.String(), testKey)
			assert.NotContains(t, err.Error(), testKey)
		})
	}
}

func TestCompleteIgnoresStatusForValidEnvelope(t *testing.T) {
	c, logs, _, _ := newTestClient(t, http.StatusInternalServerError, completion(" still here "))

	got, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "still here", got)

	entry := findLogEntry(t, logs, "Accepted completion from a non-success response")
	assert.EqualValues(t, http.StatusInternalServerError, entry["status"])
}

// findLogEntry returns the first JSON log line with the given message.
func findLogEntry(t *testing.T, logs *bytes.Buffer, msg string) map[string]any {
	t.Helper()

	for _, line := range bytes.Split(logs.Bytes(), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == msg {
			return entry
		}
	}
	t.Fatalf("no log entry %q in %s", msg, logs.String())
	return nil
}

func TestCompleteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var logs bytes.Buffer
	c, err := NewClient(Config{APIKey: testKey, BaseURL: url}, WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, logs.String(), testKey)
	assert.NotContains(t, err.Error(), testKey)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestDecodeContent(t *testing.T) {
	got, err := decodeContent([]byte(`{"choices":[{"message":{"role":"assistant","content":"\n| a | b |\n"}},{"message":{"role":"assistant","content":"second"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "| a | b |", got)

	_, err = decodeContent([]byte(`{"choices":null}`))
	assert.ErrorIs(t, err, ErrDecode)
}
