package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingCompleter struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	b.calls.Add(1)
	<-b.release
	return "reply to " + prompt, nil
}

func TestDeduplicatorSharesInFlightCall(t *testing.T) {
	next := &blockingCompleter{release: make(chan struct{})}
	d := NewDeduplicator(next)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Complete(context.Background(), "same")
			assert.NoError(t, err)
			results[i] = got
		}()
	}

	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// let the remaining callers join before the shared call returns
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
	for _, got := range results {
		assert.Equal(t, "reply to same", got)
	}

	_, err := d.Complete(context.Background(), "same")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestDeduplicatorWaiterHonorsContext(t *testing.T) {
	next := &blockingCompleter{release: make(chan struct{})}
	defer close(next.release)
	d := NewDeduplicator(next)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Complete(ctx, "slow")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
