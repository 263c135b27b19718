package llm

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Deduplicator collapses concurrent identical prompts into one upstream call. Nothing is
// cached: a prompt sent after the shared call returned reaches the service again.
type Deduplicator struct {
	next  Completer
	group singleflight.Group
}

// NewDeduplicator wraps next.
func NewDeduplicator(next Completer) *Deduplicator {
	return &Deduplicator{next: next}
}

// Complete joins an in-flight call for the same prompt or starts one. Each caller stops
// waiting when its own ctx is done; the shared call keeps running for the others.
func (d *Deduplicator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return d.next.Complete(ctx, prompt)
	}

	key := strconv.FormatUint(xxhash.Sum64String(prompt), 16) + ":" + strconv.Itoa(len(prompt))
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		return d.next.Complete(shared, prompt)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &Error{Op: "Complete", Reason: ErrTransport, Err: ctx.Err()}
	}
}
