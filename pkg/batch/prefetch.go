package batch

import (
	"context"
)

// Stream runs the generator in a producer goroutine and hands micro-batches
// over a channel buffered to the configured prefetch depth, so assembly of
// the next batches overlaps with consumption of the current one. The
// channel closes when ctx is cancelled; the generator must not be used
// directly while a stream is active.
func (g *Generator) Stream(ctx context.Context) <-chan *MicroBatch {
	depth := g.cfg.PrefetchDepth
	if depth <= 0 {
		depth = 1
	}
	out := make(chan *MicroBatch, depth)
	go func() {
		defer close(out)
		for {
			mb := g.Next()
			select {
			case out <- mb:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
