package discovery

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// workPool caps simultaneous in-flight provider calls. Permits are held for
// the duration of a single call, never across nested lookups, so member
// expansion cannot deadlock against its own children.
type workPool struct {
	sem *semaphore.Weighted
}

func newWorkPool(limit int) *workPool {
	if limit < 1 {
		limit = 1
	}
	return &workPool{sem: semaphore.NewWeighted(int64(limit))}
}

// Do runs fn while holding one permit. When the context settles before a
// permit is available the context error is returned and fn never runs.
func (p *workPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
