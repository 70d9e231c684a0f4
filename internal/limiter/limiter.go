package limiter

import (
	"context"
	"errors"

	"github.com/local/pdftoolbox/internal/metrics"
)

// ErrBusy is returned by TryAcquire when every slot is taken.
var ErrBusy = errors.New("all processing slots busy")

// Slots bounds how many PDF operations run at once in this process. PDF
// parsing is memory heavy, so large uploads must not pile up unbounded.
type Slots struct {
	sem chan struct{}
}

func New(maxInflight int) *Slots {
	if maxInflight <= 0 {
		maxInflight = 2
	}
	return &Slots{sem: make(chan struct{}, maxInflight)}
}

// Acquire blocks until a slot is free or ctx is done.
// The returned release func must be called exactly once.
func (s *Slots) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		metrics.SetInflight(len(s.sem))
		return s.release, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// TryAcquire reserves a slot without waiting.
func (s *Slots) TryAcquire() (func(), error) {
	select {
	case s.sem <- struct{}{}:
		metrics.SetInflight(len(s.sem))
		return s.release, nil
	default:
		return func() {}, ErrBusy
	}
}

func (s *Slots) release() {
	<-s.sem
	metrics.SetInflight(len(s.sem))
}

func (s *Slots) InUse() int    { return len(s.sem) }
func (s *Slots) Capacity() int { return cap(s.sem) }
