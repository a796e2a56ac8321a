package limiter

import (
	"context"

	"golang.org/x/time/rate"

	"dirsweep/internal/fsops"
)

// FS throttles primitive filesystem calls to a fixed rate
type FS struct {
	inner   fsops.FS
	limiter *rate.Limiter
}

// NewFS wraps inner so that at most opsPerSecond calls start per second.
// A non-positive rate returns inner unchanged.
func NewFS(inner fsops.FS, opsPerSecond float64, burst int) fsops.FS {
	if opsPerSecond <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &FS{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), burst),
	}
}

// SetRate updates the permitted operations per second
func (l *FS) SetRate(opsPerSecond float64) {
	l.limiter.SetLimit(rate.Limit(opsPerSecond))
}

func (l *FS) Stat(ctx context.Context, name string) (fsops.Status, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return fsops.Status{}, err
	}
	return l.inner.Stat(ctx, name)
}

func (l *FS) Lstat(ctx context.Context, name string) (fsops.Status, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return fsops.Status{}, err
	}
	return l.inner.Lstat(ctx, name)
}

func (l *FS) ReadDir(ctx context.Context, name string) ([]string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.ReadDir(ctx, name)
}

func (l *FS) Unlink(ctx context.Context, name string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.Unlink(ctx, name)
}

func (l *FS) Rmdir(ctx context.Context, name string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.inner.Rmdir(ctx, name)
}
