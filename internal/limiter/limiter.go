package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// DirLimiter paces directory reads so a scan of a large tree does not
// saturate a slow or shared filesystem.
type DirLimiter struct {
	limiter *rate.Limiter
	ctx     context.Context
}

// NewDirLimiter allows up to perSecond directory reads per second. A value
// of zero or less disables limiting and returns nil, which Throttle accepts.
func NewDirLimiter(perSecond int) *DirLimiter {
	if perSecond <= 0 {
		return nil
	}
	burst := perSecond / 10
	if burst < 1 {
		burst = 1
	}
	return &DirLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		ctx:     context.Background(),
	}
}

// WithContext returns a copy whose Throttle stops waiting once ctx is done.
func (l *DirLimiter) WithContext(ctx context.Context) *DirLimiter {
	if l == nil {
		return nil
	}
	return &DirLimiter{limiter: l.limiter, ctx: ctx}
}

// Throttle blocks until the next directory read is allowed.
func (l *DirLimiter) Throttle() {
	if l == nil {
		return
	}
	// A cancelled context ends the wait early; the scan notices cancellation itself.
	_ = l.limiter.Wait(l.ctx)
}

// SetRate updates the allowed reads per second. Zero or less removes the limit.
func (l *DirLimiter) SetRate(perSecond int) {
	if l == nil {
		return
	}
	if perSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(perSecond))
}
