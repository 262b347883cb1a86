package portal

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Prober caches the portal's reachability for ttl so that every progress save does not
// pay for a health check. It satisfies progress.Connectivity.
type Prober struct {
	log     *logger.Logger
	target  pinger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu      sync.Mutex
	checked time.Time
	online  bool
}

func NewProber(log *logger.Logger, target pinger, ttl time.Duration) *Prober {
	if log == nil {
		log = logger.Nop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Prober{
		log:     log.With("client", "PortalProber"),
		target:  target,
		ttl:     ttl,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// Online answers from the cache while it is fresh. Otherwise one ping runs on behalf of all
// concurrent callers; a caller whose ctx ends first gets the last known answer.
func (p *Prober) Online(ctx context.Context) bool {
	p.mu.Lock()
	if !p.checked.IsZero() && p.now().Sub(p.checked) < p.ttl {
		online := p.online
		p.mu.Unlock()
		return online
	}
	p.mu.Unlock()

	ch := p.group.DoChan("ping", func() (any, error) {
		return p.probe(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.online
	}
}

func (p *Prober) probe(ctx context.Context) bool {
	started := p.now()
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.target.Ping(pctx)
	online := err == nil

	p.mu.Lock()
	defer p.mu.Unlock()
	if online != p.online || p.checked.IsZero() {
		if online {
			p.log.Info("portal reachable")
		} else {
			p.log.Warn("portal unreachable", "error", err)
		}
	}
	p.online = online
	p.checked = started
	observability.Current().SetPortalReachable(online)
	return online
}
