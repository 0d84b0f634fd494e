package worker

import (
	"context"
	"time"

	"go-pos-engine/internal/metrics"
	"go-pos-engine/internal/service"

	"go.uber.org/zap"
)

const reapBatch = 100

// Reaper fails mobile-payment sales whose confirmation never arrived.
type Reaper struct {
	reconcile service.ReconciliationService
	ttl       time.Duration
	interval  time.Duration
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewReaper(reconcile service.ReconciliationService, ttl, interval time.Duration, m *metrics.Metrics, log *zap.Logger) *Reaper {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		reconcile: reconcile,
		ttl:       ttl,
		interval:  interval,
		metrics:   m,
		log:       log.Named("reaper"),
		now:       time.Now,
	}
}

// Enabled reports whether a pending TTL is configured.
func (r *Reaper) Enabled() bool {
	return r.ttl > 0 && r.interval > 0
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if !r.Enabled() {
		return
	}
	r.log.Info("reaper started", zap.Duration("ttl", r.ttl), zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires one round of stale transactions, draining full batches.
func (r *Reaper) Sweep(ctx context.Context) int {
	total := 0
	for {
		n, err := r.reconcile.ExpireStale(ctx, r.now().Add(-r.ttl), reapBatch)
		if err != nil {
			r.log.Error("sweep failed", zap.Error(err))
			return total
		}
		total += n
		r.metrics.ReapedPending.Add(float64(n))
		if n < reapBatch || ctx.Err() != nil {
			return total
		}
	}
}
