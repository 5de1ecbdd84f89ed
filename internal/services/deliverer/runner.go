package deliverer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type RunnerConfig struct {
	Tick       time.Duration `mapstructure:"tick"`
	BatchLimit int           `mapstructure:"batch_limit"`
}

// Runner owns the polling cadence: it invokes the drain repeatedly and
// reports metrics. The drain itself stays a pure batch function.
type Runner struct {
	log    *zap.Logger
	worker *Worker
	cfg    RunnerConfig

	mProcessed prometheus.Counter
	mSent      prometheus.Counter
	mFailed    prometheus.Counter
	mFetchErr  prometheus.Counter
	mTickDur   prometheus.Histogram
	mBatchSize prometheus.Gauge
}

func NewRunner(log *zap.Logger, worker *Worker, cfg RunnerConfig) *Runner {
	return &Runner{
		log:    log,
		worker: worker,
		cfg:    cfg,
		mProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deliverer_processed_total", Help: "Outbox rows examined.",
		}),
		mSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deliverer_sent_total", Help: "Deliveries sent.",
		}),
		mFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deliverer_failed_total", Help: "Deliveries failed.",
		}),
		mFetchErr: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deliverer_fetch_errors_total", Help: "Batch fetch errors.",
		}),
		mTickDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "deliverer_tick_duration_seconds", Help: "Drain tick duration.",
			Buckets: prometheus.DefBuckets,
		}),
		mBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "deliverer_last_batch_size", Help: "Rows examined in the last tick.",
		}),
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	s, err := r.worker.ProcessPending(ctx, r.cfg.BatchLimit)
	if err != nil {
		r.mFetchErr.Inc()
		r.log.Warn("drain tick error", zap.Error(err))
	}
	r.mProcessed.Add(float64(s.Processed))
	r.mSent.Add(float64(s.Sent))
	r.mFailed.Add(float64(s.Failed))
	r.mBatchSize.Set(float64(s.Processed))
	if s.Processed > 0 {
		r.log.Debug("drained batch",
			zap.Int("processed", s.Processed),
			zap.Int("sent", s.Sent),
			zap.Int("failed", s.Failed),
		)
	}
	r.mTickDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
