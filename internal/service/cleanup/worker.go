// Package cleanup периодически удаляет истёкшие данные сессий:
// ключи сессионной области в хранилище и простаивающие сессии витрины.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultBatchSize = 500
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cleanup_runs_total",
		Help: "Total number of cleanup runs grouped by target and result.",
	}, []string{"target", "result"})
	cleanupDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cleanup_deleted_total",
		Help: "Total number of deleted expired records grouped by target.",
	}, []string{"target"})
	cleanupLastDeleted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_cleanup_last_deleted",
		Help: "Number of deleted records during the last cleanup run.",
	}, []string{"target"})
)

// Sweeper удаляет не более limit записей, истёкших до before.
type Sweeper interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Options задаёт параметры воркера.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
}

// Option настраивает Worker.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер порции одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// Worker периодически вызывает Sweeper, пока не закончатся истёкшие записи.
type Worker struct {
	target    string
	sweeper   Sweeper
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewWorker создаёт воркер очистки для цели target (метка метрик и логов).
func NewWorker(target string, sweeper Sweeper, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultInterval,
		BatchSize: defaultBatchSize,
		Now:       time.Now,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cleanup-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Worker{
		target:    target,
		sweeper:   sweeper,
		logger:    logger.WithField("target", target),
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		now:       opts.Now,
	}
}

// Target возвращает имя цели очистки.
func (w *Worker) Target() string {
	return w.target
}

// Run запускает очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.sweeper == nil {
		w.logger.Warn("cleanup worker is disabled: sweeper is nil")
		return
	}

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	deleted, err := w.Sweep(ctx, w.now().UTC())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cleanupRunsTotal.WithLabelValues(w.target, "error").Inc()
		w.logger.WithError(err).Warn("cleanup run failed")
		return
	}

	cleanupRunsTotal.WithLabelValues(w.target, "ok").Inc()
	cleanupLastDeleted.WithLabelValues(w.target).Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("cleanup completed")
	}
}

// Sweep удаляет всё истёкшее до before порциями batchSize.
func (w *Worker) Sweep(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.sweeper.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}

		total += deleted
		if deleted > 0 {
			cleanupDeletedTotal.WithLabelValues(w.target).Add(float64(deleted))
		}
		if deleted < w.batchSize {
			break
		}
	}
	return total, nil
}
