package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klazomenai/provider-static-server/pkg/assets"
	"github.com/klazomenai/provider-static-server/pkg/metrics"
	"github.com/rs/zerolog"
)

// WorkerConfig controls the asset probe
type WorkerConfig struct {
	CheckInterval time.Duration // How often to re-verify the asset directory
	Dir           string
	EntryDocument string
}

// Worker periodically re-verifies the asset directory after startup.
// It only reports; a missing entry document never stops the server.
type Worker struct {
	config  *WorkerConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger

	healthy atomic.Bool
	mu      sync.Mutex
	lastErr error

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new asset probe
func NewWorker(config *WorkerConfig, m *metrics.Metrics, logger zerolog.Logger) *Worker {
	w := &Worker{
		config:   config,
		metrics:  m,
		logger:   logger.With().Str("component", "asset-probe").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	// Startup verification already passed before the worker exists.
	w.healthy.Store(true)
	return w
}

// Start runs checks until Stop is called or ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.logger.Debug().Dur("check_interval", w.config.CheckInterval).Msg("starting asset probe")

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.Check()

	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		}
	}
}

// Stop stops the worker and waits for Start to return
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}

// Check verifies the asset directory once and records the result
func (w *Worker) Check() bool {
	_, err := assets.Verify(w.config.Dir, w.config.EntryDocument)
	ok := err == nil

	if w.metrics != nil {
		w.metrics.RecordCheck(ok)
	}

	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()

	// Log transitions only
	if was := w.healthy.Swap(ok); was != ok {
		if ok {
			w.logger.Info().Str("dir", w.config.Dir).Msg("asset directory restored")
		} else {
			w.logger.Warn().Err(err).Str("dir", w.config.Dir).Msg("asset directory check failed; fallback requests will error")
		}
	}

	return ok
}

// Healthy reports the result of the last check
func (w *Worker) Healthy() bool {
	return w.healthy.Load()
}

// LastError returns the error of the last check, or nil
func (w *Worker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}
