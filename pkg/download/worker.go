package download

import (
	"context"
	"io"
	"time"

	"github.com/parget/parget/pkg/client"
)

const (
	// maxAttempts is the per-partition transfer budget: the first attempt
	// plus four retries. A worker that exhausts it aborts the whole session.
	maxAttempts  = 5
	retryBackoff = time.Second
)

// workerState is the runtime state of one worker. It is mutated only by the
// worker's own goroutine; the coordinator reads it after the goroutine exits.
type workerState struct {
	partition Partition
	entry     *ProgressEntry
	retries   int
	err       error
	completed bool
}

// runWorker drives one partition to completion. Every attempt opens a fresh
// write cursor at the partition's start offset: bytes from a failed attempt
// are not trusted, so the whole partition is re-fetched. Positioned writes
// into disjoint ranges are what make concurrent writes into one file safe
// without locking.
func (s *Session) runWorker(ctx context.Context, w *workerState) {
	logger := s.logger.With().Int("worker", w.partition.Index).Logger()
	logger.Info().
		Int64("start", w.partition.Start).
		Int64("end", w.partition.End).
		Msg("Worker started")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.transferClient.Transfer(ctx, client.TransferRequest{
			URL:   s.resolvedURL,
			Start: w.partition.Start,
			End:   w.partition.End,
			Sink:  io.NewOffsetWriter(s.dest, w.partition.Start),
			OnProgress: func(received, total int64) {
				w.entry.Set(received, total)
			},
			Gate: s.controls,
		})
		if err == nil {
			w.completed = true
			s.controls.MarkCompleted()
			logger.Info().Int("attempts", attempt).Msg("Worker completed")
			return
		}

		if ctx.Err() != nil || s.controls.IsCancelled() {
			w.err = err
			logger.Debug().Err(err).Msg("Worker aborted")
			return
		}

		if attempt == maxAttempts {
			w.err = err
			logger.Error().Err(err).Int("attempts", attempt).Msg("Worker failed, aborting session")
			s.controls.RequestCancel()
			return
		}

		w.retries = attempt
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Transfer failed, retrying")

		select {
		case <-ctx.Done():
			w.err = err
			return
		case <-time.After(s.retryDelay):
		}
	}
}
