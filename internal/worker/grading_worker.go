package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	gradePollTimeout = 1 * time.Second

	// drainTimeout bounds the shutdown drain: jobs involve external
	// transcription and evaluation calls, so the drain cannot run open-ended.
	drainTimeout = 30 * time.Second
)

// Queue is the subset of redis list operations the worker uses.
// Implemented by *redis.Client.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ItemProcessor runs the per-item grading pipeline for one job.
// Implemented by service.GradingService.
type ItemProcessor interface {
	Process(ctx context.Context, job service.ItemJob) error
}

// GradingWorker consumes grade_items_queue and runs the per-item
// pipeline for each job. Jobs for different slots run through the same
// loop but touch disjoint rows, so ordering between slots is undefined
// by design.
type GradingWorker struct {
	queue   Queue
	grading ItemProcessor
	store   service.GradingStore
	log     zerolog.Logger
}

// NewGradingWorker creates a new GradingWorker.
func NewGradingWorker(queue Queue, grading ItemProcessor, store service.GradingStore, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		queue:   queue,
		grading: grading,
		store:   store,
		log:     log.With().Str("component", "grading_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("GradingWorker stopping...")
			// Finish what is still queued before exit, on a fresh
			// bounded context: the loop context is already cancelled.
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("GradingWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *GradingWorker) processNext(ctx context.Context) {
	result, err := w.queue.BLPop(ctx, gradePollTimeout, config.WorkerKey.GradeItemsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var job service.ItemJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload, dropping job")
		return
	}

	w.runJob(ctx, job, result[1])
}

// runJob executes the pipeline with the outer failure boundary. A
// context error means the job was interrupted, not broken: the raw
// payload goes back on the queue so nothing is lost across a shutdown.
// Any other error or a panic moves the item to FAILED and, if this was
// the last item, the whole test with it. Inner soft failures
// (transcription, oracle exhaustion) never reach this path.
func (w *GradingWorker) runJob(ctx context.Context, job service.ItemJob, raw string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Interface("panic", r).
				Str("test_id", job.TestID).
				Int("slot", job.Slot).
				Msg("Grading pipeline panicked")
			w.markFailed(ctx, job, fmt.Sprintf("panic: %v", r))
		}
	}()

	err := w.grading.Process(ctx, job)
	if err == nil {
		return
	}

	if interrupted(err) || ctx.Err() != nil {
		w.log.Warn().
			Str("test_id", job.TestID).
			Int("slot", job.Slot).
			Msg("Job interrupted, pushing back to queue")
		w.requeue(raw)
		return
	}

	w.log.Error().Err(err).
		Str("test_id", job.TestID).
		Int("slot", job.Slot).
		Bool("is_last", job.IsLast).
		Msg("Grading pipeline failed")
	w.markFailed(ctx, job, err.Error())
}

// requeue runs on its own context: the loop context may already be
// cancelled when a job is pushed back.
func (w *GradingWorker) requeue(raw string) {
	if err := w.queue.RPush(context.Background(), config.WorkerKey.GradeItemsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Requeue failed, job lost")
	}
}

// drain processes all remaining queued jobs before shutdown.
func (w *GradingWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.queue.LPop(ctx, config.WorkerKey.GradeItemsQueue).Result()
		if err != nil {
			break
		}

		var job service.ItemJob
		if err := json.Unmarshal([]byte(result), &job); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error, dropping job")
			continue
		}

		if err := w.grading.Process(ctx, job); err != nil {
			w.log.Error().Err(err).
				Str("test_id", job.TestID).
				Int("slot", job.Slot).
				Msg("Drain process error")
			w.requeue(result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining jobs")
	}
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (w *GradingWorker) markFailed(ctx context.Context, job service.ItemJob, message string) {
	testID, err := uuid.Parse(job.TestID)
	if err != nil {
		return
	}
	if err := w.store.MarkItemFailed(ctx, testID, job.Slot, message); err != nil {
		w.log.Error().Err(err).Str("test_id", job.TestID).Int("slot", job.Slot).Msg("Mark item failed errored")
	}
	if job.IsLast {
		if err := w.store.SetOverallStatus(ctx, testID, model.OverallStatusFailed, &message); err != nil {
			w.log.Error().Err(err).Str("test_id", job.TestID).Msg("Mark test failed errored")
		}
	}
}
