package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
)

// fakeQueue is a redis list backed by a slice.
type fakeQueue struct {
	mu      sync.Mutex
	items   []string
	pushErr error
}

func (q *fakeQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fakeQueue) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	if head, ok := q.pop(); ok {
		return redis.NewStringSliceResult([]string{keys[0], head}, nil)
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (q *fakeQueue) LPop(_ context.Context, _ string) *redis.StringCmd {
	if head, ok := q.pop(); ok {
		return redis.NewStringResult(head, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (q *fakeQueue) RPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if q.pushErr != nil {
		return redis.NewIntResult(0, q.pushErr)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		switch raw := v.(type) {
		case string:
			q.items = append(q.items, raw)
		case []byte:
			q.items = append(q.items, string(raw))
		}
	}
	return redis.NewIntResult(int64(len(q.items)), nil)
}

type fakeProcessor struct {
	err   error
	calls []service.ItemJob
}

func (p *fakeProcessor) Process(_ context.Context, job service.ItemJob) error {
	p.calls = append(p.calls, job)
	return p.err
}

type fakeWorkerStore struct {
	failedSlots    []int
	failedMessages []string
	overallStatus  model.OverallStatus
}

func (s *fakeWorkerStore) GetItem(context.Context, uuid.UUID, int) (*model.TestItem, error) {
	return nil, errors.New("not implemented")
}
func (s *fakeWorkerStore) MarkItemStarted(context.Context, uuid.UUID, int) error { return nil }
func (s *fakeWorkerStore) SetItemResponse(context.Context, uuid.UUID, int, string) error {
	return nil
}
func (s *fakeWorkerStore) SetItemResult(context.Context, uuid.UUID, int, model.Level, model.ItemFeedback) error {
	return nil
}
func (s *fakeWorkerStore) MarkItemFailed(_ context.Context, _ uuid.UUID, slot int, message string) error {
	s.failedSlots = append(s.failedSlots, slot)
	s.failedMessages = append(s.failedMessages, message)
	return nil
}
func (s *fakeWorkerStore) SetOverallStatus(_ context.Context, _ uuid.UUID, status model.OverallStatus, _ *string) error {
	s.overallStatus = status
	return nil
}

func queuedJob(t *testing.T, slot int, isLast bool) string {
	t.Helper()
	raw, err := json.Marshal(service.ItemJob{
		TestID:    uuid.NewString(),
		UserID:    1,
		TestType:  model.TestTypeCombo,
		Slot:      slot,
		AudioPath: fmt.Sprintf("/tmp/audio-%d.mp3", slot),
		IsLast:    isLast,
	})
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return string(raw)
}

func newTestWorker(queue *fakeQueue, processor *fakeProcessor, store *fakeWorkerStore) *GradingWorker {
	return NewGradingWorker(queue, processor, store, zerolog.Nop())
}

func TestInterruptedJobIsRequeuedNotFailed(t *testing.T) {
	queue := &fakeQueue{items: []string{queuedJob(t, 3, false)}}
	processor := &fakeProcessor{err: fmt.Errorf("store response: %w", context.Canceled)}
	store := &fakeWorkerStore{}
	w := newTestWorker(queue, processor, store)

	w.processNext(context.Background())

	if len(processor.calls) != 1 {
		t.Fatalf("processor ran %d times, want 1", len(processor.calls))
	}
	if queue.len() != 1 {
		t.Fatalf("queue has %d jobs after interruption, want the job back", queue.len())
	}
	if len(store.failedSlots) != 0 {
		t.Errorf("interrupted job marked FAILED on slots %v", store.failedSlots)
	}

	// The requeued payload is the original one: a restarted worker can
	// pick it up and finish the item.
	head, _ := queue.pop()
	var requeued service.ItemJob
	if err := json.Unmarshal([]byte(head), &requeued); err != nil {
		t.Fatalf("requeued payload unreadable: %v", err)
	}
	if requeued.Slot != 3 {
		t.Errorf("requeued slot = %d, want 3", requeued.Slot)
	}
}

func TestCancelledContextRequeuesUnwrappedError(t *testing.T) {
	queue := &fakeQueue{items: []string{queuedJob(t, 1, false)}}
	processor := &fakeProcessor{err: errors.New("connection reset")}
	store := &fakeWorkerStore{}
	w := newTestWorker(queue, processor, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.runJob(ctx, service.ItemJob{TestID: uuid.NewString(), Slot: 1}, queue.items[0])

	if queue.len() != 2 {
		// Original entry plus the pushed-back copy.
		t.Fatalf("queue has %d jobs, want the interrupted job requeued", queue.len())
	}
	if len(store.failedSlots) != 0 {
		t.Errorf("job under cancelled context marked FAILED on slots %v", store.failedSlots)
	}
}

func TestProcessErrorMarksItemFailed(t *testing.T) {
	queue := &fakeQueue{items: []string{queuedJob(t, 2, true)}}
	processor := &fakeProcessor{err: errors.New("audio file missing")}
	store := &fakeWorkerStore{}
	w := newTestWorker(queue, processor, store)

	w.processNext(context.Background())

	if queue.len() != 0 {
		t.Errorf("failed job requeued, want it consumed")
	}
	if len(store.failedSlots) != 1 || store.failedSlots[0] != 2 {
		t.Fatalf("failed slots = %v, want [2]", store.failedSlots)
	}
	if store.failedMessages[0] != "audio file missing" {
		t.Errorf("failure message = %q", store.failedMessages[0])
	}
	if store.overallStatus != model.OverallStatusFailed {
		t.Errorf("overall status = %q, want FAILED for a last-item failure", store.overallStatus)
	}
}

func TestDrainProcessesBacklog(t *testing.T) {
	queue := &fakeQueue{items: []string{
		queuedJob(t, 1, false),
		queuedJob(t, 2, false),
		queuedJob(t, 3, true),
	}}
	processor := &fakeProcessor{}
	store := &fakeWorkerStore{}
	w := newTestWorker(queue, processor, store)

	w.drain(context.Background())

	if len(processor.calls) != 3 {
		t.Fatalf("drain processed %d jobs, want 3", len(processor.calls))
	}
	if queue.len() != 0 {
		t.Errorf("queue has %d jobs after drain, want 0", queue.len())
	}
}

func TestDrainRequeuesOnErrorAndStops(t *testing.T) {
	queue := &fakeQueue{items: []string{
		queuedJob(t, 1, false),
		queuedJob(t, 2, false),
	}}
	processor := &fakeProcessor{err: errors.New("database gone")}
	store := &fakeWorkerStore{}
	w := newTestWorker(queue, processor, store)

	w.drain(context.Background())

	if len(processor.calls) != 1 {
		t.Fatalf("drain ran %d jobs past a failure, want it to stop after 1", len(processor.calls))
	}
	if queue.len() != 2 {
		t.Errorf("queue has %d jobs, want both preserved (failed job pushed back)", queue.len())
	}
}
