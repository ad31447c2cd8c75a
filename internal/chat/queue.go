package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"powpow/pkg/logger"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when a command is dropped because the
// identity's shard is saturated
var ErrQueueFull = errors.New("command queue full")

// ErrQueueStopped is returned after Stop
var ErrQueueStopped = errors.New("command queue stopped")

// Processor handles one message. *Handler implements it.
type Processor interface {
	Process(msg InboundMessage) Reply
}

type job struct {
	msg   InboundMessage
	reply func(Reply)
}

// CommandQueue provides a non-blocking queue for chat commands with worker
// pool processing. Identities are sharded across workers by hash, so the
// commands of one identity are processed in arrival order while different
// identities proceed in parallel.
type CommandQueue struct {
	shards    []chan job
	processor Processor
	wg        sync.WaitGroup
	running   atomic.Bool
	stopChan  chan struct{}
	log       *logrus.Entry

	// OnDrop is called for every dropped command
	OnDrop func(msg InboundMessage)

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Total commands to buffer across shards (default: 256)
	Workers    int // Number of worker goroutines (default: 4)
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Workers:    4,
	}
}

// NewCommandQueue creates a new command queue with worker pool
func NewCommandQueue(processor Processor, config QueueConfig) *CommandQueue {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	perShard := config.BufferSize / config.Workers
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]chan job, config.Workers)
	for i := range shards {
		shards[i] = make(chan job, perShard)
	}

	return &CommandQueue{
		shards:    shards,
		processor: processor,
		stopChan:  make(chan struct{}),
		log:       logger.Component("queue"),
	}
}

// Start launches the worker pool
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return // Already running
	}

	q.log.WithFields(logrus.Fields{
		"workers": len(q.shards),
		"buffer":  cap(q.shards[0]) * len(q.shards),
	}).Info("CommandQueue starting")

	for i := range q.shards {
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
}

// Stop gracefully shuts down the queue. Commands still buffered are
// discarded without a reply.
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return // Not running
	}

	close(q.stopChan)
	q.wg.Wait()

	q.log.WithFields(logrus.Fields{
		"enqueued":  q.enqueued.Load(),
		"processed": q.processed.Load(),
		"dropped":   q.dropped.Load(),
	}).Info("CommandQueue stopped")
}

func (q *CommandQueue) shardFor(identity string) chan job {
	return q.shards[xxhash.Sum64String(identity)%uint64(len(q.shards))]
}

// Enqueue adds a command to the queue (non-blocking). reply, if not nil,
// is called from the worker with the result.
// Returns false if the shard is full (command dropped).
func (q *CommandQueue) Enqueue(msg InboundMessage, reply func(Reply)) bool {
	if !q.running.Load() {
		return false
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	select {
	case q.shardFor(msg.Identity) <- job{msg: msg, reply: reply}:
		q.enqueued.Add(1)
		return true
	default:
		// Shard full - drop command to prevent backpressure
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			q.log.WithFields(logrus.Fields{
				"identity": msg.Identity,
				"dropped":  dropped,
			}).Warn("CommandQueue full, dropped command")
		}
		if q.OnDrop != nil {
			q.OnDrop(msg)
		}
		return false
	}
}

// Submit enqueues a command and waits for its reply
func (q *CommandQueue) Submit(ctx context.Context, msg InboundMessage) (Reply, error) {
	if !q.running.Load() {
		return Reply{}, ErrQueueStopped
	}

	done := make(chan Reply, 1)
	if !q.Enqueue(msg, func(r Reply) { done <- r }) {
		return Reply{}, ErrQueueFull
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-q.stopChan:
		return Reply{}, ErrQueueStopped
	}
}

// worker processes commands from one shard
func (q *CommandQueue) worker(shard chan job) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case j := <-shard:
			waitTime := time.Since(j.msg.ReceivedAt)
			q.updateAvgWaitTime(waitTime)

			// Warn if commands are waiting too long
			if waitTime > 100*time.Millisecond {
				q.log.WithFields(logrus.Fields{
					"identity": j.msg.Identity,
					"waitMs":   float64(waitTime.Microseconds()) / 1000,
				}).Warn("Command waited in queue")
			}

			r := q.processor.Process(j.msg)
			q.processed.Add(1)

			if j.reply != nil {
				j.reply(r)
			}
		}
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1 (smooth over ~10 samples)
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	pending, capacity := 0, 0
	for _, s := range q.shards {
		pending += len(s)
		capacity += cap(s)
	}

	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(pending),
		BufferSize:     uint64(capacity),
		Workers:        len(q.shards),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(pending) / float64(capacity) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	Workers        int     `json:"workers"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
