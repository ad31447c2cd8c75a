package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"powpow/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize        = 1024                   // Circular buffer size
	MaxEventsPerSec        = 2000                   // Global rate limit
	MaxEventsPerIdentity   = 50                     // Per-identity rate limit per second
	BatchFlushSize         = 64                     // Events per batch write
	BatchFlushInterval     = 100 * time.Millisecond // How often to flush
	IdentityLimiterCleanup = 5 * time.Minute        // Cleanup interval for identity limiters
)

// EventLog provides bounded, rate-limited event logging with backpressure.
// Events are appended to a ring buffer and flushed as JSON lines.
type EventLog struct {
	// Circular buffer, guarded by bufMu (many producers, one writer)
	bufMu     sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // next sequence to assign
	readHead  uint64 // next sequence to flush

	// Rate limiting for flood protection
	globalLimiter    *rate.Limiter
	identityLimiters sync.Map // map[string]*identityLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	// Stats for flood detection and monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// identityLimiterEntry tracks per-identity rate limiting
type identityLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer goroutine. An empty path keeps events in
// memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting.
// Returns false if the log is stopped or the event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if el == nil || !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-identity limit keeps one spammer from crowding out the log
	if event.Identity != "" {
		if !el.getIdentityLimiter(event.Identity).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.bufMu.Lock()
	el.writeHead++
	if el.writeHead-el.readHead > EventBufferSize {
		// Buffer full: overwrite the oldest pending event
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	event.Sequence = el.writeHead
	el.buffer[el.writeHead%EventBufferSize] = event
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, room, identity string, payload interface{}) bool {
	if el == nil {
		return false
	}
	return el.Emit(NewEvent(eventType, room, identity, payload))
}

// getIdentityLimiter returns/creates a per-identity rate limiter
func (el *EventLog) getIdentityLimiter(identity string) *rate.Limiter {
	now := time.Now().UnixNano()

	if v, ok := el.identityLimiters.Load(identity); ok {
		entry := v.(*identityLimiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	entry := &identityLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerIdentity, MaxEventsPerIdentity),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.identityLimiters.LoadOrStore(identity, entry)
	return actual.(*identityLimiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush of everything still pending
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale identity limiters to prevent memory leak
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(IdentityLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupIdentityLimiters()
		}
	}
}

func (el *EventLog) cleanupIdentityLimiters() {
	cutoff := time.Now().Add(-IdentityLimiterCleanup).UnixNano()
	el.identityLimiters.Range(func(key, value interface{}) bool {
		if value.(*identityLimiterEntry).lastUsed.Load() < cutoff {
			el.identityLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads pending events from the circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}

	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := el.file.Write(data); err != nil {
			logger.Component("eventlog").WithError(err).WithField("path", el.filePath).Warn("Event write failed")
			return
		}
	}
}

// GetStats returns metrics for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
