package game

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 10000                  // Global rate limit
	MaxEventsPerGame   = 200                    // Per-game rate limit per second
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
	GameLimiterCleanup = 5 * time.Minute        // Cleanup interval for game limiters
)

// EventLog is the session journal: a bounded, rate-limited buffer of engine
// events flushed to disk as newline-delimited JSON by an async writer.
// It implements Observer so engines can subscribe it directly.
type EventLog struct {
	// Circular buffer guarded by bufMu
	bufMu     sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64
	readHead  uint64

	// Rate limiting so one noisy game cannot starve the journal
	globalLimiter *rate.Limiter
	gameLimiters  sync.Map // map[string]*gameLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	writtenCount uint64 // atomic
}

// gameLimiterEntry tracks per-game rate limiting
type gameLimiterEntry struct {
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

// Start opens filePath for append and begins the writer goroutines. An empty
// path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open event log %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	logrus.WithField("path", filePath).Info("📜 Session journal started")
	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	if !el.running.Load() {
		return
	}
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			if err := el.file.Close(); err != nil {
				logrus.WithError(err).Warn("⚠️ Failed to close session journal")
			}
			el.file = nil
		}
		el.fileMu.Unlock()
	})
}

// OnEvent records ev, dropping it silently when rate limited
func (el *EventLog) OnEvent(ev Event) {
	el.Emit(ev)
}

// Emit adds an event with rate limiting.
// Returns false if the journal is stopped or the event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	if event.GameID != "" {
		if !el.gameLimiter(event.GameID).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.bufMu.Lock()
	el.writeHead++
	if el.writeHead-el.readHead > EventBufferSize {
		// buffer full: overwrite the oldest pending event
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	el.buffer[el.writeHead%EventBufferSize] = event
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// gameLimiter returns/creates a per-game rate limiter
func (el *EventLog) gameLimiter(gameID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.gameLimiters.Load(gameID); ok {
		e := entry.(*gameLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &gameLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerGame, MaxEventsPerGame/4),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.gameLimiters.LoadOrStore(gameID, entry)
	return actual.(*gameLimiterEntry).limiter
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
			// drain everything that is still pending
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

// cleanupLoop removes stale game limiters
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(GameLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupGameLimiters(time.Now().Add(-GameLimiterCleanup))
		}
	}
}

// cleanupGameLimiters removes limiters unused since cutoff
func (el *EventLog) cleanupGameLimiters(cutoff time.Time) int {
	removed := 0
	el.gameLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*gameLimiterEntry)
		if entry.lastUsed.Load() < cutoff.UnixNano() {
			el.gameLimiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// collectBatch moves up to BatchFlushSize pending events into batch
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
		if _, err := el.file.Write(append(data, '\n')); err != nil {
			logrus.WithError(err).Warn("⚠️ Session journal write failed")
			return
		}
		atomic.AddUint64(&el.writtenCount, 1)
	}
}

// GetStats returns journal counters for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"written": atomic.LoadUint64(&el.writtenCount),
		"pending": pending,
		"running": el.running.Load(),
		"path":    el.filePath,
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
