// Package ringbuffer implements the bounded, lock-free, many-producer/
// single-consumer queue that bridges the hot path and the audit worker
// (§4.2). Capacity is fixed at construction; once full, a write evicts the
// oldest unread entry rather than blocking or failing — the ring buffer is
// the proxy's sole backpressure-absorber, and it explicitly chooses loss
// over latency.
//
// The slot layout follows Dmitry Vyukov's bounded MPMC queue: each slot
// carries a sequence number that tells the consumer whether the slot holds
// a published entry or is still being written. A writer never waits for a
// slot: one load of the slot's sequence number lets it detect, without
// blocking, that it is about to overwrite an entry the consumer has not
// read yet.
package ringbuffer

import (
	"sync/atomic"
	"time"

	"github.com/unionsquare/unionsquare/internal/ids"
	"github.com/unionsquare/unionsquare/internal/values"
)

// Config is the (buffer_size, slot_size) pair from §3's RingBufferConfig.
// buffer_size must be > 0; slot_size bounds the per-record payload.
type Config struct {
	BufferSize values.Size
	SlotSize   values.Size
}

// Entry is one queued record: the request it belongs to, a monotonic
// nanosecond timestamp, and a payload truncated to at most SlotSize bytes.
type Entry struct {
	RequestId ids.RequestId
	Timestamp int64
	Payload   []byte
}

type slot struct {
	// seq publishes this slot's state to both producers and the consumer:
	// seq == index           -> free, ready to be claimed by a writer
	// seq == index + 1        -> holds a published, unread entry
	// anything else            -> mid-write, not yet visible
	seq   atomic.Uint64
	entry Entry
}

// RingBuffer is the concrete bounded MPSC queue. The zero value is not
// usable; construct with New.
type RingBuffer struct {
	mask  uint64
	slots []slot

	maxPayload int

	tail atomic.Uint64 // next ticket a producer will claim
	head atomic.Uint64 // next ticket the single consumer will read

	totalWrites atomic.Uint64
	totalReads  atomic.Uint64
	overwrites  atomic.Uint64
}

// New constructs a RingBuffer sized per the §4.2 capacity policy:
// slot_count = next_power_of_two(buffer_size / slot_size), floor 1.
func New(cfg Config) *RingBuffer {
	slotSize := cfg.SlotSize.Int64()
	if slotSize <= 0 {
		slotSize = 1
	}
	rawCount := uint64(cfg.BufferSize.Int64()) / uint64(slotSize)
	slotCount := values.NextPowerOfTwo(rawCount).Uint64()

	rb := &RingBuffer{
		mask:       slotCount - 1,
		slots:      make([]slot, slotCount),
		maxPayload: int(slotSize),
	}
	for i := range rb.slots {
		rb.slots[i].seq.Store(uint64(i))
	}
	return rb
}

// Write enqueues payload under requestId, truncating to the configured
// slot size if necessary. Write never blocks and never fails: it always
// stores the (possibly truncated) entry. If doing so evicted an unread
// entry, ok is false and overwriteCount is the buffer's running total of
// such evictions — the caller uses this only to record loss, never as a
// retry signal, per §4.2's "callers MUST NOT use write failure as
// backpressure to the hot path".
func (rb *RingBuffer) Write(requestId ids.RequestId, payload []byte) (ok bool, overwriteCount uint64) {
	if len(payload) > rb.maxPayload {
		payload = payload[:rb.maxPayload]
	}
	// Copy the payload: the caller's buffer may be reused or mutated after
	// Write returns.
	stored := make([]byte, len(payload))
	copy(stored, payload)

	ticket := rb.tail.Add(1) - 1
	s := &rb.slots[ticket&rb.mask]

	// A slot at capacity-behind sequence value means this index currently
	// holds an entry the consumer has not yet read: claiming it is an
	// overwrite. We detect this by comparing against the slot's sequence
	// before we overwrite it, not by consulting head directly, which keeps
	// the fast path to a single atomic load per write.
	prevSeq := s.seq.Load()
	wasOccupied := prevSeq == ticket-uint64(len(rb.slots))+1

	s.entry = Entry{RequestId: requestId, Timestamp: time.Now().UnixNano(), Payload: stored}
	s.seq.Store(ticket + 1)

	rb.totalWrites.Add(1)
	if wasOccupied {
		n := rb.overwrites.Add(1)
		return false, n
	}
	return true, rb.overwrites.Load()
}

// Read consumes and returns the oldest entry, or ok=false if the buffer is
// currently empty. Read is safe only from a single goroutine at a time
// (the consumer contract in §4.2: "many-producer/one-consumer").
func (rb *RingBuffer) Read() (entry Entry, ok bool) {
	ticket := rb.head.Load()
	tail := rb.tail.Load()
	if ticket >= tail {
		return Entry{}, false
	}

	// Producers may have overwritten entries older than ticket while we
	// weren't looking (§4.2: the buffer drops the oldest unread entry
	// rather than block). The oldest entry still actually present is
	// tail-capacity; if our watermark has fallen behind that, jump
	// forward to it so we read the true oldest surviving entry instead
	// of stalling on a sequence value no future write will reproduce.
	capacity := uint64(len(rb.slots))
	if tail > capacity {
		if oldestAvailable := tail - capacity; ticket < oldestAvailable {
			ticket = oldestAvailable
		}
	}

	s := &rb.slots[ticket&rb.mask]
	if s.seq.Load() != ticket+1 {
		// The producer holding this ticket has claimed it but not yet
		// published the entry; nothing new to read right now.
		return Entry{}, false
	}

	entry = s.entry
	rb.head.Store(ticket + 1)
	s.seq.Store(ticket + capacity)
	rb.totalReads.Add(1)
	return entry, true
}

// Stats is the relaxed-consistency counter snapshot from §4.2's stats().
type Stats struct {
	TotalWrites uint64
	TotalReads  uint64
	Overwrites  uint64
}

// Stats returns a point-in-time snapshot of the buffer's counters. Because
// the counters use relaxed ordering, concurrent writers/readers may cause
// momentary skew (§9's open question); callers should not treat this as a
// strict conservation law at every instant, only in the limit.
func (rb *RingBuffer) Stats() Stats {
	return Stats{
		TotalWrites: rb.totalWrites.Load(),
		TotalReads:  rb.totalReads.Load(),
		Overwrites:  rb.overwrites.Load(),
	}
}

// Capacity returns the number of slots (always a power of two).
func (rb *RingBuffer) Capacity() int {
	return len(rb.slots)
}
