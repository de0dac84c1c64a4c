package audit

import (
	"context"
	"time"

	"github.com/unionsquare/unionsquare/internal/logger"
	"github.com/unionsquare/unionsquare/internal/ringbuffer"
)

// pollInterval is the fixed sleep the worker takes between drain attempts
// when the ring buffer is empty (§4.5: "sleep for a short fixed interval
// (~10ms) and retry").
const pollInterval = 10 * time.Millisecond

// maxRetries bounds how many times the worker retries a transient EventStore
// failure before giving up on that record and moving on. Retrying forever
// would let a persistently failing store stall the drain loop indefinitely,
// which §4.5 explicitly forbids ("the worker MUST NOT stall unboundedly").
const maxRetries = 3

// retryBackoff is the base delay between retries; it doubles each attempt.
const retryBackoff = 20 * time.Millisecond

// Tailer receives a copy of every record the worker successfully decodes,
// in addition to the EventStore write, so an operator-facing live view
// (internal/audittail) can rebroadcast it without the worker knowing
// anything about websockets.
type Tailer interface {
	Broadcast(message []byte)
}

// BodyProcessor performs the audit-side, body-derived metadata extraction
// that §4.4 reserves for after the hot path has already returned the
// response to the client (token counts, cost estimate). providerID is the
// value the matched adapter's ExtractMetadata stamped into the record on
// the hot path; ok is false if no adapter is registered under it.
// internal/provider.Registry implements this by delegating to the adapter
// that matched.
type BodyProcessor interface {
	ProcessResponseBody(ctx context.Context, providerID string, body []byte, base ProviderMetadata) (ProviderMetadata, bool)
}

// Worker is the single consumer task that drains the ring buffer for the
// lifetime of the service (§4.5).
type Worker struct {
	buffer    *ringbuffer.RingBuffer
	store     EventStore
	tailer    Tailer
	processor BodyProcessor
	log       logger.ScopedLogger

	shutdown chan struct{}
	done     chan struct{}
}

// NewWorker constructs a Worker over buffer, dispatching decoded records to
// store.
func NewWorker(buffer *ringbuffer.RingBuffer, store EventStore) *Worker {
	return &Worker{
		buffer:   buffer,
		store:    store,
		log:      logger.Audit(),
		shutdown: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// SetTailer attaches a live-tail broadcaster. Optional; when unset, records
// are only written to the EventStore.
func (w *Worker) SetTailer(tailer Tailer) {
	w.tailer = tailer
}

// SetBodyProcessor attaches the provider-adapter lookup used to finish a
// ResponseReceived record's metadata after it has been popped off the ring
// buffer. Optional; when unset, ResponseReceived records are stored with
// only the hot path's cheap ExtractMetadata fields populated.
func (w *Worker) SetBodyProcessor(processor BodyProcessor) {
	w.processor = processor
}

// Run drains the ring buffer until Stop is called, then drains whatever
// remains before returning. Intended to be run in its own goroutine for the
// process lifetime.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.shutdown:
			w.drainRemaining(ctx)
			return
		default:
		}

		entry, ok := w.buffer.Read()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		w.dispatch(ctx, entry)
	}
}

// drainRemaining pops every entry still queued, without the poll sleep,
// before the worker exits — the shutdown contract from §4.5: "the worker
// drains the ring buffer until empty, then exits."
func (w *Worker) drainRemaining(ctx context.Context) {
	for {
		entry, ok := w.buffer.Read()
		if !ok {
			return
		}
		w.dispatch(ctx, entry)
	}
}

func (w *Worker) dispatch(ctx context.Context, entry ringbuffer.Entry) {
	record, err := Unmarshal(entry.Payload)
	if err != nil {
		// Malformed at read time implies a memory/encoding bug, not a
		// client error — it was valid when written (§4.5).
		w.log.Error().Err(err).Str("request_id", entry.RequestId.String()).Msg("discarding malformed audit record")
		return
	}

	payload := entry.Payload
	if record.Kind == KindResponseReceived && w.processor != nil && record.Metadata != nil && len(record.ResponseBody) > 0 {
		if meta, ok := w.processor.ProcessResponseBody(ctx, record.Metadata.ProviderId, record.ResponseBody, *record.Metadata); ok {
			record.Metadata = &meta
		}
		record.ResponseBody = nil
		if remarshaled, err := record.Marshal(); err == nil {
			payload = remarshaled
		}
	}

	if w.tailer != nil {
		w.tailer.Broadcast(payload)
	}

	backoff := retryBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = w.store.Put(ctx, record)
		if err == nil {
			return
		}
		if IsPermanent(err) {
			w.log.Error().Err(err).Str("request_id", record.RequestId).Msg("audit event store rejected record permanently")
			return
		}
		if attempt == maxRetries {
			w.log.Warn().Err(err).Str("request_id", record.RequestId).Msg("audit event store failed after retries, dropping record")
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// Stop signals the worker to finish draining and exit, and blocks until it
// has done so.
func (w *Worker) Stop() {
	select {
	case w.shutdown <- struct{}{}:
	default:
	}
	<-w.done
}
