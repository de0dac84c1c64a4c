// Package audit implements the asynchronous half of the dual-path design
// (§4.5): the AuditRecord tagged union emitted at hot-path phase
// boundaries, the worker that drains the ring buffer and dispatches to an
// EventStore collaborator, and a chunk reassembler for consumers that want
// a complete body rather than a stream of offset-tagged fragments.
package audit

import (
	"encoding/json"
	"time"

	"github.com/unionsquare/unionsquare/internal/apierror"
	"github.com/unionsquare/unionsquare/internal/ids"
)

// Kind tags which variant of the AuditRecord union a record holds (§3).
type Kind string

const (
	KindRequestReceived  Kind = "RequestReceived"
	KindRequestForwarded Kind = "RequestForwarded"
	KindResponseReceived Kind = "ResponseReceived"
	KindRequestChunk     Kind = "RequestChunk"
	KindResponseChunk    Kind = "ResponseChunk"
	KindError            Kind = "Error"
)

// ProviderMetadata is attached out-of-band to a ResponseReceived record
// once the provider adapter's (audit-side) body extraction completes (§4.4
// process_response_body). Extracted from response bodies by
// model-family-specific adapters.
type ProviderMetadata struct {
	ProviderId        string  `json:"provider_id"`
	ModelId           string  `json:"model_id,omitempty"`
	RequestTokens     int     `json:"request_tokens,omitempty"`
	ResponseTokens    int     `json:"response_tokens,omitempty"`
	TotalTokens       int     `json:"total_tokens,omitempty"`
	CostEstimateUsd   float64 `json:"cost_estimate_usd,omitempty"`
	ProviderRequestId string  `json:"provider_request_id,omitempty"`
}

// Record is the tagged-union AuditRecord from §3. Only the fields relevant
// to Kind are populated; the audit consumer tolerates a record stream that
// is a truncated prefix of the canonical ordering
// (RequestReceived -> RequestForwarded -> chunks -> ResponseReceived -> Error?),
// since hot-path preemption or a ring-buffer overwrite can drop any suffix.
type Record struct {
	Kind      Kind          `json:"kind"`
	RequestId string        `json:"request_id"`
	Timestamp time.Time     `json:"timestamp"`

	// RequestReceived
	Method   string `json:"method,omitempty"`
	Uri      string `json:"uri,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	BodySize int64  `json:"body_size,omitempty"`

	// RequestForwarded
	TargetUrl string    `json:"target_url,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`

	// ResponseReceived. ResponseBody carries the raw response bytes only
	// until the audit worker's BodyProcessor has consumed them (§4.4:
	// process_response_body runs audit-side, never on the hot path). When
	// a BodyProcessor is set, the worker clears it before the record
	// reaches the EventStore or a tail subscriber; without one, the record
	// is passed on with ResponseBody still populated.
	Status       int               `json:"status,omitempty"`
	DurationMs   float64           `json:"duration_ms,omitempty"`
	Metadata     *ProviderMetadata `json:"metadata,omitempty"`
	ResponseBody []byte            `json:"response_body,omitempty"`

	// RequestChunk / ResponseChunk
	Offset int64  `json:"offset,omitempty"`
	Bytes  []byte `json:"bytes,omitempty"`

	// Error
	Phase   apierror.Phase `json:"phase,omitempty"`
	Message string         `json:"message,omitempty"`
}

// NewRequestReceived constructs a RequestReceived record.
func NewRequestReceived(requestId ids.RequestId, method, uri string, headers map[string]string, bodySize int64) Record {
	return Record{
		Kind: KindRequestReceived, RequestId: requestId.String(), Timestamp: now(),
		Method: method, Uri: uri, Headers: headers, BodySize: bodySize,
	}
}

// NewRequestForwarded constructs a RequestForwarded record.
func NewRequestForwarded(requestId ids.RequestId, targetUrl string, startTime time.Time) Record {
	return Record{
		Kind: KindRequestForwarded, RequestId: requestId.String(), Timestamp: now(),
		TargetUrl: targetUrl, StartTime: startTime,
	}
}

// NewResponseReceived constructs a ResponseReceived record.
func NewResponseReceived(requestId ids.RequestId, status int, headers map[string]string, bodySize int64, durationMs float64) Record {
	return Record{
		Kind: KindResponseReceived, RequestId: requestId.String(), Timestamp: now(),
		Status: status, Headers: headers, BodySize: bodySize, DurationMs: durationMs,
	}
}

// NewErrorRecord constructs an Error record.
func NewErrorRecord(requestId ids.RequestId, phase apierror.Phase, message string) Record {
	return Record{
		Kind: KindError, RequestId: requestId.String(), Timestamp: now(),
		Phase: phase, Message: message,
	}
}

// NewChunk constructs a RequestChunk or ResponseChunk record, depending on
// kind, carrying the byte offset this fragment starts at.
func NewChunk(kind Kind, requestId ids.RequestId, offset int64, data []byte) Record {
	return Record{
		Kind: kind, RequestId: requestId.String(), Timestamp: now(),
		Offset: offset, Bytes: append([]byte(nil), data...),
	}
}

// Marshal serializes r for storage in a ring-buffer slot.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record previously produced by Marshal. The
// audit worker tolerates malformed payloads here by logging and
// continuing — a record was valid at write time, so a decode failure
// implies a memory or encoding bug downstream, not a client error (§4.5).
func Unmarshal(data []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(data, &r)
	return r, err
}

// now exists only so tests can observe a single call site; production code
// always uses time.Now().
var now = time.Now
