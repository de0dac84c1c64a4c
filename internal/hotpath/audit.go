package hotpath

import (
	"net/http"
	"time"

	"github.com/unionsquare/unionsquare/internal/apierror"
	"github.com/unionsquare/unionsquare/internal/audit"
	"github.com/unionsquare/unionsquare/internal/ids"
	"github.com/unionsquare/unionsquare/internal/provider"
)

// write serializes record and fire-and-forgets it onto the ring buffer.
// A write failure (buffer full, oldest slot evicted) only increments the
// overwrite counter inside RingBuffer.Write and is never surfaced to the
// caller — per §4.2, audit writes must never become hot-path backpressure.
func (h *Handler) write(record audit.Record) {
	payload, err := record.Marshal()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode audit record")
		return
	}
	h.buffer.Write(idFromString(record.RequestId), payload)
}

func (h *Handler) emitRequestReceived(requestID ids.RequestId, req *http.Request, headers map[string]string, bodySize int64) {
	h.write(audit.NewRequestReceived(requestID, req.Method, req.URL.String(), headers, bodySize))
}

func (h *Handler) emitRequestForwarded(requestID ids.RequestId, targetURL string, start time.Time) {
	h.write(audit.NewRequestForwarded(requestID, targetURL, start))
}

func (h *Handler) emitResponseReceived(
	requestID ids.RequestId,
	adapter provider.Adapter,
	req *http.Request,
	resp *http.Response,
	body []byte,
	headers map[string]string,
	durationMs float64,
) {
	record := audit.NewResponseReceived(requestID, resp.StatusCode, headers, int64(len(body)), durationMs)

	if adapter != nil {
		// Only the cheap, header/path-derived extraction runs here. The
		// body-derived pass (token counts, cost estimate) is §4.4's
		// process_response_body, which must never block the hot path —
		// the worker runs it after popping this record off the ring
		// buffer (internal/audit.Worker.dispatch).
		meta := adapter.ExtractMetadata(req, resp)
		record.Metadata = &meta
		record.ResponseBody = append([]byte(nil), body...)
	}

	h.write(record)
}

func (h *Handler) emitError(requestID ids.RequestId, phase apierror.Phase, message string) {
	h.write(audit.NewErrorRecord(requestID, phase, message))
}

// idFromString re-parses a RequestId's string form. The ring buffer
// stores an ids.RequestId alongside the payload for fast lookups by
// producers that already have one in hand; since the record itself
// carries the canonical string form, a parse failure here is impossible
// in practice (the id was minted by ids.NewRequestId moments earlier) and
// falls back to a fresh id rather than panicking.
func idFromString(s string) ids.RequestId {
	id, err := ids.ParseRequestId(s)
	if err != nil {
		return ids.NewRequestId()
	}
	return id
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
