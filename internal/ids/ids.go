// Package ids provides the time-ordered identifiers used to correlate a
// request across the hot path, logs, and audit records.
//
// Both RequestId and SessionId are UUIDv7 values: 128 bits, monotonic enough
// to sort chronologically, and cheap to copy (16 bytes). Neither type can be
// constructed with an invalid value — the zero value is never handed out by
// the New* constructors, and Parse rejects anything that isn't a
// syntactically valid UUID.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestId identifies one proxied request for its entire lifetime: minted
// (or preserved) by the request-id middleware, echoed in the x-request-id
// response header, and attached to every audit record the request produces.
type RequestId struct {
	value uuid.UUID
}

// NewRequestId mints a fresh time-ordered RequestId.
func NewRequestId() RequestId {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the OS random source is broken. The
		// fallback is a random v4 id from uuid.New, which reads the same
		// source and panics if it is still unavailable.
		id = uuid.New()
	}
	return RequestId{value: id}
}

// ParseRequestId validates a v7-or-otherwise well-formed UUID string, such as
// one preserved from an incoming x-request-id header. Any input that is not
// a syntactically valid UUID is rejected.
func ParseRequestId(s string) (RequestId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RequestId{}, fmt.Errorf("ids: invalid request id %q: %w", s, err)
	}
	return RequestId{value: id}, nil
}

// String returns the canonical hyphenated representation.
func (r RequestId) String() string {
	return r.value.String()
}

// IsZero reports whether r is the unconstructed zero value.
func (r RequestId) IsZero() bool {
	return r.value == uuid.Nil
}

// SessionId groups audit records an external consumer chooses to associate;
// it shares RequestId's shape but not its namespace.
type SessionId struct {
	value uuid.UUID
}

// NewSessionId mints a fresh time-ordered SessionId.
func NewSessionId() SessionId {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return SessionId{value: id}
}

// String returns the canonical hyphenated representation.
func (s SessionId) String() string {
	return s.value.String()
}
