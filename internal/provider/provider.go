// Package provider defines the adapter contract and registry from §4.4:
// pluggable components that each handle one upstream LLM API's URL shape,
// authentication pass-through, and metadata extraction.
package provider

import (
	"context"
	"net/http"

	"github.com/unionsquare/unionsquare/internal/audit"
	"github.com/unionsquare/unionsquare/internal/values"
)

// Adapter is the per-provider contract (§4.4 "Adapter contract").
type Adapter interface {
	// ID returns the provider's identifier, e.g. "bedrock".
	ID() string

	// MatchesPath reports whether this adapter handles the given request
	// path. The registry tries adapters in order and routes to the first
	// match.
	MatchesPath(path string) bool

	// TransformURL strips the provider's path prefix and prepends its base
	// URL (e.g. a region-qualified Bedrock endpoint), yielding the final
	// TargetUrl to forward to.
	TransformURL(incoming *http.Request) (values.TargetUrl, error)

	// ValidateAuth checks that any provider-specific auth the upstream
	// requires is present and is to be preserved verbatim — the proxy
	// never re-signs a request on a provider's behalf (AWS SigV4 for
	// Bedrock, for example).
	ValidateAuth(headers http.Header) error

	// ExtractMetadata performs the cheap, synchronous extraction from
	// headers and path (e.g. model id from the URL, provider request id
	// from a response header). Runs on the hot path; must not touch the
	// body.
	ExtractMetadata(req *http.Request, resp *http.Response) audit.ProviderMetadata

	// ProcessResponseBody performs body-derived extraction (token counts,
	// cost estimate) given the already-collected response body and the
	// metadata ExtractMetadata produced. Runs on the audit side only,
	// never on the hot path.
	ProcessResponseBody(ctx context.Context, body []byte, base audit.ProviderMetadata) audit.ProviderMetadata
}

// Registry is an ordered collection of provider adapters (§4.4
// "Registry").
type Registry struct {
	adapters []Adapter
}

// NewRegistry constructs a Registry over adapters, tried in the given
// order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Route returns the first adapter whose MatchesPath predicate returns
// true for path, or ok=false if none matches — the caller then falls back
// to header-based routing via x-target-url (§4.4).
func (r *Registry) Route(path string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.MatchesPath(path) {
			return a, true
		}
	}
	return nil, false
}

// ByID returns the adapter registered under id (Adapter.ID()), or
// ok=false if none matches.
func (r *Registry) ByID(id string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// ProcessResponseBody implements audit.BodyProcessor: it looks up the
// adapter that produced providerID on the hot path and delegates the
// body-derived extraction to it, so process_response_body (§4.4) runs
// from the audit worker's goroutine, never the hot path's.
func (r *Registry) ProcessResponseBody(ctx context.Context, providerID string, body []byte, base audit.ProviderMetadata) (audit.ProviderMetadata, bool) {
	adapter, ok := r.ByID(providerID)
	if !ok {
		return audit.ProviderMetadata{}, false
	}
	return adapter.ProcessResponseBody(ctx, body, base), true
}
