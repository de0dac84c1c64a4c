// Package bedrock implements the AWS Bedrock provider adapter — the MVP
// provider that demonstrates the registry pattern in §4.4. It never
// re-signs a request: the SigV4 Authorization and X-Amz-Date headers are
// required to be present, and they and the other x-amz-* headers a client
// already computed are forwarded verbatim.
package bedrock

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/unionsquare/unionsquare/internal/audit"
	"github.com/unionsquare/unionsquare/internal/values"
)

// pathPrefix is the route prefix this adapter claims.
const pathPrefix = "/bedrock/"

// modelPathSegment is the URL path segment that precedes the model id,
// e.g. "/bedrock/model/<model-id>/invoke".
const modelPathSegment = "model"

// Adapter is the Bedrock provider adapter.
type Adapter struct {
	baseURL string
}

// New constructs an Adapter targeting the Bedrock runtime endpoint for
// region, e.g. "https://bedrock-runtime.us-east-1.amazonaws.com".
func New(region string) *Adapter {
	return &Adapter{baseURL: fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)}
}

// NewWithBaseURL constructs an Adapter against a custom base URL, for
// tests and for BEDROCK_ENDPOINT_OVERRIDE deployments.
func NewWithBaseURL(baseURL string) *Adapter {
	return &Adapter{baseURL: strings.TrimRight(baseURL, "/")}
}

// ID returns "bedrock".
func (a *Adapter) ID() string { return "bedrock" }

// MatchesPath reports whether path is under the /bedrock/ prefix.
func (a *Adapter) MatchesPath(path string) bool {
	return strings.HasPrefix(path, pathPrefix)
}

// TransformURL strips the /bedrock prefix and prepends the region-qualified
// base URL.
func (a *Adapter) TransformURL(req *http.Request) (values.TargetUrl, error) {
	path := req.URL.Path
	rest := strings.TrimPrefix(path, "/bedrock")
	if rest == path {
		return values.TargetUrl{}, fmt.Errorf("bedrock: path %q missing /bedrock prefix", path)
	}
	target := a.baseURL + rest
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}
	return values.ParseTargetUrl(target)
}

// sigV4Headers lists the AWS SigV4 headers a signed request can carry.
// Nothing reads the list: ValidateAuth requires only Authorization and
// X-Amz-Date.
var sigV4Headers = []string{
	"Authorization",
	"X-Amz-Date",
	"X-Amz-Security-Token",
	"X-Amz-Content-Sha256",
	"X-Amz-Target",
}

// ValidateAuth checks that the minimum SigV4 headers a signed AWS request
// must carry are present: Authorization and X-Amz-Date. Anything else
// under the x-amz-* namespace is passed through by the hot path unchanged
// (it is not this method's job to copy headers, only to validate them).
func (a *Adapter) ValidateAuth(headers http.Header) error {
	if headers.Get("Authorization") == "" {
		return fmt.Errorf("bedrock: missing AWS SigV4 authorization header")
	}
	if headers.Get("X-Amz-Date") == "" {
		return fmt.Errorf("bedrock: missing x-amz-date header")
	}
	return nil
}

// modelIdFromPath extracts the model id from a path like
// "/bedrock/model/<model-id>/invoke": the segment following "model".
func modelIdFromPath(path string) (string, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == modelPathSegment && i+1 < len(segments) {
			return segments[i+1], true
		}
	}
	return "", false
}

// providerRequestIDHeaders are the response header names Bedrock uses for
// its own request id, checked case-insensitively (net/http.Header already
// canonicalizes this for us).
var providerRequestIDHeaders = []string{"X-Amzn-Requestid", "X-Amzn-Request-Id"}

// ExtractMetadata performs the cheap, synchronous extraction §4.4
// describes: model id from the URL path, provider request id from the
// response header. Token counts are extracted later, from the body, by
// ProcessResponseBody on the audit side.
func (a *Adapter) ExtractMetadata(req *http.Request, resp *http.Response) audit.ProviderMetadata {
	meta := audit.ProviderMetadata{ProviderId: a.ID()}

	if modelId, ok := modelIdFromPath(req.URL.Path); ok {
		meta.ModelId = modelId
	}

	if resp != nil {
		for _, h := range providerRequestIDHeaders {
			if v := resp.Header.Get(h); v != "" {
				meta.ProviderRequestId = v
				break
			}
		}
	}

	return meta
}

// ProcessResponseBody extracts token usage from the response body's
// model-family-specific JSON fields and estimates cost from the pricing
// table. Runs on the audit side only; the hot path never waits on this.
func (a *Adapter) ProcessResponseBody(_ context.Context, body []byte, base audit.ProviderMetadata) audit.ProviderMetadata {
	meta := base

	family := modelFamilyFromID(meta.ModelId)
	usage, ok := extractTokenUsage(family, body)
	if !ok {
		return meta
	}

	meta.RequestTokens = usage.InputTokens
	meta.ResponseTokens = usage.OutputTokens
	meta.TotalTokens = usage.InputTokens + usage.OutputTokens
	meta.CostEstimateUsd = estimateCost(family, usage)

	return meta
}
