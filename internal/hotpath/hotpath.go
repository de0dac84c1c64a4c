// Package hotpath implements the streaming proxy handler: the request-
// handling code path whose latency budget is the proxy's SLA (§4.4, §5).
// Every operation here is non-blocking and allocation-light; the only
// suspension points are reading the inbound body, awaiting the upstream
// response, and writing the outbound body (§5). Audit emission is always
// fire-and-forget — a ring-buffer write never blocks and its result never
// alters the response.
package hotpath

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/apierror"
	"github.com/unionsquare/unionsquare/internal/config"
	"github.com/unionsquare/unionsquare/internal/logger"
	"github.com/unionsquare/unionsquare/internal/middleware"
	"github.com/unionsquare/unionsquare/internal/provider"
	"github.com/unionsquare/unionsquare/internal/ringbuffer"
	"github.com/unionsquare/unionsquare/internal/values"
)

// Handler is the streaming proxy handler. It holds only read-only,
// shared-by-reference collaborators per §5's shared-resource model.
type Handler struct {
	cfg      config.ProxyConfig
	registry *provider.Registry
	buffer   *ringbuffer.RingBuffer
	client   *http.Client
	log      logger.ScopedLogger
}

// New constructs a Handler. client is the shared HTTP client (connection
// pool); buffer is the ring buffer audit records are written to.
func New(cfg config.ProxyConfig, registry *provider.Registry, buffer *ringbuffer.RingBuffer, client *http.Client) *Handler {
	return &Handler{cfg: cfg, registry: registry, buffer: buffer, client: client, log: logger.HotPath()}
}

// ServeHTTP implements the §4.4 hot-path sequence as a gin.HandlerFunc.
func (h *Handler) ServeHTTP(c *gin.Context) {
	requestID := middleware.GetRequestID(c) // step 1: RequestId already assigned by middleware

	targetURL, adapter, err := h.route(c.Request) // step 2: route + compute TargetUrl
	if err != nil {
		h.emitError(requestID, apierror.PhaseRequestParsing, err.Error())
		middleware.AbortWithError(c, apierror.New(apierror.CodeInvalidTargetUrl, err.Error()).WithPhase(apierror.PhaseRequestParsing))
		return
	}

	if adapter != nil {
		if err := adapter.ValidateAuth(c.Request.Header); err != nil {
			h.emitError(requestID, apierror.PhaseRequestParsing, err.Error())
			middleware.AbortWithError(c, apierror.New(apierror.CodeUnauthorized, err.Error()).WithPhase(apierror.PhaseRequestParsing))
			return
		}
	}

	reqBody, sizeErr := h.readBodyLimited(c.Request.Body) // step 4: collect body up to max_request_size
	if sizeErr != nil {
		h.emitError(requestID, apierror.PhaseRequestParsing, sizeErr.Error())
		middleware.AbortWithError(c, apierror.New(apierror.CodeRequestTooLarge, "request body exceeds maximum allowed size").WithPhase(apierror.PhaseRequestParsing))
		return
	}
	h.emitRequestReceived(requestID, c.Request, headerMap(c.Request.Header), int64(len(reqBody))) // step 3

	start := time.Now()
	h.emitRequestForwarded(requestID, targetURL.String(), start)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, c.Request.Method, targetURL.String(), newReader(reqBody))
	if err != nil {
		h.emitError(requestID, apierror.PhaseRequestForwarding, err.Error())
		middleware.AbortWithError(c, apierror.New(apierror.CodeInvalidTargetUrl, err.Error()).WithPhase(apierror.PhaseRequestForwarding))
		return
	}
	copyHeaders(upstreamReq.Header, c.Request.Header)

	resp, err := h.client.Do(upstreamReq) // step 5/6: issue upstream request
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.emitError(requestID, apierror.PhaseResponseReceiving, "upstream request timed out")
			middleware.AbortWithError(c, apierror.New(apierror.CodeRequestTimeout, "upstream did not respond within the configured timeout").WithPhase(apierror.PhaseResponseReceiving))
			return
		}
		h.emitError(requestID, apierror.PhaseResponseReceiving, err.Error())
		middleware.AbortWithError(c, apierror.New(apierror.CodeConnectionError, "failed to reach upstream").WithPhase(apierror.PhaseResponseReceiving))
		return
	}
	defer resp.Body.Close()

	respBody, err := h.readResponseLimited(resp.Body)
	if err != nil {
		h.emitError(requestID, apierror.PhaseResponseReceiving, err.Error())
		middleware.AbortWithError(c, apierror.New(apierror.CodeResponseTooLarge, "upstream response exceeds maximum allowed size").WithPhase(apierror.PhaseResponseReceiving))
		return
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	responseHeaders := headerMap(resp.Header)
	h.emitResponseReceived(requestID, adapter, c.Request, resp, respBody, responseHeaders, durationMs) // step 7

	for name, vals := range resp.Header {
		for _, v := range vals {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.StatusCode) // step 8
	c.Writer.Write(respBody)
}

// route performs step 2: registry-based provider routing, falling back to
// header-based routing via x-target-url, per §4.4.
func (h *Handler) route(req *http.Request) (values.TargetUrl, provider.Adapter, error) {
	if adapter, ok := h.registry.Route(req.URL.Path); ok {
		target, err := adapter.TransformURL(req)
		if err != nil {
			return values.TargetUrl{}, nil, err
		}
		return target, adapter, nil
	}

	// §8 invariant 9: provider routing takes precedence over x-target-url,
	// so this header is only consulted once no adapter matched.
	header := req.Header.Get("X-Target-Url")
	if header == "" {
		return values.TargetUrl{}, nil, errors.New("no provider matched and x-target-url header is absent")
	}
	base, err := values.ParseTargetUrl(header)
	if err != nil {
		return values.TargetUrl{}, nil, err
	}
	return ResolveURL(base, req.URL.Path, req.URL.RawQuery)
}

func (h *Handler) readBodyLimited(body io.ReadCloser) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	limited := io.LimitReader(body, h.cfg.MaxRequestSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.cfg.MaxRequestSize {
		return nil, errors.New("request body exceeds max_request_size")
	}
	return data, nil
}

func (h *Handler) readResponseLimited(body io.Reader) ([]byte, error) {
	limited := io.LimitReader(body, h.cfg.MaxResponseSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.cfg.MaxResponseSize {
		return nil, errors.New("response body exceeds max_response_size")
	}
	return data, nil
}

func newReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}
