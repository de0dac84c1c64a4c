// Package config loads ProxyConfig and AuthConfig (§3) from environment
// variables with an optional YAML overlay, validates the result, and
// fails fast: construction errors are fatal at startup (§7).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unionsquare/unionsquare/internal/auth"
	"github.com/unionsquare/unionsquare/internal/ringbuffer"
	"github.com/unionsquare/unionsquare/internal/validator"
	"github.com/unionsquare/unionsquare/internal/values"
)

var tokenHasher = auth.NewTokenHasher()

// RingBufferSettings mirrors ringbuffer.Config in raw (pre-validated) form
// for env/YAML decoding.
type RingBufferSettings struct {
	BufferSizeBytes int64 `yaml:"buffer_size_bytes" validate:"gt=0"`
	SlotSizeBytes   int64 `yaml:"slot_size_bytes" validate:"gt=0"`
}

// ProxyConfig is the immutable, shared-by-reference configuration for the
// forwarding engine (§3).
type ProxyConfig struct {
	BindAddr          string             `yaml:"bind_addr" validate:"required,bindaddr"`
	MaxRequestSize    int64              `yaml:"max_request_size" validate:"gt=0"`
	MaxResponseSize   int64              `yaml:"max_response_size" validate:"gt=0"`
	RequestTimeout    time.Duration      `yaml:"request_timeout" validate:"gt=0"`
	RingBuffer        RingBufferSettings `yaml:"ring_buffer"`
	BedrockRegion     string             `yaml:"bedrock_region" validate:"required"`
	BedrockEndpoint   string             `yaml:"bedrock_endpoint_override"`
	Debug             bool               `yaml:"debug"`
	RingBufferStatsEvery time.Duration   `yaml:"ring_buffer_stats_every"`
}

// RingBufferConfig converts the raw settings into the validated
// ringbuffer.Config the ring buffer constructor requires.
func (p ProxyConfig) RingBufferConfig() (ringbuffer.Config, error) {
	bufferSize, err := values.ParseSize(p.RingBuffer.BufferSizeBytes)
	if err != nil {
		return ringbuffer.Config{}, err
	}
	slotSize, err := values.ParseSize(p.RingBuffer.SlotSizeBytes)
	if err != nil {
		return ringbuffer.Config{}, err
	}
	return ringbuffer.Config{BufferSize: bufferSize, SlotSize: slotSize}, nil
}

// AuthConfig is the immutable set of accepted bearer tokens and bypass
// paths (§3). Tokens are stored SHA-256-hashed: the hot-path comparison
// hashes the incoming token and compares against this set, never
// round-tripping the plaintext through a slow KDF (see DESIGN.md).
type AuthConfig struct {
	AcceptedTokenHashes map[string]struct{}
	BypassPaths         []values.BypassPath
	JWTSecret           []byte // optional; empty disables JWT bearer mode
}

// HashToken SHA-256-hashes a plaintext bearer token the same way
// AcceptedTokenHashes entries are produced, so a caller provisioning a new
// token computes a comparable hash. Delegates to auth.TokenHasher so there
// is exactly one implementation of the hot-path hash.
func HashToken(plainToken string) string {
	return tokenHasher.HashTokenSHA256(plainToken)
}

// Accepts reports whether plainToken's hash is in the accepted set.
func (a AuthConfig) Accepts(plainToken string) bool {
	_, ok := a.AcceptedTokenHashes[HashToken(plainToken)]
	return ok
}

// Bypasses reports whether path is covered by any configured bypass path.
func (a AuthConfig) Bypasses(path string) bool {
	for _, bp := range a.BypassPaths {
		if bp.Matches(path) {
			return true
		}
	}
	return false
}

// fileOverlay is the YAML shape an optional config file may supply,
// layered under the struct tags ProxyConfig/authSettings already carry.
type fileOverlay struct {
	Proxy ProxyConfig   `yaml:"proxy"`
	Auth  authSettings  `yaml:"auth"`
}

type authSettings struct {
	AcceptedTokens []string `yaml:"accepted_tokens"`
	BypassPaths    []string `yaml:"bypass_paths"`
	JWTSecret      string   `yaml:"jwt_secret"`
}

// Load builds ProxyConfig and AuthConfig from defaults, then an optional
// YAML file named in UNIONSQUARE_CONFIG_FILE, then environment variables;
// a set environment variable wins over the same setting in the file.
// Any validation failure is returned, not panicked on — the caller (main)
// is responsible for treating it as fatal per §7's "configuration/
// construction errors are fatal at startup".
func Load() (ProxyConfig, AuthConfig, error) {
	proxy := defaultProxyConfig()
	auth := authSettings{
		BypassPaths: []string{"/health", "/metrics"},
	}

	if path := os.Getenv("UNIONSQUARE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ProxyConfig{}, AuthConfig{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var overlay fileOverlay
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return ProxyConfig{}, AuthConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		proxy = mergeProxy(proxy, overlay.Proxy)
		auth = mergeAuth(auth, overlay.Auth)
	}

	applyProxyEnv(&proxy)
	applyAuthEnv(&auth)

	if err := validator.ValidateStruct(proxy); err != nil {
		return ProxyConfig{}, AuthConfig{}, fmt.Errorf("config: invalid proxy config: %w", err)
	}

	authConfig, err := buildAuthConfig(auth)
	if err != nil {
		return ProxyConfig{}, AuthConfig{}, err
	}

	return proxy, authConfig, nil
}

func defaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		BindAddr:        ":8080",
		MaxRequestSize:  10 * 1024 * 1024,
		MaxResponseSize: 10 * 1024 * 1024,
		RequestTimeout:  30 * time.Second,
		RingBuffer: RingBufferSettings{
			BufferSizeBytes: 256 * 1024 * 1024,
			SlotSizeBytes:   128 * 1024,
		},
		BedrockRegion:        "us-east-1",
		RingBufferStatsEvery: time.Minute,
	}
}

// mergeProxy layers a non-zero overlay field over base.
func mergeProxy(base, overlay ProxyConfig) ProxyConfig {
	if overlay.BindAddr != "" {
		base.BindAddr = overlay.BindAddr
	}
	if overlay.MaxRequestSize > 0 {
		base.MaxRequestSize = overlay.MaxRequestSize
	}
	if overlay.MaxResponseSize > 0 {
		base.MaxResponseSize = overlay.MaxResponseSize
	}
	if overlay.RequestTimeout > 0 {
		base.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.RingBuffer.BufferSizeBytes > 0 {
		base.RingBuffer.BufferSizeBytes = overlay.RingBuffer.BufferSizeBytes
	}
	if overlay.RingBuffer.SlotSizeBytes > 0 {
		base.RingBuffer.SlotSizeBytes = overlay.RingBuffer.SlotSizeBytes
	}
	if overlay.BedrockRegion != "" {
		base.BedrockRegion = overlay.BedrockRegion
	}
	if overlay.BedrockEndpoint != "" {
		base.BedrockEndpoint = overlay.BedrockEndpoint
	}
	if overlay.Debug {
		base.Debug = true
	}
	if overlay.RingBufferStatsEvery > 0 {
		base.RingBufferStatsEvery = overlay.RingBufferStatsEvery
	}
	return base
}

func mergeAuth(base, overlay authSettings) authSettings {
	if len(overlay.AcceptedTokens) > 0 {
		base.AcceptedTokens = overlay.AcceptedTokens
	}
	if len(overlay.BypassPaths) > 0 {
		base.BypassPaths = overlay.BypassPaths
	}
	if overlay.JWTSecret != "" {
		base.JWTSecret = overlay.JWTSecret
	}
	return base
}

func applyProxyEnv(p *ProxyConfig) {
	if v := os.Getenv("UNIONSQUARE_BIND_ADDR"); v != "" {
		p.BindAddr = v
	}
	if v := getEnvInt64("UNIONSQUARE_MAX_REQUEST_SIZE"); v > 0 {
		p.MaxRequestSize = v
	}
	if v := getEnvInt64("UNIONSQUARE_MAX_RESPONSE_SIZE"); v > 0 {
		p.MaxResponseSize = v
	}
	if v := os.Getenv("UNIONSQUARE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			p.RequestTimeout = d
		}
	}
	if v := getEnvInt64("UNIONSQUARE_RING_BUFFER_SIZE"); v > 0 {
		p.RingBuffer.BufferSizeBytes = v
	}
	if v := getEnvInt64("UNIONSQUARE_RING_BUFFER_SLOT_SIZE"); v > 0 {
		p.RingBuffer.SlotSizeBytes = v
	}
	if v := os.Getenv("UNIONSQUARE_BEDROCK_REGION"); v != "" {
		p.BedrockRegion = v
	}
	if v := os.Getenv("BEDROCK_ENDPOINT_OVERRIDE"); v != "" {
		p.BedrockEndpoint = v
	}
	if v := os.Getenv("UNIONSQUARE_DEBUG"); v == "true" {
		p.Debug = true
	}
}

func applyAuthEnv(a *authSettings) {
	if v := os.Getenv("UNIONSQUARE_ACCEPTED_TOKENS"); v != "" {
		a.AcceptedTokens = strings.Split(v, ",")
	}
	if v := os.Getenv("UNIONSQUARE_BYPASS_PATHS"); v != "" {
		a.BypassPaths = strings.Split(v, ",")
	}
	if v := os.Getenv("UNIONSQUARE_JWT_SECRET"); v != "" {
		a.JWTSecret = v
	}
}

func getEnvInt64(key string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func buildAuthConfig(s authSettings) (AuthConfig, error) {
	hashes := make(map[string]struct{}, len(s.AcceptedTokens))
	for _, tok := range s.AcceptedTokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		hashes[HashToken(tok)] = struct{}{}
	}

	bypassPaths := make([]values.BypassPath, 0, len(s.BypassPaths))
	for _, raw := range s.BypassPaths {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		bp, err := values.ParseBypassPath(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("config: %w", err)
		}
		bypassPaths = append(bypassPaths, bp)
	}

	return AuthConfig{
		AcceptedTokenHashes: hashes,
		BypassPaths:         bypassPaths,
		JWTSecret:           []byte(s.JWTSecret),
	}, nil
}
