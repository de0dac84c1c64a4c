package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/unionsquare/unionsquare/internal/audit"
	"github.com/unionsquare/unionsquare/internal/values"
)

type stubAdapter struct {
	id string
}

func (a *stubAdapter) ID() string                  { return a.id }
func (a *stubAdapter) MatchesPath(path string) bool { return false }
func (a *stubAdapter) TransformURL(*http.Request) (values.TargetUrl, error) {
	return values.TargetUrl{}, nil
}
func (a *stubAdapter) ValidateAuth(http.Header) error { return nil }
func (a *stubAdapter) ExtractMetadata(*http.Request, *http.Response) audit.ProviderMetadata {
	return audit.ProviderMetadata{ProviderId: a.id}
}
func (a *stubAdapter) ProcessResponseBody(_ context.Context, body []byte, base audit.ProviderMetadata) audit.ProviderMetadata {
	base.TotalTokens = len(body)
	return base
}

func TestRegistryByIDFindsRegisteredAdapter(t *testing.T) {
	r := NewRegistry(&stubAdapter{id: "bedrock"})
	if _, ok := r.ByID("bedrock"); !ok {
		t.Fatal("expected ByID to find the registered adapter")
	}
	if _, ok := r.ByID("unknown"); ok {
		t.Error("expected ByID to report ok=false for an unregistered id")
	}
}

func TestRegistryProcessResponseBodyDelegatesToMatchedAdapter(t *testing.T) {
	r := NewRegistry(&stubAdapter{id: "bedrock"})

	meta, ok := r.ProcessResponseBody(context.Background(), "bedrock", []byte("12345"), audit.ProviderMetadata{ProviderId: "bedrock"})
	if !ok {
		t.Fatal("expected ok=true for a registered provider id")
	}
	if meta.TotalTokens != 5 {
		t.Errorf("got total tokens %d, want 5", meta.TotalTokens)
	}
}

func TestRegistryProcessResponseBodyReportsUnknownProvider(t *testing.T) {
	r := NewRegistry(&stubAdapter{id: "bedrock"})

	_, ok := r.ProcessResponseBody(context.Background(), "unknown", []byte("x"), audit.ProviderMetadata{})
	if ok {
		t.Error("expected ok=false when no adapter matches providerID")
	}
}
