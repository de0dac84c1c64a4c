package audit

import (
	"testing"
	"time"

	"github.com/unionsquare/unionsquare/internal/apierror"
	"github.com/unionsquare/unionsquare/internal/ids"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	id := ids.NewRequestId()
	original := NewResponseReceived(id, 200, map[string]string{"content-type": "application/json"}, 128, 12.5)
	original.Metadata = &ProviderMetadata{ProviderId: "bedrock", ModelId: "anthropic.claude-3-sonnet-20240229", TotalTokens: 15}

	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Kind != KindResponseReceived {
		t.Errorf("got kind %q, want %q", got.Kind, KindResponseReceived)
	}
	if got.RequestId != id.String() {
		t.Errorf("got request id %q, want %q", got.RequestId, id.String())
	}
	if got.Status != 200 || got.BodySize != 128 || got.DurationMs != 12.5 {
		t.Errorf("got status=%d bodySize=%d durationMs=%v", got.Status, got.BodySize, got.DurationMs)
	}
	if got.Metadata == nil || got.Metadata.TotalTokens != 15 {
		t.Fatal("expected metadata to round-trip")
	}
}

func TestUnmarshalRejectsMalformedPayload(t *testing.T) {
	if _, err := Unmarshal([]byte("not json")); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestNewErrorRecordCarriesPhaseAndMessage(t *testing.T) {
	id := ids.NewRequestId()
	rec := NewErrorRecord(id, apierror.PhaseRequestForwarding, "connection reset")

	if rec.Kind != KindError {
		t.Errorf("got kind %q, want %q", rec.Kind, KindError)
	}
	if rec.Phase != apierror.PhaseRequestForwarding || rec.Message != "connection reset" {
		t.Errorf("got phase=%q message=%q", rec.Phase, rec.Message)
	}
}

func TestNewChunkCopiesDataDefensively(t *testing.T) {
	id := ids.NewRequestId()
	data := []byte("hello")
	rec := NewChunk(KindRequestChunk, id, 0, data)

	data[0] = 'X'
	if rec.Bytes[0] == 'X' {
		t.Error("expected NewChunk to copy its payload rather than alias the caller's slice")
	}
}

func TestNewRequestForwardedCarriesStartTime(t *testing.T) {
	id := ids.NewRequestId()
	start := time.Now().Add(-5 * time.Millisecond)
	rec := NewRequestForwarded(id, "https://bedrock-runtime.us-east-1.amazonaws.com/model/x/invoke", start)

	if rec.TargetUrl == "" || rec.StartTime.IsZero() {
		t.Error("expected target url and start time to be populated")
	}
}
