package ids

import "testing"

func TestNewRequestIdIsNonZeroAndUnique(t *testing.T) {
	a := NewRequestId()
	b := NewRequestId()

	if a.IsZero() || b.IsZero() {
		t.Fatal("expected freshly minted request ids to be non-zero")
	}
	if a.String() == b.String() {
		t.Fatal("expected two freshly minted request ids to differ")
	}
}

func TestRequestIdZeroValueIsZero(t *testing.T) {
	var r RequestId
	if !r.IsZero() {
		t.Error("expected the zero value to report IsZero() true")
	}
}

func TestParseRequestIdRoundTrip(t *testing.T) {
	original := NewRequestId()

	parsed, err := ParseRequestId(original.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("got %q, want %q", parsed.String(), original.String())
	}
}

func TestParseRequestIdRejectsInvalidInput(t *testing.T) {
	cases := []string{"", "not-a-uuid", "12345", "x-request-id-header-value"}
	for _, c := range cases {
		if _, err := ParseRequestId(c); err == nil {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestNewSessionIdIsUnique(t *testing.T) {
	a := NewSessionId()
	b := NewSessionId()
	if a.String() == b.String() {
		t.Fatal("expected two freshly minted session ids to differ")
	}
}
