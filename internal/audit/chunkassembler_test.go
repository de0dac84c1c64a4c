package audit

import (
	"bytes"
	"testing"

	"github.com/unionsquare/unionsquare/internal/ids"
)

func TestChunkAssemblerReassemblesInOrderChunks(t *testing.T) {
	a := NewChunkAssembler()
	id := ids.NewRequestId()

	if _, _, complete := a.Add(NewChunk(KindRequestChunk, id, 0, []byte("hello "))); complete {
		t.Fatal("expected first chunk alone to be incomplete")
	}
	body, reqId, complete := a.Add(NewChunk(KindRequestChunk, id, 6, []byte("world")))
	if !complete {
		t.Fatal("expected assembler to report completion once all bytes arrive")
	}
	if reqId != id.String() {
		t.Errorf("got request id %q, want %q", reqId, id.String())
	}
	if !bytes.Equal(body, []byte("hello world")) {
		t.Errorf("got body %q, want %q", body, "hello world")
	}
}

func TestChunkAssemblerReassemblesOutOfOrderChunks(t *testing.T) {
	a := NewChunkAssembler()
	id := ids.NewRequestId()

	a.Add(NewChunk(KindResponseChunk, id, 6, []byte("world")))
	body, _, complete := a.Add(NewChunk(KindResponseChunk, id, 0, []byte("hello ")))

	if !complete {
		t.Fatal("expected out-of-order chunks to still reassemble once all arrive")
	}
	if !bytes.Equal(body, []byte("hello world")) {
		t.Errorf("got body %q, want %q", body, "hello world")
	}
}

func TestChunkAssemblerDetectsGap(t *testing.T) {
	a := NewChunkAssembler()
	id := ids.NewRequestId()

	a.Add(NewChunk(KindRequestChunk, id, 0, []byte("hello ")))
	// Chunk covering [12, 17) leaves a gap at [6, 12) — never complete.
	_, _, complete := a.Add(NewChunk(KindRequestChunk, id, 12, []byte("there")))
	if complete {
		t.Fatal("expected a gapped chunk sequence to never report complete")
	}
}

func TestChunkAssemblerIgnoresNonChunkRecords(t *testing.T) {
	a := NewChunkAssembler()
	id := ids.NewRequestId()

	_, reqId, complete := a.Add(NewRequestReceived(id, "POST", "/bedrock/model/x/invoke", nil, 0))
	if complete || reqId != "" {
		t.Error("expected a non-chunk record to be ignored entirely")
	}
}

func TestChunkAssemblerKeepsRequestAndResponseBodiesSeparate(t *testing.T) {
	a := NewChunkAssembler()
	id := ids.NewRequestId()

	a.Add(NewChunk(KindRequestChunk, id, 3, []byte("uest")))
	if _, _, complete := a.Add(NewChunk(KindResponseChunk, id, 0, []byte("resp"))); !complete {
		t.Fatal("expected the single-chunk response body to complete immediately")
	}

	// Each table is keyed independently, so adding a request chunk after a
	// response chunk for the same request id must not cross-contaminate.
	body, _, complete := a.Add(NewChunk(KindRequestChunk, id, 0, []byte("req")))
	if !complete {
		t.Fatal("expected the request body to complete independently of the response body")
	}
	if !bytes.Equal(body, []byte("request")) {
		t.Errorf("got body %q, want %q", body, "request")
	}
}
