package audit

import "sort"

// chunk is one offset-tagged fragment of a request or response body.
type chunk struct {
	offset int64
	data   []byte
}

// bufferedBody accumulates RequestChunk/ResponseChunk records for one
// request, in whatever order the audit worker happened to read them in —
// reordering across chunks of the same request can occur because the
// buffer interleaves records from many in-flight requests.
type bufferedBody struct {
	chunks    []chunk
	totalSize int64
}

// addChunk records one fragment.
func (b *bufferedBody) addChunk(offset int64, data []byte) {
	b.chunks = append(b.chunks, chunk{offset: offset, data: data})
	if end := offset + int64(len(data)); end > b.totalSize {
		b.totalSize = end
	}
}

// isComplete reports whether the accumulated chunks cover [0, totalSize)
// with no gaps, by sorting on offset and checking each fragment picks up
// exactly where the previous one left off.
func (b *bufferedBody) isComplete() bool {
	if len(b.chunks) == 0 {
		return b.totalSize == 0
	}
	sorted := append([]chunk(nil), b.chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })

	var want int64
	for _, c := range sorted {
		if c.offset != want {
			return false
		}
		want += int64(len(c.data))
	}
	return want == b.totalSize
}

// reconstruct returns the full body if isComplete, else nil, false.
func (b *bufferedBody) reconstruct() ([]byte, bool) {
	if !b.isComplete() {
		return nil, false
	}
	sorted := append([]chunk(nil), b.chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })

	out := make([]byte, 0, b.totalSize)
	for _, c := range sorted {
		out = append(out, c.data...)
	}
	return out, true
}

// ChunkAssembler reassembles RequestChunk/ResponseChunk audit records into
// complete bodies for downstream consumers that want one, rather than a
// stream of fragments. This is an audit-side convenience only — the hot
// path never waits on it, and a request whose chunks never fully arrive
// (buffer overwrite, dropped capture-channel entry) simply never completes
// here, which is an expected, tolerated outcome rather than an error.
type ChunkAssembler struct {
	requestBodies  map[string]*bufferedBody
	responseBodies map[string]*bufferedBody
}

// NewChunkAssembler constructs an empty assembler.
func NewChunkAssembler() *ChunkAssembler {
	return &ChunkAssembler{
		requestBodies:  make(map[string]*bufferedBody),
		responseBodies: make(map[string]*bufferedBody),
	}
}

// Add feeds one record into the assembler. Non-chunk records are ignored.
// It returns the reassembled body and true once all of a request's chunks
// have arrived gap-free; the assembler then forgets that request.
func (a *ChunkAssembler) Add(record Record) (body []byte, requestId string, complete bool) {
	var table map[string]*bufferedBody
	switch record.Kind {
	case KindRequestChunk:
		table = a.requestBodies
	case KindResponseChunk:
		table = a.responseBodies
	default:
		return nil, "", false
	}

	buf, ok := table[record.RequestId]
	if !ok {
		buf = &bufferedBody{}
		table[record.RequestId] = buf
	}
	buf.addChunk(record.Offset, record.Bytes)

	if reconstructed, done := buf.reconstruct(); done {
		delete(table, record.RequestId)
		return reconstructed, record.RequestId, true
	}
	return nil, record.RequestId, false
}
