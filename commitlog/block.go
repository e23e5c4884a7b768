package commitlog

// block is a fixed-capacity buffer. Bytes below written are committed and
// never change again.
type block struct {
	buf     []byte
	written int
}

func newBlock(size int) *block {
	return &block{buf: make([]byte, size)}
}

func (b *block) Free() int {
	return len(b.buf) - b.written
}

func (b *block) Written() int {
	return b.written
}

// Write copies as much of p as fits past the written counter.
func (b *block) Write(p []byte) int {
	n := copy(b.buf[b.written:], p)
	b.written += n
	return n
}

// Slice returns committed bytes starting at from. The capacity is clamped to
// the committed length so appending to the result allocates.
func (b *block) Slice(from int) []byte {
	return b.buf[from:b.written:b.written]
}
