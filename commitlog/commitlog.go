package commitlog

import (
	"io"
)

const DefaultBlockSize = 1024

// Log is an append-only byte store made of fixed-size blocks. Growing the log
// allocates new blocks and never moves committed bytes, so chunks returned by
// ReadChunk stay valid while the log keeps growing.
//
// Log does not synchronize itself: a single writer may append while readers
// call ReadChunk, provided all calls are serialized by the owner.
type Log struct {
	blockSize int
	blocks    []*block
}

func New(blockSize int) *Log {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Log{blockSize: blockSize}
}

func (e *Log) BlockSize() int {
	return e.blockSize
}

func (e *Log) activeBlock() *block {
	if len(e.blocks) == 0 {
		return nil
	}
	return e.blocks[len(e.blocks)-1]
}

// Len returns the number of committed bytes.
func (e *Log) Len() uint64 {
	last := e.activeBlock()
	if last == nil {
		return 0
	}
	return uint64(len(e.blocks)-1)*uint64(e.blockSize) + uint64(last.Written())
}

// Append fills the free space of the last block, then allocates as many
// blocks as needed for the rest of p.
func (e *Log) Append(p []byte) {
	if last := e.activeBlock(); last != nil && last.Free() > 0 {
		p = p[last.Write(p):]
	}
	for len(p) > 0 {
		b := newBlock(e.blockSize)
		p = p[b.Write(p):]
		e.blocks = append(e.blocks, b)
	}
}

// ReadChunk returns the committed bytes starting at pos, up to the end of
// the containing block, and the position following them. It returns false
// when no byte is available at pos yet.
func (e *Log) ReadChunk(pos Position) (Position, []byte, bool) {
	if pos.Offset() >= e.Len() {
		return pos, nil, false
	}
	idx, off := pos.split(e.blockSize)
	chunk := e.blocks[idx].Slice(off)
	return pos.Advance(len(chunk)), chunk, true
}

// WriteTo writes the whole log to w, one block at a time.
func (e *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64
	var pos Position
	for {
		next, chunk, ok := e.ReadChunk(pos)
		if !ok {
			return total, nil
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		pos = next
	}
}
