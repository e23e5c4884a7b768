package commitlog

// Position is an offset in the logical byte stream of a Log. The zero value
// points at the beginning of the stream.
type Position struct {
	offset uint64
}

// Advance returns the position n bytes further in the stream.
func (p Position) Advance(n int) Position {
	return Position{offset: p.offset + uint64(n)}
}

// Offset returns the number of bytes preceding the position.
func (p Position) Offset() uint64 {
	return p.offset
}

func (p Position) split(blockSize int) (int, int) {
	size := uint64(blockSize)
	return int(p.offset / size), int(p.offset % size)
}
