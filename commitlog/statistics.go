package commitlog

type Statistics struct {
	BlockCount     uint64
	LastBlockFill  uint64
	StoredBytes    uint64
	AllocatedBytes uint64
}

func (e *Log) GetStatistics() Statistics {
	stats := Statistics{
		BlockCount:     uint64(len(e.blocks)),
		StoredBytes:    e.Len(),
		AllocatedBytes: uint64(len(e.blocks)) * uint64(e.blockSize),
	}
	if last := e.activeBlock(); last != nil {
		stats.LastBlockFill = uint64(last.Written())
	}
	return stats
}
