package commitlog

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(l *Log) []byte {
	out := []byte{}
	var pos Position
	for {
		next, chunk, ok := l.ReadChunk(pos)
		if !ok {
			return out
		}
		out = append(out, chunk...)
		pos = next
	}
}

func TestLog(t *testing.T) {
	t.Run("should append small values in a single block", func(t *testing.T) {
		l := New(1024)
		l.Append([]byte("Hello "))
		l.Append([]byte("world"))
		l.Append([]byte("!"))
		require.Equal(t, 1, len(l.blocks))
		require.Equal(t, 12, l.blocks[0].Written())
		require.Equal(t, []byte("Hello world!"), collect(l))
	})
	t.Run("should split huge values in full blocks", func(t *testing.T) {
		l := New(1024)
		l.Append(make([]byte, 4*1024+10))
		require.Equal(t, 5, len(l.blocks))
		require.Equal(t, 10, l.blocks[4].Written())
		require.Equal(t, uint64(4*1024+10), l.Len())
	})
	t.Run("should allow iterating while appending", func(t *testing.T) {
		l := New(1024)
		require.Equal(t, []byte{}, collect(l))
		l.Append([]byte("Hello"))
		require.Equal(t, []byte("Hello"), collect(l))
		l.Append([]byte(" world"))
		require.Equal(t, []byte("Hello world"), collect(l))
	})
	t.Run("should use the default block size", func(t *testing.T) {
		require.Equal(t, DefaultBlockSize, New(0).BlockSize())
		require.Equal(t, DefaultBlockSize, New(-3).BlockSize())
	})
}

func TestLog_ReadChunk(t *testing.T) {
	l := New(4)
	t.Run("should report no data on an empty log", func(t *testing.T) {
		pos, chunk, ok := l.ReadChunk(Position{})
		require.False(t, ok)
		require.Nil(t, chunk)
		require.Equal(t, uint64(0), pos.Offset())
	})
	l.Append([]byte("abcdefghij"))
	t.Run("should never cross a block boundary", func(t *testing.T) {
		next, chunk, ok := l.ReadChunk(Position{}.Advance(1))
		require.True(t, ok)
		require.Equal(t, []byte("bcd"), chunk)
		require.Equal(t, uint64(4), next.Offset())

		next, chunk, ok = l.ReadChunk(next)
		require.True(t, ok)
		require.Equal(t, []byte("efgh"), chunk)

		next, chunk, ok = l.ReadChunk(next)
		require.True(t, ok)
		require.Equal(t, []byte("ij"), chunk)
		require.Equal(t, uint64(10), next.Offset())

		_, _, ok = l.ReadChunk(next)
		require.False(t, ok)
	})
	t.Run("should report no data past the end", func(t *testing.T) {
		_, _, ok := l.ReadChunk(Position{}.Advance(42))
		require.False(t, ok)
	})
}

func TestLog_RoundTrip(t *testing.T) {
	for _, blockSize := range []int{1, 3, 7, 64, 1024} {
		t.Run(fmt.Sprintf("should restore appended values with %d bytes blocks", blockSize), func(t *testing.T) {
			r := rand.New(rand.NewSource(int64(blockSize)))
			l := New(blockSize)
			expected := []byte{}
			var total uint64
			for i := 0; i < 100; i++ {
				value := make([]byte, r.Intn(300))
				r.Read(value)
				l.Append(value)
				expected = append(expected, value...)
				total += uint64(len(value))
				require.Equal(t, total, l.Len())
			}
			require.Equal(t, expected, collect(l))
		})
	}
}

func TestLog_NoRetroactiveMutation(t *testing.T) {
	l := New(8)
	l.Append([]byte("abc"))
	_, chunk, ok := l.ReadChunk(Position{})
	require.True(t, ok)
	before := append([]byte{}, chunk...)

	l.Append([]byte("defghijklmnop"))
	require.Equal(t, before, chunk)

	t.Run("should not let callers write into the log", func(t *testing.T) {
		grown := append(chunk, 'X')
		require.Equal(t, []byte("abcX"), grown)
		require.Equal(t, []byte("abcdefghijklmnop"), collect(l))
	})
}

func TestLog_WriteTo(t *testing.T) {
	l := New(5)
	l.Append([]byte("the quick brown fox"))
	buf := bytes.NewBuffer(nil)
	n, err := l.WriteTo(buf)
	require.NoError(t, err)
	require.Equal(t, int64(19), n)
	require.Equal(t, "the quick brown fox", buf.String())
}

func TestLog_GetStatistics(t *testing.T) {
	l := New(10)
	require.Equal(t, Statistics{}, l.GetStatistics())
	l.Append(make([]byte, 25))
	require.Equal(t, Statistics{
		BlockCount:     3,
		LastBlockFill:  5,
		StoredBytes:    25,
		AllocatedBytes: 30,
	}, l.GetStatistics())
}

func BenchmarkLog(b *testing.B) {
	value := []byte("test")
	b.Run("append", func(b *testing.B) {
		l := New(DefaultBlockSize)
		for i := 0; i < b.N; i++ {
			l.Append(value)
		}
	})
	b.Run("read", func(b *testing.B) {
		l := New(DefaultBlockSize)
		l.Append(make([]byte, 1<<20))
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			collect(l)
		}
	})
}
