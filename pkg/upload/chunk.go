package upload

import (
	"time"
)

// Chunk describes one contiguous byte range of an upload. End is exclusive.
// TotalChunks is zero when the generator cannot know the count up front, as
// with the adaptive generator's last-chunk marker.
type Chunk struct {
	Index       int
	Start       int64
	End         int64
	TotalChunks int
	IsFirst     bool
	IsLast      bool
}

// Length returns the chunk's byte length
func (c Chunk) Length() int64 {
	return c.End - c.Start
}

// Generator emits the chunks of an upload lazily, in order, exactly once
type Generator interface {
	// Next returns the next chunk; ok is false once the sequence is done
	Next() (chunk Chunk, ok bool)
}

// fixedGenerator walks precomputed boundaries
type fixedGenerator struct {
	bounds []int64
	index  int
}

func (g *fixedGenerator) Next() (Chunk, bool) {
	if g.index >= len(g.bounds)-1 {
		return Chunk{}, false
	}
	c := Chunk{
		Index:       g.index,
		Start:       g.bounds[g.index],
		End:         g.bounds[g.index+1],
		TotalChunks: len(g.bounds) - 1,
		IsFirst:     g.index == 0,
		IsLast:      g.index == len(g.bounds)-2,
	}
	g.index++
	return c, true
}

// FixedSize splits total bytes into ceil(total/size) chunks of the given
// size, the last one short.
func FixedSize(total, size int64) Generator {
	if size <= 0 || total <= 0 {
		return &fixedGenerator{bounds: []int64{0, max64(total, 0)}}
	}
	bounds := []int64{0}
	for pos := size; pos < total; pos += size {
		bounds = append(bounds, pos)
	}
	bounds = append(bounds, total)
	return &fixedGenerator{bounds: bounds}
}

// FixedCount splits total bytes into count chunks of floor(total/count)
// bytes; the last chunk absorbs the remainder.
func FixedCount(total int64, count int) Generator {
	if count <= 0 {
		count = 1
	}
	size := total / int64(count)
	if size <= 0 {
		size = total
		count = 1
	}
	bounds := make([]int64, 0, count+1)
	for i := 0; i < count; i++ {
		bounds = append(bounds, int64(i)*size)
	}
	bounds = append(bounds, total)
	return &fixedGenerator{bounds: bounds}
}

const (
	adaptiveFirstChunk      = 200 * 1024
	adaptiveDefaultMaxChunk = 512 * 1024
	// adaptiveTuning matches the vendor's observed chunk growth; the units
	// are opaque
	adaptiveTuning = 5000
)

// AdaptiveGenerator sizes each chunk from the wall-clock time the previous
// chunk took to send, emulating the vendor's observed upload pattern. It
// measures time between emissions and is therefore not restartable.
type AdaptiveGenerator struct {
	total    int64
	maxChunk int64
	pos      int64
	index    int
	lastEmit time.Time
	lastLen  int64
	now      func() time.Time
}

// Adaptive creates an adaptive generator over total bytes. maxChunk <= 0
// selects the 512 KB default cap.
func Adaptive(total, maxChunk int64) *AdaptiveGenerator {
	if maxChunk <= 0 {
		maxChunk = adaptiveDefaultMaxChunk
	}
	return &AdaptiveGenerator{total: total, maxChunk: maxChunk, now: time.Now}
}

func (g *AdaptiveGenerator) Next() (Chunk, bool) {
	if g.pos >= g.total {
		return Chunk{}, false
	}

	var size int64
	if g.index == 0 {
		size = adaptiveFirstChunk
	} else {
		elapsed := g.now().Sub(g.lastEmit).Milliseconds()
		if elapsed < 1 {
			elapsed = 1
		}
		size = adaptiveTuning * g.lastLen / elapsed
		if size > g.maxChunk {
			size = g.maxChunk
		}
		if size < 1 {
			size = 1
		}
	}

	end := g.pos + size
	if end > g.total {
		end = g.total
	}

	c := Chunk{
		Index:   g.index,
		Start:   g.pos,
		End:     end,
		IsFirst: g.index == 0,
		IsLast:  end == g.total,
	}

	g.pos = end
	g.index++
	g.lastEmit = g.now()
	g.lastLen = c.Length()
	return c, true
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
