package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"

	"github.com/dshills/vecindex/pkg/types"
)

const (
	// DefaultChunkSize means "whole file as one chunk".
	DefaultChunkSize = -1

	// DefaultOverlapRatio is the fraction of a window repeated in the next one.
	DefaultOverlapRatio = 0.2
)

// ErrInvalidOverlap is returned by Validate for a ratio outside [0, 1).
var ErrInvalidOverlap = errors.New("overlap ratio must be in [0, 1)")

// Validate checks chunking parameters before a run starts.
func Validate(chunkSize int, overlapRatio float64) error {
	if math.IsNaN(overlapRatio) || overlapRatio < 0 || overlapRatio >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidOverlap, overlapRatio)
	}
	return nil
}

// Chunk splits text into windows of chunkSize runes overlapping by
// floor(chunkSize*overlapRatio). A chunkSize <= 0 yields the whole text as
// a single chunk. Trailing windows are clamped to the end of the text.
//
// The sequence may be ranged over more than once.
func Chunk(text string, chunkSize int, overlapRatio float64) iter.Seq[types.TextChunk] {
	runes := []rune(text)

	if chunkSize <= 0 {
		return func(yield func(types.TextChunk) bool) {
			yield(types.TextChunk{Index: 0, Start: 0, End: len(runes), Text: text})
		}
	}

	step := chunkSize - overlap(chunkSize, overlapRatio)

	return func(yield func(types.TextChunk) bool) {
		idx := 0
		for start := 0; start < len(runes); start += step {
			end := min(start+chunkSize, len(runes))
			c := types.TextChunk{
				Index: idx,
				Start: start,
				End:   end,
				Text:  string(runes[start:end]),
			}
			if !yield(c) {
				return
			}
			idx++
		}
	}
}

// overlap never lets the step drop below one rune.
func overlap(chunkSize int, ratio float64) int {
	if math.IsNaN(ratio) || ratio < 0 {
		return 0
	}
	o := int(math.Floor(float64(chunkSize) * ratio))
	return min(o, chunkSize-1)
}

// Collect materialises a chunk sequence.
func Collect(seq iter.Seq[types.TextChunk]) []types.TextChunk {
	var out []types.TextChunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

// ChunkID returns the stable document id for chunk index of path.
func ChunkID(path string, index int) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:32] + "-" + strconv.Itoa(index)
}
