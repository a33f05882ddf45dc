// Package chunker groups segments into model-call sized units.
package chunker

import (
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/textutil"
)

// Limits bounds a translation batch.
type Limits struct {
	MaxChars    int
	MaxSegments int
}

const (
	defaultMaxChars    = 20000
	defaultMaxSegments = 10
)

// DefaultLimits returns the budget used for chapter translation.
func DefaultLimits() Limits {
	return Limits{MaxChars: defaultMaxChars, MaxSegments: defaultMaxSegments}
}

// ReviewChunkSize is the number of source/translation pairs per review call.
const ReviewChunkSize = 30

// Batches greedily packs ordered segments into batches. A batch is closed
// when the next segment would push it past either limit, except that a
// dialogue segment following a dialogue segment stays in the batch when only
// the count limit is hit. The character limit is never relaxed.
func Batches(segments []model.Segment, lim Limits) [][]model.Segment {
	if len(segments) == 0 {
		return nil
	}

	var (
		batches [][]model.Segment
		current []model.Segment
		chars   int
	)
	for _, seg := range segments {
		n := textutil.Len(seg.Text)
		overChars := chars+n > lim.MaxChars
		overCount := len(current) >= lim.MaxSegments

		if len(current) > 0 && (overChars || overCount) {
			keepExchange := seg.Type == model.Dialogue &&
				current[len(current)-1].Type == model.Dialogue &&
				!overChars
			if !keepExchange {
				batches = append(batches, current)
				current = nil
				chars = 0
			}
		}
		current = append(current, seg)
		chars += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Split cuts items into consecutive chunks of at most size elements.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
