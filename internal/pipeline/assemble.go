package pipeline

import (
	"sort"
	"strings"

	"github.com/oukeidos/fictra/internal/model"
)

// Assemble joins translated segments into continuous prose in segment
// order and maps every segment to its byte range in the result. Segments
// whose source paragraph followed a blank line are separated by "\n\n",
// all others by "\n". When a segment id appears more than once the last
// entry wins. Assemble is pure: equal inputs give byte-identical output.
func Assemble(segments []model.Segment, translated []model.TranslatedSegment) (string, []model.SegmentMapEntry) {
	byOrder := make(map[int]model.Segment, len(segments))
	for _, s := range segments {
		byOrder[s.Order] = s
	}

	latest := make(map[int]int, len(translated))
	for i, ts := range translated {
		latest[ts.SegmentID] = i
	}
	sorted := make([]model.TranslatedSegment, 0, len(latest))
	for i, ts := range translated {
		if latest[ts.SegmentID] == i {
			sorted = append(sorted, ts)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SegmentID < sorted[j].SegmentID })

	var b strings.Builder
	entries := make([]model.SegmentMapEntry, 0, len(sorted))
	for i, ts := range sorted {
		src, known := byOrder[ts.SegmentID]
		if i > 0 {
			if known && src.HasPrecedingBreak {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		start := b.Len()
		b.WriteString(ts.TranslatedText)

		typ := ts.Type
		if typ == "" {
			typ = model.Narrative
		}
		entries = append(entries, model.SegmentMapEntry{
			SegmentID:       ts.SegmentID,
			SourceStart:     src.SourceStart,
			SourceEnd:       src.SourceEnd,
			TranslatedStart: start,
			TranslatedEnd:   b.Len(),
			Type:            typ,
			Speaker:         ts.Speaker,
			BatchID:         ts.BatchOrder,
		})
	}
	return b.String(), entries
}
