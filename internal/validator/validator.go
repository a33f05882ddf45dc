// Package validator is the deterministic quality gate between
// segmentation and translation.
package validator

import (
	"fmt"
	"math"
	"strings"

	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/model"
	"github.com/oukeidos/fictra/internal/textutil"
)

const (
	MaxSegmentChars = 10000
	MinCoverage     = 0.80
)

type Result struct {
	Passed bool
	Errors []string
	// Attempts counts validation calls within the run, this one included.
	Attempts int
}

// Validate checks segments against source and collects every problem. It
// never short-circuits except when there are no segments at all.
// Overlapping offsets and dialogue without speakers are only logged.
func Validate(segments []model.Segment, source string, previousAttempts int) Result {
	res := Result{Attempts: previousAttempts + 1}
	if len(segments) == 0 {
		res.Errors = []string{"No segments produced"}
		return res
	}

	var errs []string
	for i, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			errs = append(errs, fmt.Sprintf("Segment %d is empty", i))
		}
	}
	for i, seg := range segments {
		if n := textutil.Len(seg.Text); n > MaxSegmentChars {
			errs = append(errs, fmt.Sprintf("Segment %d exceeds max length (%d > %d)", i, n, MaxSegmentChars))
		}
	}

	prevEnd := -1
	for i, seg := range segments {
		if seg.SourceStart < 0 || seg.SourceEnd < 0 {
			errs = append(errs, fmt.Sprintf("Segment %d has negative offset", i))
		}
		if seg.SourceEnd < seg.SourceStart {
			errs = append(errs, fmt.Sprintf("Segment %d end offset (%d) < start offset (%d)", i, seg.SourceEnd, seg.SourceStart))
		}
		if seg.SourceStart < prevEnd {
			logger.Warn("Segment overlaps with previous", "segment", i, "start", seg.SourceStart, "prev_end", prevEnd)
		}
		prevEnd = seg.SourceEnd
	}

	if coverage, ok := Coverage(segments, source); ok && coverage < MinCoverage {
		errs = append(errs, fmt.Sprintf("Low coverage: segments cover %d%% of source text (minimum %d%%)",
			percent(coverage), percent(MinCoverage)))
	}

	for i, seg := range segments {
		if !seg.Type.Valid() {
			errs = append(errs, fmt.Sprintf("Segment %d has invalid type '%s'", i, seg.Type))
		}
	}

	dialogue, attributed := 0, 0
	for _, seg := range segments {
		if seg.Type == model.Dialogue {
			dialogue++
			if seg.Speaker != "" {
				attributed++
			}
		}
	}
	if dialogue > 0 && attributed == 0 {
		logger.Warn("No speakers detected in dialogue segments", "dialogue_segments", dialogue)
	}

	res.Errors = errs
	res.Passed = len(errs) == 0
	return res
}

// Coverage is total segment length over trimmed source length. ok is false
// when the source is blank.
func Coverage(segments []model.Segment, source string) (float64, bool) {
	total := textutil.Len(strings.TrimSpace(source))
	if total == 0 {
		return 0, false
	}
	covered := 0
	for _, seg := range segments {
		covered += textutil.Len(seg.Text)
	}
	return float64(covered) / float64(total), true
}

func percent(f float64) int {
	return int(math.Round(f * 100))
}
