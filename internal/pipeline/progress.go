package pipeline

import (
	"fmt"

	"github.com/oukeidos/fictra/internal/logger"
)

// Stage names reported to progress listeners.
const (
	StageLoadContext         = "load_context"
	StageSegmentation        = "segmentation"
	StageCharacterExtraction = "character_extraction"
	StageValidation          = "validation"
	StageTranslation         = "translation"
	StageReview              = "review"
	StagePersonaLearning     = "persona_learning"
	StageFinalize            = "finalize"
)

// Stages lists the progress stages in pipeline order.
var Stages = []string{
	StageLoadContext,
	StageSegmentation,
	StageCharacterExtraction,
	StageValidation,
	StageTranslation,
	StageReview,
	StagePersonaLearning,
	StageFinalize,
}

var nodeStages = map[Node]string{
	NodeLoadContext:       StageLoadContext,
	NodeSegment:           StageSegmentation,
	NodeExtractCharacters: StageCharacterExtraction,
	NodeValidate:          StageValidation,
	NodeTranslate:         StageTranslation,
	NodeReview:            StageReview,
	NodeLearnPersonas:     StagePersonaLearning,
	NodeFinalize:          StageFinalize,
}

// Overall returns the fraction of the pipeline complete once stage
// finishes, or 0 for an unknown stage.
func Overall(stage string) float64 {
	for i, s := range Stages {
		if s == stage {
			return float64(i+1) / float64(len(Stages))
		}
	}
	return 0
}

// OverallAt spreads a stage's own fraction across that stage's share of
// the whole run.
func OverallAt(stage string, fraction float64) float64 {
	done := Overall(stage) - (1-fraction)/float64(len(Stages))
	if done < 0 {
		return 0
	}
	return done
}

// ProgressFunc receives the stage name, the fraction of that stage done
// and a human-readable message.
type ProgressFunc func(stage string, fraction float64, message string) error

type notifier struct {
	fn ProgressFunc
}

// notify calls the listener. Listener errors and panics never reach the
// run.
func (n notifier) notify(stage string, fraction float64, format string, args ...any) {
	if n.fn == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Progress callback panicked", "stage", stage, "panic", r)
		}
	}()
	if err := n.fn(stage, fraction, msg); err != nil {
		logger.Debug("Progress callback failed", "stage", stage, "error", err)
	}
}
