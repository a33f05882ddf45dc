package pipeline

// Node is a step of the translation state machine.
type Node string

const (
	NodeLoadContext       Node = "load_context"
	NodeSegment           Node = "segment"
	NodeExtractCharacters Node = "extract_characters"
	NodeValidate          Node = "validate"
	NodeTranslate         Node = "translate"
	NodeReview            Node = "review"
	NodeLearnPersonas     Node = "learn_personas"
	NodeFinalize          Node = "finalize"
	NodeEnd               Node = "end"
)

// Loop caps. They hold regardless of how many issues remain.
const (
	MaxValidationAttempts = 3
	MaxReviewIterations   = 2
)

type edge struct {
	when func(State) bool
	to   Node
}

func always(State) bool { return true }

// resegment is true while validation fails and attempts remain.
func resegment(s State) bool {
	return !s.ValidationPassed && s.ValidationAttempts < MaxValidationAttempts
}

// retranslate is true while review flags segments and iterations remain.
func retranslate(s State) bool {
	return !s.ReviewPassed && s.ReviewIteration < MaxReviewIterations
}

// transitions lists the outgoing edges of every node; the first edge whose
// guard holds is taken.
var transitions = map[Node][]edge{
	NodeLoadContext:       {{always, NodeSegment}},
	NodeSegment:           {{always, NodeExtractCharacters}},
	NodeExtractCharacters: {{always, NodeValidate}},
	NodeValidate:          {{resegment, NodeSegment}, {always, NodeTranslate}},
	NodeTranslate:         {{always, NodeReview}},
	NodeReview:            {{retranslate, NodeTranslate}, {always, NodeLearnPersonas}},
	NodeLearnPersonas:     {{always, NodeFinalize}},
	NodeFinalize:          {{always, NodeEnd}},
}

// Next returns the node that follows n given the state after n ran.
func Next(n Node, s State) Node {
	for _, e := range transitions[n] {
		if e.when(s) {
			return e.to
		}
	}
	return NodeEnd
}
