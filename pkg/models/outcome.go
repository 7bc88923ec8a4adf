package models

// Decision is a node executor's verdict on the rest of the chain.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionHalt     Decision = "halt"
)

// Outcome is what a node executor produces on a non-failing execution:
// either continue with an output fragment or halt the chain early. Failure
// is the executor's error return; the runner turns it into a failed record.
type Outcome struct {
	Decision Decision
	Fragment map[string]any
}

// Continue builds a continue outcome carrying the node's output fragment.
func Continue(fragment map[string]any) *Outcome {
	return &Outcome{Decision: DecisionContinue, Fragment: fragment}
}

// Halt builds a halt outcome. Halting is a successful end of the run; the
// context accumulated so far becomes the result.
func Halt() *Outcome {
	return &Outcome{Decision: DecisionHalt}
}
