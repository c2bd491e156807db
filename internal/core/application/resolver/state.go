package resolver

// State is the progress of an agent on one order.
type State int

const (
	StateWatching State = iota
	StateEvaluating
	StateFillingDestination
	StateAwaitingSecret
	StateClaimingSource
	StateDone
	StateAbandoned
)

var stateNames = map[State]string{
	StateWatching:           "Watching",
	StateEvaluating:         "Evaluating",
	StateFillingDestination: "FillingDestination",
	StateAwaitingSecret:     "AwaitingSecret",
	StateClaimingSource:     "ClaimingSource",
	StateDone:               "Done",
	StateAbandoned:          "Abandoned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

func (s State) IsFinal() bool {
	return s == StateDone || s == StateAbandoned
}
