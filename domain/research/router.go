package research

import "fmt"

// State is a node of the orchestration state machine
type State int

const (
	StateClassify State = iota
	StateDocument
	StateWeb
	StateMarket
	StateSynthesize
	StateDone
)

var stateNames = map[State]string{
	StateClassify:   "classify",
	StateDocument:   "document",
	StateWeb:        "web",
	StateMarket:     "market",
	StateSynthesize: "synthesize",
	StateDone:       "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// StateFor maps a capability to its stage state
func StateFor(c Capability) State {
	switch c {
	case CapabilityDocument:
		return StateDocument
	case CapabilityWeb:
		return StateWeb
	case CapabilityMarket:
		return StateMarket
	default:
		panic(fmt.Sprintf("no state for %v", c))
	}
}

// Capability returns the capability a stage state runs
func (s State) Capability() (Capability, bool) {
	switch s {
	case StateDocument:
		return CapabilityDocument, true
	case StateWeb:
		return CapabilityWeb, true
	case StateMarket:
		return CapabilityMarket, true
	default:
		return 0, false
	}
}

// Terminal reports whether s is Done
func (s State) Terminal() bool {
	return s == StateDone
}

// Next is the transition function. From Classify every capability is a
// candidate; from a stage only the capabilities after it in Priority are.
// The first candidate that is required and not yet executed wins, otherwise
// control goes to Synthesize. Synthesize leads to Done, which is absorbing.
func Next(from State, required CapabilitySet, executed []Capability) State {
	switch from {
	case StateSynthesize, StateDone:
		return StateDone
	}

	done := NewCapabilitySet(executed...)
	start := 0
	if c, ok := from.Capability(); ok {
		start = priorityIndex(c) + 1
	} else if from != StateClassify {
		return StateSynthesize
	}

	for _, c := range Priority[start:] {
		if required.Has(c) && !done.Has(c) {
			return StateFor(c)
		}
	}
	return StateSynthesize
}

func priorityIndex(c Capability) int {
	for i, p := range Priority {
		if p == c {
			return i
		}
	}
	return len(Priority)
}
