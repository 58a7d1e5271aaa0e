package chunk

import "fmt"

// State is a chunk's lifecycle stage.
type State int32

const (
	Empty State = iota
	Loaded
	Generating
	Generated
	Populated
	Lighting
	Lighted
	Unloading
	Destroyed
)

var stateNames = [...]string{
	Empty:      "empty",
	Loaded:     "loaded",
	Generating: "generating",
	Generated:  "generated",
	Populated:  "populated",
	Lighting:   "lighting",
	Lighted:    "lighted",
	Unloading:  "unloading",
	Destroyed:  "destroyed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CanTransition reports whether from→to is one of the legal lifecycle steps.
// Every state has exactly one successor.
func CanTransition(from, to State) bool {
	return from < Destroyed && to == from+1
}

// Readable reports whether block reads are legal in s.
func (s State) Readable() bool { return s >= Generated && s <= Unloading }

// Writable reports whether block writes are legal in s.
func (s State) Writable() bool { return s >= Populated && s <= Lighted }
