package scan

import "fmt"

// State is a step of the scan state machine.
type State int

const (
	StateScanning State = iota
	StateCandidateHit
	StateExtracting
	StateOCRRunning
	StateParsed
	StateDedupCheck

	StateStoppedSuccess
	StateStoppedEndOfStream
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateScanning:           "scanning",
	StateCandidateHit:       "candidate_hit",
	StateExtracting:         "extracting",
	StateOCRRunning:         "ocr_running",
	StateParsed:             "parsed",
	StateDedupCheck:         "dedup_check",
	StateStoppedSuccess:     "stopped_success",
	StateStoppedEndOfStream: "stopped_end_of_stream",
	StateFailed:             "failed",
	StateCancelled:          "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s >= StateStoppedSuccess
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}
