package session

// State of a session.
type State int

const (
	StateUnopened State = iota
	StateOpened
	StatePrimed
	StateStreaming
	StateEOF
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StatePrimed:
		return "primed"
	case StateStreaming:
		return "streaming"
	case StateEOF:
		return "eof"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
