package eventsource

// State is the connection state of a Source.
//
//	Disconnected -> Connecting -> Connected -> Backoff -> Connecting ...
//
// Any state moves to Closed on Close; Closed is terminal.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	case Closed:
		return "closed"
	}
	return "unknown"
}
