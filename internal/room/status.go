package room

// Status is the room lifecycle state. The wire representation is the bare
// integer code; consumers should use the named accessors rather than compare
// codes directly.
type Status int

const (
	StatusCreated   Status = 0
	StatusStarted   Status = 1
	StatusCanceled  Status = 2
	StatusFinished  Status = 3
	StatusAbandoned Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusStarted:
		return "started"
	case StatusCanceled:
		return "canceled"
	case StatusFinished:
		return "finished"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

func (s Status) IsCreated() bool  { return s == StatusCreated }
func (s Status) IsStarted() bool  { return s == StatusStarted }
func (s Status) IsCanceled() bool { return s == StatusCanceled }
func (s Status) IsFinished() bool { return s == StatusFinished }

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCanceled, StatusFinished, StatusAbandoned:
		return true
	}
	return false
}

// transitions is the full lifecycle graph. Anything not listed is illegal,
// and terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusCreated: {StatusStarted, StatusCanceled},
	StatusStarted: {StatusFinished, StatusAbandoned},
}

// CanTransition reports whether s -> next is a legal lifecycle step.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
