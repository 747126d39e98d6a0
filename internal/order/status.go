package order

import "fmt"

var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled, StatusProcessing},
	StatusPaid:       {StatusProcessing},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// Transition reports whether moving from -> to is allowed. Moving to the
// current status is a no-op and is reported as such so callers can treat
// replays as success.
func Transition(from, to Status) (noop bool, err error) {
	if from == to {
		return true, nil
	}
	for _, s := range transitions[from] {
		if s == to {
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusDelivered
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusProcessing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}
