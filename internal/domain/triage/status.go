package triage

// allowedTransitions lists every legal forward move. Completed is terminal.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInAssessment: true,
		StatusCompleted:    true,
	},
	StatusInAssessment: {
		StatusWaitingDoctor: true,
		StatusCompleted:     true,
	},
	StatusWaitingDoctor: {
		StatusCompleted: true,
	},
}

// Valid reports whether s is a known case status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInAssessment, StatusWaitingDoctor, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether a case in status s belongs in the queue.
func (s Status) Active() bool {
	return s != StatusCompleted
}

// CheckTransition returns an *InvalidTransitionError unless from -> to is a
// legal move.
func CheckTransition(from, to Status) error {
	if !allowedTransitions[from][to] {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
