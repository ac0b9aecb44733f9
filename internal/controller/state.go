package controller

import "github.com/aman-zulfiqar/sql-query-buddy/internal/models"

// Connectivity tracks backend reachability.
type Connectivity string

const (
	ConnectivityChecking    Connectivity = "checking"
	ConnectivityHealthy     Connectivity = "healthy"
	ConnectivityUnreachable Connectivity = "unreachable"
)

// Submission tracks the lifecycle of the current question.
type Submission string

const (
	SubmissionIdle       Submission = "idle"
	SubmissionSubmitting Submission = "submitting"
	SubmissionSuccess    Submission = "success"
	SubmissionFailed     Submission = "failed"
)

// State is a snapshot of the controller. Result and Error are never both set,
// and both are empty while a submission is in flight.
type State struct {
	Connectivity Connectivity        `json:"connectivity"`
	Submission   Submission          `json:"submission"`
	LastQuestion string              `json:"last_question"`
	Result       *models.QueryResult `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func initialState() State {
	return State{
		Connectivity: ConnectivityChecking,
		Submission:   SubmissionIdle,
	}
}

// clone copies s so callers never share the Result pointer with the controller.
func (s State) clone() State {
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}
