package domain

import (
	"fmt"
	"time"
)

// Target is one remote endpoint to keep warm. ID is either a short Space
// name ("org/app") or a full address, depending on the probe mode.
type Target struct {
	ID    string `json:"id"`
	Token string `json:"-"`
}

func (t Target) HasToken() bool { return t.Token != "" }

type OutcomeKind int

const (
	Success OutcomeKind = iota
	HTTPFailure
	TransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case HTTPFailure:
		return "http_failure"
	case TransportError:
		return "transport_error"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the classified result of a single probe.
//
// Only the field matching Kind is meaningful:
//   - Success: Stage (runtime stage, or "OK" when the body carries none)
//   - HTTPFailure: StatusCode
//   - TransportError: Err
type Outcome struct {
	TargetID   string        `json:"target_id"`
	Kind       OutcomeKind   `json:"kind"`
	Stage      string        `json:"stage,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Err        string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	CheckedAt  time.Time     `json:"checked_at"`
}

func (o Outcome) Failed() bool {
	return o.Kind != Success
}

// Summary renders the outcome the way it is written to the run log.
func (o Outcome) Summary() string {
	switch o.Kind {
	case Success:
		return fmt.Sprintf("[%s] keep-alive ok, stage: %s", o.TargetID, o.Stage)
	case HTTPFailure:
		return fmt.Sprintf("[%s] keep-alive failed, status code: %d", o.TargetID, o.StatusCode)
	default:
		return fmt.Sprintf("[%s] keep-alive error: %s", o.TargetID, o.Err)
	}
}
