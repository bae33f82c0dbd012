package ingestion_engine

import "fmt"

// IngestStatus is the ingestion state of a knowledge base or uploaded file.
// It only ever moves forward: pending -> processing -> done|failed.
type IngestStatus string

const (
	StatusPending    IngestStatus = "pending"
	StatusProcessing IngestStatus = "processing"
	StatusDone       IngestStatus = "done"
	StatusFailed     IngestStatus = "failed"
)

// Event is a state-machine input applied to an IngestStatus.
type Event int

const (
	EventStart Event = iota
	EventComplete
	EventFail
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventComplete:
		return "complete"
	case EventFail:
		return "fail"
	}
	return "unknown"
}

// ShortCircuits reports whether a job observing this status must return
// without doing any work. This is the idempotency guard against at-least-once
// redelivery: a job already in flight or already finished is never repeated.
func ShortCircuits(s IngestStatus) bool {
	return s == StatusProcessing || s == StatusDone
}

// Next is the pure transition function of the three-state machine. An empty
// current status is treated as pending (absence of a started marker). A failed
// source may be started again, which is the queue's redelivery retry path;
// done never regresses.
func Next(current IngestStatus, ev Event) (IngestStatus, error) {
	if current == "" {
		current = StatusPending
	}
	switch ev {
	case EventStart:
		if current == StatusPending || current == StatusFailed {
			return StatusProcessing, nil
		}
	case EventComplete:
		if current == StatusProcessing {
			return StatusDone, nil
		}
	case EventFail:
		if current == StatusPending || current == StatusProcessing {
			return StatusFailed, nil
		}
	}
	return current, fmt.Errorf("invalid status transition: %s + %s", current, ev)
}
