package domain

// Status is the lifecycle state of an order.
type Status string

// Live order statuses.
const (
	StatusReceived            Status = "RECEIVED"
	StatusValidated           Status = "VALIDATED"
	StatusStored              Status = "STORED"
	StatusFulfilled           Status = "FULFILLED"
	StatusFulfillmentFailed   Status = "FULFILLMENT_FAILED"
	StatusStorageFailed       Status = "STORAGE_FAILED"
	StatusDLQProcessingFailed Status = "DLQ_PROCESSING_FAILED"
)

// Archive-only statuses. They label failure records written when a stage could
// not process a message at all, and never appear on a live order.
const (
	StatusProcessingError    Status = "PROCESSING_ERROR"
	StatusDLQProcessorFailed Status = "DLQ_PROCESSOR_FAILED"
)

// MaxFulfillmentRetries is the retry ceiling. An order whose retry count reaches
// it is archived instead of retried.
const MaxFulfillmentRetries = 3

var transitions = map[Status][]Status{
	StatusReceived:          {StatusValidated},
	StatusValidated:         {StatusStored, StatusStorageFailed},
	StatusStorageFailed:     {StatusStored},
	StatusStored:            {StatusFulfilled, StatusFulfillmentFailed, StatusDLQProcessingFailed},
	StatusFulfillmentFailed: {StatusFulfilled, StatusFulfillmentFailed, StatusDLQProcessingFailed},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// FULFILLMENT_FAILED may transition to itself; that is the bounded retry loop.
// STORAGE_FAILED leaves only when the orchestrator re-invokes the store stage.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFulfilled, StatusStorageFailed, StatusDLQProcessingFailed,
		StatusProcessingError, StatusDLQProcessorFailed:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
