package domain

// FulfillmentOutcome is the result of one fulfillment attempt.
type FulfillmentOutcome struct {
	Success        bool
	TrackingNumber string
	Details        FulfillmentDetails
	FailureReason  string
}

// StoreResult is the output of the store stage.
type StoreResult struct {
	Order          *Order
	QueueMessageID string
	// Duplicate reports that the order was already stored by an earlier invocation.
	Duplicate bool
}
