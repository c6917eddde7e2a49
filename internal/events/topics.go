package events

// Topic constants for domain events emitted by the payment core.
const (
	TopicPaymentCaptured = "payment.captured"
	TopicPaymentFailed   = "payment.failed"
)
