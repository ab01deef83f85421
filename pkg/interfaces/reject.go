package interfaces

// RejectReason is a rejection reason code as reported by the overlay's
// message-validation pipeline. These constants are bit-exact with the
// strings the validator emits; any other value is treated by the engine as
// a generic invalid-message rejection.
type RejectReason string

const (
	// ErrMissingSignature means the message carried no signature at all.
	// The engine treats it, like ErrInvalidSignature, as peer-attributable
	// but never trusts the claimed message id enough to touch a delivery
	// record.
	ErrMissingSignature RejectReason = "ERR_MISSING_SIGNATURE"

	// ErrInvalidSignature means signature verification failed.
	ErrInvalidSignature RejectReason = "ERR_INVALID_SIGNATURE"

	// ErrTopicValidatorIgnore means the application-level validator chose
	// to ignore the message without penalizing the relaying peer.
	ErrTopicValidatorIgnore RejectReason = "ERR_TOPIC_VALIDATOR_IGNORE"

	// ErrTopicValidatorReject means the application-level validator
	// rejected the message outright.
	ErrTopicValidatorReject RejectReason = "ERR_TOPIC_VALIDATOR_REJECT"
)
