package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonDevice: microphone unavailable or permission denied.
	ReasonDevice ReasonCode = "device"
	// ReasonDuration: recording stopped before the minimum duration.
	ReasonDuration ReasonCode = "duration"
	// ReasonDecode: captured container malformed or unsupported.
	ReasonDecode ReasonCode = "decode"
	// ReasonTransport: any remote call failure, including non-success status.
	ReasonTransport ReasonCode = "transport"
	// ReasonSynthesis: text-to-speech failure.
	ReasonSynthesis ReasonCode = "synthesis"
	// ReasonState: request rejected by a state guard (turn in flight, already recording).
	ReasonState ReasonCode = "state"
)
