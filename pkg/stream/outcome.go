package stream

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Outcome is how a session ended
type Outcome int

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	OutcomeOpen           Outcome = iota // Not yet terminal
	OutcomeDone                          // Done event received
	OutcomeServerError                   // Error event received
	OutcomeTransportFault                // Read failure, early end of stream or idle timeout
	OutcomeCancelled                     // Cancelled by the consumer
)

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Outcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeDone:
		return "done"
	case OutcomeServerError:
		return "error"
	case OutcomeTransportFault:
		return "fault"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
