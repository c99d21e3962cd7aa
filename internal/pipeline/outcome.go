package pipeline

// Outcome is the result of processing one row.
type Outcome int

const (
	// OutcomeSkipped means the row was not eligible this cycle.
	OutcomeSkipped Outcome = iota
	// OutcomeSent means the ticket was delivered.
	OutcomeSent
	// OutcomeGenerated means the ticket exists but the email failed.
	OutcomeGenerated
	OutcomeFailedSheet
	OutcomeFailedDB
	OutcomeFailedQR
	OutcomeFailedImage
	// OutcomePanic means processing the row panicked and was recovered.
	OutcomePanic
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSent:
		return "sent"
	case OutcomeGenerated:
		return "email_failed"
	case OutcomeFailedSheet:
		return "failed_sheet"
	case OutcomeFailedDB:
		return "failed_db"
	case OutcomeFailedQR:
		return "failed_qr"
	case OutcomeFailedImage:
		return "failed_image"
	case OutcomePanic:
		return "panic"
	default:
		return "unknown"
	}
}
