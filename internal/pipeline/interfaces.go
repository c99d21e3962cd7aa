package pipeline

import (
	"context"

	"github.com/ignite/eventpass/internal/domain"
)

// RowSource is the registration sheet.
type RowSource interface {
	// ReadAll returns the header row and every data row below it.
	ReadAll(ctx context.Context) (headers []string, rows [][]string, err error)

	// WriteCell sets one cell synchronously. row is the 0-based index among
	// data rows, col the 0-based header index.
	WriteCell(ctx context.Context, row, col int, value string) error
}

// AttendeeStore persists attendee records. Implementations must be safe for
// concurrent use.
type AttendeeStore interface {
	// FindByIdentity returns the record for (email, name), or nil, nil.
	FindByIdentity(ctx context.Context, email, name string) (*domain.Attendee, error)

	// Insert creates a record. The caller guarantees no record with the same
	// identity exists.
	Insert(ctx context.Context, a *domain.Attendee) error

	// UpdateField sets one field on the record with the given id.
	UpdateField(ctx context.Context, attendeeID, field, value string) error
}

// Renderer produces the QR code and ticket images as PNG bytes.
type Renderer interface {
	QRCode(payload string) ([]byte, error)
	Ticket(name string, qrPNG []byte) ([]byte, error)
}

// Publisher uploads a local file and returns its remote id.
type Publisher interface {
	Upload(ctx context.Context, localPath, folder, filename string) (string, error)
}

// Notifier delivers the ticket to the attendee.
type Notifier interface {
	Send(ctx context.Context, email, name, ticketPath string) error
}

// ErrorLog records failures for the status API.
type ErrorLog interface {
	Add(ctx context.Context, source, message string)
}
