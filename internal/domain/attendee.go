package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates the values written to the "Ticket Status" column
// and the attendee record.
type TicketStatus string

const (
	TicketUnset       TicketStatus = ""
	TicketIssued      TicketStatus = "Issued"
	TicketGenerating  TicketStatus = "Generating..."
	TicketGenerated   TicketStatus = "Generated"
	TicketSent        TicketStatus = "Sent"
	TicketFailedDB    TicketStatus = "Failed (DB)"
	TicketFailedSheet TicketStatus = "Failed (Sheet)"
	TicketFailedQR    TicketStatus = "Failed (QR)"
	TicketFailedImage TicketStatus = "Failed (Image)"
)

// Terminal reports whether a row carrying this status is never reprocessed.
func (s TicketStatus) Terminal() bool { return s == TicketSent }

// EmailStatus enumerates the values written to the "Email Status" column and
// the attendee record.
type EmailStatus string

const (
	EmailUnset   EmailStatus = ""
	EmailPending EmailStatus = "Pending"
	EmailSending EmailStatus = "Sending..."
	EmailSent    EmailStatus = "Sent"
	EmailFailed  EmailStatus = "Failed (Email)"
)

// Record field names accepted by attendee repositories for point updates.
// Any other field name is stored inside Attendee.Fields.
const (
	FieldTicketStatus = "ticket_status"
	FieldEmailStatus  = "email_status"
)

// Attendee is the durable record of one person, identified by the business
// key (Email, Name) and addressed everywhere else by ID.
type Attendee struct {
	ID           string            `json:"attendee_id" db:"attendee_id" bson:"attendee_id" dynamodbav:"attendee_id"`
	Name         string            `json:"name" db:"name" bson:"name" dynamodbav:"name"`
	Email        string            `json:"email" db:"email" bson:"email" dynamodbav:"email"`
	TicketStatus TicketStatus      `json:"ticket_status" db:"ticket_status" bson:"ticket_status" dynamodbav:"ticket_status"`
	EmailStatus  EmailStatus       `json:"email_status" db:"email_status" bson:"email_status" dynamodbav:"email_status"`
	Fields       map[string]string `json:"fields" db:"fields" bson:"fields" dynamodbav:"fields"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}

// Identity is the (email, name) business key of an attendee.
type Identity struct {
	Email string
	Name  string
}

// Key returns a single-string form of the identity, used by stores that can
// only index one attribute.
func (i Identity) Key() string {
	return strings.ToLower(i.Email) + "#" + i.Name
}

// Identity returns the business key of the record.
func (a *Attendee) Identity() Identity {
	return Identity{Email: a.Email, Name: a.Name}
}
