package domain

import "strings"

// AttendeeIDColumn is the fixed header of the column holding the surrogate key.
const AttendeeIDColumn = "Attendee ID"

// ColumnNames holds the header names the pipeline addresses by role.
type ColumnNames struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	TicketStatus string `yaml:"ticket_status"`
	EmailStatus  string `yaml:"email_status"`
}

// DefaultColumnNames returns the headers used when nothing is configured.
func DefaultColumnNames() ColumnNames {
	return ColumnNames{
		Name:         "Name",
		Email:        "Email",
		TicketStatus: "Ticket Status",
		EmailStatus:  "Email Status",
	}
}

// Required lists every header that must be present in the sheet.
func (c ColumnNames) Required() []string {
	return []string{c.Name, c.Email, c.TicketStatus, c.EmailStatus, AttendeeIDColumn}
}

// Columns maps each role to its 0-based column index for one poll cycle.
type Columns struct {
	Name         int
	Email        int
	TicketStatus int
	EmailStatus  int
	AttendeeID   int
}

// Row is one data line of the sheet together with its 0-based position
// among the data rows.
type Row struct {
	Index  int
	Values []string
}

// Cell returns the raw value at col, or "" when the row is shorter.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Values) {
		return ""
	}
	return r.Values[col]
}

// Trimmed returns the value at col with surrounding whitespace removed.
func (r Row) Trimmed(col int) string {
	return strings.TrimSpace(r.Cell(col))
}

// Snapshot maps every header to the row's value under it.
func (r Row) Snapshot(headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		out[h] = r.Cell(i)
	}
	return out
}
