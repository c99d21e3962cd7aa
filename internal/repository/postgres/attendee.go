package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/eventpass/internal/domain"
)

const attendeeColumns = `attendee_id, name, email, ticket_status, email_status, fields, created_at, updated_at`

// AttendeeRepo stores attendees in the attendees table.
type AttendeeRepo struct{ db *sql.DB }

// NewAttendeeRepo creates a Postgres-backed attendee repository.
func NewAttendeeRepo(db *sql.DB) *AttendeeRepo { return &AttendeeRepo{db: db} }

func (r *AttendeeRepo) FindByIdentity(ctx context.Context, email, name string) (*domain.Attendee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE email = $1 AND name = $2 ORDER BY created_at LIMIT 1`,
		email, name,
	)
	a, err := scanAttendee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendee: %w", err)
	}
	return a, nil
}

func (r *AttendeeRepo) Insert(ctx context.Context, a *domain.Attendee) error {
	values := a.Fields
	if values == nil {
		values = map[string]string{}
	}
	fields, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attendees (attendee_id, name, email, ticket_status, email_status, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Name, a.Email, string(a.TicketStatus), string(a.EmailStatus), fields, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("insert attendee %s: %w", a.ID, domain.ErrDuplicateAttendee)
		}
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}

// UpdateField sets a status column, or a key inside fields for any other
// field name.
func (r *AttendeeRepo) UpdateField(ctx context.Context, attendeeID, field, value string) error {
	var (
		res sql.Result
		err error
	)
	switch field {
	case domain.FieldTicketStatus:
		res, err = r.db.ExecContext(ctx,
			`UPDATE attendees SET ticket_status = $2, updated_at = NOW() WHERE attendee_id = $1`,
			attendeeID, value)
	case domain.FieldEmailStatus:
		res, err = r.db.ExecContext(ctx,
			`UPDATE attendees SET email_status = $2, updated_at = NOW() WHERE attendee_id = $1`,
			attendeeID, value)
	default:
		res, err = r.db.ExecContext(ctx, `
			UPDATE attendees
			SET fields = jsonb_set(COALESCE(NULLIF(fields, 'null'::jsonb), '{}'::jsonb), ARRAY[$2::text], to_jsonb($3::text)), updated_at = NOW()
			WHERE attendee_id = $1
		`, attendeeID, field, value)
	}
	if err != nil {
		return fmt.Errorf("update attendee %s: %w", field, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update attendee %s: %w", attendeeID, domain.ErrAttendeeNotFound)
	}
	return nil
}

// List returns every attendee, oldest first.
func (r *AttendeeRepo) List(ctx context.Context) ([]domain.Attendee, error) {
	return r.query(ctx, `SELECT `+attendeeColumns+` FROM attendees ORDER BY created_at`)
}

// ListEmailNotSent returns attendees whose ticket email has not gone out.
func (r *AttendeeRepo) ListEmailNotSent(ctx context.Context) ([]domain.Attendee, error) {
	return r.query(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE email_status <> $1 ORDER BY created_at`,
		string(domain.EmailSent))
}

func (r *AttendeeRepo) query(ctx context.Context, q string, args ...any) ([]domain.Attendee, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	out := []domain.Attendee{}
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttendee(s scanner) (*domain.Attendee, error) {
	var (
		a            domain.Attendee
		ticket, mail string
		fields       []byte
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &ticket, &mail, &fields, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.TicketStatus = domain.TicketStatus(ticket)
	a.EmailStatus = domain.EmailStatus(mail)
	a.Fields = map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &a.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	return &a, nil
}
