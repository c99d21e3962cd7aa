package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/metrics"
	"github.com/ignite/eventpass/internal/pkg/logger"
)

// Deps are the collaborators of a Processor. Publisher and Metrics may be nil.
type Deps struct {
	Rows      RowSource
	Store     AttendeeStore
	Renderer  Renderer
	Publisher Publisher
	Notifier  Notifier
	Errors    ErrorLog
	Metrics   *metrics.Metrics
}

// Options tune a Processor.
type Options struct {
	QRFolder      string
	TicketsFolder string
	// TempDir is the parent of the per-row scratch directories; "" uses
	// the OS default.
	TempDir string
	// ReuseRowAttendeeID makes a lookup miss on a row that already carries
	// an Attendee ID insert under that id instead of minting a new one.
	ReuseRowAttendeeID bool
}

// Processor drives a single row through the issuance state machine.
type Processor struct {
	deps  Deps
	opts  Options
	newID func() string
	log   *logger.Logger
}

// NewProcessor creates a processor.
func NewProcessor(deps Deps, opts Options) *Processor {
	return &Processor{
		deps:  deps,
		opts:  opts,
		newID: uuid.NewString,
		log:   logger.With("pipeline"),
	}
}

// WithIDGenerator replaces the attendee id source.
func (p *Processor) WithIDGenerator(f func() string) *Processor {
	p.newID = f
	return p
}

// Process runs one row. It never returns an error: every failure is mapped
// to a status on the row (and record, once one exists), logged, and recorded
// in the error log. The row runs to completion even if ctx is cancelled.
func (p *Processor) Process(ctx context.Context, cyc *Cycle, row domain.Row, marker *Marker) Outcome {
	cols := cyc.Columns
	name := row.Trimmed(cols.Name)
	email := row.Trimmed(cols.Email)
	if name == "" || email == "" {
		return OutcomeSkipped
	}
	if domain.TicketStatus(row.Trimmed(cols.TicketStatus)).Terminal() {
		return OutcomeSkipped
	}
	ident := domain.Identity{Email: email, Name: name}
	if marker.Seen(ident) {
		return OutcomeSkipped
	}
	marker.Mark(ident)

	ctx = context.WithoutCancel(ctx)
	p.log.Info("processing entry", "row", row.Index, "name", name, "email", email)
	p.setRowTicket(ctx, row, cols, domain.TicketGenerating)

	attendeeID, outcome := p.resolveIdentity(ctx, cyc, row, ident)
	if outcome != OutcomeSkipped {
		return outcome
	}

	dir, err := os.MkdirTemp(p.opts.TempDir, "eventpass-*")
	if err != nil {
		p.fail(ctx, "render", fmt.Errorf("create temp dir for %s: %w", attendeeID, err))
		p.setTicket(ctx, row, cols, attendeeID, domain.TicketFailedQR)
		return OutcomeFailedQR
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			p.log.Warn("temp cleanup failed", "dir", dir, "error", err)
		}
	}()

	qrPath, ticketPath, outcome := p.render(ctx, row, cols, attendeeID, name, dir)
	if outcome != OutcomeSkipped {
		return outcome
	}

	p.publish(ctx, qrPath, p.opts.QRFolder)
	p.publish(ctx, ticketPath, p.opts.TicketsFolder)

	p.setTicket(ctx, row, cols, attendeeID, domain.TicketGenerated)
	p.setEmail(ctx, row, cols, attendeeID, domain.EmailSending)

	if err := p.deps.Notifier.Send(ctx, email, name, ticketPath); err != nil {
		p.fail(ctx, "email", fmt.Errorf("send ticket %s: %w", attendeeID, err))
		p.setEmail(ctx, row, cols, attendeeID, domain.EmailFailed)
		return OutcomeGenerated
	}

	p.setTicket(ctx, row, cols, attendeeID, domain.TicketSent)
	p.setEmail(ctx, row, cols, attendeeID, domain.EmailSent)
	p.log.Info("ticket sent", "attendee_id", attendeeID, "email", email)
	return OutcomeSent
}

// resolveIdentity returns the attendee id for the row. A non-skipped outcome
// means the row was aborted and its status already written.
func (p *Processor) resolveIdentity(ctx context.Context, cyc *Cycle, row domain.Row, ident domain.Identity) (string, Outcome) {
	cols := cyc.Columns
	rowID := row.Trimmed(cols.AttendeeID)

	existing, err := p.deps.Store.FindByIdentity(ctx, ident.Email, ident.Name)
	if err != nil {
		p.fail(ctx, "store", fmt.Errorf("lookup attendee: %w", err))
		p.setRowTicket(ctx, row, cols, domain.TicketFailedDB)
		return "", OutcomeFailedDB
	}

	if existing != nil {
		if rowID != existing.ID {
			p.log.Warn("row attendee id differs from store, correcting",
				"row", row.Index, "row_id", rowID, "attendee_id", existing.ID)
			p.writeCell(ctx, row.Index, cols.AttendeeID, existing.ID)
		}
		return existing.ID, OutcomeSkipped
	}

	attendeeID := ""
	if rowID != "" {
		if p.opts.ReuseRowAttendeeID {
			attendeeID = rowID
		} else {
			p.deps.Metrics.OrphanID()
			p.fail(ctx, "identity", fmt.Errorf("orphan attendee id %s on row %d: no record for this identity, minting a new id", rowID, row.Index))
		}
	}

	if attendeeID == "" {
		attendeeID = p.newID()
		if err := p.deps.Rows.WriteCell(ctx, row.Index, cols.AttendeeID, attendeeID); err != nil {
			p.fail(ctx, "sheet", fmt.Errorf("write attendee id %s to row %d: %w", attendeeID, row.Index, err))
			p.setRowTicket(ctx, row, cols, domain.TicketFailedSheet)
			return "", OutcomeFailedSheet
		}
	}

	now := time.Now().UTC()
	fields := row.Snapshot(cyc.Headers)
	fields[cyc.Headers[cols.AttendeeID]] = attendeeID
	fields[cyc.Headers[cols.TicketStatus]] = string(domain.TicketIssued)
	fields[cyc.Headers[cols.EmailStatus]] = string(domain.EmailPending)

	rec := &domain.Attendee{
		ID:           attendeeID,
		Name:         ident.Name,
		Email:        ident.Email,
		TicketStatus: domain.TicketIssued,
		EmailStatus:  domain.EmailPending,
		Fields:       fields,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.deps.Store.Insert(ctx, rec); err != nil {
		p.fail(ctx, "store", fmt.Errorf("insert attendee %s: %w", attendeeID, err))
		p.setRowTicket(ctx, row, cols, domain.TicketFailedDB)
		return "", OutcomeFailedDB
	}
	p.log.Info("attendee created", "attendee_id", attendeeID, "row", row.Index)
	return attendeeID, OutcomeSkipped
}

func (p *Processor) render(ctx context.Context, row domain.Row, cols domain.Columns, attendeeID, name, dir string) (string, string, Outcome) {
	qrPath := filepath.Join(dir, attendeeID+"_qr.png")
	ticketPath := filepath.Join(dir, attendeeID+"_ticket.png")

	qr, err := p.deps.Renderer.QRCode(attendeeID)
	if err == nil {
		err = os.WriteFile(qrPath, qr, 0o600)
	}
	if err != nil {
		p.fail(ctx, "render", fmt.Errorf("qr code for %s: %w", attendeeID, err))
		p.setTicket(ctx, row, cols, attendeeID, domain.TicketFailedQR)
		return "", "", OutcomeFailedQR
	}

	ticket, err := p.deps.Renderer.Ticket(name, qr)
	if err == nil {
		err = os.WriteFile(ticketPath, ticket, 0o600)
	}
	if err != nil {
		p.fail(ctx, "render", fmt.Errorf("ticket image for %s: %w", attendeeID, err))
		p.setTicket(ctx, row, cols, attendeeID, domain.TicketFailedImage)
		return "", "", OutcomeFailedImage
	}
	return qrPath, ticketPath, OutcomeSkipped
}

// publish uploads one asset. Failures are recorded and otherwise ignored.
func (p *Processor) publish(ctx context.Context, path, folder string) {
	if p.deps.Publisher == nil {
		return
	}
	filename := filepath.Base(path)
	remoteID, err := p.deps.Publisher.Upload(ctx, path, folder, filename)
	if err != nil {
		p.deps.Metrics.UploadFailed()
		p.fail(ctx, "publish", fmt.Errorf("upload %s: %w", filename, err))
		return
	}
	p.log.Debug("asset uploaded", "file", filename, "remote_id", remoteID)
}

// setTicket writes the ticket status to the row and the record.
func (p *Processor) setTicket(ctx context.Context, row domain.Row, cols domain.Columns, attendeeID string, status domain.TicketStatus) {
	p.setRowTicket(ctx, row, cols, status)
	p.updateRecord(ctx, attendeeID, domain.FieldTicketStatus, string(status))
}

// setEmail writes the email status to the row and the record.
func (p *Processor) setEmail(ctx context.Context, row domain.Row, cols domain.Columns, attendeeID string, status domain.EmailStatus) {
	p.writeCell(ctx, row.Index, cols.EmailStatus, string(status))
	p.updateRecord(ctx, attendeeID, domain.FieldEmailStatus, string(status))
}

func (p *Processor) setRowTicket(ctx context.Context, row domain.Row, cols domain.Columns, status domain.TicketStatus) {
	p.writeCell(ctx, row.Index, cols.TicketStatus, string(status))
}

// writeCell is a best-effort status write.
func (p *Processor) writeCell(ctx context.Context, rowIdx, col int, value string) {
	if err := p.deps.Rows.WriteCell(ctx, rowIdx, col, value); err != nil {
		p.deps.Metrics.StatusWriteFailed()
		p.fail(ctx, "sheet", fmt.Errorf("write %q to row %d col %d: %w", value, rowIdx, col, err))
	}
}

func (p *Processor) updateRecord(ctx context.Context, attendeeID, field, value string) {
	if err := p.deps.Store.UpdateField(ctx, attendeeID, field, value); err != nil {
		p.deps.Metrics.StatusWriteFailed()
		p.fail(ctx, "store", fmt.Errorf("set %s=%q on %s: %w", field, value, attendeeID, err))
	}
}

func (p *Processor) fail(ctx context.Context, source string, err error) {
	p.log.Error("row step failed", "source", source, "error", err)
	if p.deps.Errors != nil {
		p.deps.Errors.Add(ctx, source, err.Error())
	}
}
