package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/errlog"
	"github.com/ignite/eventpass/internal/pipeline"
)

var testHeaders = []string{"Timestamp", "Name", "Email", "Ticket Status", "Email Status", "Attendee ID"}

const (
	colName        = 1
	colEmail       = 2
	colTicket      = 3
	colEmailStatus = 4
	colID          = 5
)

var errRejected = errors.New("write rejected")

type cellWrite struct {
	Row, Col int
	Value    string
	OK       bool
}

// memSheet is an in-memory RowSource.
type memSheet struct {
	mu           sync.Mutex
	headers      []string
	rows         [][]string
	readErr      error
	panicOnRead  bool
	rejectWrites bool
	rejectCol    int
	reads        int
	writes       []cellWrite
}

func newSheet(rows ...[]string) *memSheet {
	return &memSheet{headers: testHeaders, rows: rows, rejectCol: -1}
}

// row builds a data row in testHeaders order.
func row(name, email, ticket, emailStatus, id string) []string {
	return []string{"2024-01-01 10:00:00", name, email, ticket, emailStatus, id}
}

func (s *memSheet) ReadAll(_ context.Context) ([]string, [][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.panicOnRead {
		panic("sheet exploded")
	}
	if s.readErr != nil {
		return nil, nil, s.readErr
	}
	rows := make([][]string, len(s.rows))
	for i, r := range s.rows {
		rows[i] = append([]string(nil), r...)
	}
	return append([]string(nil), s.headers...), rows, nil
}

func (s *memSheet) WriteCell(_ context.Context, r, c int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectWrites || c == s.rejectCol {
		s.writes = append(s.writes, cellWrite{Row: r, Col: c, Value: value})
		return errRejected
	}
	s.writes = append(s.writes, cellWrite{Row: r, Col: c, Value: value, OK: true})
	for len(s.rows[r]) <= c {
		s.rows[r] = append(s.rows[r], "")
	}
	s.rows[r][c] = value
	return nil
}

func (s *memSheet) cell(r, c int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c >= len(s.rows[r]) {
		return ""
	}
	return s.rows[r][c]
}

func (s *memSheet) writesTo(c int) []cellWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cellWrite
	for _, w := range s.writes {
		if w.Col == c {
			out = append(out, w)
		}
	}
	return out
}

// memStore is an in-memory AttendeeStore.
type memStore struct {
	mu        sync.Mutex
	byID      map[string]*domain.Attendee
	findErr   error
	insertErr error
	inserts   int
}

func newStore(records ...*domain.Attendee) *memStore {
	s := &memStore{byID: make(map[string]*domain.Attendee)}
	for _, r := range records {
		s.byID[r.ID] = r
	}
	return s
}

func (s *memStore) FindByIdentity(_ context.Context, email, name string) (*domain.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, a := range s.byID {
		if a.Email == email && a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) Insert(_ context.Context, a *domain.Attendee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.inserts++
	return nil
}

func (s *memStore) UpdateField(_ context.Context, id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("attendee %s not found", id)
	}
	switch field {
	case domain.FieldTicketStatus:
		a.TicketStatus = domain.TicketStatus(value)
	case domain.FieldEmailStatus:
		a.EmailStatus = domain.EmailStatus(value)
	default:
		a.Fields[field] = value
	}
	return nil
}

func (s *memStore) get(id string) *domain.Attendee {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *memStore) count(email, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.byID {
		if a.Email == email && a.Name == name {
			n++
		}
	}
	return n
}

type stubRenderer struct {
	qrErr     error
	ticketErr error
	panicFor  string
	payloads  []string
}

func (r *stubRenderer) QRCode(payload string) ([]byte, error) {
	r.payloads = append(r.payloads, payload)
	if r.qrErr != nil {
		return nil, r.qrErr
	}
	return []byte("qr:" + payload), nil
}

func (r *stubRenderer) Ticket(name string, qr []byte) ([]byte, error) {
	if name == r.panicFor {
		panic("font cache corrupted")
	}
	if r.ticketErr != nil {
		return nil, r.ticketErr
	}
	return []byte("ticket:" + name + ":" + string(qr)), nil
}

type upload struct {
	Folder   string
	Filename string
}

type stubPublisher struct {
	err     error
	uploads []upload
}

func (p *stubPublisher) Upload(_ context.Context, localPath, folder, filename string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	p.uploads = append(p.uploads, upload{Folder: folder, Filename: filename})
	if p.err != nil {
		return "", p.err
	}
	return folder + "/" + filename, nil
}

type sentMail struct {
	Email, Name string
	Ticket      string
	Body        string
}

type stubNotifier struct {
	err    error
	onSend func()
	sent   []sentMail
}

func (n *stubNotifier) Send(ctx context.Context, email, name, ticketPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.onSend != nil {
		n.onSend()
	}
	if n.err != nil {
		return n.err
	}
	body, err := os.ReadFile(ticketPath)
	if err != nil {
		return err
	}
	n.sent = append(n.sent, sentMail{Email: email, Name: name, Ticket: filepath.Base(ticketPath), Body: string(body)})
	return nil
}

type harness struct {
	sheet    *memSheet
	store    *memStore
	renderer *stubRenderer
	pub      *stubPublisher
	notifier *stubNotifier
	errs     *errlog.Memory
	tempDir  string
	opts     pipeline.Options
	nextID   int
}

func newHarness(t *testing.T, sheet *memSheet, store *memStore) *harness {
	t.Helper()
	return &harness{
		sheet:    sheet,
		store:    store,
		renderer: &stubRenderer{},
		pub:      &stubPublisher{},
		notifier: &stubNotifier{},
		errs:     errlog.NewMemory(50),
		tempDir:  t.TempDir(),
		opts:     pipeline.Options{QRFolder: "qr-folder", TicketsFolder: "tickets-folder"},
	}
}

func (h *harness) processor() *pipeline.Processor {
	opts := h.opts
	opts.TempDir = h.tempDir
	return pipeline.NewProcessor(pipeline.Deps{
		Rows:      h.sheet,
		Store:     h.store,
		Renderer:  h.renderer,
		Publisher: h.pub,
		Notifier:  h.notifier,
		Errors:    h.errs,
	}, opts).WithIDGenerator(func() string {
		h.nextID++
		return fmt.Sprintf("id-%d", h.nextID)
	})
}

// process reads the sheet fresh and runs row idx through a new processor.
func (h *harness) process(t *testing.T, idx int, marker *pipeline.Marker) pipeline.Outcome {
	t.Helper()
	return h.processCtx(t, context.Background(), idx, marker)
}

func (h *harness) processCtx(t *testing.T, ctx context.Context, idx int, marker *pipeline.Marker) pipeline.Outcome {
	t.Helper()
	headers, rows, err := h.sheet.ReadAll(ctx)
	require.NoError(t, err)
	cols, err := pipeline.ResolveColumns(headers, domain.DefaultColumnNames())
	require.NoError(t, err)
	cyc := &pipeline.Cycle{Headers: headers, Columns: cols}
	return h.processor().Process(ctx, cyc, domain.Row{Index: idx, Values: rows[idx]}, marker)
}

func (h *harness) errorsFrom(t *testing.T, source string) []errlog.Entry {
	t.Helper()
	entries, err := h.errs.Recent(context.Background())
	require.NoError(t, err)
	var out []errlog.Entry
	for _, e := range entries {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) tempLeftovers(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	return entries
}
