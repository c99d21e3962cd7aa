package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/metrics"
	"github.com/ignite/eventpass/internal/pkg/logger"
)

// Lease gates polling so only one instance works the sheet at a time. Hold
// is called at the start of a cycle; Renew before every later row, and it
// must fail if the lease changed hands since Hold, because the rows the cycle
// read may be stale by then.
type Lease interface {
	Hold(ctx context.Context) (bool, error)
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// PollerConfig configures a Poller. Lease, Errors and Metrics are optional.
type PollerConfig struct {
	Columns      domain.ColumnNames
	Interval     time.Duration
	ErrorBackoff time.Duration
	Lease        Lease
	Errors       ErrorLog
	Metrics      *metrics.Metrics
}

// Poller repeatedly reads the sheet and feeds rows to a Processor. A Poller
// owns the run's Marker and is not safe for concurrent Run calls.
type Poller struct {
	rows   RowSource
	proc   *Processor
	cfg    PollerConfig
	marker *Marker
	sleep  func(ctx context.Context, d time.Duration) bool
	log    *logger.Logger
}

// NewPoller creates a poller. Zero intervals fall back to 30s and 2x the
// interval.
func NewPoller(rows RowSource, proc *Processor, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 2 * cfg.Interval
	}
	return &Poller{
		rows:   rows,
		proc:   proc,
		cfg:    cfg,
		marker: NewMarker(),
		sleep:  sleepContext,
		log:    logger.With("poller"),
	}
}

// WithSleep replaces the wait between cycles. f returns false to stop Run.
func (p *Poller) WithSleep(f func(ctx context.Context, d time.Duration) bool) *Poller {
	p.sleep = f
	return p
}

// Marker returns the identities dispatched so far in this run.
func (p *Poller) Marker() *Marker { return p.marker }

// Run polls until ctx is cancelled, which returns nil. The only error is a
// configuration error wrapping ErrMissingColumn.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started", "interval", p.cfg.Interval, "columns", p.cfg.Columns.Required())
	defer p.releaseLease()

	for {
		if ctx.Err() != nil {
			p.log.Info("polling stopped")
			return nil
		}
		wait, err := p.safeCycle(ctx)
		if err != nil {
			return err
		}
		if !p.sleep(ctx, wait) {
			p.log.Info("polling stopped")
			return nil
		}
	}
}

// RunOnce runs exactly one cycle and releases the lease.
func (p *Poller) RunOnce(ctx context.Context) error {
	defer p.releaseLease()
	_, err := p.safeCycle(ctx)
	return err
}

// safeCycle runs a cycle and turns a panic into an error-backoff wait.
func (p *Poller) safeCycle(ctx context.Context) (wait time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("cycle panicked, backing off", "panic", fmt.Sprint(r), "backoff", p.cfg.ErrorBackoff, "stack", string(debug.Stack()))
			p.record(ctx, "poller", fmt.Sprintf("unexpected error in poll cycle: %v", r))
			p.cfg.Metrics.CycleFinished("panic", time.Since(start))
			wait, err = p.cfg.ErrorBackoff, nil
		}
	}()

	result, err := p.cycle(ctx)
	if err != nil {
		p.cfg.Metrics.CycleFinished("config_error", time.Since(start))
		return 0, err
	}
	p.cfg.Metrics.CycleFinished(result, time.Since(start))
	return p.cfg.Interval, nil
}

func (p *Poller) cycle(ctx context.Context) (string, error) {
	if p.cfg.Lease != nil {
		held, err := p.cfg.Lease.Hold(ctx)
		if err != nil {
			p.log.Warn("lease check failed", "error", err)
			p.record(ctx, "lease", err.Error())
			return "lease_error", nil
		}
		if !held {
			p.log.Debug("lease held by another instance, standing by")
			return "standby", nil
		}
	}

	headers, data, err := p.rows.ReadAll(ctx)
	if err != nil {
		p.log.Error("sheet read failed", "error", err)
		p.record(ctx, "sheet", fmt.Sprintf("read sheet: %v", err))
		return "fetch_error", nil
	}
	if len(headers) == 0 {
		p.log.Debug("sheet has no header row")
		return "empty", nil
	}

	cols, err := ResolveColumns(headers, p.cfg.Columns)
	if err != nil {
		p.log.Error("sheet layout invalid", "error", err)
		return "", err
	}
	if len(data) == 0 {
		p.log.Debug("no data rows, waiting for new entries")
		return "empty", nil
	}

	cyc := &Cycle{Headers: headers, Columns: cols}
	for i, values := range data {
		if ctx.Err() != nil {
			p.log.Info("interrupted between rows", "next_row", i)
			return "interrupted", nil
		}
		if i > 0 {
			if result, ok := p.renewLease(ctx, i); !ok {
				return result, nil
			}
		}
		outcome := p.processRow(ctx, cyc, domain.Row{Index: i, Values: values})
		p.cfg.Metrics.RowProcessed(outcome.String())
	}
	return "ok", nil
}

// processRow isolates one row: a panic is logged and recorded and the cycle
// moves on to the next row.
func (p *Poller) processRow(ctx context.Context, cyc *Cycle, row domain.Row) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("row panicked", "row", row.Index, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			p.record(ctx, "pipeline", fmt.Sprintf("unexpected error on row %d: %v", row.Index, r))
			outcome = OutcomePanic
		}
	}()
	return p.proc.Process(ctx, cyc, row, p.marker)
}

// renewLease keeps the lease across a long cycle. A lost lease ends the cycle
// before row i so another instance never works the same rows concurrently.
func (p *Poller) renewLease(ctx context.Context, i int) (string, bool) {
	if p.cfg.Lease == nil {
		return "", true
	}
	held, err := p.cfg.Lease.Renew(ctx)
	if err != nil {
		p.log.Warn("lease renewal failed, ending cycle", "next_row", i, "error", err)
		p.record(ctx, "lease", fmt.Sprintf("renew before row %d: %v", i, err))
		return "lease_error", false
	}
	if !held {
		p.log.Warn("lease lost mid-cycle, ending cycle", "next_row", i)
		p.record(ctx, "lease", fmt.Sprintf("lease lost before row %d", i))
		return "lease_lost", false
	}
	return "", true
}

func (p *Poller) record(ctx context.Context, source, msg string) {
	if p.cfg.Errors != nil {
		p.cfg.Errors.Add(context.WithoutCancel(ctx), source, msg)
	}
}

func (p *Poller) releaseLease() {
	if p.cfg.Lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cfg.Lease.Release(ctx); err != nil {
		p.log.Warn("lease release failed", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
