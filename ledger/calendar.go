/*
calendar.go - Fiscal calendar and period state machine

PURPOSE:
  Owns fiscal years and their periods, resolves entry dates to periods,
  and drives the per-period state machine:

    open ------close------> closed
    closed ----reopen-----> adjusting

  A period can cycle between closed and posting-permitted states any
  number of times. Closing is a soft gate on NEW postings: entries posted
  while the period was open remain posted, and reopening is always
  permitted. Reopen lands in "adjusting" rather than "open" to mark
  late corrections; adjusting periods accept postings like open ones.

INVARIANTS:
  - Periods within a year are contiguous and non-overlapping
  - A calendar date resolves to exactly one period

SEE ALSO:
  - engine.go: Re-checks the live period status inside every post
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Calendar manages fiscal years and periods.
type Calendar struct {
	store TxStore
	audit AuditLog
	now   func() time.Time
}

func NewCalendar(store TxStore, audit AuditLog) *Calendar {
	return &Calendar{store: store, audit: audit, now: time.Now}
}

// WithClock overrides the calendar's time source. For tests.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	c.now = now
	return c
}

// GenerateYear creates a fiscal year of twelve contiguous monthly periods
// starting at the first day of start's month. Period codes are YYYY-MM.
func (c *Calendar) GenerateYear(ctx context.Context, name string, start Date) (FiscalYear, []FiscalPeriod, error) {
	if name == "" {
		return FiscalYear{}, nil, fmt.Errorf("%w: fiscal year name is required", ErrValidation)
	}

	first := NewDate(start.Year(), start.Month(), 1)
	year := FiscalYear{
		ID:    NewFiscalYearID(),
		Name:  name,
		Start: first,
		End:   first.AddMonths(12).AddDays(-1),
	}

	periods := make([]FiscalPeriod, 0, 12)
	for i := 0; i < 12; i++ {
		pStart := first.AddMonths(i)
		periods = append(periods, FiscalPeriod{
			ID:     NewPeriodID(),
			YearID: year.ID,
			Code:   fmt.Sprintf("%04d-%02d", pStart.Year(), int(pStart.Month())),
			Name:   fmt.Sprintf("%s %d", pStart.Month(), pStart.Year()),
			Start:  pStart,
			End:    pStart.AddMonths(1).AddDays(-1),
			Status: PeriodOpen,
		})
	}

	err := c.store.WithTx(ctx, func(s Store) error {
		// Overlap with an existing calendar would break the one-period-
		// per-date invariant.
		for _, p := range periods {
			if existing, err := s.PeriodForDate(ctx, p.Start); err == nil {
				return fmt.Errorf("%w: period %s overlaps existing %s",
					ErrValidation, p.Code, existing.Code)
			} else if !IsNotFound(err) {
				return err
			}
		}
		if err := s.InsertFiscalYear(ctx, year); err != nil {
			return err
		}
		for _, p := range periods {
			if err := s.InsertPeriod(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return FiscalYear{}, nil, err
	}
	return year, periods, nil
}

// ResolvePeriod returns the single period containing the date.
func (c *Calendar) ResolvePeriod(ctx context.Context, d Date) (FiscalPeriod, error) {
	return c.store.PeriodForDate(ctx, d)
}

// Close transitions a period to closed, gating new postings.
func (c *Calendar) Close(ctx context.Context, id PeriodID, actingUser UserID) (FiscalPeriod, error) {
	var period FiscalPeriod
	err := c.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == PeriodClosed {
			return fmt.Errorf("%w: %s", ErrPeriodAlreadyClosed, p.Code)
		}
		if err := s.UpdatePeriodStatus(ctx, id, PeriodClosed); err != nil {
			return err
		}
		p.Status = PeriodClosed
		period = p
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}

	c.emit(ctx, actingUser, ActionPeriodClose, period, "closed")
	return period, nil
}

// Reopen transitions a closed period to adjusting, restoring postability.
func (c *Calendar) Reopen(ctx context.Context, id PeriodID, actingUser UserID) (FiscalPeriod, error) {
	var period FiscalPeriod
	err := c.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != PeriodClosed {
			return fmt.Errorf("%w: %s is %s", ErrPeriodNotClosed, p.Code, p.Status)
		}
		if err := s.UpdatePeriodStatus(ctx, id, PeriodAdjusting); err != nil {
			return err
		}
		p.Status = PeriodAdjusting
		period = p
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}

	c.emit(ctx, actingUser, ActionPeriodReopen, period, "adjusting")
	return period, nil
}

func (c *Calendar) emit(ctx context.Context, actor UserID, action string, p FiscalPeriod, newStatus string) {
	_ = c.audit.Record(ctx, AuditEvent{
		Actor:        actor,
		Action:       action,
		ResourceType: "fiscal_period",
		ResourceID:   string(p.ID),
		Details: map[string]any{
			"period_code": p.Code,
			"status":      newStatus,
		},
		At: c.now().UTC(),
	})
}
