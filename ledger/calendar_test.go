package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/ledger-engine/ledger"
)

// =============================================================================
// YEAR GENERATION
// =============================================================================

func TestGenerateYear_TwelveContiguousPeriods(t *testing.T) {
	// GIVEN: A fresh fiscal year starting January 2026
	// WHEN: Generating it
	// THEN: Twelve monthly periods, contiguous, non-overlapping, all open

	f := newFixture(t)

	require.Len(t, f.periods, 12)
	assert.Equal(t, "2026-01", f.periods[0].Code)
	assert.Equal(t, "2026-12", f.periods[11].Code)

	for i, p := range f.periods {
		assert.Equal(t, ledger.PeriodOpen, p.Status)
		if i > 0 {
			prev := f.periods[i-1]
			assert.True(t, p.Start.Equal(prev.End.AddDays(1)),
				"%s must start the day after %s ends", p.Code, prev.Code)
		}
	}
}

func TestGenerateYear_MidMonthStart_SnapsToFirst(t *testing.T) {
	// GIVEN: A start date of July 15
	// WHEN: Generating the year
	// THEN: Periods snap to the first of July

	f := newFixture(t)

	_, periods, err := f.calendar.GenerateYear(context.Background(), "FY2027",
		ledger.NewDate(2027, time.July, 15))
	require.NoError(t, err)

	assert.Equal(t, "2027-07", periods[0].Code)
	assert.True(t, periods[0].Start.Equal(ledger.NewDate(2027, time.July, 1)))
	assert.Equal(t, "2028-06", periods[11].Code)
}

func TestGenerateYear_Overlap_Rejected(t *testing.T) {
	// GIVEN: FY2026 already covers calendar 2026
	// WHEN: Generating another year overlapping it
	// THEN: Rejected; every date resolves to exactly one period

	f := newFixture(t)

	_, _, err := f.calendar.GenerateYear(context.Background(), "FY2026-dup",
		ledger.NewDate(2026, time.June, 1))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// DATE RESOLUTION
// =============================================================================

func TestResolvePeriod_DateInsidePeriod(t *testing.T) {
	f := newFixture(t)

	p, err := f.calendar.ResolvePeriod(context.Background(), ledger.NewDate(2026, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, "2026-03", p.Code)
}

func TestResolvePeriod_OutsideCalendar_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.calendar.ResolvePeriod(context.Background(), ledger.NewDate(2031, time.March, 1))
	assert.ErrorIs(t, err, ledger.ErrNoPeriodForDate)
}

// =============================================================================
// PERIOD STATE MACHINE
// =============================================================================

func TestClose_ThenReopen_LandsInAdjusting(t *testing.T) {
	// GIVEN: An open period
	// WHEN: Closing then reopening
	// THEN: open -> closed -> adjusting; adjusting accepts postings

	f := newFixture(t)
	ctx := context.Background()
	jan := f.periodByCode(t, "2026-01")

	closed, err := f.calendar.Close(ctx, jan.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodClosed, closed.Status)
	assert.False(t, closed.Status.AcceptsPostings())

	reopened, err := f.calendar.Reopen(ctx, jan.ID, "controller")
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodAdjusting, reopened.Status)
	assert.True(t, reopened.Status.AcceptsPostings())
}

func TestClose_AlreadyClosed_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := f.periodByCode(t, "2026-01")

	_, err := f.calendar.Close(ctx, jan.ID, "controller")
	require.NoError(t, err)

	_, err = f.calendar.Close(ctx, jan.ID, "controller")
	assert.ErrorIs(t, err, ledger.ErrPeriodAlreadyClosed)
}

func TestReopen_OpenPeriod_Rejected(t *testing.T) {
	f := newFixture(t)

	jan := f.periodByCode(t, "2026-01")
	_, err := f.calendar.Reopen(context.Background(), jan.ID, "controller")
	assert.ErrorIs(t, err, ledger.ErrPeriodNotClosed)
}

func TestClose_DoesNotTouchPostedEntries(t *testing.T) {
	// GIVEN: An entry posted while the period was open
	// WHEN: Closing the period
	// THEN: The entry stays posted and its balances stand

	f := newFixture(t)
	ctx := context.Background()

	entry := f.simpleDraft(t, "200.00")
	_, err := f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	mar := f.periodByCode(t, "2026-03")
	_, err = f.calendar.Close(ctx, mar.ID, "controller")
	require.NoError(t, err)

	got, err := f.engine.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryPosted, got.Status)

	balance, err := f.engine.GetBalance(ctx, f.cash.ID, "2026-03")
	require.NoError(t, err)
	assert.True(t, balance.Net(ledger.SideDebit).Equal(amt("200.00")))
}

func TestCloseReopen_EmitsAuditEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := f.periodByCode(t, "2026-01")

	_, err := f.calendar.Close(ctx, jan.ID, "controller")
	require.NoError(t, err)
	_, err = f.calendar.Reopen(ctx, jan.ID, "controller")
	require.NoError(t, err)

	var actions []string
	for _, ev := range f.audit.Events() {
		if ev.ResourceType == "fiscal_period" {
			actions = append(actions, ev.Action)
			assert.Equal(t, ledger.UserID("controller"), ev.Actor)
		}
	}
	assert.Equal(t, []string{ledger.ActionPeriodClose, ledger.ActionPeriodReopen}, actions)
}
