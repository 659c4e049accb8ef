package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/ledger-engine/ledger"
	"github.com/openbooks/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testClock = func() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

type env struct {
	store    *sqlite.Store
	engine   *ledger.Engine
	registry *ledger.Registry
	calendar *ledger.Calendar
	reporter *ledger.Reporter

	sub     ledger.Subsidiary
	cash    ledger.Account
	revenue ledger.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := &env{
		store:    store,
		engine:   ledger.NewEngine(store, store).WithClock(testClock),
		registry: ledger.NewRegistry(store, store),
		calendar: ledger.NewCalendar(store, store).WithClock(testClock),
		reporter: ledger.NewReporter(store),
	}

	e.sub = ledger.Subsidiary{
		ID:       ledger.NewSubsidiaryID(),
		Code:     "MAIN",
		Name:     "Main Org",
		Currency: "USD",
		Active:   true,
	}
	require.NoError(t, store.InsertSubsidiary(ctx, e.sub))

	_, _, err = e.calendar.GenerateYear(ctx, "FY2026", ledger.NewDate(2026, time.January, 1))
	require.NoError(t, err)

	e.cash = e.mustAccount(t, "1000", "Cash", ledger.AccountAsset)
	e.revenue = e.mustAccount(t, "4000", "Donations", ledger.AccountRevenue)

	return e
}

func (e *env) mustAccount(t *testing.T, number, name string, typ ledger.AccountType) ledger.Account {
	t.Helper()
	account, err := e.registry.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Number:        number,
		Name:          name,
		Type:          typ,
		NormalBalance: typ.NormalSide(),
		ActingUser:    "tester",
	})
	require.NoError(t, err)
	return account
}

func (e *env) draft(t *testing.T, amount string) ledger.JournalEntry {
	t.Helper()
	entry, err := e.engine.CreateDraft(context.Background(), ledger.DraftInput{
		SubsidiaryID: e.sub.ID,
		Date:         ledger.NewDate(2026, time.March, 15),
		Memo:         "Donation received",
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 1, AccountID: e.cash.ID, Debit: ledger.MustParseDecimal(amount)},
			{LineNo: 2, AccountID: e.revenue.ID, Credit: ledger.MustParseDecimal(amount)},
		},
	})
	require.NoError(t, err)
	return entry
}

// =============================================================================
// PERSISTENCE ROUND TRIPS
// =============================================================================

func TestSQLite_EntryLifecycle(t *testing.T) {
	// GIVEN: A SQLite-backed engine
	// WHEN: Running draft -> post -> reverse
	// THEN: Every state transition and line survives persistence

	e := newEnv(t)
	ctx := context.Background()

	entry := e.draft(t, "5000.00")
	_, err := e.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)
	reversal, err := e.engine.Reverse(ctx, entry.ID, "approver")
	require.NoError(t, err)

	original, err := e.store.GetEntryByNumber(ctx, entry.Number)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryReversed, original.Status)
	assert.Equal(t, reversal.ID, original.ReversedByID)
	require.Len(t, original.Lines, 2)
	assert.True(t, original.Lines[0].Debit.Equal(ledger.MustParseDecimal("5000.00")))

	mirror, err := e.store.GetEntryByNumber(ctx, reversal.Number)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryPosted, mirror.Status)
	assert.True(t, mirror.Lines[0].Credit.Equal(ledger.MustParseDecimal("5000.00")))

	balance, err := e.engine.GetBalance(ctx, e.cash.ID, "2026-03")
	require.NoError(t, err)
	assert.True(t, balance.Net(ledger.SideDebit).IsZero())
}

func TestSQLite_DuplicateAccountNumber(t *testing.T) {
	// The UNIQUE constraint on accounts.number maps to ErrDuplicateNumber.

	e := newEnv(t)

	err := e.store.InsertAccount(context.Background(), ledger.Account{
		ID:            ledger.NewAccountID(),
		Number:        "1000",
		Name:          "Shadow Cash",
		Type:          ledger.AccountAsset,
		NormalBalance: ledger.SideDebit,
		Active:        true,
		CreatedAt:     testClock(),
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateNumber)
}

func TestSQLite_LineOrderPreserved(t *testing.T) {
	// GIVEN: Lines inserted with arbitrary LineNo values
	// WHEN: Reading the entry back
	// THEN: Insertion order is preserved; LineNo is not a sort key

	e := newEnv(t)
	ctx := context.Background()

	entry, err := e.engine.CreateDraft(ctx, ledger.DraftInput{
		SubsidiaryID: e.sub.ID,
		Date:         ledger.NewDate(2026, time.March, 15),
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 9, AccountID: e.cash.ID, Debit: ledger.MustParseDecimal("10.00")},
			{LineNo: 2, AccountID: e.revenue.ID, Credit: ledger.MustParseDecimal("10.00")},
		},
	})
	require.NoError(t, err)

	got, err := e.store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 9, got.Lines[0].LineNo)
	assert.Equal(t, 2, got.Lines[1].LineNo)
}

func TestSQLite_PeriodForDate_NotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.store.PeriodForDate(context.Background(), ledger.NewDate(2031, time.January, 1))
	assert.ErrorIs(t, err, ledger.ErrNoPeriodForDate)
}

// =============================================================================
// ENTRY NUMBER SEQUENCE
// =============================================================================

func TestSQLite_EntryNumbers_MonotonicAcrossRollback(t *testing.T) {
	// GIVEN: A transaction that claims a number and rolls back
	// WHEN: The next entry is created
	// THEN: Its number is strictly greater; the claimed value is a gap,
	//       never reissued

	e := newEnv(t)
	ctx := context.Background()

	before := e.draft(t, "1.00")

	var claimed int64
	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		n, err := s.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		claimed = n
		return ledger.ErrValidation // force rollback
	})
	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Greater(t, claimed, before.Number)

	after := e.draft(t, "2.00")
	assert.Greater(t, after.Number, claimed)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestSQLite_ConcurrentDoublePost_OneLoser(t *testing.T) {
	// GIVEN: One draft and two concurrent post attempts
	// WHEN: Both race through the transaction
	// THEN: Exactly one succeeds; the loser sees ErrNotDraft and the
	//       entry's lines hit the balances exactly once

	e := newEnv(t)
	ctx := context.Background()
	entry := e.draft(t, "100.00")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.engine.Post(ctx, entry.ID, "approver")
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ledger.ErrNotDraft)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	balance, err := e.engine.GetBalance(ctx, e.cash.ID, "2026-03")
	require.NoError(t, err)
	assert.True(t, balance.DebitTotal.Equal(ledger.MustParseDecimal("100.00")),
		"balance applied exactly once, got %s", balance.DebitTotal)
}

// =============================================================================
// REPORTING SQL
// =============================================================================

func TestSQLite_TrialBalance_TotalsEqual(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, amount := range []string{"100.00", "250.50", "0.01"} {
		entry := e.draft(t, amount)
		_, err := e.engine.Post(ctx, entry.ID, "approver")
		require.NoError(t, err)
	}

	report, err := e.reporter.TrialBalance(ctx, "2026-03", "")
	require.NoError(t, err)
	assert.True(t, report.TotalDebits.Equal(ledger.MustParseDecimal("350.51")))
	assert.True(t, report.TotalDebits.Equal(report.TotalCredits))
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestSQLite_AuditLog_PersistsEvents(t *testing.T) {
	// GIVEN: Engine mutations with the store as the audit sink
	// WHEN: Reading the audit trail back
	// THEN: Events survive with actor and details intact

	e := newEnv(t)
	ctx := context.Background()

	entry := e.draft(t, "42.00")
	_, err := e.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	events, err := e.store.AuditEvents(ctx, ledger.ActionEntryPost)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ledger.UserID("approver"), events[0].Actor)
	assert.Equal(t, "journal_entry", events[0].ResourceType)
	assert.Equal(t, "42.00", events[0].Details["total_debits"])
}
