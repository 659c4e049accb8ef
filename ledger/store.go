/*
store.go - Persistence interfaces for the ledger

PURPOSE:
  Defines the contract between the domain services and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Record-level reads and writes (accounts, calendar, entries)
  TxStore: Store plus WithTx for atomic multi-step transitions

TRANSACTION DISCIPLINE:
  Every state transition (createDraft, post, reverse, close/reopen) runs
  inside a single WithTx call: read current state, validate, write new
  state. The store's transaction isolation - not an application lock
  table - serializes concurrent writers. Two concurrent posts on the same
  entry cannot both succeed; the loser re-reads and fails with ErrNotDraft.

ENTRY NUMBERING:
  NextEntryNumber is a store-owned monotonic sequence claimed inside the
  same transaction as the entry insert. Numbers never repeat and never go
  backward; a rolled-back transaction may leave a gap, which is permitted.

REPORTING READS:
  PostedActivity and FundActivity may run outside WithTx against a
  read-committed view, but must never observe a half-applied entry.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite (WAL, BEGIN IMMEDIATE)
  - ledger/store: In-memory for tests and demo mode

SEE ALSO:
  - engine.go: The sole writer of entry/line status
  - reports.go: Consumer of the activity reads
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Record-level persistence
// =============================================================================

type Store interface {
	// ------ chart of accounts ------

	// InsertAccount persists a new account. Fails with ErrDuplicateNumber
	// if the account number is taken.
	InsertAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	GetAccountByNumber(ctx context.Context, number string) (Account, error)
	// ListAccounts returns accounts ordered by account number.
	ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error)
	UpdateAccount(ctx context.Context, a Account) error

	// ------ funds & organization ------

	InsertFund(ctx context.Context, f Fund) error
	GetFund(ctx context.Context, id FundID) (Fund, error)
	GetFundByCode(ctx context.Context, code string) (Fund, error)
	ListFunds(ctx context.Context, activeOnly bool) ([]Fund, error)
	InsertSubsidiary(ctx context.Context, s Subsidiary) error
	GetSubsidiary(ctx context.Context, id SubsidiaryID) (Subsidiary, error)
	GetSubsidiaryByCode(ctx context.Context, code string) (Subsidiary, error)
	InsertDepartment(ctx context.Context, d Department) error

	// ------ fiscal calendar ------

	InsertFiscalYear(ctx context.Context, y FiscalYear) error
	InsertPeriod(ctx context.Context, p FiscalPeriod) error
	GetPeriod(ctx context.Context, id PeriodID) (FiscalPeriod, error)
	GetPeriodByCode(ctx context.Context, code string) (FiscalPeriod, error)
	// PeriodForDate resolves the single period containing the date.
	// Fails with ErrNoPeriodForDate when none covers it.
	PeriodForDate(ctx context.Context, d Date) (FiscalPeriod, error)
	// PeriodsThrough returns all periods ending on or before the given
	// date, ordered by period start ascending.
	PeriodsThrough(ctx context.Context, end Date) ([]FiscalPeriod, error)
	UpdatePeriodStatus(ctx context.Context, id PeriodID, status PeriodStatus) error

	// ------ journal entries ------

	// NextEntryNumber claims the next value of the monotonic entry
	// sequence. Must be called inside the transaction inserting the entry.
	NextEntryNumber(ctx context.Context) (int64, error)
	// InsertEntry persists a header and its lines together.
	InsertEntry(ctx context.Context, e JournalEntry) error
	// GetEntry returns the header with lines in caller-supplied order.
	GetEntry(ctx context.Context, id EntryID) (JournalEntry, error)
	GetEntryByNumber(ctx context.Context, number int64) (JournalEntry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]JournalEntry, error)
	// ReplaceLines swaps a draft's lines wholesale. The engine guards the
	// draft-only precondition.
	ReplaceLines(ctx context.Context, id EntryID, lines []JournalLine) error
	MarkPosted(ctx context.Context, id EntryID, by UserID, at time.Time) error
	MarkReversed(ctx context.Context, id EntryID, reversedBy EntryID) error

	// ------ balances & reporting ------

	// ApplyToBalances folds a posted entry's lines into the running
	// per-account, per-period balance totals. Called exactly once per
	// posting, inside the posting transaction.
	ApplyToBalances(ctx context.Context, e JournalEntry) error
	// AccountBalance sums the running balance rows for the account across
	// the given periods.
	AccountBalance(ctx context.Context, id AccountID, periods []PeriodID) (Balance, error)
	// PostedActivity aggregates posted lines per account.
	PostedActivity(ctx context.Context, f ActivityFilter) ([]ActivityRow, error)
	// FundActivity aggregates posted lines per line-level fund tag.
	FundActivity(ctx context.Context, periods []PeriodID) ([]FundActivityRow, error)
	// FundMismatches reports lines whose fund tag conflicts with the
	// account's declared fund. Advisory only.
	FundMismatches(ctx context.Context) ([]FundDiscrepancy, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction rolls back completely; otherwise it commits. The Store
	// passed to fn must only be used inside fn.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// FILTERS & ROWS
// =============================================================================

// EntryFilter narrows ListEntries. Zero values mean "any".
type EntryFilter struct {
	SubsidiaryID SubsidiaryID
	PeriodID     PeriodID
	Status       EntryStatus
	Source       EntrySource
	Limit        int
}

// ActivityFilter narrows PostedActivity. Empty Periods means all periods.
type ActivityFilter struct {
	Periods      []PeriodID
	SubsidiaryID SubsidiaryID
	Types        []AccountType
	FundID       FundID
}

// ActivityRow is one account's aggregated posted debits and credits.
type ActivityRow struct {
	Account Account
	Totals  Balance
}

// FundActivityRow is one fund's aggregated posted debits and credits,
// summed across all lines tagged with that fund.
type FundActivityRow struct {
	Fund    Fund
	Balance Balance
}

// FundDiscrepancy is an advisory report row: a posted or draft line whose
// fund tag disagrees with its account's declared fund.
type FundDiscrepancy struct {
	EntryNumber   int64
	LineNo        int
	AccountNumber string
	AccountFund   FundID
	LineFund      FundID
}
