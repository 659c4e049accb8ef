/*
Package ledger provides the general-ledger posting and period-close engine.

PURPOSE:
  This package contains the domain types and services for a nonprofit,
  multi-subsidiary general ledger: chart of accounts, double-entry journal
  entries, fiscal period gating, running balances, and financial reporting.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A node in the chart-of-accounts tree with a normal balance side
  - JournalEntry / JournalLine: A balanced set of debit/credit lines
  - FiscalYear / FiscalPeriod: Date ranges gating whether postings are accepted
  - Fund / Subsidiary / Department: Reporting dimensions on entries and lines
  - Date: A day-granular point in time (entry dates, period boundaries)

DESIGN PRINCIPLES:
  1. Immutability: Posted entries are never edited, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing account/entry IDs
  4. Auditability: Every state transition emits an audit event

SEE ALSO:
  - engine.go: Draft/post/reverse lifecycle
  - calendar.go: Fiscal period state machine
  - registry.go: Chart-of-accounts operations
  - reports.go: Trial balance and financial statements
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	AccountID    string
	FundID       string
	SubsidiaryID string
	DepartmentID string
	FiscalYearID string
	PeriodID     string
	EntryID      string
	LineID       string
	UserID       string
)

func NewAccountID() AccountID       { return AccountID(uuid.NewString()) }
func NewFundID() FundID             { return FundID(uuid.NewString()) }
func NewSubsidiaryID() SubsidiaryID { return SubsidiaryID(uuid.NewString()) }
func NewDepartmentID() DepartmentID { return DepartmentID(uuid.NewString()) }
func NewFiscalYearID() FiscalYearID { return FiscalYearID(uuid.NewString()) }
func NewPeriodID() PeriodID         { return PeriodID(uuid.NewString()) }
func NewEntryID() EntryID           { return EntryID(uuid.NewString()) }
func NewLineID() LineID             { return LineID(uuid.NewString()) }

// =============================================================================
// DATE - Day-granular point in time
// =============================================================================

// Date is a civil date in UTC. Entry dates and period boundaries are
// day-granular; wall-clock timestamps (PostedAt, CreatedAt) use time.Time.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now().UTC()) }

// ParseDate parses a date in 2006-01-02 form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Before(other Date) bool { return d.norm().Before(other.norm()) }
func (d Date) After(other Date) bool  { return d.norm().After(other.norm()) }
func (d Date) Equal(other Date) bool  { return d.norm().Equal(other.norm()) }
func (d Date) BeforeOrEqual(other Date) bool {
	return d.Before(other) || d.Equal(other)
}
func (d Date) AfterOrEqual(other Date) bool {
	return d.After(other) || d.Equal(other)
}

func (d Date) AddDays(n int) Date   { return Date{Time: d.norm().AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.norm().AddDate(0, n, 0)} }

func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.norm().Format("2006-01-02") }

func (d Date) norm() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which this account type's balance grows.
// Asset/expense accounts are debit-normal; liability/equity/revenue are
// credit-normal. An Account stores its side explicitly but must agree.
func (t AccountType) NormalSide() BalanceSide {
	switch t {
	case AccountAsset, AccountExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

type BalanceSide string

const (
	SideDebit  BalanceSide = "debit"
	SideCredit BalanceSide = "credit"
)

func (s BalanceSide) Valid() bool { return s == SideDebit || s == SideCredit }

// Account is a chart-of-accounts node. Parent links form a tree (no cycles,
// enforced by the registry). Accounts are never physically deleted once
// referenced by a posted line; they are deactivated instead.
type Account struct {
	ID            AccountID
	Number        string
	Name          string
	Type          AccountType
	NormalBalance BalanceSide
	ParentID      AccountID // empty = root
	FundID        FundID    // empty = no fund association
	Active        bool
	Description   string
	CreatedAt     time.Time
}

// AccountNode is a tree view over accounts, recomputed fresh on each
// Registry.Tree call. Children are ordered by account number.
type AccountNode struct {
	Account  Account
	Children []*AccountNode
}

// =============================================================================
// FUND ACCOUNTING & ORGANIZATION
// =============================================================================

type FundType string

const (
	FundUnrestricted   FundType = "unrestricted"
	FundTempRestricted FundType = "temporarily_restricted"
	FundPermRestricted FundType = "permanently_restricted"
)

type Fund struct {
	ID          FundID
	Code        string
	Name        string
	Type        FundType
	Description string
	Active      bool
}

type Subsidiary struct {
	ID       SubsidiaryID
	Code     string
	Name     string
	Currency string
	Active   bool
}

type Department struct {
	ID           DepartmentID
	SubsidiaryID SubsidiaryID
	Code         string
	Name         string
}

// =============================================================================
// FISCAL CALENDAR
// =============================================================================

type PeriodStatus string

const (
	PeriodOpen      PeriodStatus = "open"
	PeriodClosed    PeriodStatus = "closed"
	PeriodAdjusting PeriodStatus = "adjusting"
)

// AcceptsPostings reports whether new entries may post into a period in
// this status. Closing is a soft gate on new postings, not a seal; an
// adjusting period accepts postings just like an open one.
func (s PeriodStatus) AcceptsPostings() bool {
	return s == PeriodOpen || s == PeriodAdjusting
}

type FiscalYear struct {
	ID     FiscalYearID
	Name   string
	Start  Date
	End    Date
	Closed bool
}

// FiscalPeriod is a bounded date range within a fiscal year. Periods within
// a year are contiguous and non-overlapping: a date resolves to exactly one.
type FiscalPeriod struct {
	ID     PeriodID
	YearID FiscalYearID
	Code   string // YYYY-MM
	Name   string // e.g. "January 2026"
	Start  Date
	End    Date
	Status PeriodStatus
}

// Contains reports whether the date falls within [Start, End].
func (p FiscalPeriod) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// =============================================================================
// JOURNAL ENTRIES
// =============================================================================

type EntryStatus string

const (
	EntryDraft    EntryStatus = "draft"
	EntryPosted   EntryStatus = "posted"
	EntryReversed EntryStatus = "reversed"
)

type EntrySource string

const (
	SourceManual    EntrySource = "manual"
	SourceImport    EntrySource = "import"
	SourceSystem    EntrySource = "system"
	SourceSubsystem EntrySource = "subsystem"
)

// JournalEntry is the header of a balanced set of debit/credit lines.
// Lifecycle: draft -> posted -> reversed. Drafts are mutable; a posted
// entry is immutable and may spawn exactly one reversal.
type JournalEntry struct {
	ID           EntryID
	Number       int64 // monotonic, human-facing; gaps allowed, never reused
	SubsidiaryID SubsidiaryID
	PeriodID     PeriodID
	Date         Date
	Memo         string
	Source       EntrySource
	SourceRef    string // upstream reference, e.g. "reversal:<entry id>"
	Status       EntryStatus
	CreatedBy    UserID
	CreatedAt    time.Time
	PostedBy     UserID
	PostedAt     *time.Time
	ReversedByID EntryID // set once a reversal entry exists

	Lines []JournalLine
}

// Totals returns the debit and credit sums across all lines.
func (e JournalEntry) Totals() (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	return debits, credits
}

// Balanced reports whether debits equal credits exactly, to the cent.
func (e JournalEntry) Balanced() bool {
	debits, credits := e.Totals()
	return debits.Equal(credits)
}

// JournalLine is a single debit or credit within an entry. Exactly one of
// Debit/Credit is positive, never both, never neither. Line numbers are
// caller-supplied and preserved verbatim for stable external references.
type JournalLine struct {
	ID           LineID
	EntryID      EntryID
	LineNo       int
	AccountID    AccountID
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Memo         string
	DepartmentID DepartmentID
	FundID       FundID
	CostCenter   string
	Currency     string // ISO-4217, amounts stored in entry currency
	ExchangeRate decimal.Decimal
}

// =============================================================================
// BALANCES
// =============================================================================

// Balance is an account's accumulated posted activity: total debits and
// total credits, never netted prematurely.
type Balance struct {
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

// Net returns the balance netted onto the given normal side.
func (b Balance) Net(side BalanceSide) decimal.Decimal {
	if side == SideDebit {
		return b.DebitTotal.Sub(b.CreditTotal)
	}
	return b.CreditTotal.Sub(b.DebitTotal)
}

func (b Balance) Add(other Balance) Balance {
	return Balance{
		DebitTotal:  b.DebitTotal.Add(other.DebitTotal),
		CreditTotal: b.CreditTotal.Add(other.CreditTotal),
	}
}

func ZeroBalance() Balance {
	return Balance{DebitTotal: decimal.Zero, CreditTotal: decimal.Zero}
}
