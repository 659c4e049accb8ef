/*
engine.go - Journal entry lifecycle engine

PURPOSE:
  The Engine is the sole writer of journal entry and line state. It
  validates, persists, posts, and reverses entries, and computes running
  account balances from posted lines.

STATE MACHINE (per entry):

    draft --[post]--> posted --[reverse]--> reversed

  No transition skips a state, with one deliberate exception: reversal
  entries are born posted. Drafts may be edited in place; posted entries
  are immutable and corrected only via reversal. No entry is ever deleted
  after posting.

ATOMICITY:
  Every transition runs inside a single store transaction: read state,
  validate, write. The period-open check at post time and the status
  write happen in the same atomic unit - a period cannot close mid-post.
  Two concurrent posts of one entry serialize; the loser sees ErrNotDraft.

ENTRY NUMBERS:
  Claimed from the store-owned sequence inside the inserting transaction.
  Strictly increasing, never reused; a rollback may leave a gap.

SEE ALSO:
  - store.go: Transaction contract the engine relies on
  - calendar.go: Period status the engine re-checks live
  - reports.go: Read-side aggregation over posted lines
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Engine validates and transitions journal entries.
type Engine struct {
	store TxStore
	audit AuditLog
	now   func() time.Time
}

func NewEngine(store TxStore, audit AuditLog) *Engine {
	return &Engine{store: store, audit: audit, now: time.Now}
}

// WithClock overrides the engine's time source. For tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// =============================================================================
// INPUTS
// =============================================================================

// LineInput is a caller-supplied journal line. LineNo is preserved
// verbatim, not re-sequenced.
type LineInput struct {
	LineNo       int
	AccountID    AccountID
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Memo         string
	DepartmentID DepartmentID
	FundID       FundID
	CostCenter   string
	Currency     string
	ExchangeRate decimal.Decimal
}

// DraftInput creates a new draft entry. PeriodID is optional; when empty
// the period is resolved from Date.
type DraftInput struct {
	SubsidiaryID SubsidiaryID
	PeriodID     PeriodID
	Date         Date
	Memo         string
	Source       EntrySource
	SourceRef    string
	CreatedBy    UserID
	Lines        []LineInput
}

// =============================================================================
// DRAFT CREATION & EDITING
// =============================================================================

// CreateDraft validates the input and persists a new draft entry with the
// next entry number. The draft's period is captured now but re-checked
// live at post time; drafting into a closed period is allowed.
func (e *Engine) CreateDraft(ctx context.Context, in DraftInput) (JournalEntry, error) {
	if in.Date.IsZero() {
		return JournalEntry{}, fmt.Errorf("%w: entry date is required", ErrValidation)
	}
	if in.Source == "" {
		in.Source = SourceManual
	}

	entry := JournalEntry{
		ID:           NewEntryID(),
		SubsidiaryID: in.SubsidiaryID,
		Date:         in.Date,
		Memo:         in.Memo,
		Source:       in.Source,
		SourceRef:    in.SourceRef,
		Status:       EntryDraft,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    e.now().UTC(),
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetSubsidiary(ctx, in.SubsidiaryID); err != nil {
			return err
		}

		if in.PeriodID != "" {
			period, err := s.GetPeriod(ctx, in.PeriodID)
			if err != nil {
				return err
			}
			entry.PeriodID = period.ID
		} else {
			period, err := s.PeriodForDate(ctx, in.Date)
			if err != nil {
				return err
			}
			entry.PeriodID = period.ID
		}

		lines, err := buildLines(entry.ID, in.Lines)
		if err != nil {
			return err
		}
		if err := validateLines(ctx, s, lines); err != nil {
			return err
		}
		entry.Lines = lines

		number, err := s.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		entry.Number = number

		return s.InsertEntry(ctx, entry)
	})
	if err != nil {
		return JournalEntry{}, err
	}

	debits, credits := entry.Totals()
	e.emit(ctx, in.CreatedBy, ActionEntryCreate, entry, map[string]any{
		"entry_number":  entry.Number,
		"status":        string(EntryDraft),
		"total_debits":  FormatAmount(debits),
		"total_credits": FormatAmount(credits),
	})
	return entry, nil
}

// UpdateDraft replaces a draft's lines under full validation. Only drafts
// are mutable.
func (e *Engine) UpdateDraft(ctx context.Context, id EntryID, lines []LineInput, actingUser UserID) (JournalEntry, error) {
	var updated JournalEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status != EntryDraft {
			return fmt.Errorf("%w: entry %d is %s", ErrNotDraft, entry.Number, entry.Status)
		}

		newLines, err := buildLines(id, lines)
		if err != nil {
			return err
		}
		if err := validateLines(ctx, s, newLines); err != nil {
			return err
		}
		if err := s.ReplaceLines(ctx, id, newLines); err != nil {
			return err
		}
		entry.Lines = newLines
		updated = entry
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	debits, credits := updated.Totals()
	e.emit(ctx, actingUser, ActionEntryUpdate, updated, map[string]any{
		"entry_number":  updated.Number,
		"total_debits":  FormatAmount(debits),
		"total_credits": FormatAmount(credits),
	})
	return updated, nil
}

// =============================================================================
// POSTING
// =============================================================================

// Post transitions a draft to posted and applies its lines to the running
// account balances, all in one transaction. The balance is re-validated
// and the period status re-read live: a period that closed since the
// draft was created rejects the post.
func (e *Engine) Post(ctx context.Context, id EntryID, actingUser UserID) (JournalEntry, error) {
	var posted JournalEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status != EntryDraft {
			return fmt.Errorf("%w: entry %d is %s", ErrNotDraft, entry.Number, entry.Status)
		}
		// Defend against concurrent draft edits.
		if err := validateLines(ctx, s, entry.Lines); err != nil {
			return err
		}

		period, err := s.GetPeriod(ctx, entry.PeriodID)
		if err != nil {
			return err
		}
		if !period.Status.AcceptsPostings() {
			return &PeriodClosedError{Code: period.Code, Status: period.Status}
		}

		at := e.now().UTC()
		if err := s.MarkPosted(ctx, id, actingUser, at); err != nil {
			return err
		}
		entry.Status = EntryPosted
		entry.PostedBy = actingUser
		entry.PostedAt = &at

		if err := s.ApplyToBalances(ctx, entry); err != nil {
			return err
		}
		posted = entry
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	debits, credits := posted.Totals()
	e.emit(ctx, actingUser, ActionEntryPost, posted, map[string]any{
		"entry_number":  posted.Number,
		"status_before": string(EntryDraft),
		"status_after":  string(EntryPosted),
		"total_debits":  FormatAmount(debits),
		"total_credits": FormatAmount(credits),
	})
	return posted, nil
}

// =============================================================================
// REVERSAL
// =============================================================================

// Reverse creates and posts the mirror of a posted entry: same
// subsidiary, debit/credit swapped 1:1, dated now, with the period
// resolved fresh from the reversal date. Reversals intentionally land in
// the currently open period, not the original's. The original becomes
// reversed and keeps its posted lines; net effect reaches zero because
// the reversal itself posts with opposite signs.
func (e *Engine) Reverse(ctx context.Context, id EntryID, actingUser UserID) (JournalEntry, error) {
	var reversal JournalEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		original, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if original.Status == EntryReversed || original.ReversedByID != "" {
			return fmt.Errorf("%w: entry %d", ErrAlreadyReversed, original.Number)
		}
		if original.Status != EntryPosted {
			return fmt.Errorf("%w: entry %d is %s", ErrNotPosted, original.Number, original.Status)
		}

		// A deactivated account cannot silently receive the mirrored
		// posting; fail with the specific account named.
		for _, l := range original.Lines {
			account, err := s.GetAccount(ctx, l.AccountID)
			if err != nil {
				return err
			}
			if !account.Active {
				return fmt.Errorf("%w: cannot reverse against account %s (%s)",
					ErrAccountInactive, account.Number, account.Name)
			}
		}

		at := e.now().UTC()
		today := DateOf(at)
		period, err := s.PeriodForDate(ctx, today)
		if err != nil {
			return err
		}
		if !period.Status.AcceptsPostings() {
			return &PeriodClosedError{Code: period.Code, Status: period.Status}
		}

		number, err := s.NextEntryNumber(ctx)
		if err != nil {
			return err
		}

		rev := JournalEntry{
			ID:           NewEntryID(),
			Number:       number,
			SubsidiaryID: original.SubsidiaryID,
			PeriodID:     period.ID,
			Date:         today,
			Memo:         fmt.Sprintf("Reversal of JE #%d: %s", original.Number, original.Memo),
			Source:       original.Source,
			SourceRef:    fmt.Sprintf("reversal:%s", original.ID),
			Status:       EntryPosted,
			CreatedBy:    actingUser,
			CreatedAt:    at,
			PostedBy:     actingUser,
			PostedAt:     &at,
		}
		for _, l := range original.Lines {
			rev.Lines = append(rev.Lines, JournalLine{
				ID:           NewLineID(),
				EntryID:      rev.ID,
				LineNo:       l.LineNo,
				AccountID:    l.AccountID,
				Debit:        l.Credit, // swapped
				Credit:       l.Debit,  // swapped
				Memo:         fmt.Sprintf("Reversal: %s", l.Memo),
				DepartmentID: l.DepartmentID,
				FundID:       l.FundID,
				CostCenter:   l.CostCenter,
				Currency:     l.Currency,
				ExchangeRate: l.ExchangeRate,
			})
		}

		if err := s.InsertEntry(ctx, rev); err != nil {
			return err
		}
		if err := s.ApplyToBalances(ctx, rev); err != nil {
			return err
		}
		if err := s.MarkReversed(ctx, original.ID, rev.ID); err != nil {
			return err
		}
		reversal = rev
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	e.emit(ctx, actingUser, ActionEntryReverse, reversal, map[string]any{
		"original_entry": string(id),
		"reversal_entry": reversal.Number,
	})
	return reversal, nil
}

// =============================================================================
// READS
// =============================================================================

// GetEntry returns an entry with its lines.
func (e *Engine) GetEntry(ctx context.Context, id EntryID) (JournalEntry, error) {
	return e.store.GetEntry(ctx, id)
}

// ListEntries returns entries matching the filter, ordered by entry number.
func (e *Engine) ListEntries(ctx context.Context, f EntryFilter) ([]JournalEntry, error) {
	return e.store.ListEntries(ctx, f)
}

// GetBalance sums the account's posted activity across all periods up to
// and including the as-of period, ordered by period start. Drafts are
// excluded; a reversed original's lines stay counted until its reversal
// posts, at which point the net effect is zero.
func (e *Engine) GetBalance(ctx context.Context, id AccountID, asOfPeriodCode string) (Balance, error) {
	if _, err := e.store.GetAccount(ctx, id); err != nil {
		return Balance{}, err
	}
	target, err := e.store.GetPeriodByCode(ctx, asOfPeriodCode)
	if err != nil {
		return Balance{}, err
	}
	periods, err := e.store.PeriodsThrough(ctx, target.End)
	if err != nil {
		return Balance{}, err
	}
	ids := make([]PeriodID, 0, len(periods))
	for _, p := range periods {
		ids = append(ids, p.ID)
	}
	return e.store.AccountBalance(ctx, id, ids)
}

// =============================================================================
// VALIDATION
// =============================================================================

func buildLines(entryID EntryID, inputs []LineInput) ([]JournalLine, error) {
	lines := make([]JournalLine, 0, len(inputs))
	for _, in := range inputs {
		currency := in.Currency
		if currency == "" {
			currency = "USD"
		}
		rate := in.ExchangeRate
		if rate.IsZero() {
			rate = decimal.NewFromInt(1)
		}
		lines = append(lines, JournalLine{
			ID:           NewLineID(),
			EntryID:      entryID,
			LineNo:       in.LineNo,
			AccountID:    in.AccountID,
			Debit:        in.Debit,
			Credit:       in.Credit,
			Memo:         in.Memo,
			DepartmentID: in.DepartmentID,
			FundID:       in.FundID,
			CostCenter:   in.CostCenter,
			Currency:     currency,
			ExchangeRate: rate,
		})
	}
	return lines, nil
}

// validateLines enforces the double-entry invariants: at least two lines,
// each with a positive amount on exactly one side at cent precision,
// debits equal to credits exactly, and every account active.
func validateLines(ctx context.Context, s Store, lines []JournalLine) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: journal entry must have at least 2 lines", ErrValidation)
	}

	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &LineError{LineNo: l.LineNo, Reason: "amounts must be non-negative"}
		}
		if !ValidMinorUnits(l.Debit) || !ValidMinorUnits(l.Credit) {
			return &LineError{LineNo: l.LineNo, Reason: "amounts must have at most 2 decimal places"}
		}
		if l.Debit.IsPositive() && l.Credit.IsPositive() {
			return &LineError{LineNo: l.LineNo, Reason: "line has both a debit and a credit"}
		}
		if l.Debit.IsZero() && l.Credit.IsZero() {
			return &LineError{LineNo: l.LineNo, Reason: "line has no amount"}
		}
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)

		account, err := s.GetAccount(ctx, l.AccountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return fmt.Errorf("%w: %s (%s)", ErrAccountInactive, account.Number, account.Name)
		}
	}

	if !debits.Equal(credits) {
		return &UnbalancedError{Debits: debits, Credits: credits}
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, actor UserID, action string, entry JournalEntry, details map[string]any) {
	_ = e.audit.Record(ctx, AuditEvent{
		Actor:        actor,
		Action:       action,
		ResourceType: "journal_entry",
		ResourceID:   string(entry.ID),
		Details:      details,
		At:           e.now().UTC(),
	})
}
