// Package store provides an in-memory TxStore implementation for tests
// and demo mode.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openbooks/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore with map-backed state. WithTx holds
// the store lock for the whole transaction and restores a snapshot on
// error, so transitions are serialized and all-or-nothing, matching the
// SQLite store's transaction discipline.
type Memory struct {
	mu sync.Mutex
	st *state

	// seq lives outside the snapshotted state: a rolled-back transaction
	// leaves a gap but never allows number reuse.
	seq int64
}

type balanceKey struct {
	Account    ledger.AccountID
	Period     ledger.PeriodID
	Subsidiary ledger.SubsidiaryID
}

type state struct {
	accounts     map[ledger.AccountID]ledger.Account
	funds        map[ledger.FundID]ledger.Fund
	subsidiaries map[ledger.SubsidiaryID]ledger.Subsidiary
	departments  map[ledger.DepartmentID]ledger.Department
	years        map[ledger.FiscalYearID]ledger.FiscalYear
	periods      map[ledger.PeriodID]ledger.FiscalPeriod
	entries      map[ledger.EntryID]ledger.JournalEntry
	lines        map[ledger.EntryID][]ledger.JournalLine
	balances     map[balanceKey]ledger.Balance
}

func newState() *state {
	return &state{
		accounts:     make(map[ledger.AccountID]ledger.Account),
		funds:        make(map[ledger.FundID]ledger.Fund),
		subsidiaries: make(map[ledger.SubsidiaryID]ledger.Subsidiary),
		departments:  make(map[ledger.DepartmentID]ledger.Department),
		years:        make(map[ledger.FiscalYearID]ledger.FiscalYear),
		periods:      make(map[ledger.PeriodID]ledger.FiscalPeriod),
		entries:      make(map[ledger.EntryID]ledger.JournalEntry),
		lines:        make(map[ledger.EntryID][]ledger.JournalLine),
		balances:     make(map[balanceKey]ledger.Balance),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.funds {
		c.funds[k] = v
	}
	for k, v := range st.subsidiaries {
		c.subsidiaries[k] = v
	}
	for k, v := range st.departments {
		c.departments[k] = v
	}
	for k, v := range st.years {
		c.years[k] = v
	}
	for k, v := range st.periods {
		c.periods[k] = v
	}
	for k, v := range st.entries {
		v.Lines = nil // lines live in st.lines
		c.entries[k] = v
	}
	for k, v := range st.lines {
		ls := make([]ledger.JournalLine, len(v))
		copy(ls, v)
		c.lines[k] = ls
	}
	for k, v := range st.balances {
		c.balances[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// WithTx runs fn with the store lock held. On error the pre-transaction
// snapshot is restored; the entry-number sequence is deliberately not
// part of the snapshot.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.st.clone()
	if err := fn(&txView{m: m}); err != nil {
		m.st = backup
		return err
	}
	return nil
}

// txView exposes the unlocked operations to a WithTx callback.
type txView struct {
	m *Memory
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) insertAccountLocked(a ledger.Account) error {
	for _, existing := range m.st.accounts {
		if existing.Number == a.Number {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateNumber, a.Number)
		}
	}
	m.st.accounts[a.ID] = a
	return nil
}

func (m *Memory) getAccountLocked(id ledger.AccountID) (ledger.Account, error) {
	a, ok := m.st.accounts[id]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return a, nil
}

func (m *Memory) getAccountByNumberLocked(number string) (ledger.Account, error) {
	for _, a := range m.st.accounts {
		if a.Number == number {
			return a, nil
		}
	}
	return ledger.Account{}, fmt.Errorf("%w: number %s", ledger.ErrAccountNotFound, number)
}

func (m *Memory) listAccountsLocked(activeOnly bool) []ledger.Account {
	var out []ledger.Account
	for _, a := range m.st.accounts {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (m *Memory) updateAccountLocked(a ledger.Account) error {
	if _, ok := m.st.accounts[a.ID]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, a.ID)
	}
	m.st.accounts[a.ID] = a
	return nil
}

// =============================================================================
// FUNDS & ORGANIZATION
// =============================================================================

func (m *Memory) getFundLocked(id ledger.FundID) (ledger.Fund, error) {
	f, ok := m.st.funds[id]
	if !ok {
		return ledger.Fund{}, fmt.Errorf("%w: %s", ledger.ErrFundNotFound, id)
	}
	return f, nil
}

func (m *Memory) getFundByCodeLocked(code string) (ledger.Fund, error) {
	for _, f := range m.st.funds {
		if f.Code == code {
			return f, nil
		}
	}
	return ledger.Fund{}, fmt.Errorf("%w: code %s", ledger.ErrFundNotFound, code)
}

func (m *Memory) listFundsLocked(activeOnly bool) []ledger.Fund {
	var out []ledger.Fund
	for _, f := range m.st.funds {
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *Memory) getSubsidiaryLocked(id ledger.SubsidiaryID) (ledger.Subsidiary, error) {
	s, ok := m.st.subsidiaries[id]
	if !ok {
		return ledger.Subsidiary{}, fmt.Errorf("%w: %s", ledger.ErrSubsidiaryNotFound, id)
	}
	return s, nil
}

func (m *Memory) getSubsidiaryByCodeLocked(code string) (ledger.Subsidiary, error) {
	for _, s := range m.st.subsidiaries {
		if s.Code == code {
			return s, nil
		}
	}
	return ledger.Subsidiary{}, fmt.Errorf("%w: code %s", ledger.ErrSubsidiaryNotFound, code)
}

// =============================================================================
// FISCAL CALENDAR
// =============================================================================

func (m *Memory) getPeriodLocked(id ledger.PeriodID) (ledger.FiscalPeriod, error) {
	p, ok := m.st.periods[id]
	if !ok {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: %s", ledger.ErrPeriodNotFound, id)
	}
	return p, nil
}

func (m *Memory) getPeriodByCodeLocked(code string) (ledger.FiscalPeriod, error) {
	for _, p := range m.st.periods {
		if p.Code == code {
			return p, nil
		}
	}
	return ledger.FiscalPeriod{}, fmt.Errorf("%w: code %s", ledger.ErrPeriodNotFound, code)
}

func (m *Memory) periodForDateLocked(d ledger.Date) (ledger.FiscalPeriod, error) {
	for _, p := range m.st.periods {
		if p.Contains(d) {
			return p, nil
		}
	}
	return ledger.FiscalPeriod{}, fmt.Errorf("%w: %s", ledger.ErrNoPeriodForDate, d)
}

func (m *Memory) periodsThroughLocked(end ledger.Date) []ledger.FiscalPeriod {
	var out []ledger.FiscalPeriod
	for _, p := range m.st.periods {
		if p.End.BeforeOrEqual(end) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (m *Memory) updatePeriodStatusLocked(id ledger.PeriodID, status ledger.PeriodStatus) error {
	p, ok := m.st.periods[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrPeriodNotFound, id)
	}
	p.Status = status
	m.st.periods[id] = p
	return nil
}

// =============================================================================
// JOURNAL ENTRIES
// =============================================================================

func (m *Memory) insertEntryLocked(e ledger.JournalEntry) error {
	lines := make([]ledger.JournalLine, len(e.Lines))
	copy(lines, e.Lines)
	e.Lines = nil
	m.st.entries[e.ID] = e
	m.st.lines[e.ID] = lines
	return nil
}

func (m *Memory) getEntryLocked(id ledger.EntryID) (ledger.JournalEntry, error) {
	e, ok := m.st.entries[id]
	if !ok {
		return ledger.JournalEntry{}, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	lines := make([]ledger.JournalLine, len(m.st.lines[id]))
	copy(lines, m.st.lines[id])
	e.Lines = lines
	return e, nil
}

func (m *Memory) getEntryByNumberLocked(number int64) (ledger.JournalEntry, error) {
	for id, e := range m.st.entries {
		if e.Number == number {
			return m.getEntryLocked(id)
		}
	}
	return ledger.JournalEntry{}, fmt.Errorf("%w: number %d", ledger.ErrEntryNotFound, number)
}

func (m *Memory) listEntriesLocked(f ledger.EntryFilter) []ledger.JournalEntry {
	var out []ledger.JournalEntry
	for id := range m.st.entries {
		e, _ := m.getEntryLocked(id)
		if f.SubsidiaryID != "" && e.SubsidiaryID != f.SubsidiaryID {
			continue
		}
		if f.PeriodID != "" && e.PeriodID != f.PeriodID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (m *Memory) replaceLinesLocked(id ledger.EntryID, lines []ledger.JournalLine) error {
	if _, ok := m.st.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	ls := make([]ledger.JournalLine, len(lines))
	copy(ls, lines)
	m.st.lines[id] = ls
	return nil
}

func (m *Memory) markPostedLocked(id ledger.EntryID, by ledger.UserID, at time.Time) error {
	e, ok := m.st.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	e.Status = ledger.EntryPosted
	e.PostedBy = by
	e.PostedAt = &at
	m.st.entries[id] = e
	return nil
}

func (m *Memory) markReversedLocked(id ledger.EntryID, reversedBy ledger.EntryID) error {
	e, ok := m.st.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	e.Status = ledger.EntryReversed
	e.ReversedByID = reversedBy
	m.st.entries[id] = e
	return nil
}

// =============================================================================
// BALANCES & REPORTING
// =============================================================================

func (m *Memory) applyToBalancesLocked(e ledger.JournalEntry) error {
	for _, l := range e.Lines {
		key := balanceKey{Account: l.AccountID, Period: e.PeriodID, Subsidiary: e.SubsidiaryID}
		b, ok := m.st.balances[key]
		if !ok {
			b = ledger.ZeroBalance()
		}
		b.DebitTotal = b.DebitTotal.Add(l.Debit)
		b.CreditTotal = b.CreditTotal.Add(l.Credit)
		m.st.balances[key] = b
	}
	return nil
}

func (m *Memory) accountBalanceLocked(id ledger.AccountID, periods []ledger.PeriodID) ledger.Balance {
	want := make(map[ledger.PeriodID]bool, len(periods))
	for _, p := range periods {
		want[p] = true
	}
	total := ledger.ZeroBalance()
	for key, b := range m.st.balances {
		if key.Account == id && want[key.Period] {
			total = total.Add(b)
		}
	}
	return total
}

func (m *Memory) postedActivityLocked(f ledger.ActivityFilter) []ledger.ActivityRow {
	wantPeriod := make(map[ledger.PeriodID]bool, len(f.Periods))
	for _, p := range f.Periods {
		wantPeriod[p] = true
	}
	wantType := make(map[ledger.AccountType]bool, len(f.Types))
	for _, t := range f.Types {
		wantType[t] = true
	}

	byAccount := make(map[ledger.AccountID]ledger.Balance)
	for id, e := range m.st.entries {
		if e.Status != ledger.EntryPosted && e.Status != ledger.EntryReversed {
			continue
		}
		if len(f.Periods) > 0 && !wantPeriod[e.PeriodID] {
			continue
		}
		if f.SubsidiaryID != "" && e.SubsidiaryID != f.SubsidiaryID {
			continue
		}
		for _, l := range m.st.lines[id] {
			account := m.st.accounts[l.AccountID]
			if len(f.Types) > 0 && !wantType[account.Type] {
				continue
			}
			if f.FundID != "" && l.FundID != f.FundID {
				continue
			}
			b, ok := byAccount[l.AccountID]
			if !ok {
				b = ledger.ZeroBalance()
			}
			b.DebitTotal = b.DebitTotal.Add(l.Debit)
			b.CreditTotal = b.CreditTotal.Add(l.Credit)
			byAccount[l.AccountID] = b
		}
	}

	var rows []ledger.ActivityRow
	for id, b := range byAccount {
		rows = append(rows, ledger.ActivityRow{Account: m.st.accounts[id], Totals: b})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Account.Number < rows[j].Account.Number })
	return rows
}

func (m *Memory) fundActivityLocked(periods []ledger.PeriodID) []ledger.FundActivityRow {
	want := make(map[ledger.PeriodID]bool, len(periods))
	for _, p := range periods {
		want[p] = true
	}

	byFund := make(map[ledger.FundID]ledger.Balance)
	for id, e := range m.st.entries {
		if e.Status != ledger.EntryPosted && e.Status != ledger.EntryReversed {
			continue
		}
		if len(periods) > 0 && !want[e.PeriodID] {
			continue
		}
		for _, l := range m.st.lines[id] {
			if l.FundID == "" {
				continue
			}
			b, ok := byFund[l.FundID]
			if !ok {
				b = ledger.ZeroBalance()
			}
			b.DebitTotal = b.DebitTotal.Add(l.Debit)
			b.CreditTotal = b.CreditTotal.Add(l.Credit)
			byFund[l.FundID] = b
		}
	}

	var rows []ledger.FundActivityRow
	for id, b := range byFund {
		rows = append(rows, ledger.FundActivityRow{Fund: m.st.funds[id], Balance: b})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Fund.Code < rows[j].Fund.Code })
	return rows
}

func (m *Memory) fundMismatchesLocked() []ledger.FundDiscrepancy {
	var out []ledger.FundDiscrepancy
	for id, e := range m.st.entries {
		for _, l := range m.st.lines[id] {
			if l.FundID == "" {
				continue
			}
			account := m.st.accounts[l.AccountID]
			if account.FundID != "" && account.FundID != l.FundID {
				out = append(out, ledger.FundDiscrepancy{
					EntryNumber:   e.Number,
					LineNo:        l.LineNo,
					AccountNumber: account.Number,
					AccountFund:   account.FundID,
					LineFund:      l.FundID,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryNumber != out[j].EntryNumber {
			return out[i].EntryNumber < out[j].EntryNumber
		}
		return out[i].LineNo < out[j].LineNo
	})
	return out
}

// =============================================================================
// INTERFACE WIRING
// =============================================================================
// Memory's public methods lock per call; txView delegates to the same
// *Locked helpers under the lock WithTx already holds.

func (m *Memory) InsertAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAccountLocked(a)
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(id)
}

func (m *Memory) GetAccountByNumber(_ context.Context, number string) (ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountByNumberLocked(number)
}

func (m *Memory) ListAccounts(_ context.Context, activeOnly bool) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listAccountsLocked(activeOnly), nil
}

func (m *Memory) UpdateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountLocked(a)
}

func (m *Memory) InsertFund(_ context.Context, f ledger.Fund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.funds[f.ID] = f
	return nil
}

func (m *Memory) GetFund(_ context.Context, id ledger.FundID) (ledger.Fund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getFundLocked(id)
}

func (m *Memory) GetFundByCode(_ context.Context, code string) (ledger.Fund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getFundByCodeLocked(code)
}

func (m *Memory) ListFunds(_ context.Context, activeOnly bool) ([]ledger.Fund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listFundsLocked(activeOnly), nil
}

func (m *Memory) InsertSubsidiary(_ context.Context, s ledger.Subsidiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.subsidiaries[s.ID] = s
	return nil
}

func (m *Memory) GetSubsidiary(_ context.Context, id ledger.SubsidiaryID) (ledger.Subsidiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSubsidiaryLocked(id)
}

func (m *Memory) GetSubsidiaryByCode(_ context.Context, code string) (ledger.Subsidiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSubsidiaryByCodeLocked(code)
}

func (m *Memory) InsertDepartment(_ context.Context, d ledger.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.departments[d.ID] = d
	return nil
}

func (m *Memory) InsertFiscalYear(_ context.Context, y ledger.FiscalYear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.years[y.ID] = y
	return nil
}

func (m *Memory) InsertPeriod(_ context.Context, p ledger.FiscalPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.periods[p.ID] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id ledger.PeriodID) (ledger.FiscalPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPeriodLocked(id)
}

func (m *Memory) GetPeriodByCode(_ context.Context, code string) (ledger.FiscalPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPeriodByCodeLocked(code)
}

func (m *Memory) PeriodForDate(_ context.Context, d ledger.Date) (ledger.FiscalPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodForDateLocked(d)
}

func (m *Memory) PeriodsThrough(_ context.Context, end ledger.Date) ([]ledger.FiscalPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodsThroughLocked(end), nil
}

func (m *Memory) UpdatePeriodStatus(_ context.Context, id ledger.PeriodID, status ledger.PeriodStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePeriodStatusLocked(id, status)
}

func (m *Memory) NextEntryNumber(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *Memory) InsertEntry(_ context.Context, e ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertEntryLocked(e)
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (ledger.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEntryLocked(id)
}

func (m *Memory) GetEntryByNumber(_ context.Context, number int64) (ledger.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEntryByNumberLocked(number)
}

func (m *Memory) ListEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listEntriesLocked(f), nil
}

func (m *Memory) ReplaceLines(_ context.Context, id ledger.EntryID, lines []ledger.JournalLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLinesLocked(id, lines)
}

func (m *Memory) MarkPosted(_ context.Context, id ledger.EntryID, by ledger.UserID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPostedLocked(id, by, at)
}

func (m *Memory) MarkReversed(_ context.Context, id ledger.EntryID, reversedBy ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markReversedLocked(id, reversedBy)
}

func (m *Memory) ApplyToBalances(_ context.Context, e ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyToBalancesLocked(e)
}

func (m *Memory) AccountBalance(_ context.Context, id ledger.AccountID, periods []ledger.PeriodID) (ledger.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountBalanceLocked(id, periods), nil
}

func (m *Memory) PostedActivity(_ context.Context, f ledger.ActivityFilter) ([]ledger.ActivityRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.postedActivityLocked(f), nil
}

func (m *Memory) FundActivity(_ context.Context, periods []ledger.PeriodID) ([]ledger.FundActivityRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fundActivityLocked(periods), nil
}

func (m *Memory) FundMismatches(_ context.Context) ([]ledger.FundDiscrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fundMismatchesLocked(), nil
}

// ------ txView: unlocked delegation for WithTx callbacks ------

func (t *txView) InsertAccount(_ context.Context, a ledger.Account) error {
	return t.m.insertAccountLocked(a)
}

func (t *txView) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	return t.m.getAccountLocked(id)
}

func (t *txView) GetAccountByNumber(_ context.Context, number string) (ledger.Account, error) {
	return t.m.getAccountByNumberLocked(number)
}

func (t *txView) ListAccounts(_ context.Context, activeOnly bool) ([]ledger.Account, error) {
	return t.m.listAccountsLocked(activeOnly), nil
}

func (t *txView) UpdateAccount(_ context.Context, a ledger.Account) error {
	return t.m.updateAccountLocked(a)
}

func (t *txView) InsertFund(_ context.Context, f ledger.Fund) error {
	t.m.st.funds[f.ID] = f
	return nil
}

func (t *txView) GetFund(_ context.Context, id ledger.FundID) (ledger.Fund, error) {
	return t.m.getFundLocked(id)
}

func (t *txView) GetFundByCode(_ context.Context, code string) (ledger.Fund, error) {
	return t.m.getFundByCodeLocked(code)
}

func (t *txView) ListFunds(_ context.Context, activeOnly bool) ([]ledger.Fund, error) {
	return t.m.listFundsLocked(activeOnly), nil
}

func (t *txView) InsertSubsidiary(_ context.Context, s ledger.Subsidiary) error {
	t.m.st.subsidiaries[s.ID] = s
	return nil
}

func (t *txView) GetSubsidiary(_ context.Context, id ledger.SubsidiaryID) (ledger.Subsidiary, error) {
	return t.m.getSubsidiaryLocked(id)
}

func (t *txView) GetSubsidiaryByCode(_ context.Context, code string) (ledger.Subsidiary, error) {
	return t.m.getSubsidiaryByCodeLocked(code)
}

func (t *txView) InsertDepartment(_ context.Context, d ledger.Department) error {
	t.m.st.departments[d.ID] = d
	return nil
}

func (t *txView) InsertFiscalYear(_ context.Context, y ledger.FiscalYear) error {
	t.m.st.years[y.ID] = y
	return nil
}

func (t *txView) InsertPeriod(_ context.Context, p ledger.FiscalPeriod) error {
	t.m.st.periods[p.ID] = p
	return nil
}

func (t *txView) GetPeriod(_ context.Context, id ledger.PeriodID) (ledger.FiscalPeriod, error) {
	return t.m.getPeriodLocked(id)
}

func (t *txView) GetPeriodByCode(_ context.Context, code string) (ledger.FiscalPeriod, error) {
	return t.m.getPeriodByCodeLocked(code)
}

func (t *txView) PeriodForDate(_ context.Context, d ledger.Date) (ledger.FiscalPeriod, error) {
	return t.m.periodForDateLocked(d)
}

func (t *txView) PeriodsThrough(_ context.Context, end ledger.Date) ([]ledger.FiscalPeriod, error) {
	return t.m.periodsThroughLocked(end), nil
}

func (t *txView) UpdatePeriodStatus(_ context.Context, id ledger.PeriodID, status ledger.PeriodStatus) error {
	return t.m.updatePeriodStatusLocked(id, status)
}

func (t *txView) NextEntryNumber(_ context.Context) (int64, error) {
	t.m.seq++
	return t.m.seq, nil
}

func (t *txView) InsertEntry(_ context.Context, e ledger.JournalEntry) error {
	return t.m.insertEntryLocked(e)
}

func (t *txView) GetEntry(_ context.Context, id ledger.EntryID) (ledger.JournalEntry, error) {
	return t.m.getEntryLocked(id)
}

func (t *txView) GetEntryByNumber(_ context.Context, number int64) (ledger.JournalEntry, error) {
	return t.m.getEntryByNumberLocked(number)
}

func (t *txView) ListEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	return t.m.listEntriesLocked(f), nil
}

func (t *txView) ReplaceLines(_ context.Context, id ledger.EntryID, lines []ledger.JournalLine) error {
	return t.m.replaceLinesLocked(id, lines)
}

func (t *txView) MarkPosted(_ context.Context, id ledger.EntryID, by ledger.UserID, at time.Time) error {
	return t.m.markPostedLocked(id, by, at)
}

func (t *txView) MarkReversed(_ context.Context, id ledger.EntryID, reversedBy ledger.EntryID) error {
	return t.m.markReversedLocked(id, reversedBy)
}

func (t *txView) ApplyToBalances(_ context.Context, e ledger.JournalEntry) error {
	return t.m.applyToBalancesLocked(e)
}

func (t *txView) AccountBalance(_ context.Context, id ledger.AccountID, periods []ledger.PeriodID) (ledger.Balance, error) {
	return t.m.accountBalanceLocked(id, periods), nil
}

func (t *txView) PostedActivity(_ context.Context, f ledger.ActivityFilter) ([]ledger.ActivityRow, error) {
	return t.m.postedActivityLocked(f), nil
}

func (t *txView) FundActivity(_ context.Context, periods []ledger.PeriodID) ([]ledger.FundActivityRow, error) {
	return t.m.fundActivityLocked(periods), nil
}

func (t *txView) FundMismatches(_ context.Context) ([]ledger.FundDiscrepancy, error) {
	return t.m.fundMismatchesLocked(), nil
}
