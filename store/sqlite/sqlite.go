/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.TxStore and ledger.AuditLog using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

TRANSACTION DISCIPLINE:
  The database is opened with _txlock=immediate, so every WithTx takes
  the write lock up front and write transactions serialize. The losing
  side of a concurrent post re-reads the entry inside its own
  transaction and observes the committed status change.

KEY TABLES:
  accounts:          Chart of accounts (logical deactivation only)
  fiscal_periods:    Period state machine rows
  journal_entries:   Entry headers (status lifecycle lives here)
  journal_lines:     Debit/credit lines, amounts stored as decimal text
  entry_numbers:     AUTOINCREMENT sequence - monotonic, never reused,
                     gaps allowed when a transaction rolls back
  account_balances:  Running per-account/period/subsidiary totals in
                     integer cents, folded in during the post transaction
  audit_log:         Append-only audit trail

WAL MODE:
  SQLite is opened with WAL so reporting reads don't block posting, and
  a read never observes a half-applied entry.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openbooks/ledger-engine/ledger"
)

const timeFormat = time.RFC3339Nano

// Store implements ledger.TxStore and ledger.AuditLog using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3",
		dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer at a time keeps _txlock=immediate honest even with
	// a shared in-memory database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a single immediate transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ledger.ErrStore, err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ledger.ErrStore, err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS funds (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		fund_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS subsidiaries (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		subsidiary_id TEXT NOT NULL REFERENCES subsidiaries(id),
		code TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		normal_balance TEXT NOT NULL,
		parent_id TEXT REFERENCES accounts(id),
		fund_id TEXT REFERENCES funds(id),
		active INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id);

	CREATE TABLE IF NOT EXISTS fiscal_years (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		closed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS fiscal_periods (
		id TEXT PRIMARY KEY,
		year_id TEXT NOT NULL REFERENCES fiscal_years(id),
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open'
	);
	CREATE INDEX IF NOT EXISTS idx_periods_range ON fiscal_periods(start_date, end_date);

	-- Entry-number sequence. AUTOINCREMENT guarantees values never
	-- repeat or go backward; rows claimed by rolled-back transactions
	-- leave gaps, which is permitted.
	CREATE TABLE IF NOT EXISTS entry_numbers (
		n INTEGER PRIMARY KEY AUTOINCREMENT,
		claimed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL UNIQUE,
		subsidiary_id TEXT NOT NULL REFERENCES subsidiaries(id),
		period_id TEXT NOT NULL REFERENCES fiscal_periods(id),
		entry_date TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'manual',
		source_ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		posted_by TEXT,
		posted_at TEXT,
		reversed_by_je_id TEXT REFERENCES journal_entries(id)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_status ON journal_entries(status);
	CREATE INDEX IF NOT EXISTS idx_entries_period ON journal_entries(period_id);
	CREATE INDEX IF NOT EXISTS idx_entries_subsidiary ON journal_entries(subsidiary_id);

	CREATE TABLE IF NOT EXISTS journal_lines (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES journal_entries(id),
		line_no INTEGER NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		department_id TEXT,
		fund_id TEXT REFERENCES funds(id),
		cost_center TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		exchange_rate TEXT NOT NULL DEFAULT '1'
	);
	CREATE INDEX IF NOT EXISTS idx_lines_entry ON journal_lines(entry_id);
	CREATE INDEX IF NOT EXISTS idx_lines_account ON journal_lines(account_id);
	CREATE INDEX IF NOT EXISTS idx_lines_fund ON journal_lines(fund_id) WHERE fund_id IS NOT NULL;

	-- Running balances in integer cents, folded in during posting.
	CREATE TABLE IF NOT EXISTS account_balances (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		period_id TEXT NOT NULL REFERENCES fiscal_periods(id),
		subsidiary_id TEXT NOT NULL REFERENCES subsidiaries(id),
		debit_cents INTEGER NOT NULL DEFAULT 0,
		credit_cents INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, period_id, subsidiary_id)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details_json TEXT,
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

// Record appends an audit event. Append-only; no update or delete exists.
func (s *Store) Record(ctx context.Context, ev ledger.AuditEvent) error {
	detailsJSON, _ := json.Marshal(ev.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, resource_type, resource_id, details_json, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Actor), ev.Action, ev.ResourceType, ev.ResourceID,
		string(detailsJSON), ev.At.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("%w: record audit event: %v", ledger.ErrStore, err)
	}
	return nil
}

// AuditEvents returns recorded events for an action, oldest first.
func (s *Store) AuditEvents(ctx context.Context, action string) ([]ledger.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor, action, resource_type, resource_id, details_json, at
		FROM audit_log WHERE action = ? ORDER BY id ASC`, action)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit log: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var events []ledger.AuditEvent
	for rows.Next() {
		var ev ledger.AuditEvent
		var actor, detailsJSON, at string
		if err := rows.Scan(&actor, &ev.Action, &ev.ResourceType, &ev.ResourceID, &detailsJSON, &at); err != nil {
			return nil, fmt.Errorf("%w: scan audit event: %v", ledger.ErrStore, err)
		}
		ev.Actor = ledger.UserID(actor)
		if detailsJSON != "" {
			_ = json.Unmarshal([]byte(detailsJSON), &ev.Details)
		}
		ev.At, _ = time.Parse(timeFormat, at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// QUERIES - ledger.Store implementation over a db or transaction
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

// ------ accounts ------

func (s *queries) InsertAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, number, name, type, normal_balance, parent_id, fund_id, active, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), a.Number, a.Name, string(a.Type), string(a.NormalBalance),
		nullString(string(a.ParentID)), nullString(string(a.FundID)),
		boolInt(a.Active), a.Description, a.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateNumber, a.Number)
		}
		return fmt.Errorf("%w: insert account: %v", ledger.ErrStore, err)
	}
	return nil
}

const accountColumns = `id, number, name, type, normal_balance, parent_id, fund_id, active, description, created_at`

func scanAccount(row interface{ Scan(...any) error }) (ledger.Account, error) {
	var a ledger.Account
	var id, typ, side, createdAt string
	var parentID, fundID sql.NullString
	var active int
	err := row.Scan(&id, &a.Number, &a.Name, &typ, &side, &parentID, &fundID, &active, &a.Description, &createdAt)
	if err != nil {
		return ledger.Account{}, err
	}
	a.ID = ledger.AccountID(id)
	a.Type = ledger.AccountType(typ)
	a.NormalBalance = ledger.BalanceSide(side)
	a.ParentID = ledger.AccountID(parentID.String)
	a.FundID = ledger.FundID(fundID.String)
	a.Active = active != 0
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return a, nil
}

func (s *queries) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, string(id))
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("%w: get account: %v", ledger.ErrStore, err)
	}
	return a, nil
}

func (s *queries) GetAccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE number = ?`, number)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return ledger.Account{}, fmt.Errorf("%w: number %s", ledger.ErrAccountNotFound, number)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("%w: get account by number: %v", ledger.ErrStore, err)
	}
	return a, nil
}

func (s *queries) ListAccounts(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY number ASC`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan account: %v", ledger.ErrStore, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *queries) UpdateAccount(ctx context.Context, a ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET name = ?, parent_id = ?, fund_id = ?, active = ?, description = ?
		WHERE id = ?`,
		a.Name, nullString(string(a.ParentID)), nullString(string(a.FundID)),
		boolInt(a.Active), a.Description, string(a.ID),
	)
	if err != nil {
		return fmt.Errorf("%w: update account: %v", ledger.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, a.ID)
	}
	return nil
}

// ------ funds & organization ------

func (s *queries) InsertFund(ctx context.Context, f ledger.Fund) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO funds (id, code, name, fund_type, description, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(f.ID), f.Code, f.Name, string(f.Type), f.Description, boolInt(f.Active),
	)
	if err != nil {
		return fmt.Errorf("%w: insert fund: %v", ledger.ErrStore, err)
	}
	return nil
}

func (s *queries) GetFund(ctx context.Context, id ledger.FundID) (ledger.Fund, error) {
	var f ledger.Fund
	var fid, typ string
	var active int
	err := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, fund_type, description, active FROM funds WHERE id = ?`,
		string(id)).Scan(&fid, &f.Code, &f.Name, &typ, &f.Description, &active)
	if err == sql.ErrNoRows {
		return ledger.Fund{}, fmt.Errorf("%w: %s", ledger.ErrFundNotFound, id)
	}
	if err != nil {
		return ledger.Fund{}, fmt.Errorf("%w: get fund: %v", ledger.ErrStore, err)
	}
	f.ID = ledger.FundID(fid)
	f.Type = ledger.FundType(typ)
	f.Active = active != 0
	return f, nil
}

func (s *queries) GetFundByCode(ctx context.Context, code string) (ledger.Fund, error) {
	var f ledger.Fund
	var fid, typ string
	var active int
	err := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, fund_type, description, active FROM funds WHERE code = ?`,
		code).Scan(&fid, &f.Code, &f.Name, &typ, &f.Description, &active)
	if err == sql.ErrNoRows {
		return ledger.Fund{}, fmt.Errorf("%w: code %s", ledger.ErrFundNotFound, code)
	}
	if err != nil {
		return ledger.Fund{}, fmt.Errorf("%w: get fund by code: %v", ledger.ErrStore, err)
	}
	f.ID = ledger.FundID(fid)
	f.Type = ledger.FundType(typ)
	f.Active = active != 0
	return f, nil
}

func (s *queries) ListFunds(ctx context.Context, activeOnly bool) ([]ledger.Fund, error) {
	query := `SELECT id, code, name, fund_type, description, active FROM funds`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY code ASC`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list funds: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var funds []ledger.Fund
	for rows.Next() {
		var f ledger.Fund
		var id, typ string
		var active int
		if err := rows.Scan(&id, &f.Code, &f.Name, &typ, &f.Description, &active); err != nil {
			return nil, fmt.Errorf("%w: scan fund: %v", ledger.ErrStore, err)
		}
		f.ID = ledger.FundID(id)
		f.Type = ledger.FundType(typ)
		f.Active = active != 0
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

func (s *queries) InsertSubsidiary(ctx context.Context, sub ledger.Subsidiary) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO subsidiaries (id, code, name, currency, active) VALUES (?, ?, ?, ?, ?)`,
		string(sub.ID), sub.Code, sub.Name, sub.Currency, boolInt(sub.Active),
	)
	if err != nil {
		return fmt.Errorf("%w: insert subsidiary: %v", ledger.ErrStore, err)
	}
	return nil
}

func (s *queries) GetSubsidiary(ctx context.Context, id ledger.SubsidiaryID) (ledger.Subsidiary, error) {
	var sub ledger.Subsidiary
	var sid string
	var active int
	err := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, currency, active FROM subsidiaries WHERE id = ?`,
		string(id)).Scan(&sid, &sub.Code, &sub.Name, &sub.Currency, &active)
	if err == sql.ErrNoRows {
		return ledger.Subsidiary{}, fmt.Errorf("%w: %s", ledger.ErrSubsidiaryNotFound, id)
	}
	if err != nil {
		return ledger.Subsidiary{}, fmt.Errorf("%w: get subsidiary: %v", ledger.ErrStore, err)
	}
	sub.ID = ledger.SubsidiaryID(sid)
	sub.Active = active != 0
	return sub, nil
}

func (s *queries) GetSubsidiaryByCode(ctx context.Context, code string) (ledger.Subsidiary, error) {
	var sub ledger.Subsidiary
	var sid string
	var active int
	err := s.q.QueryRowContext(ctx, `
		SELECT id, code, name, currency, active FROM subsidiaries WHERE code = ?`,
		code).Scan(&sid, &sub.Code, &sub.Name, &sub.Currency, &active)
	if err == sql.ErrNoRows {
		return ledger.Subsidiary{}, fmt.Errorf("%w: code %s", ledger.ErrSubsidiaryNotFound, code)
	}
	if err != nil {
		return ledger.Subsidiary{}, fmt.Errorf("%w: get subsidiary by code: %v", ledger.ErrStore, err)
	}
	sub.ID = ledger.SubsidiaryID(sid)
	sub.Active = active != 0
	return sub, nil
}

func (s *queries) InsertDepartment(ctx context.Context, d ledger.Department) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO departments (id, subsidiary_id, code, name) VALUES (?, ?, ?, ?)`,
		string(d.ID), string(d.SubsidiaryID), d.Code, d.Name,
	)
	if err != nil {
		return fmt.Errorf("%w: insert department: %v", ledger.ErrStore, err)
	}
	return nil
}

// ------ fiscal calendar ------

func (s *queries) InsertFiscalYear(ctx context.Context, y ledger.FiscalYear) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO fiscal_years (id, name, start_date, end_date, closed) VALUES (?, ?, ?, ?, ?)`,
		string(y.ID), y.Name, y.Start.String(), y.End.String(), boolInt(y.Closed),
	)
	if err != nil {
		return fmt.Errorf("%w: insert fiscal year: %v", ledger.ErrStore, err)
	}
	return nil
}

func (s *queries) InsertPeriod(ctx context.Context, p ledger.FiscalPeriod) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO fiscal_periods (id, year_id, code, name, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.YearID), p.Code, p.Name,
		p.Start.String(), p.End.String(), string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("%w: insert period: %v", ledger.ErrStore, err)
	}
	return nil
}

const periodColumns = `id, year_id, code, name, start_date, end_date, status`

func scanPeriod(row interface{ Scan(...any) error }) (ledger.FiscalPeriod, error) {
	var p ledger.FiscalPeriod
	var id, yearID, start, end, status string
	if err := row.Scan(&id, &yearID, &p.Code, &p.Name, &start, &end, &status); err != nil {
		return ledger.FiscalPeriod{}, err
	}
	p.ID = ledger.PeriodID(id)
	p.YearID = ledger.FiscalYearID(yearID)
	p.Start, _ = ledger.ParseDate(start)
	p.End, _ = ledger.ParseDate(end)
	p.Status = ledger.PeriodStatus(status)
	return p, nil
}

func (s *queries) GetPeriod(ctx context.Context, id ledger.PeriodID) (ledger.FiscalPeriod, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods WHERE id = ?`, string(id))
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: %s", ledger.ErrPeriodNotFound, id)
	}
	if err != nil {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: get period: %v", ledger.ErrStore, err)
	}
	return p, nil
}

func (s *queries) GetPeriodByCode(ctx context.Context, code string) (ledger.FiscalPeriod, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM fiscal_periods WHERE code = ?`, code)
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: code %s", ledger.ErrPeriodNotFound, code)
	}
	if err != nil {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: get period by code: %v", ledger.ErrStore, err)
	}
	return p, nil
}

func (s *queries) PeriodForDate(ctx context.Context, d ledger.Date) (ledger.FiscalPeriod, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+periodColumns+` FROM fiscal_periods
		WHERE start_date <= ? AND end_date >= ?
		LIMIT 1`, d.String(), d.String())
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: %s", ledger.ErrNoPeriodForDate, d)
	}
	if err != nil {
		return ledger.FiscalPeriod{}, fmt.Errorf("%w: period for date: %v", ledger.ErrStore, err)
	}
	return p, nil
}

func (s *queries) PeriodsThrough(ctx context.Context, end ledger.Date) ([]ledger.FiscalPeriod, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+periodColumns+` FROM fiscal_periods
		WHERE end_date <= ?
		ORDER BY start_date ASC`, end.String())
	if err != nil {
		return nil, fmt.Errorf("%w: periods through: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var periods []ledger.FiscalPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan period: %v", ledger.ErrStore, err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *queries) UpdatePeriodStatus(ctx context.Context, id ledger.PeriodID, status ledger.PeriodStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE fiscal_periods SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("%w: update period status: %v", ledger.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrPeriodNotFound, id)
	}
	return nil
}

// ------ journal entries ------

// NextEntryNumber claims a value from the AUTOINCREMENT sequence. Called
// inside the inserting transaction; a rollback discards the claimed row,
// leaving a gap that is never reissued.
func (s *queries) NextEntryNumber(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO entry_numbers (claimed_at) VALUES (?)`,
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("%w: claim entry number: %v", ledger.ErrStore, err)
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: claim entry number: %v", ledger.ErrStore, err)
	}
	return n, nil
}

func (s *queries) InsertEntry(ctx context.Context, e ledger.JournalEntry) error {
	var postedAt any
	if e.PostedAt != nil {
		postedAt = e.PostedAt.UTC().Format(timeFormat)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries
		(id, number, subsidiary_id, period_id, entry_date, memo, source, source_ref,
		 status, created_by, created_at, posted_by, posted_at, reversed_by_je_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Number, string(e.SubsidiaryID), string(e.PeriodID),
		e.Date.String(), e.Memo, string(e.Source), e.SourceRef, string(e.Status),
		string(e.CreatedBy), e.CreatedAt.UTC().Format(timeFormat),
		nullString(string(e.PostedBy)), postedAt, nullString(string(e.ReversedByID)),
	)
	if err != nil {
		return fmt.Errorf("%w: insert entry: %v", ledger.ErrStore, err)
	}
	for _, l := range e.Lines {
		if err := s.insertLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *queries) insertLine(ctx context.Context, l ledger.JournalLine) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_lines
		(id, entry_id, line_no, account_id, debit, credit, memo,
		 department_id, fund_id, cost_center, currency, exchange_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(l.ID), string(l.EntryID), l.LineNo, string(l.AccountID),
		l.Debit.String(), l.Credit.String(), l.Memo,
		nullString(string(l.DepartmentID)), nullString(string(l.FundID)),
		l.CostCenter, l.Currency, l.ExchangeRate.String(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert line: %v", ledger.ErrStore, err)
	}
	return nil
}

const entryColumns = `id, number, subsidiary_id, period_id, entry_date, memo, source, source_ref,
	status, created_by, created_at, posted_by, posted_at, reversed_by_je_id`

func scanEntry(row interface{ Scan(...any) error }) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var id, subID, periodID, date, source, status, createdBy, createdAt string
	var postedBy, postedAt, reversedBy sql.NullString
	err := row.Scan(&id, &e.Number, &subID, &periodID, &date, &e.Memo, &source,
		&e.SourceRef, &status, &createdBy, &createdAt, &postedBy, &postedAt, &reversedBy)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	e.ID = ledger.EntryID(id)
	e.SubsidiaryID = ledger.SubsidiaryID(subID)
	e.PeriodID = ledger.PeriodID(periodID)
	e.Date, _ = ledger.ParseDate(date)
	e.Source = ledger.EntrySource(source)
	e.Status = ledger.EntryStatus(status)
	e.CreatedBy = ledger.UserID(createdBy)
	e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	e.PostedBy = ledger.UserID(postedBy.String)
	if postedAt.Valid {
		t, _ := time.Parse(timeFormat, postedAt.String)
		e.PostedAt = &t
	}
	e.ReversedByID = ledger.EntryID(reversedBy.String)
	return e, nil
}

func (s *queries) GetEntry(ctx context.Context, id ledger.EntryID) (ledger.JournalEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, string(id))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return ledger.JournalEntry{}, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("%w: get entry: %v", ledger.ErrStore, err)
	}

	lines, err := s.entryLines(ctx, id)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (s *queries) GetEntryByNumber(ctx context.Context, number int64) (ledger.JournalEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE number = ?`, number)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return ledger.JournalEntry{}, fmt.Errorf("%w: number %d", ledger.ErrEntryNotFound, number)
	}
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("%w: get entry by number: %v", ledger.ErrStore, err)
	}

	lines, err := s.entryLines(ctx, e.ID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (s *queries) entryLines(ctx context.Context, id ledger.EntryID) ([]ledger.JournalLine, error) {
	// rowid order preserves the caller-supplied line order; line_no
	// values are opaque references, not a sort key.
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, entry_id, line_no, account_id, debit, credit, memo,
		       department_id, fund_id, cost_center, currency, exchange_rate
		FROM journal_lines WHERE entry_id = ? ORDER BY rowid ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: load lines: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var lines []ledger.JournalLine
	for rows.Next() {
		var l ledger.JournalLine
		var lid, entryID, accountID, debit, credit, rate string
		var departmentID, fundID sql.NullString
		if err := rows.Scan(&lid, &entryID, &l.LineNo, &accountID, &debit, &credit,
			&l.Memo, &departmentID, &fundID, &l.CostCenter, &l.Currency, &rate); err != nil {
			return nil, fmt.Errorf("%w: scan line: %v", ledger.ErrStore, err)
		}
		l.ID = ledger.LineID(lid)
		l.EntryID = ledger.EntryID(entryID)
		l.AccountID = ledger.AccountID(accountID)
		l.Debit = ledger.MustParseDecimal(debit)
		l.Credit = ledger.MustParseDecimal(credit)
		l.DepartmentID = ledger.DepartmentID(departmentID.String)
		l.FundID = ledger.FundID(fundID.String)
		l.ExchangeRate = ledger.MustParseDecimal(rate)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *queries) ListEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	var args []any
	if f.SubsidiaryID != "" {
		query += ` AND subsidiary_id = ?`
		args = append(args, string(f.SubsidiaryID))
	}
	if f.PeriodID != "" {
		query += ` AND period_id = ?`
		args = append(args, string(f.PeriodID))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(f.Source))
	}
	query += ` ORDER BY number ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ledger.ErrStore, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ledger.ErrStore, err)
	}

	for i := range entries {
		lines, err := s.entryLines(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (s *queries) ReplaceLines(ctx context.Context, id ledger.EntryID, lines []ledger.JournalLine) error {
	// Draft lines only; the engine guards the precondition. Posted lines
	// are immutable and never pass through here.
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM journal_lines WHERE entry_id = ?`, string(id)); err != nil {
		return fmt.Errorf("%w: replace lines: %v", ledger.ErrStore, err)
	}
	for _, l := range lines {
		if err := s.insertLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *queries) MarkPosted(ctx context.Context, id ledger.EntryID, by ledger.UserID, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE journal_entries SET status = ?, posted_by = ?, posted_at = ?
		WHERE id = ? AND status = ?`,
		string(ledger.EntryPosted), string(by), at.UTC().Format(timeFormat),
		string(id), string(ledger.EntryDraft),
	)
	if err != nil {
		return fmt.Errorf("%w: mark posted: %v", ledger.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrNotDraft, id)
	}
	return nil
}

func (s *queries) MarkReversed(ctx context.Context, id ledger.EntryID, reversedBy ledger.EntryID) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE journal_entries SET status = ?, reversed_by_je_id = ?
		WHERE id = ? AND status = ?`,
		string(ledger.EntryReversed), string(reversedBy),
		string(id), string(ledger.EntryPosted),
	)
	if err != nil {
		return fmt.Errorf("%w: mark reversed: %v", ledger.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrNotPosted, id)
	}
	return nil
}

// ------ balances & reporting ------

func (s *queries) ApplyToBalances(ctx context.Context, e ledger.JournalEntry) error {
	for _, l := range e.Lines {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO account_balances (account_id, period_id, subsidiary_id, debit_cents, credit_cents)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (account_id, period_id, subsidiary_id) DO UPDATE SET
				debit_cents = debit_cents + excluded.debit_cents,
				credit_cents = credit_cents + excluded.credit_cents`,
			string(l.AccountID), string(e.PeriodID), string(e.SubsidiaryID),
			ledger.Cents(l.Debit), ledger.Cents(l.Credit),
		)
		if err != nil {
			return fmt.Errorf("%w: apply balances: %v", ledger.ErrStore, err)
		}
	}
	return nil
}

func (s *queries) AccountBalance(ctx context.Context, id ledger.AccountID, periods []ledger.PeriodID) (ledger.Balance, error) {
	if len(periods) == 0 {
		return ledger.ZeroBalance(), nil
	}
	query := `
		SELECT COALESCE(SUM(debit_cents), 0), COALESCE(SUM(credit_cents), 0)
		FROM account_balances
		WHERE account_id = ? AND period_id IN (` + placeholders(len(periods)) + `)`
	args := []any{string(id)}
	for _, p := range periods {
		args = append(args, string(p))
	}

	var debitCents, creditCents int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&debitCents, &creditCents); err != nil {
		return ledger.Balance{}, fmt.Errorf("%w: account balance: %v", ledger.ErrStore, err)
	}
	return ledger.Balance{
		DebitTotal:  ledger.FromCents(debitCents),
		CreditTotal: ledger.FromCents(creditCents),
	}, nil
}

func (s *queries) PostedActivity(ctx context.Context, f ledger.ActivityFilter) ([]ledger.ActivityRow, error) {
	// An entry stays "posted" for reporting purposes after reversal; its
	// posted reversal carries the opposite signs.
	query := `
		SELECT a.` + strings.ReplaceAll(accountColumns, ", ", ", a.") + `, l.debit, l.credit
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE e.status IN ('posted', 'reversed')`
	var args []any
	if len(f.Periods) > 0 {
		query += ` AND e.period_id IN (` + placeholders(len(f.Periods)) + `)`
		for _, p := range f.Periods {
			args = append(args, string(p))
		}
	}
	if f.SubsidiaryID != "" {
		query += ` AND e.subsidiary_id = ?`
		args = append(args, string(f.SubsidiaryID))
	}
	if len(f.Types) > 0 {
		query += ` AND a.type IN (` + placeholders(len(f.Types)) + `)`
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.FundID != "" {
		query += ` AND l.fund_id = ?`
		args = append(args, string(f.FundID))
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: posted activity: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	byAccount := make(map[ledger.AccountID]*ledger.ActivityRow)
	var order []ledger.AccountID
	for rows.Next() {
		var a ledger.Account
		var id, typ, side, createdAt, debit, credit string
		var parentID, fundID sql.NullString
		var active int
		if err := rows.Scan(&id, &a.Number, &a.Name, &typ, &side, &parentID, &fundID,
			&active, &a.Description, &createdAt, &debit, &credit); err != nil {
			return nil, fmt.Errorf("%w: scan activity: %v", ledger.ErrStore, err)
		}
		a.ID = ledger.AccountID(id)
		a.Type = ledger.AccountType(typ)
		a.NormalBalance = ledger.BalanceSide(side)
		a.ParentID = ledger.AccountID(parentID.String)
		a.FundID = ledger.FundID(fundID.String)
		a.Active = active != 0
		a.CreatedAt, _ = time.Parse(timeFormat, createdAt)

		row, ok := byAccount[a.ID]
		if !ok {
			row = &ledger.ActivityRow{Account: a, Totals: ledger.ZeroBalance()}
			byAccount[a.ID] = row
			order = append(order, a.ID)
		}
		row.Totals.DebitTotal = row.Totals.DebitTotal.Add(ledger.MustParseDecimal(debit))
		row.Totals.CreditTotal = row.Totals.CreditTotal.Add(ledger.MustParseDecimal(credit))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: posted activity: %v", ledger.ErrStore, err)
	}

	out := make([]ledger.ActivityRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byAccount[id])
	}
	return out, nil
}

func (s *queries) FundActivity(ctx context.Context, periods []ledger.PeriodID) ([]ledger.FundActivityRow, error) {
	query := `
		SELECT f.id, f.code, f.name, f.fund_type, f.description, f.active, l.debit, l.credit
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN funds f ON f.id = l.fund_id
		WHERE e.status IN ('posted', 'reversed')`
	var args []any
	if len(periods) > 0 {
		query += ` AND e.period_id IN (` + placeholders(len(periods)) + `)`
		for _, p := range periods {
			args = append(args, string(p))
		}
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fund activity: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	byFund := make(map[ledger.FundID]*ledger.FundActivityRow)
	var order []ledger.FundID
	for rows.Next() {
		var f ledger.Fund
		var id, typ, debit, credit string
		var active int
		if err := rows.Scan(&id, &f.Code, &f.Name, &typ, &f.Description, &active, &debit, &credit); err != nil {
			return nil, fmt.Errorf("%w: scan fund activity: %v", ledger.ErrStore, err)
		}
		f.ID = ledger.FundID(id)
		f.Type = ledger.FundType(typ)
		f.Active = active != 0

		row, ok := byFund[f.ID]
		if !ok {
			row = &ledger.FundActivityRow{Fund: f, Balance: ledger.ZeroBalance()}
			byFund[f.ID] = row
			order = append(order, f.ID)
		}
		row.Balance.DebitTotal = row.Balance.DebitTotal.Add(ledger.MustParseDecimal(debit))
		row.Balance.CreditTotal = row.Balance.CreditTotal.Add(ledger.MustParseDecimal(credit))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fund activity: %v", ledger.ErrStore, err)
	}

	out := make([]ledger.FundActivityRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byFund[id])
	}
	return out, nil
}

func (s *queries) FundMismatches(ctx context.Context) ([]ledger.FundDiscrepancy, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT e.number, l.line_no, a.number, a.fund_id, l.fund_id
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE l.fund_id IS NOT NULL AND a.fund_id IS NOT NULL AND l.fund_id != a.fund_id
		ORDER BY e.number ASC, l.line_no ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: fund mismatches: %v", ledger.ErrStore, err)
	}
	defer rows.Close()

	var out []ledger.FundDiscrepancy
	for rows.Next() {
		var d ledger.FundDiscrepancy
		var accountFund, lineFund string
		if err := rows.Scan(&d.EntryNumber, &d.LineNo, &d.AccountNumber, &accountFund, &lineFund); err != nil {
			return nil, fmt.Errorf("%w: scan fund mismatch: %v", ledger.ErrStore, err)
		}
		d.AccountFund = ledger.FundID(accountFund)
		d.LineFund = ledger.FundID(lineFund)
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
