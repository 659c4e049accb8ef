/*
reports.go - Trial balance and financial statements

PURPOSE:
  Derives point-in-time reports from posted lines. Reports are computed
  fresh on every call over the store's posted-activity reads; nothing is
  cached and no report blocks concurrent posting.

THE FUNDAMENTAL CHECK:
  For any ledger state, the trial balance's total debit column equals its
  total credit column exactly. Every other statement is a restriction or
  re-signing of the same posted lines.

SIGNING CONVENTION:
  Amounts are presented per normal balance: debit-normal accounts show
  debits minus credits, credit-normal accounts show credits minus debits.

SEE ALSO:
  - engine.go: GetBalance, the single-account variant of these reads
  - store.go: PostedActivity / FundActivity contracts
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Reporter derives reports from posted lines.
type Reporter struct {
	store TxStore
}

func NewReporter(store TxStore) *Reporter {
	return &Reporter{store: store}
}

// =============================================================================
// REPORT SHAPES
// =============================================================================

type TrialBalanceRow struct {
	Account Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

type TrialBalanceReport struct {
	PeriodCode   string
	SubsidiaryID SubsidiaryID
	Rows         []TrialBalanceRow
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
}

type StatementLine struct {
	AccountNumber string
	AccountName   string
	Amount        decimal.Decimal
}

type Section struct {
	Lines []StatementLine
	Total decimal.Decimal
}

type ActivitiesReport struct {
	PeriodCode string
	Revenue    Section
	Expenses   Section
	NetChange  decimal.Decimal
}

type PositionReport struct {
	AsOfPeriod  string
	Assets      Section
	Liabilities Section
	// NetAssets.Total includes NetIncome (retained earnings treatment).
	NetAssets Section
	NetIncome decimal.Decimal
}

type FundBalanceRow struct {
	Fund    Fund
	Balance decimal.Decimal
}

type FundBalancesReport struct {
	PeriodCode string
	Rows       []FundBalanceRow
	Total      decimal.Decimal
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

// TrialBalance lists every account with nonzero activity through the
// given period, ascending by account number, with grand totals. Totals
// are exactly equal for any internally-consistent ledger state.
func (r *Reporter) TrialBalance(ctx context.Context, periodCode string, subsidiaryID SubsidiaryID) (TrialBalanceReport, error) {
	periods, err := r.periodsThrough(ctx, periodCode)
	if err != nil {
		return TrialBalanceReport{}, err
	}

	rows, err := r.store.PostedActivity(ctx, ActivityFilter{
		Periods:      periods,
		SubsidiaryID: subsidiaryID,
	})
	if err != nil {
		return TrialBalanceReport{}, err
	}

	report := TrialBalanceReport{
		PeriodCode:   periodCode,
		SubsidiaryID: subsidiaryID,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for _, row := range rows {
		if row.Totals.DebitTotal.IsZero() && row.Totals.CreditTotal.IsZero() {
			continue
		}
		report.Rows = append(report.Rows, TrialBalanceRow{
			Account: row.Account,
			Debit:   row.Totals.DebitTotal,
			Credit:  row.Totals.CreditTotal,
		})
		report.TotalDebits = report.TotalDebits.Add(row.Totals.DebitTotal)
		report.TotalCredits = report.TotalCredits.Add(row.Totals.CreditTotal)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Account.Number < report.Rows[j].Account.Number
	})
	return report, nil
}

// =============================================================================
// STATEMENT OF ACTIVITIES (nonprofit P&L)
// =============================================================================

// StatementOfActivities restricts to revenue/expense accounts for a
// single period, amounts signed per normal balance.
func (r *Reporter) StatementOfActivities(ctx context.Context, periodCode string, subsidiaryID SubsidiaryID, fundID FundID) (ActivitiesReport, error) {
	period, err := r.store.GetPeriodByCode(ctx, periodCode)
	if err != nil {
		return ActivitiesReport{}, err
	}

	rows, err := r.store.PostedActivity(ctx, ActivityFilter{
		Periods:      []PeriodID{period.ID},
		SubsidiaryID: subsidiaryID,
		Types:        []AccountType{AccountRevenue, AccountExpense},
		FundID:       fundID,
	})
	if err != nil {
		return ActivitiesReport{}, err
	}
	sortActivity(rows)

	report := ActivitiesReport{
		PeriodCode: periodCode,
		Revenue:    Section{Total: decimal.Zero},
		Expenses:   Section{Total: decimal.Zero},
	}
	for _, row := range rows {
		amount := row.Totals.Net(row.Account.NormalBalance)
		line := StatementLine{
			AccountNumber: row.Account.Number,
			AccountName:   row.Account.Name,
			Amount:        amount,
		}
		if row.Account.Type == AccountRevenue {
			report.Revenue.Lines = append(report.Revenue.Lines, line)
			report.Revenue.Total = report.Revenue.Total.Add(amount)
		} else {
			report.Expenses.Lines = append(report.Expenses.Lines, line)
			report.Expenses.Total = report.Expenses.Total.Add(amount)
		}
	}
	report.NetChange = report.Revenue.Total.Sub(report.Expenses.Total)
	return report, nil
}

// =============================================================================
// STATEMENT OF FINANCIAL POSITION (nonprofit balance sheet)
// =============================================================================

// StatementOfFinancialPosition accumulates all posted activity through
// the as-of period for asset/liability/equity accounts, folding net
// income from revenue/expense accounts into net assets. For any
// internally-consistent ledger: assets == liabilities + net assets.
func (r *Reporter) StatementOfFinancialPosition(ctx context.Context, asOfPeriodCode string, subsidiaryID SubsidiaryID) (PositionReport, error) {
	periods, err := r.periodsThrough(ctx, asOfPeriodCode)
	if err != nil {
		return PositionReport{}, err
	}

	rows, err := r.store.PostedActivity(ctx, ActivityFilter{
		Periods:      periods,
		SubsidiaryID: subsidiaryID,
	})
	if err != nil {
		return PositionReport{}, err
	}
	sortActivity(rows)

	report := PositionReport{
		AsOfPeriod:  asOfPeriodCode,
		Assets:      Section{Total: decimal.Zero},
		Liabilities: Section{Total: decimal.Zero},
		NetAssets:   Section{Total: decimal.Zero},
		NetIncome:   decimal.Zero,
	}
	for _, row := range rows {
		amount := row.Totals.Net(row.Account.NormalBalance)
		line := StatementLine{
			AccountNumber: row.Account.Number,
			AccountName:   row.Account.Name,
			Amount:        amount,
		}
		switch row.Account.Type {
		case AccountAsset:
			report.Assets.Lines = append(report.Assets.Lines, line)
			report.Assets.Total = report.Assets.Total.Add(amount)
		case AccountLiability:
			report.Liabilities.Lines = append(report.Liabilities.Lines, line)
			report.Liabilities.Total = report.Liabilities.Total.Add(amount)
		case AccountEquity:
			report.NetAssets.Lines = append(report.NetAssets.Lines, line)
			report.NetAssets.Total = report.NetAssets.Total.Add(amount)
		case AccountRevenue:
			report.NetIncome = report.NetIncome.Add(amount)
		case AccountExpense:
			report.NetIncome = report.NetIncome.Sub(amount)
		}
	}
	report.NetAssets.Total = report.NetAssets.Total.Add(report.NetIncome)
	return report, nil
}

// =============================================================================
// FUND BALANCES
// =============================================================================

// FundBalances sums posted lines per fund tag through the given period.
// Active funds with no activity appear with a zero balance.
func (r *Reporter) FundBalances(ctx context.Context, periodCode string) (FundBalancesReport, error) {
	periods, err := r.periodsThrough(ctx, periodCode)
	if err != nil {
		return FundBalancesReport{}, err
	}

	rows, err := r.store.FundActivity(ctx, periods)
	if err != nil {
		return FundBalancesReport{}, err
	}

	report := FundBalancesReport{PeriodCode: periodCode, Total: decimal.Zero}
	seen := map[FundID]bool{}
	for _, row := range rows {
		balance := row.Balance.Net(SideCredit)
		report.Rows = append(report.Rows, FundBalanceRow{Fund: row.Fund, Balance: balance})
		report.Total = report.Total.Add(balance)
		seen[row.Fund.ID] = true
	}

	funds, err := r.store.ListFunds(ctx, true)
	if err != nil {
		return FundBalancesReport{}, err
	}
	for _, f := range funds {
		if !seen[f.ID] {
			report.Rows = append(report.Rows, FundBalanceRow{Fund: f, Balance: decimal.Zero})
		}
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Fund.Code < report.Rows[j].Fund.Code
	})
	return report, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *Reporter) periodsThrough(ctx context.Context, code string) ([]PeriodID, error) {
	target, err := r.store.GetPeriodByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	periods, err := r.store.PeriodsThrough(ctx, target.End)
	if err != nil {
		return nil, err
	}
	ids := make([]PeriodID, 0, len(periods))
	for _, p := range periods {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func sortActivity(rows []ActivityRow) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Account.Number < rows[j].Account.Number
	})
}
