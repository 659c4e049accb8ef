package ledger_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/ledger-engine/ledger"
)

func postSimple(t *testing.T, f *fixture, date ledger.Date, debit, credit ledger.AccountID, amount string) ledger.JournalEntry {
	t.Helper()
	ctx := context.Background()
	entry, err := f.engine.CreateDraft(ctx, ledger.DraftInput{
		SubsidiaryID: f.sub.ID,
		Date:         date,
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 1, AccountID: debit, Debit: amt(amount)},
			{LineNo: 2, AccountID: credit, Credit: amt(amount)},
		},
	})
	require.NoError(t, err)
	posted, err := f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)
	return posted
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

func TestTrialBalance_TotalsAlwaysEqual(t *testing.T) {
	// GIVEN: A pile of random balanced entries across several periods,
	//        some of them reversed
	// WHEN: Running the trial balance through any period
	// THEN: Total debits equal total credits exactly

	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	accounts := []ledger.AccountID{f.cash.ID, f.payable.ID, f.equity.ID, f.revenue.ID, f.expense.ID}
	for i := 0; i < 40; i++ {
		day := 1 + rng.Intn(28)
		month := time.Month(1 + rng.Intn(3)) // Jan-Mar
		cents := int64(1 + rng.Intn(1_000_000))
		amount := ledger.FromCents(cents).StringFixed(2)

		di := rng.Intn(len(accounts))
		ci := (di + 1 + rng.Intn(len(accounts)-1)) % len(accounts)
		entry := postSimple(t, f, ledger.NewDate(2026, month, day), accounts[di], accounts[ci], amount)

		if rng.Intn(4) == 0 {
			_, err := f.engine.Reverse(ctx, entry.ID, "approver")
			require.NoError(t, err)
		}
	}

	for _, code := range []string{"2026-01", "2026-02", "2026-03", "2026-12"} {
		report, err := f.reporter.TrialBalance(ctx, code, "")
		require.NoError(t, err)
		assert.True(t, report.TotalDebits.Equal(report.TotalCredits),
			"through %s: debits %s != credits %s", code,
			report.TotalDebits, report.TotalCredits)
	}
}

func TestTrialBalance_CumulativeAndSorted(t *testing.T) {
	// GIVEN: Activity in January and February
	// WHEN: Running the trial balance through February
	// THEN: January activity is included and rows sort by account number

	f := newFixture(t)
	ctx := context.Background()

	postSimple(t, f, ledger.NewDate(2026, time.January, 10), f.cash.ID, f.revenue.ID, "100.00")
	postSimple(t, f, ledger.NewDate(2026, time.February, 10), f.expense.ID, f.cash.ID, "40.00")

	report, err := f.reporter.TrialBalance(ctx, "2026-02", "")
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, "1000", report.Rows[0].Account.Number)
	assert.Equal(t, "4000", report.Rows[1].Account.Number)
	assert.Equal(t, "5000", report.Rows[2].Account.Number)

	assert.True(t, report.Rows[0].Debit.Equal(amt("100.00")))
	assert.True(t, report.Rows[0].Credit.Equal(amt("40.00")))
	assert.True(t, report.TotalDebits.Equal(amt("140.00")))
	assert.True(t, report.TotalCredits.Equal(amt("140.00")))
}

func TestTrialBalance_ExcludesDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.simpleDraft(t, "999.00") // never posted

	report, err := f.reporter.TrialBalance(ctx, "2026-03", "")
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.True(t, report.TotalDebits.IsZero())
}

// =============================================================================
// STATEMENT OF ACTIVITIES
// =============================================================================

func TestStatementOfActivities_SignedPerNormalBalance(t *testing.T) {
	// GIVEN: March donations of 1000.00 and expenses of 350.00
	// WHEN: Running the statement of activities for March
	// THEN: Revenue 1000.00, expenses 350.00, net change 650.00

	f := newFixture(t)
	ctx := context.Background()

	postSimple(t, f, ledger.NewDate(2026, time.March, 5), f.cash.ID, f.revenue.ID, "1000.00")
	postSimple(t, f, ledger.NewDate(2026, time.March, 12), f.expense.ID, f.cash.ID, "350.00")

	report, err := f.reporter.StatementOfActivities(ctx, "2026-03", "", "")
	require.NoError(t, err)

	assert.True(t, report.Revenue.Total.Equal(amt("1000.00")))
	assert.True(t, report.Expenses.Total.Equal(amt("350.00")))
	assert.True(t, report.NetChange.Equal(amt("650.00")))
}

func TestStatementOfActivities_SinglePeriodOnly(t *testing.T) {
	// GIVEN: Revenue in January and February
	// WHEN: Running the statement for February
	// THEN: Only February activity appears

	f := newFixture(t)
	ctx := context.Background()

	postSimple(t, f, ledger.NewDate(2026, time.January, 5), f.cash.ID, f.revenue.ID, "500.00")
	postSimple(t, f, ledger.NewDate(2026, time.February, 5), f.cash.ID, f.revenue.ID, "200.00")

	report, err := f.reporter.StatementOfActivities(ctx, "2026-02", "", "")
	require.NoError(t, err)
	assert.True(t, report.Revenue.Total.Equal(amt("200.00")))
}

// =============================================================================
// STATEMENT OF FINANCIAL POSITION
// =============================================================================

func TestStatementOfFinancialPosition_Balances(t *testing.T) {
	// GIVEN: Opening equity, revenue, and expense activity
	// WHEN: Running the statement of financial position
	// THEN: Assets == liabilities + net assets, with net income folded in

	f := newFixture(t)
	ctx := context.Background()

	postSimple(t, f, ledger.NewDate(2026, time.January, 1), f.cash.ID, f.equity.ID, "10000.00")
	postSimple(t, f, ledger.NewDate(2026, time.February, 1), f.cash.ID, f.revenue.ID, "3000.00")
	postSimple(t, f, ledger.NewDate(2026, time.March, 1), f.expense.ID, f.cash.ID, "1200.00")
	postSimple(t, f, ledger.NewDate(2026, time.March, 2), f.cash.ID, f.payable.ID, "400.00")

	report, err := f.reporter.StatementOfFinancialPosition(ctx, "2026-03", "")
	require.NoError(t, err)

	assert.True(t, report.Assets.Total.Equal(amt("12200.00")), "assets: %s", report.Assets.Total)
	assert.True(t, report.Liabilities.Total.Equal(amt("400.00")))
	assert.True(t, report.NetIncome.Equal(amt("1800.00")))
	assert.True(t, report.NetAssets.Total.Equal(amt("11800.00")))

	rhs := report.Liabilities.Total.Add(report.NetAssets.Total)
	assert.True(t, report.Assets.Total.Equal(rhs),
		"assets %s != liabilities + net assets %s", report.Assets.Total, rhs)
}

// =============================================================================
// FUND BALANCES
// =============================================================================

func TestFundBalances_PerFundWithZeroRows(t *testing.T) {
	// GIVEN: Tagged activity in one fund, a second fund with none
	// WHEN: Running fund balances
	// THEN: Both funds appear; the idle one shows zero

	f := newFixture(t)
	ctx := context.Background()

	building := ledger.Fund{
		ID:     ledger.NewFundID(),
		Code:   "BLD",
		Name:   "Building Fund",
		Type:   ledger.FundTempRestricted,
		Active: true,
	}
	require.NoError(t, f.store.InsertFund(ctx, building))

	entry, err := f.engine.CreateDraft(ctx, ledger.DraftInput{
		SubsidiaryID: f.sub.ID,
		Date:         ledger.NewDate(2026, time.March, 10),
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 1, AccountID: f.cash.ID, Debit: amt("750.00"), FundID: f.general.ID},
			{LineNo: 2, AccountID: f.revenue.ID, Credit: amt("750.00"), FundID: f.general.ID},
		},
	})
	require.NoError(t, err)
	_, err = f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	report, err := f.reporter.FundBalances(ctx, "2026-03")
	require.NoError(t, err)

	byCode := map[string]decimal.Decimal{}
	for _, row := range report.Rows {
		byCode[row.Fund.Code] = row.Balance
	}
	require.Contains(t, byCode, "GEN")
	require.Contains(t, byCode, "BLD")
	assert.True(t, byCode["BLD"].IsZero())
	// Equal debits and credits within the fund net to zero on the credit side.
	assert.True(t, byCode["GEN"].IsZero())
}

func TestFundBalances_RestrictedGiftShowsCreditBalance(t *testing.T) {
	// GIVEN: A restricted gift where only the revenue line carries the
	//        fund tag (cash held in the general pool)
	// WHEN: Running fund balances
	// THEN: The restricted fund shows the gift as a credit balance

	f := newFixture(t)
	ctx := context.Background()

	building := ledger.Fund{
		ID:     ledger.NewFundID(),
		Code:   "BLD",
		Name:   "Building Fund",
		Type:   ledger.FundTempRestricted,
		Active: true,
	}
	require.NoError(t, f.store.InsertFund(ctx, building))

	entry, err := f.engine.CreateDraft(ctx, ledger.DraftInput{
		SubsidiaryID: f.sub.ID,
		Date:         ledger.NewDate(2026, time.March, 10),
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 1, AccountID: f.cash.ID, Debit: amt("2500.00")},
			{LineNo: 2, AccountID: f.revenue.ID, Credit: amt("2500.00"), FundID: building.ID},
		},
	})
	require.NoError(t, err)
	_, err = f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	report, err := f.reporter.FundBalances(ctx, "2026-03")
	require.NoError(t, err)

	for _, row := range report.Rows {
		if row.Fund.Code == "BLD" {
			assert.True(t, row.Balance.Equal(amt("2500.00")), "got %s", row.Balance)
			return
		}
	}
	t.Fatal("building fund missing from report")
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

func TestParseAmount_Validation(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"100.00", true},
		{"0.01", true},
		{"100", true},
		{"100.005", false},
		{"-5.00", false},
		{"abc", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := ledger.ParseAmount(tc.in)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ledger.ErrValidation)
			}
		})
	}
}

func TestFormatAmount_TwoDecimalPlaces(t *testing.T) {
	for in, want := range map[string]string{
		"5":      "5.00",
		"5.1":    "5.10",
		"5000":   "5000.00",
		"0":      "0.00",
		"123.45": "123.45",
	} {
		got := ledger.FormatAmount(ledger.MustParseDecimal(in))
		if got != want {
			t.Errorf("FormatAmount(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCents_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "123.45", "99999.99", "0.00"} {
		d := ledger.MustParseDecimal(s)
		back := ledger.FromCents(ledger.Cents(d))
		if !back.Equal(d) {
			t.Errorf("round trip %s -> %d -> %s", s, ledger.Cents(d), back)
		}
	}
}
