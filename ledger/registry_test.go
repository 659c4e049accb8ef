package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNT CREATION
// =============================================================================

func TestCreateAccount_DuplicateNumber_Rejected(t *testing.T) {
	// GIVEN: Account 1000 already exists
	// WHEN: Creating another account numbered 1000
	// THEN: ErrDuplicateNumber

	f := newFixture(t)

	_, err := f.registry.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Number:        "1000",
		Name:          "Petty Cash",
		Type:          ledger.AccountAsset,
		NormalBalance: ledger.SideDebit,
		ActingUser:    "tester",
	})

	assert.ErrorIs(t, err, ledger.ErrDuplicateNumber)
}

func TestCreateAccount_TypeBalanceMismatch_Rejected(t *testing.T) {
	// GIVEN: An asset account declared credit-normal
	// WHEN: Creating it
	// THEN: ErrTypeBalanceMismatch; assets and expenses are debit-normal

	f := newFixture(t)

	_, err := f.registry.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Number:        "1100",
		Name:          "Backwards Asset",
		Type:          ledger.AccountAsset,
		NormalBalance: ledger.SideCredit,
		ActingUser:    "tester",
	})

	assert.ErrorIs(t, err, ledger.ErrTypeBalanceMismatch)
}

func TestCreateAccount_MissingParent_Rejected(t *testing.T) {
	// GIVEN: A parent ID that doesn't exist
	// WHEN: Creating a child under it
	// THEN: ErrInvalidParent

	f := newFixture(t)

	_, err := f.registry.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Number:        "1100",
		Name:          "Orphan",
		Type:          ledger.AccountAsset,
		NormalBalance: ledger.SideDebit,
		ParentID:      ledger.NewAccountID(),
		ActingUser:    "tester",
	})

	assert.ErrorIs(t, err, ledger.ErrInvalidParent)
}

func TestCreateAccount_NormalSideDerivation(t *testing.T) {
	// Asset and expense accounts are debit-normal; the rest credit-normal.
	assert.Equal(t, ledger.SideDebit, ledger.AccountAsset.NormalSide())
	assert.Equal(t, ledger.SideDebit, ledger.AccountExpense.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountLiability.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountEquity.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountRevenue.NormalSide())
}

// =============================================================================
// HIERARCHY
// =============================================================================

func TestSetParent_Cycle_Rejected(t *testing.T) {
	// GIVEN: 1000 <- 1100 <- 1110 parent chain
	// WHEN: Re-attaching 1000 under 1110
	// THEN: ErrInvalidParent; the walk up from 1110 reaches 1000

	f := newFixture(t)
	ctx := context.Background()

	mk := func(number, name string, parent ledger.AccountID) ledger.Account {
		a, err := f.registry.CreateAccount(ctx, ledger.CreateAccountInput{
			Number:        number,
			Name:          name,
			Type:          ledger.AccountAsset,
			NormalBalance: ledger.SideDebit,
			ParentID:      parent,
			ActingUser:    "tester",
		})
		require.NoError(t, err)
		return a
	}
	mid := mk("1100", "Bank Accounts", f.cash.ID)
	leaf := mk("1110", "Operating Account", mid.ID)

	err := f.registry.SetParent(ctx, f.cash.ID, leaf.ID, "tester")
	assert.ErrorIs(t, err, ledger.ErrInvalidParent)
}

func TestSetParent_SelfParent_Rejected(t *testing.T) {
	f := newFixture(t)

	err := f.registry.SetParent(context.Background(), f.cash.ID, f.cash.ID, "tester")
	assert.ErrorIs(t, err, ledger.ErrInvalidParent)
}

func TestTree_OrderedByNumber(t *testing.T) {
	// GIVEN: A chart with children attached out of numeric order
	// WHEN: Materializing the tree
	// THEN: Roots and children come back sorted by account number

	f := newFixture(t)
	ctx := context.Background()

	for _, spec := range []struct{ number, name string }{
		{"1120", "Savings"},
		{"1110", "Checking"},
	} {
		_, err := f.registry.CreateAccount(ctx, ledger.CreateAccountInput{
			Number:        spec.number,
			Name:          spec.name,
			Type:          ledger.AccountAsset,
			NormalBalance: ledger.SideDebit,
			ParentID:      f.cash.ID,
			ActingUser:    "tester",
		})
		require.NoError(t, err)
	}

	roots, err := f.registry.Tree(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roots)

	assert.Equal(t, "1000", roots[0].Account.Number)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "1110", roots[0].Children[0].Account.Number)
	assert.Equal(t, "1120", roots[0].Children[1].Account.Number)
}

// =============================================================================
// DEACTIVATION
// =============================================================================

func TestDeactivate_HidesFromTree_KeepsHistory(t *testing.T) {
	// GIVEN: An account with posted history
	// WHEN: Deactivating it
	// THEN: It leaves the active tree but its posted balance survives

	f := newFixture(t)
	ctx := context.Background()

	entry := f.simpleDraft(t, "500.00")
	_, err := f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	require.NoError(t, f.registry.Deactivate(ctx, f.revenue.ID, "tester"))

	roots, err := f.registry.Tree(ctx)
	require.NoError(t, err)
	for _, root := range roots {
		assert.NotEqual(t, f.revenue.ID, root.Account.ID)
	}

	balance, err := f.engine.GetBalance(ctx, f.revenue.ID, "2026-03")
	require.NoError(t, err)
	assert.True(t, balance.Net(ledger.SideCredit).Equal(amt("500.00")))
}

// =============================================================================
// FUND CONSISTENCY (advisory)
// =============================================================================

func TestFundDiscrepancies_ReportsMismatchedTags(t *testing.T) {
	// GIVEN: An account declared under GEN, with a line tagged to a
	//        different fund
	// WHEN: Running the discrepancy report
	// THEN: The line is reported; nothing was blocked at entry time

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

	tagged, err := f.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Number:        "4100",
		Name:          "Restricted Gifts",
		Type:          ledger.AccountRevenue,
		NormalBalance: ledger.SideCredit,
		FundID:        f.general.ID,
		ActingUser:    "tester",
	})
	require.NoError(t, err)

	entry, err := f.engine.CreateDraft(ctx, ledger.DraftInput{
		SubsidiaryID: f.sub.ID,
		Date:         ledger.NewDate(2026, 3, 15),
		CreatedBy:    "tester",
		Lines: []ledger.LineInput{
			{LineNo: 1, AccountID: f.cash.ID, Debit: amt("100.00"), FundID: building.ID},
			{LineNo: 2, AccountID: tagged.ID, Credit: amt("100.00"), FundID: building.ID},
		},
	})
	require.NoError(t, err)
	_, err = f.engine.Post(ctx, entry.ID, "approver")
	require.NoError(t, err)

	discrepancies, err := f.registry.FundDiscrepancies(ctx)
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, "4100", discrepancies[0].AccountNumber)
	assert.Equal(t, f.general.ID, discrepancies[0].AccountFund)
	assert.Equal(t, building.ID, discrepancies[0].LineFund)
}

// =============================================================================
// PERMISSIONS
// =============================================================================

func TestStaticPermissions_RoleLookup(t *testing.T) {
	perms := &ledger.StaticPermissions{
		Assignments: map[ledger.UserID]ledger.Role{
			"alice": ledger.RoleAccountant,
			"bob":   ledger.RoleViewer,
		},
		Overrides: map[ledger.UserID][]ledger.Permission{
			"bob": {ledger.PermEntriesCreate},
		},
	}

	assert.True(t, perms.HasPermission("alice", ledger.PermEntriesPost))
	assert.False(t, perms.HasPermission("alice", ledger.PermPeriodsClose))
	assert.True(t, perms.HasPermission("bob", ledger.PermEntriesCreate), "override applies")
	assert.False(t, perms.HasPermission("bob", ledger.PermEntriesPost))
	assert.False(t, perms.HasPermission("mallory", ledger.PermEntriesView), "unknown principal")
}
