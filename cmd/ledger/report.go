// report.go - Trial balance and financial statement commands.
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openbooks/ledger-engine/ledger"
)

func newTrialBalanceCommand(a *app) *cobra.Command {
	var subsidiary string

	cmd := &cobra.Command{
		Use:   "trial-balance <period-code>",
		Short: "Print the trial balance through a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermTrialBalance); err != nil {
				return err
			}

			subID, err := resolveSubsidiary(cmd, a, subsidiary)
			if err != nil {
				return err
			}
			report, err := a.reporter.TrialBalance(cmd.Context(), args[0], subID)
			if err != nil {
				return err
			}

			fmt.Printf("Trial Balance through %s\n\n", report.PeriodCode)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tNAME\tDEBIT\tCREDIT")
			for _, row := range report.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					row.Account.Number, row.Account.Name,
					ledger.FormatAmount(row.Debit), ledger.FormatAmount(row.Credit))
			}
			fmt.Fprintf(w, "\tTOTAL\t%s\t%s\n",
				ledger.FormatAmount(report.TotalDebits), ledger.FormatAmount(report.TotalCredits))
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "restrict to a subsidiary code")
	return cmd
}

func newActivitiesCommand(a *app) *cobra.Command {
	var subsidiary, fund string

	cmd := &cobra.Command{
		Use:   "activities <period-code>",
		Short: "Print the statement of activities for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermReportsView); err != nil {
				return err
			}

			subID, err := resolveSubsidiary(cmd, a, subsidiary)
			if err != nil {
				return err
			}
			var fundID ledger.FundID
			if fund != "" {
				f, err := a.store.GetFundByCode(cmd.Context(), fund)
				if err != nil {
					return err
				}
				fundID = f.ID
			}

			report, err := a.reporter.StatementOfActivities(cmd.Context(), args[0], subID, fundID)
			if err != nil {
				return err
			}

			fmt.Printf("Statement of Activities - %s\n\n", report.PeriodCode)
			printSection(cmd, "Revenue", report.Revenue)
			printSection(cmd, "Expenses", report.Expenses)
			fmt.Printf("Change in Net Assets: %s\n", ledger.FormatAmount(report.NetChange))
			return nil
		},
	}

	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "restrict to a subsidiary code")
	cmd.Flags().StringVar(&fund, "fund", "", "restrict to a fund code")
	return cmd
}

func newPositionCommand(a *app) *cobra.Command {
	var subsidiary string

	cmd := &cobra.Command{
		Use:   "position <period-code>",
		Short: "Print the statement of financial position as of a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermReportsView); err != nil {
				return err
			}

			subID, err := resolveSubsidiary(cmd, a, subsidiary)
			if err != nil {
				return err
			}
			report, err := a.reporter.StatementOfFinancialPosition(cmd.Context(), args[0], subID)
			if err != nil {
				return err
			}

			fmt.Printf("Statement of Financial Position - as of %s\n\n", report.AsOfPeriod)
			printSection(cmd, "Assets", report.Assets)
			printSection(cmd, "Liabilities", report.Liabilities)
			printSection(cmd, "Net Assets", report.NetAssets)
			return nil
		},
	}

	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "restrict to a subsidiary code")
	return cmd
}

func newFundBalancesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund-balances <period-code>",
		Short: "Print fund balances through a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermReportsView); err != nil {
				return err
			}

			report, err := a.reporter.FundBalances(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Fund Balances through %s\n\n", report.PeriodCode)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FUND\tNAME\tTYPE\tBALANCE")
			for _, row := range report.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					row.Fund.Code, row.Fund.Name, row.Fund.Type,
					ledger.FormatAmount(row.Balance))
			}
			fmt.Fprintf(w, "\tTOTAL\t\t%s\n", ledger.FormatAmount(report.Total))
			return w.Flush()
		},
	}
}

func newBalanceCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-number> <period-code>",
		Short: "Print one account's balance through a period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermTrialBalance); err != nil {
				return err
			}

			account, err := a.store.GetAccountByNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			balance, err := a.engine.GetBalance(cmd.Context(), account.ID, args[1])
			if err != nil {
				return err
			}

			fmt.Printf("%s %s through %s\n", account.Number, account.Name, args[1])
			fmt.Printf("  Debits:  %s\n", ledger.FormatAmount(balance.DebitTotal))
			fmt.Printf("  Credits: %s\n", ledger.FormatAmount(balance.CreditTotal))
			fmt.Printf("  Balance: %s (%s-normal)\n",
				ledger.FormatAmount(balance.Net(account.NormalBalance)), account.NormalBalance)
			return nil
		},
	}
}

func resolveSubsidiary(cmd *cobra.Command, a *app, code string) (ledger.SubsidiaryID, error) {
	if code == "" {
		return "", nil
	}
	sub, err := a.store.GetSubsidiaryByCode(cmd.Context(), code)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func printSection(cmd *cobra.Command, title string, s ledger.Section) {
	fmt.Println(title)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	for _, line := range s.Lines {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", line.AccountNumber, line.AccountName,
			ledger.FormatAmount(line.Amount))
	}
	fmt.Fprintf(w, "  \tTotal %s\t%s\n", title, ledger.FormatAmount(s.Total))
	w.Flush()
	fmt.Println()
}
