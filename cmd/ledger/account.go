// account.go - Chart of accounts commands.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openbooks/ledger-engine/ledger"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountAddCommand(a),
		newAccountTreeCommand(a),
		newAccountDeactivateCommand(a),
		newAccountCheckFundsCommand(a),
	)
	return cmd
}

func newAccountAddCommand(a *app) *cobra.Command {
	var number, name, accountType, parent, fund, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermAccountsCreate); err != nil {
				return err
			}

			in := ledger.CreateAccountInput{
				Number:        number,
				Name:          name,
				Type:          ledger.AccountType(accountType),
				NormalBalance: ledger.AccountType(accountType).NormalSide(),
				Description:   description,
				ActingUser:    a.user(),
			}
			if parent != "" {
				p, err := a.store.GetAccountByNumber(cmd.Context(), parent)
				if err != nil {
					return err
				}
				in.ParentID = p.ID
			}
			if fund != "" {
				f, err := a.store.GetFundByCode(cmd.Context(), fund)
				if err != nil {
					return err
				}
				in.FundID = f.ID
			}

			account, err := a.registry.CreateAccount(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Created account %s %s (%s, %s-normal)\n",
				account.Number, account.Name, account.Type, account.NormalBalance)
			return nil
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "account number (required)")
	_ = cmd.MarkFlagRequired("number")
	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&accountType, "type", "", "account type (asset, liability, equity, revenue, expense)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account number")
	cmd.Flags().StringVar(&fund, "fund", "", "fund code")
	cmd.Flags().StringVar(&description, "description", "", "account description")

	return cmd
}

func newAccountTreeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the active chart of accounts as a tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermAccountsView); err != nil {
				return err
			}

			roots, err := a.registry.Tree(cmd.Context())
			if err != nil {
				return err
			}
			printTree(roots, 0)
			return nil
		},
	}
}

func printTree(nodes []*ledger.AccountNode, depth int) {
	for _, n := range nodes {
		fmt.Printf("%s%s  %s (%s)\n",
			strings.Repeat("  ", depth), n.Account.Number, n.Account.Name, n.Account.Type)
		printTree(n.Children, depth+1)
	}
}

func newAccountDeactivateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <account-number>",
		Short: "Deactivate an account, blocking new lines against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermAccountsUpdate); err != nil {
				return err
			}

			account, err := a.store.GetAccountByNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.registry.Deactivate(cmd.Context(), account.ID, a.user()); err != nil {
				return err
			}
			fmt.Printf("Deactivated account %s (%s)\n", account.Number, account.Name)
			return nil
		},
	}
}

func newAccountCheckFundsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-funds",
		Short: "Report lines whose fund tag disagrees with the account's fund",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermAccountsView); err != nil {
				return err
			}

			discrepancies, err := a.registry.FundDiscrepancies(cmd.Context())
			if err != nil {
				return err
			}
			if len(discrepancies) == 0 {
				fmt.Println("No fund discrepancies found")
				return nil
			}
			for _, d := range discrepancies {
				fmt.Printf("JE #%d line %d: account %s declares fund %s, line tagged %s\n",
					d.EntryNumber, d.LineNo, d.AccountNumber, d.AccountFund, d.LineFund)
			}
			return nil
		},
	}
}
