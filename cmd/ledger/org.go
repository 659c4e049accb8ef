// org.go - Subsidiaries, funds, and the fiscal calendar.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbooks/ledger-engine/ledger"
)

func newInitCommand(a *app) *cobra.Command {
	var code, name, currency string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and register the first subsidiary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			sub := ledger.Subsidiary{
				ID:       ledger.NewSubsidiaryID(),
				Code:     code,
				Name:     name,
				Currency: currency,
				Active:   true,
			}
			if err := a.store.InsertSubsidiary(cmd.Context(), sub); err != nil {
				return err
			}
			fmt.Printf("Initialized %s with subsidiary %s (%s)\n", a.dbPath, sub.Code, sub.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "subsidiary code (required)")
	_ = cmd.MarkFlagRequired("code")
	cmd.Flags().StringVar(&name, "name", "", "subsidiary name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&currency, "currency", "USD", "base currency")

	return cmd
}

func newFundCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Manage funds",
	}
	cmd.AddCommand(newFundAddCommand(a))
	return cmd
}

func newFundAddCommand(a *app) *cobra.Command {
	var code, name, fundType, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a fund",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			fund := ledger.Fund{
				ID:          ledger.NewFundID(),
				Code:        code,
				Name:        name,
				Type:        ledger.FundType(fundType),
				Description: description,
				Active:      true,
			}
			if err := a.store.InsertFund(cmd.Context(), fund); err != nil {
				return err
			}
			fmt.Printf("Created fund %s (%s, %s)\n", fund.Code, fund.Name, fund.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "fund code (required)")
	_ = cmd.MarkFlagRequired("code")
	cmd.Flags().StringVar(&name, "name", "", "fund name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&fundType, "type", string(ledger.FundUnrestricted),
		"fund type (unrestricted, temporarily_restricted, permanently_restricted)")
	cmd.Flags().StringVar(&description, "description", "", "fund description")

	return cmd
}

func newYearCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "year",
		Short: "Manage fiscal years",
	}
	cmd.AddCommand(newYearGenerateCommand(a))
	return cmd
}

func newYearGenerateCommand(a *app) *cobra.Command {
	var name, start string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a fiscal year of twelve monthly periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			startDate, err := ledger.ParseDate(start)
			if err != nil {
				return err
			}
			year, periods, err := a.calendar.GenerateYear(cmd.Context(), name, startDate)
			if err != nil {
				return err
			}
			fmt.Printf("Created fiscal year %s (%s to %s)\n", year.Name, year.Start, year.End)
			for _, p := range periods {
				fmt.Printf("  %s  %s to %s  [%s]\n", p.Code, p.Start, p.End, p.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "fiscal year name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newPeriodCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Drive the fiscal period state machine",
	}
	cmd.AddCommand(newPeriodCloseCommand(a), newPeriodReopenCommand(a))
	return cmd
}

func newPeriodCloseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close <period-code>",
		Short: "Close a period, gating new postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermPeriodsClose); err != nil {
				return err
			}

			period, err := a.store.GetPeriodByCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			closed, err := a.calendar.Close(cmd.Context(), period.ID, a.user())
			if err != nil {
				return err
			}
			fmt.Printf("Period %s is now %s\n", closed.Code, closed.Status)
			return nil
		},
	}
}

func newPeriodReopenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <period-code>",
		Short: "Reopen a closed period for adjusting entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermPeriodsReopen); err != nil {
				return err
			}

			period, err := a.store.GetPeriodByCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reopened, err := a.calendar.Reopen(cmd.Context(), period.ID, a.user())
			if err != nil {
				return err
			}
			fmt.Printf("Period %s is now %s\n", reopened.Code, reopened.Status)
			return nil
		},
	}
}
