// entry.go - Journal entry lifecycle commands.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openbooks/ledger-engine/ledger"
)

func newEntryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Draft, post, and reverse journal entries",
	}
	cmd.AddCommand(
		newEntryAddCommand(a),
		newEntryPostCommand(a),
		newEntryReverseCommand(a),
		newEntryShowCommand(a),
		newEntryListCommand(a),
	)
	return cmd
}

func newEntryAddCommand(a *app) *cobra.Command {
	var subsidiary, date, memo, sourceRef, fund string
	var lineSpecs []string
	var post bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a draft journal entry",
		Long: `Create a draft journal entry from repeated --line flags.

Each line is ACCOUNT:SIDE:AMOUNT[:MEMO], for example:

  ledger entry add --subsidiary MAIN --date 2026-03-15 --memo "Donation" \
      --line 1000:debit:5000.00 --line 4000:credit:5000.00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermEntriesCreate); err != nil {
				return err
			}

			sub, err := a.store.GetSubsidiaryByCode(cmd.Context(), subsidiary)
			if err != nil {
				return err
			}

			entryDate := ledger.Today()
			if date != "" {
				entryDate, err = ledger.ParseDate(date)
				if err != nil {
					return err
				}
			}

			var fundID ledger.FundID
			if fund != "" {
				f, err := a.store.GetFundByCode(cmd.Context(), fund)
				if err != nil {
					return err
				}
				fundID = f.ID
			}

			lines := make([]ledger.LineInput, 0, len(lineSpecs))
			for i, spec := range lineSpecs {
				line, err := parseLineSpec(cmd, a, spec, i+1)
				if err != nil {
					return err
				}
				line.FundID = fundID
				lines = append(lines, line)
			}

			entry, err := a.engine.CreateDraft(cmd.Context(), ledger.DraftInput{
				SubsidiaryID: sub.ID,
				Date:         entryDate,
				Memo:         memo,
				SourceRef:    sourceRef,
				CreatedBy:    a.user(),
				Lines:        lines,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created draft JE #%d\n", entry.Number)

			if post {
				if err := a.require(ledger.PermEntriesPost); err != nil {
					return err
				}
				posted, err := a.engine.Post(cmd.Context(), entry.ID, a.user())
				if err != nil {
					return err
				}
				fmt.Printf("Posted JE #%d\n", posted.Number)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "subsidiary code (required)")
	_ = cmd.MarkFlagRequired("subsidiary")
	cmd.Flags().StringVar(&date, "date", "", "entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&memo, "memo", "", "entry memo")
	cmd.Flags().StringVar(&sourceRef, "source-ref", "", "external source reference")
	cmd.Flags().StringVar(&fund, "fund", "", "fund code applied to every line")
	cmd.Flags().StringArrayVar(&lineSpecs, "line", nil, "journal line ACCOUNT:SIDE:AMOUNT[:MEMO] (repeatable)")
	cmd.Flags().BoolVar(&post, "post", false, "post immediately after creating")

	return cmd
}

// parseLineSpec turns "1000:debit:500.00[:memo]" into a LineInput,
// resolving the account number against the chart.
func parseLineSpec(cmd *cobra.Command, a *app, spec string, lineNo int) (ledger.LineInput, error) {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return ledger.LineInput{}, fmt.Errorf("invalid line %q: want ACCOUNT:SIDE:AMOUNT[:MEMO]", spec)
	}

	account, err := a.store.GetAccountByNumber(cmd.Context(), parts[0])
	if err != nil {
		return ledger.LineInput{}, err
	}
	amount, err := ledger.ParseAmount(parts[2])
	if err != nil {
		return ledger.LineInput{}, fmt.Errorf("line %q: %w", spec, err)
	}

	line := ledger.LineInput{LineNo: lineNo, AccountID: account.ID}
	if len(parts) == 4 {
		line.Memo = parts[3]
	}
	switch strings.ToLower(parts[1]) {
	case "debit", "dr":
		line.Debit = amount
	case "credit", "cr":
		line.Credit = amount
	default:
		return ledger.LineInput{}, fmt.Errorf("invalid line %q: side must be debit or credit", spec)
	}
	return line, nil
}

func newEntryPostCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "post <entry-number>",
		Short: "Post a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermEntriesPost); err != nil {
				return err
			}

			entry, err := entryByNumberArg(cmd, a, args[0])
			if err != nil {
				return err
			}
			posted, err := a.engine.Post(cmd.Context(), entry.ID, a.user())
			if err != nil {
				return err
			}
			fmt.Printf("Posted JE #%d\n", posted.Number)
			return nil
		},
	}
}

func newEntryReverseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <entry-number>",
		Short: "Reverse a posted entry with a mirrored posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermEntriesReverse); err != nil {
				return err
			}

			entry, err := entryByNumberArg(cmd, a, args[0])
			if err != nil {
				return err
			}
			reversal, err := a.engine.Reverse(cmd.Context(), entry.ID, a.user())
			if err != nil {
				return err
			}
			fmt.Printf("Reversed JE #%d with JE #%d\n", entry.Number, reversal.Number)
			return nil
		},
	}
}

func newEntryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-number>",
		Short: "Show an entry with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermEntriesView); err != nil {
				return err
			}

			entry, err := entryByNumberArg(cmd, a, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("JE #%d  %s  [%s]\n", entry.Number, entry.Date, entry.Status)
			if entry.Memo != "" {
				fmt.Printf("Memo: %s\n", entry.Memo)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LINE\tACCOUNT\tDEBIT\tCREDIT\tMEMO")
			for _, l := range entry.Lines {
				account, err := a.store.GetAccount(cmd.Context(), l.AccountID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					l.LineNo, account.Number,
					ledger.FormatAmount(l.Debit), ledger.FormatAmount(l.Credit), l.Memo)
			}
			return w.Flush()
		},
	}
}

func newEntryListCommand(a *app) *cobra.Command {
	var status, subsidiary, period string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries by number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()
			if err := a.require(ledger.PermEntriesView); err != nil {
				return err
			}

			filter := ledger.EntryFilter{
				Status: ledger.EntryStatus(status),
				Limit:  limit,
			}
			if subsidiary != "" {
				sub, err := a.store.GetSubsidiaryByCode(cmd.Context(), subsidiary)
				if err != nil {
					return err
				}
				filter.SubsidiaryID = sub.ID
			}
			if period != "" {
				p, err := a.store.GetPeriodByCode(cmd.Context(), period)
				if err != nil {
					return err
				}
				filter.PeriodID = p.ID
			}

			entries, err := a.engine.ListEntries(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JE\tDATE\tSTATUS\tDEBITS\tCREDITS\tMEMO")
			for _, e := range entries {
				debits, credits := e.Totals()
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					e.Number, e.Date, e.Status,
					ledger.FormatAmount(debits), ledger.FormatAmount(credits), e.Memo)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, posted, reversed)")
	cmd.Flags().StringVar(&subsidiary, "subsidiary", "", "filter by subsidiary code")
	cmd.Flags().StringVar(&period, "period", "", "filter by period code")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to list")

	return cmd
}

func entryByNumberArg(cmd *cobra.Command, a *app, arg string) (ledger.JournalEntry, error) {
	number, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("invalid entry number %q", arg)
	}
	return a.store.GetEntryByNumber(cmd.Context(), number)
}
