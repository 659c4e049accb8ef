/*
ledger - General ledger command line interface

PURPOSE:
  Operator-facing CLI over the ledger engine: chart of accounts, fiscal
  calendar, journal entry lifecycle, and financial reports, backed by a
  SQLite database file.

COMMAND LAYOUT:
  ledger init                 Create the database and first subsidiary
  ledger fund add             Register a fund
  ledger year generate        Generate a fiscal year of monthly periods
  ledger period close|reopen  Drive the period state machine
  ledger account ...          Chart of accounts management
  ledger entry ...            Draft / post / reverse journal entries
  ledger trial-balance ...    Reports

PERMISSIONS:
  Every mutating command checks the acting user against a static role
  table before touching the engine. --actor and --role stand in for the
  external identity provider.
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openbooks/ledger-engine/ledger"
	"github.com/openbooks/ledger-engine/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	app := &app{}

	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Nonprofit general ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&app.dbPath, "db", "ledger.db", "path to the database file")
	rootCmd.PersistentFlags().StringVar(&app.actor, "actor", "cli", "acting user recorded in the audit trail")
	rootCmd.PersistentFlags().StringVar(&app.role, "role", "admin", "role of the acting user (admin, accountant, viewer)")

	rootCmd.AddCommand(
		newInitCommand(app),
		newFundCommand(app),
		newYearCommand(app),
		newPeriodCommand(app),
		newAccountCommand(app),
		newEntryCommand(app),
		newTrialBalanceCommand(app),
		newActivitiesCommand(app),
		newPositionCommand(app),
		newFundBalancesCommand(app),
		newBalanceCommand(app),
	)

	return rootCmd
}

// app carries the global flags and lazily opened services.
type app struct {
	dbPath string
	actor  string
	role   string

	store    *sqlite.Store
	engine   *ledger.Engine
	registry *ledger.Registry
	calendar *ledger.Calendar
	reporter *ledger.Reporter
	perms    ledger.PermissionChecker
}

func (a *app) open() error {
	store, err := sqlite.New(a.dbPath)
	if err != nil {
		return err
	}
	a.store = store
	a.engine = ledger.NewEngine(store, store)
	a.registry = ledger.NewRegistry(store, store)
	a.calendar = ledger.NewCalendar(store, store)
	a.reporter = ledger.NewReporter(store)
	a.perms = &ledger.StaticPermissions{
		Assignments: map[ledger.UserID]ledger.Role{
			a.user(): ledger.Role(a.role),
		},
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) user() ledger.UserID {
	return ledger.UserID(a.actor)
}

func (a *app) require(perm ledger.Permission) error {
	if !a.perms.HasPermission(a.user(), perm) {
		return fmt.Errorf("permission denied: %s requires %s", a.actor, perm)
	}
	return nil
}
