/*
audit.go - External access/audit collaborator contracts

PURPOSE:
  The engine trusts the caller-supplied acting user and subsidiary scope;
  identity and permission checks belong to an external collaborator
  invoked before any engine call. In return, every mutating engine call
  emits exactly one audit record describing the change.

AUDIT SEMANTICS:
  Fire-and-forget. A failed audit write never rolls back the mutation it
  describes; the event is emitted after the transaction commits.

PERMISSIONS:
  A flat principal -> permission-set lookup with optional per-principal
  overrides. The engine queries it but never owns it.

SEE ALSO:
  - engine.go, calendar.go, registry.go: Event producers
  - store/sqlite: Persistent AuditLog implementation
*/
package ledger

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENTS
// =============================================================================

// Audit action names, {module}.{resource}.{action} form.
const (
	ActionAccountCreate     = "gl.account.create"
	ActionAccountDeactivate = "gl.account.deactivate"
	ActionAccountReparent   = "gl.account.reparent"
	ActionEntryCreate       = "gl.journal_entry.create"
	ActionEntryUpdate       = "gl.journal_entry.update"
	ActionEntryPost         = "gl.journal_entry.post"
	ActionEntryReverse      = "gl.journal_entry.reverse"
	ActionPeriodClose       = "org.fiscal_period.close"
	ActionPeriodReopen      = "org.fiscal_period.reopen"
)

// AuditEvent is one record of a mutating action: who did what to which
// resource, with a detail payload sufficient to reconstruct the change.
type AuditEvent struct {
	Actor        UserID
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	At           time.Time
}

// AuditLog receives every mutating action. Append-only.
type AuditLog interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// NopAuditLog discards events. For callers that wire their own collaborator.
type NopAuditLog struct{}

func (NopAuditLog) Record(context.Context, AuditEvent) error { return nil }

// MemoryAuditLog collects events in memory, for tests and demo mode.
type MemoryAuditLog struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (l *MemoryAuditLog) Record(_ context.Context, ev AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (l *MemoryAuditLog) Events() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// =============================================================================
// PERMISSIONS - Capability-set lookup owned by the external collaborator
// =============================================================================

type Permission string

const (
	PermAccountsView   Permission = "gl.accounts.view"
	PermAccountsCreate Permission = "gl.accounts.create"
	PermAccountsUpdate Permission = "gl.accounts.update"
	PermEntriesView    Permission = "gl.journal_entries.view"
	PermEntriesCreate  Permission = "gl.journal_entries.create"
	PermEntriesPost    Permission = "gl.journal_entries.post"
	PermEntriesReverse Permission = "gl.journal_entries.reverse"
	PermTrialBalance   Permission = "gl.trial_balance.view"
	PermPeriodsClose   Permission = "org.fiscal_periods.close"
	PermPeriodsReopen  Permission = "org.fiscal_periods.reopen"
	PermReportsView    Permission = "reports.financial.view"
)

type PermissionChecker interface {
	HasPermission(principal UserID, perm Permission) bool
}

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleViewer     Role = "viewer"
)

// RolePermissions is the canonical role -> permission mapping.
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermAccountsView, PermAccountsCreate, PermAccountsUpdate,
		PermEntriesView, PermEntriesCreate, PermEntriesPost, PermEntriesReverse,
		PermTrialBalance, PermPeriodsClose, PermPeriodsReopen, PermReportsView,
	},
	RoleAccountant: {
		PermAccountsView,
		PermEntriesView, PermEntriesCreate, PermEntriesPost, PermEntriesReverse,
		PermTrialBalance, PermReportsView,
	},
	RoleViewer: {
		PermAccountsView, PermEntriesView, PermTrialBalance, PermReportsView,
	},
}

// StaticPermissions is a flat role-assignment table with per-principal
// overrides. Stands in for the external RBAC collaborator in the CLI and
// tests.
type StaticPermissions struct {
	Assignments map[UserID]Role
	Overrides   map[UserID][]Permission
}

func (s *StaticPermissions) HasPermission(principal UserID, perm Permission) bool {
	for _, p := range s.Overrides[principal] {
		if p == perm {
			return true
		}
	}
	role, ok := s.Assignments[principal]
	if !ok {
		return false
	}
	for _, p := range RolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
