/*
registry.go - Chart-of-accounts registry

PURPOSE:
  Creates, resolves, and deactivates accounts, and materializes the
  account tree. The tree is recomputed fresh on every call from a single
  list query (arena of accounts plus parent-id), never cached.

INVARIANTS:
  1. Account numbers are unique
  2. NormalBalance agrees with Type (asset/expense debit, rest credit)
  3. Parent links form a tree: walking up from any proposed parent never
     reaches the account being attached
  4. Deletion is logical (deactivation), never physical

SEE ALSO:
  - engine.go: Validates lines against active accounts
  - reports.go: Orders reports by account number
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Registry manages the chart of accounts.
type Registry struct {
	store TxStore
	audit AuditLog
	now   func() time.Time
}

func NewRegistry(store TxStore, audit AuditLog) *Registry {
	return &Registry{store: store, audit: audit, now: time.Now}
}

// CreateAccountInput carries the caller-supplied account fields.
type CreateAccountInput struct {
	Number        string
	Name          string
	Type          AccountType
	NormalBalance BalanceSide
	ParentID      AccountID
	FundID        FundID
	Description   string
	ActingUser    UserID
}

// CreateAccount validates and persists a new active account.
func (r *Registry) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if in.Number == "" || in.Name == "" {
		return Account{}, fmt.Errorf("%w: account number and name are required", ErrValidation)
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", ErrValidation, in.Type)
	}
	if !in.NormalBalance.Valid() {
		return Account{}, fmt.Errorf("%w: unknown normal balance %q", ErrValidation, in.NormalBalance)
	}
	if in.NormalBalance != in.Type.NormalSide() {
		return Account{}, fmt.Errorf("%w: %s accounts are %s-normal",
			ErrTypeBalanceMismatch, in.Type, in.Type.NormalSide())
	}

	account := Account{
		ID:            NewAccountID(),
		Number:        in.Number,
		Name:          in.Name,
		Type:          in.Type,
		NormalBalance: in.NormalBalance,
		ParentID:      in.ParentID,
		FundID:        in.FundID,
		Active:        true,
		Description:   in.Description,
		CreatedAt:     r.now().UTC(),
	}

	err := r.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetAccountByNumber(ctx, in.Number); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, in.Number)
		} else if !IsNotFound(err) {
			return err
		}
		if in.ParentID != "" {
			parent, err := s.GetAccount(ctx, in.ParentID)
			if err != nil {
				if IsNotFound(err) {
					return fmt.Errorf("%w: parent %s does not exist", ErrInvalidParent, in.ParentID)
				}
				return err
			}
			if !parent.Active {
				return fmt.Errorf("%w: parent %s is inactive", ErrInvalidParent, parent.Number)
			}
		}
		if in.FundID != "" {
			if _, err := s.GetFund(ctx, in.FundID); err != nil {
				return err
			}
		}
		return s.InsertAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}

	r.emit(ctx, in.ActingUser, ActionAccountCreate, account.ID, map[string]any{
		"account_number": account.Number,
		"name":           account.Name,
		"type":           string(account.Type),
	})
	return account, nil
}

// Resolve returns the account by ID.
func (r *Registry) Resolve(ctx context.Context, id AccountID) (Account, error) {
	return r.store.GetAccount(ctx, id)
}

// SetParent re-attaches an account under a new parent. The walk up from
// the proposed parent must never reach the account itself.
func (r *Registry) SetParent(ctx context.Context, id, parentID AccountID, actingUser UserID) error {
	err := r.store.WithTx(ctx, func(s Store) error {
		account, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if parentID != "" {
			if parentID == id {
				return fmt.Errorf("%w: account cannot be its own parent", ErrInvalidParent)
			}
			if err := checkNoCycle(ctx, s, id, parentID); err != nil {
				return err
			}
		}
		account.ParentID = parentID
		return s.UpdateAccount(ctx, account)
	})
	if err != nil {
		return err
	}

	r.emit(ctx, actingUser, ActionAccountReparent, id, map[string]any{
		"parent_id": string(parentID),
	})
	return nil
}

// checkNoCycle walks parent links upward from the proposed parent. The
// visited set guards against pre-existing corruption in stored data.
func checkNoCycle(ctx context.Context, s Store, child, parent AccountID) error {
	visited := map[AccountID]bool{}
	for current := parent; current != ""; {
		if current == child {
			return fmt.Errorf("%w: %s is a descendant of the account", ErrInvalidParent, parent)
		}
		if visited[current] {
			return fmt.Errorf("%w: parent chain contains a cycle", ErrInvalidParent)
		}
		visited[current] = true
		a, err := s.GetAccount(ctx, current)
		if err != nil {
			if IsNotFound(err) {
				return fmt.Errorf("%w: %s does not exist", ErrInvalidParent, current)
			}
			return err
		}
		current = a.ParentID
	}
	return nil
}

// Deactivate logically deletes an account. Posted lines referencing it
// remain untouched; the engine rejects new lines against it.
func (r *Registry) Deactivate(ctx context.Context, id AccountID, actingUser UserID) error {
	err := r.store.WithTx(ctx, func(s Store) error {
		account, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !account.Active {
			return nil
		}
		account.Active = false
		return s.UpdateAccount(ctx, account)
	})
	if err != nil {
		return err
	}

	r.emit(ctx, actingUser, ActionAccountDeactivate, id, nil)
	return nil
}

// Tree returns the chart of accounts as a forest ordered by account
// number. Recomputed from current state on every call.
func (r *Registry) Tree(ctx context.Context) ([]*AccountNode, error) {
	accounts, err := r.store.ListAccounts(ctx, true)
	if err != nil {
		return nil, err
	}

	nodes := make(map[AccountID]*AccountNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &AccountNode{Account: a}
	}

	var roots []*AccountNode
	for _, a := range accounts {
		node := nodes[a.ID]
		if parent, ok := nodes[a.ParentID]; ok && a.ParentID != "" {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	var sortNodes func([]*AccountNode)
	sortNodes = func(ns []*AccountNode) {
		sort.Slice(ns, func(i, j int) bool {
			return ns[i].Account.Number < ns[j].Account.Number
		})
		for _, n := range ns {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)

	return roots, nil
}

// FundDiscrepancies reports lines whose fund tag conflicts with their
// account's declared fund. Advisory: nothing is blocked.
func (r *Registry) FundDiscrepancies(ctx context.Context) ([]FundDiscrepancy, error) {
	return r.store.FundMismatches(ctx)
}

func (r *Registry) emit(ctx context.Context, actor UserID, action string, id AccountID, details map[string]any) {
	// Fire-and-forget: the mutation already committed.
	_ = r.audit.Record(ctx, AuditEvent{
		Actor:        actor,
		Action:       action,
		ResourceType: "account",
		ResourceID:   string(id),
		Details:      details,
		At:           r.now().UTC(),
	})
}
