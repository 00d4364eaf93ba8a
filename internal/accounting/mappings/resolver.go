package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// ModuleLedger is the mapping module used by the posting rules.
const ModuleLedger = "LEDGER"

// AccountSource is the subset of the accounts repository the resolver needs.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Resolver turns ledger roles into chart of accounts nodes. A configured
// mapping row wins; otherwise the role's default chart code is tried.
type Resolver struct {
	repo     Repository
	accounts AccountSource
}

func NewResolver(repo Repository, accounts AccountSource) *Resolver {
	return &Resolver{repo: repo, accounts: accounts}
}

// Resolve returns the account mapped to the role.
func (r *Resolver) Resolve(ctx context.Context, role Role) (accounts.Account, error) {
	mapping, err := r.repo.Get(ctx, ModuleLedger, string(role))
	switch {
	case err == nil:
		account, err := r.accounts.GetByID(ctx, mapping.AccountID)
		if err != nil {
			return accounts.Account{}, fmt.Errorf("mappings: role %s maps to account %d: %w", role, mapping.AccountID, err)
		}
		return account, nil
	case errors.Is(err, shared.ErrMappingNotFound):
		code, ok := DefaultCode(role)
		if !ok {
			return accounts.Account{}, fmt.Errorf("mappings: role %s: %w", role, shared.ErrMappingNotFound)
		}
		account, err := r.accounts.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return accounts.Account{}, fmt.Errorf("mappings: role %s default code %s: %w", role, code, shared.ErrMappingNotFound)
			}
			return accounts.Account{}, err
		}
		return account, nil
	default:
		return accounts.Account{}, err
	}
}

// ResolveID is a convenience wrapper returning only the account id.
func (r *Resolver) ResolveID(ctx context.Context, role Role) (int64, error) {
	account, err := r.Resolve(ctx, role)
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}
