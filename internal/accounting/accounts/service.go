package accounts

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// Ancestors walks ParentID links from the account up to the root, nearest first.
func (s *Service) Ancestors(ctx context.Context, id int64) ([]Account, error) {
	var chain []Account
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for account.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *account.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		account = parent
	}
	return chain, nil
}
