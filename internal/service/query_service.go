package service

import (
	"context"
	"errors"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"

	"github.com/google/uuid"
)

type QueryService interface {
	Get(ctx context.Context, p access.Principal, id uuid.UUID) (*model.Transaction, error)
	List(ctx context.Context, p access.Principal, filter repository.ListFilter) ([]model.Transaction, error)
}

type queryService struct {
	Deps
}

func NewQueryService(d Deps) QueryService {
	return &queryService{Deps: d.withDefaults()}
}

func (s *queryService) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*model.Transaction, error) {
	txn, err := s.Transactions.FindForTenant(s.DB.WithContext(ctx), p.TenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("transaction not found")
	}
	if err != nil {
		return nil, internalError("failed to load transaction", err)
	}
	return txn, nil
}

func (s *queryService) List(ctx context.Context, p access.Principal, filter repository.ListFilter) ([]model.Transaction, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, validationError("date_from must not be after date_to")
	}
	txns, err := s.Transactions.List(ctx, p.TenantID, filter)
	if err != nil {
		return nil, internalError("failed to list transactions", err)
	}
	return txns, nil
}
