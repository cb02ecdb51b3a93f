package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActiveLoanStates are the circulation states that block patron anonymization.
var ActiveLoanStates = []string{
	"PENDING",
	"ITEM_ON_LOAN",
	"ITEM_AT_DESK",
	"ITEM_IN_TRANSIT_FOR_PICKUP",
	"ITEM_IN_TRANSIT_TO_HOUSE",
}

type LoanRepositoryInterface interface {
	CountActiveByPatron(ctx context.Context, tx pgx.Tx, patronPID string) (int, error)
}

type LoanRepository struct {
	storage *pgxpool.Pool
}

func NewLoanRepository(storage *pgxpool.Pool) LoanRepositoryInterface {
	return &LoanRepository{storage: storage}
}

func (r *LoanRepository) CountActiveByPatron(ctx context.Context, tx pgx.Tx, patronPID string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("loans").
		Where(sq.Eq{"patron_pid": patronPID, "state": ActiveLoanStates}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build active loans query: %w", err)
	}

	var count int
	if err := pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return count, nil
}
