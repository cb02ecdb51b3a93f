package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cds-ils/internal/entities"
)

type UserIdentityRepositoryInterface interface {
	CreateIdentity(ctx context.Context, tx pgx.Tx, identity *entities.UserIdentity) error
	ExistsByID(ctx context.Context, tx pgx.Tx, id, method string) (bool, error)
	DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error
}

type UserIdentityRepository struct {
	storage *pgxpool.Pool
}

func NewUserIdentityRepository(storage *pgxpool.Pool) UserIdentityRepositoryInterface {
	return &UserIdentityRepository{storage: storage}
}

func (r *UserIdentityRepository) CreateIdentity(ctx context.Context, tx pgx.Tx, identity *entities.UserIdentity) error {
	query := `INSERT INTO user_identities (id, method, user_id) VALUES ($1, $2, $3)`
	if _, err := pick(r.storage, tx).Exec(ctx, query, identity.ID, identity.Method, identity.UserID); err != nil {
		return fmt.Errorf("failed to create user identity: %w", err)
	}
	return nil
}

func (r *UserIdentityRepository) ExistsByID(ctx context.Context, tx pgx.Tx, id, method string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_identities WHERE id = $1 AND method = $2)`

	var exists bool
	if err := pick(r.storage, tx).QueryRow(ctx, query, id, method).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user identity: %w", err)
	}
	return exists, nil
}

func (r *UserIdentityRepository) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	if _, err := pick(r.storage, tx).Exec(ctx, `DELETE FROM user_identities WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user identities: %w", err)
	}
	return nil
}
