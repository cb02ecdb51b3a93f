package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cds-ils/internal/entities"
	apperrors "cds-ils/pkg/errors"
)

const anonymousFullName = "anonymous"

type UserProfileRepositoryInterface interface {
	CreateProfile(ctx context.Context, tx pgx.Tx, profile *entities.UserProfile) error
	FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.UserProfile, error)
	UpdateFullName(ctx context.Context, tx pgx.Tx, userID uint64, fullName string) error
	Anonymize(ctx context.Context, tx pgx.Tx, userID uint64) error
}

type UserProfileRepository struct {
	storage *pgxpool.Pool
}

func NewUserProfileRepository(storage *pgxpool.Pool) UserProfileRepositoryInterface {
	return &UserProfileRepository{storage: storage}
}

func (r *UserProfileRepository) CreateProfile(ctx context.Context, tx pgx.Tx, profile *entities.UserProfile) error {
	query := `INSERT INTO user_profiles (user_id, username, full_name) VALUES ($1, $2, $3)`
	if _, err := pick(r.storage, tx).Exec(ctx, query, profile.UserID, profile.Username, profile.FullName); err != nil {
		return fmt.Errorf("failed to create user profile: %w", err)
	}
	return nil
}

func (r *UserProfileRepository) FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.UserProfile, error) {
	query := `SELECT user_id, username, full_name FROM user_profiles WHERE user_id = $1`

	var p entities.UserProfile
	err := pick(r.storage, tx).QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Username, &p.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}
	return &p, nil
}

func (r *UserProfileRepository) UpdateFullName(ctx context.Context, tx pgx.Tx, userID uint64, fullName string) error {
	query := `UPDATE user_profiles SET full_name = $1, updated_at = NOW() WHERE user_id = $2`

	result, err := pick(r.storage, tx).Exec(ctx, query, fullName, userID)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserProfileRepository) Anonymize(ctx context.Context, tx pgx.Tx, userID uint64) error {
	query := `UPDATE user_profiles SET full_name = $1, updated_at = NOW() WHERE user_id = $2`
	if _, err := pick(r.storage, tx).Exec(ctx, query, anonymousFullName, userID); err != nil {
		return fmt.Errorf("failed to anonymize user profile: %w", err)
	}
	return nil
}
