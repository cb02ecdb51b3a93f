package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"cds-ils/internal/entities"
	apperrors "cds-ils/pkg/errors"
)

const userTableRepo = "users"
const userSelectFieldsRepo = "id, email, active, created_at, updated_at"

// ErrEmailTaken is returned when the unique email index rejects an insert or update.
var ErrEmailTaken = errors.New("email is already used by another user")

type UserRepositoryInterface interface {
	CreateUser(ctx context.Context, tx pgx.Tx, email string, active bool) (uint64, error)
	FindUserByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error)
	CountByEmail(ctx context.Context, tx pgx.Tx, email string) (int, error)
	UpdateEmail(ctx context.Context, tx pgx.Tx, id uint64, email string) error
	Anonymize(ctx context.Context, tx pgx.Tx, id uint64) error
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(&user.ID, &user.Email, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return constraint == "" || strings.Contains(pgErr.ConstraintName, constraint)
	}
	return false
}

func (r *UserRepository) CreateUser(ctx context.Context, tx pgx.Tx, email string, active bool) (uint64, error) {
	query := fmt.Sprintf(`INSERT INTO %s (email, active) VALUES ($1, $2) RETURNING id`, userTableRepo)

	var id uint64
	if err := pick(r.storage, tx).QueryRow(ctx, query, strings.ToLower(email), active).Scan(&id); err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userSelectFieldsRepo, userTableRepo)
	return scanUser(pick(r.storage, tx).QueryRow(ctx, query, id))
}

func (r *UserRepository) CountByEmail(ctx context.Context, tx pgx.Tx, email string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE LOWER(email) = LOWER($1)`, userTableRepo)

	var count int
	if err := pick(r.storage, tx).QueryRow(ctx, query, email).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users by email: %w", err)
	}
	return count, nil
}

func (r *UserRepository) UpdateEmail(ctx context.Context, tx pgx.Tx, id uint64, email string) error {
	query := fmt.Sprintf(`UPDATE %s SET email = $1, updated_at = NOW() WHERE id = $2`, userTableRepo)

	result, err := pick(r.storage, tx).Exec(ctx, query, strings.ToLower(email), id)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Anonymize replaces the email with a placeholder and deactivates the account.
func (r *UserRepository) Anonymize(ctx context.Context, tx pgx.Tx, id uint64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET email = 'anonymized_' || id || '@anonymized.invalid', active = FALSE, updated_at = NOW()
		WHERE id = $1`, userTableRepo)

	result, err := pick(r.storage, tx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to anonymize user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	r.logger.Debug("user anonymized", zap.Uint64("user_id", id))
	return nil
}
