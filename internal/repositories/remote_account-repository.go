package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"cds-ils/internal/entities"
	apperrors "cds-ils/pkg/errors"
)

const remoteAccountTableRepo = "remote_accounts"

var remoteAccountColumns = []string{"id", "client_id", "user_id", "extra_data", "created_at", "updated_at"}

type RemoteAccountRepositoryInterface interface {
	ListByClientID(ctx context.Context, clientID string) ([]entities.RemoteAccount, error)
	FindByUserID(ctx context.Context, tx pgx.Tx, clientID string, userID uint64) (*entities.RemoteAccount, error)
	CreateRemoteAccount(ctx context.Context, tx pgx.Tx, account *entities.RemoteAccount) (uint64, error)
	UpdateDepartment(ctx context.Context, tx pgx.Tx, id uint64, department string) error
	DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error
}

type RemoteAccountRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewRemoteAccountRepository(storage *pgxpool.Pool, logger *zap.Logger) RemoteAccountRepositoryInterface {
	return &RemoteAccountRepository{storage: storage, logger: logger}
}

func scanRemoteAccount(row pgx.Row) (*entities.RemoteAccount, error) {
	var (
		account entities.RemoteAccount
		extra   []byte
	)
	err := row.Scan(&account.ID, &account.ClientID, &account.UserID, &extra, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &account.ExtraData); err != nil {
			return nil, fmt.Errorf("remote account %d has invalid extra_data: %w", account.ID, err)
		}
	}
	return &account, nil
}

func (r *RemoteAccountRepository) selectBuilder() sq.SelectBuilder {
	return sq.Select(remoteAccountColumns...).From(remoteAccountTableRepo).PlaceholderFormat(sq.Dollar)
}

func (r *RemoteAccountRepository) ListByClientID(ctx context.Context, clientID string) ([]entities.RemoteAccount, error) {
	query, args, err := r.selectBuilder().Where(sq.Eq{"client_id": clientID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build remote accounts query: %w", err)
	}
	r.logger.Debug("listing remote accounts", zap.String("query", query), zap.String("client_id", clientID))

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]entities.RemoteAccount, 0)
	for rows.Next() {
		account, err := scanRemoteAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (r *RemoteAccountRepository) FindByUserID(ctx context.Context, tx pgx.Tx, clientID string, userID uint64) (*entities.RemoteAccount, error) {
	query, args, err := r.selectBuilder().Where(sq.Eq{"client_id": clientID, "user_id": userID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build remote account query: %w", err)
	}
	return scanRemoteAccount(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

func (r *RemoteAccountRepository) CreateRemoteAccount(ctx context.Context, tx pgx.Tx, account *entities.RemoteAccount) (uint64, error) {
	extra, err := json.Marshal(account.ExtraData)
	if err != nil {
		return 0, fmt.Errorf("encode remote account extra_data: %w", err)
	}

	query, args, err := sq.Insert(remoteAccountTableRepo).
		Columns("client_id", "user_id", "extra_data").
		Values(account.ClientID, account.UserID, extra).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build remote account insert: %w", err)
	}

	var id uint64
	if err := pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err, "remote_accounts_client_user_key") {
			return 0, fmt.Errorf("user %d already has a remote account for %s: %w", account.UserID, account.ClientID, err)
		}
		return 0, fmt.Errorf("failed to create remote account: %w", err)
	}
	return id, nil
}

func (r *RemoteAccountRepository) UpdateDepartment(ctx context.Context, tx pgx.Tx, id uint64, department string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET extra_data = jsonb_set(extra_data, '{department}', to_jsonb($1::text), true), updated_at = NOW()
		WHERE id = $2`, remoteAccountTableRepo)

	result, err := pick(r.storage, tx).Exec(ctx, query, department, id)
	if err != nil {
		return fmt.Errorf("failed to update remote account department: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *RemoteAccountRepository) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	query, args, err := sq.Delete(remoteAccountTableRepo).Where(sq.Eq{"user_id": userID}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build remote account delete: %w", err)
	}
	if _, err := pick(r.storage, tx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete remote accounts: %w", err)
	}
	return nil
}
