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

const literatureTableRepo = "literature"

var literatureAllowedSearchColumns = []string{"metadata->>'title'", "metadata->>'abstract'"}

type LiteratureRepositoryInterface interface {
	FindByPID(ctx context.Context, pid string) (*entities.LiteratureRecord, error)
	Search(ctx context.Context, query string, limit, offset uint64) ([]entities.LiteratureRecord, uint64, error)
}

type LiteratureRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewLiteratureRepository(storage *pgxpool.Pool, logger *zap.Logger) LiteratureRepositoryInterface {
	return &LiteratureRepository{storage: storage, logger: logger}
}

func scanLiterature(row pgx.Row) (*entities.LiteratureRecord, error) {
	var (
		rec  entities.LiteratureRecord
		meta []byte
	)
	if err := row.Scan(&rec.PID, &meta, &rec.Created, &rec.Updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	rec.Metadata = map[string]interface{}{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("literature %s has invalid metadata: %w", rec.PID, err)
		}
	}
	return &rec, nil
}

func applyLiteratureSearch(builder sq.SelectBuilder, query string) sq.SelectBuilder {
	if query == "" {
		return builder
	}
	conditions := make(sq.Or, 0, len(literatureAllowedSearchColumns))
	for _, col := range literatureAllowedSearchColumns {
		conditions = append(conditions, sq.Expr(fmt.Sprintf("%s ILIKE ?", col), "%"+query+"%"))
	}
	return builder.Where(conditions)
}

func (r *LiteratureRepository) FindByPID(ctx context.Context, pid string) (*entities.LiteratureRecord, error) {
	query, args, err := sq.Select("pid", "metadata", "created_at", "updated_at").
		From(literatureTableRepo).
		Where(sq.Eq{"pid": pid}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build literature query: %w", err)
	}
	return scanLiterature(r.storage.QueryRow(ctx, query, args...))
}

func (r *LiteratureRepository) Search(ctx context.Context, q string, limit, offset uint64) ([]entities.LiteratureRecord, uint64, error) {
	countQuery, countArgs, err := applyLiteratureSearch(
		sq.Select("COUNT(*)").From(literatureTableRepo).PlaceholderFormat(sq.Dollar), q,
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build literature count query: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count literature: %w", err)
	}
	if total == 0 {
		return []entities.LiteratureRecord{}, 0, nil
	}

	mainQuery, args, err := applyLiteratureSearch(
		sq.Select("pid", "metadata", "created_at", "updated_at").From(literatureTableRepo).PlaceholderFormat(sq.Dollar), q,
	).OrderBy("updated_at DESC").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build literature query: %w", err)
	}
	r.logger.Debug("searching literature", zap.String("query", mainQuery), zap.Any("args", args))

	rows, err := r.storage.Query(ctx, mainQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search literature: %w", err)
	}
	defer rows.Close()

	records := make([]entities.LiteratureRecord, 0)
	for rows.Next() {
		rec, err := scanLiterature(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	return records, total, rows.Err()
}
