package vatrates

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("vatrates: record not found")

type ListFilters struct {
	Search  string
	SortBy  string
	SortDir string
	Page    int
	Limit   int
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]VATRate, int, error)
	Get(ctx context.Context, id int64) (VATRate, error)
	GetDefault(ctx context.Context) (VATRate, error)
	Create(ctx context.Context, rate VATRate) (VATRate, error)
	Update(ctx context.Context, id int64, rate VATRate) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]VATRate, int, error) {
	query := `SELECT id, code, name, rate, is_default FROM vat_rates WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM vat_rates WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rates []VATRate
	for rows.Next() {
		var v VATRate
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.Rate, &v.IsDefault); err != nil {
			return nil, 0, err
		}
		rates = append(rates, v)
	}
	return rates, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (VATRate, error) {
	var v VATRate
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, rate, is_default FROM vat_rates WHERE id = $1`, id).
		Scan(&v.ID, &v.Code, &v.Name, &v.Rate, &v.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return VATRate{}, ErrNotFound
	}
	return v, err
}

func (r *repository) GetDefault(ctx context.Context) (VATRate, error) {
	var v VATRate
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, rate, is_default FROM vat_rates WHERE is_default LIMIT 1`).
		Scan(&v.ID, &v.Code, &v.Name, &v.Rate, &v.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return VATRate{}, ErrNotFound
	}
	return v, err
}

func (r *repository) Create(ctx context.Context, rate VATRate) (VATRate, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO vat_rates (code, name, rate, is_default) VALUES ($1, $2, $3, $4) RETURNING id`,
		rate.Code, rate.Name, rate.Rate, rate.IsDefault).Scan(&rate.ID)
	return rate, err
}

func (r *repository) Update(ctx context.Context, id int64, rate VATRate) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vat_rates SET code = $2, name = $3, rate = $4, is_default = $5 WHERE id = $1`,
		id, rate.Code, rate.Name, rate.Rate, rate.IsDefault)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vat_rates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "rate":
		return "rate " + dir
	default:
		return "name " + dir
	}
}
