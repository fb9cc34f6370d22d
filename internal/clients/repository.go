package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("clients: record not found")
	ErrAlreadyExists = errors.New("clients: record already exists")
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Client, error)
	GetByCode(ctx context.Context, companyID int64, code string) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Create(ctx context.Context, client Client) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	GenerateCode(ctx context.Context, companyID int64) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const clientColumns = `id, code, name, company_id, email, phone, vat_number, siret,
payment_terms_days, address_line1, address_line2, city, postal_code, country,
is_active, notes, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.CompanyID, &c.Email, &c.Phone, &c.VATNumber, &c.SIRET,
		&c.PaymentTermsDays, &c.AddressLine1, &c.AddressLine2, &c.City, &c.PostalCode,
		&c.Country, &c.IsActive, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	return scanClient(r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns), id))
}

func (r *repository) GetByCode(ctx context.Context, companyID int64, code string) (*Client, error) {
	return scanClient(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM clients WHERE company_id = $1 AND code = $2`, clientColumns), companyID, code))
}

func (r *repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{req.CompanyID}
	argPos := 2

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM clients %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM clients %s ORDER BY name LIMIT $%d OFFSET $%d",
		clientColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *c)
	}
	return result, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, client Client) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO clients (code, name, company_id, email, phone, vat_number, siret,
payment_terms_days, address_line1, address_line2, city, postal_code, country, is_active, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17) RETURNING id`,
		client.Code, client.Name, client.CompanyID, client.Email, client.Phone, client.VATNumber, client.SIRET,
		client.PaymentTermsDays, client.AddressLine1, client.AddressLine2, client.City, client.PostalCode,
		client.Country, client.IsActive, client.Notes, client.CreatedAt, client.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClause := ""
	args := []interface{}{id}
	argPos := 2
	for col, val := range updates {
		if setClause != "" {
			setClause += ", "
		}
		setClause += fmt.Sprintf("%s = $%d", col, argPos)
		args = append(args, val)
		argPos++
	}
	setClause += fmt.Sprintf(", updated_at = $%d", argPos)
	args = append(args, time.Now())

	tag, err := r.pool.Exec(ctx, fmt.Sprintf("UPDATE clients SET %s WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GenerateCode(ctx context.Context, companyID int64) (string, error) {
	var counter int
	err := r.pool.QueryRow(ctx, `INSERT INTO client_counters (company_id, counter) VALUES ($1, 1)
ON CONFLICT (company_id) DO UPDATE SET counter = client_counters.counter + 1
RETURNING counter`, companyID).Scan(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CLI-%05d", counter), nil
}
