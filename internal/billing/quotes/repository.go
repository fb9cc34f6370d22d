package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturio/facturio/internal/platform/db"
)

var ErrNotFound = errors.New("quotes: record not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	ListChain(ctx context.Context, rootID int64) ([]Quote, error)
	Create(ctx context.Context, quote Quote) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, quote Quote) error
	SetLatest(ctx context.Context, id int64, latest bool) error
	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	DeleteLines(ctx context.Context, quoteID int64) error
	GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, doc_number, company_id, client_id, quote_date, expiry_date, status,
currency, subtotal, vat_amount, total_amount, notes, original_quote_id, version_number,
is_latest_version, reminder_enabled, reminder_days, validation_notes, validated_at,
accepted_at, rejected_at, rejection_reason, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.DocNumber, &q.CompanyID, &q.ClientID, &q.QuoteDate, &q.ExpiryDate, &q.Status,
		&q.Currency, &q.Subtotal, &q.VATAmount, &q.TotalAmount, &q.Notes, &q.OriginalQuoteID,
		&q.VersionNumber, &q.IsLatestVersion, &q.ReminderEnabled, &q.ReminderDays,
		&q.ValidationNotes, &q.ValidatedAt, &q.AcceptedAt, &q.RejectedAt, &q.RejectionReason,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM quotes WHERE id = $1`, quoteColumns), id))
	if err != nil {
		return nil, err
	}
	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) getLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, quote_id, description, quantity, unit_price, vat_rate, line_order, created_at, updated_at
FROM quote_lines WHERE quote_id = $1 ORDER BY line_order`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []QuoteLine
	for rows.Next() {
		var l QuoteLine
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.Description, &l.Quantity, &l.UnitPrice, &l.VATRate, &l.LineOrder, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{req.CompanyID}
	argPos := 2

	if req.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argPos))
		args = append(args, *req.ClientID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.LatestOnly {
		conditions = append(conditions, "is_latest_version")
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("quote_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("quote_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM quotes %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM quotes %s ORDER BY quote_date DESC, id DESC LIMIT $%d OFFSET $%d",
		quoteColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) ListChain(ctx context.Context, rootID int64) ([]Quote, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM quotes
WHERE id = $1 OR original_quote_id = $1 ORDER BY version_number DESC`, quoteColumns), rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *q)
	}
	return versions, rows.Err()
}

func (r *repository) Create(ctx context.Context, quote Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quotes (doc_number, company_id, client_id, quote_date, expiry_date, status,
currency, subtotal, vat_amount, total_amount, notes, original_quote_id, version_number, is_latest_version,
reminder_enabled, reminder_days, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18) RETURNING id`,
		quote.DocNumber, quote.CompanyID, quote.ClientID, quote.QuoteDate, quote.ExpiryDate, quote.Status,
		quote.Currency, quote.Subtotal, quote.VATAmount, quote.TotalAmount, quote.Notes, quote.OriginalQuoteID,
		quote.VersionNumber, quote.IsLatestVersion, quote.ReminderEnabled, quote.ReminderDays,
		quote.CreatedAt, quote.UpdatedAt,
	).Scan(&id)
	return id, err
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

	tag, err := r.db.Exec(ctx, fmt.Sprintf("UPDATE quotes SET %s WHERE id = $1", setClause), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, quote Quote) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, validation_notes = $3, validated_at = $4,
accepted_at = $5, rejected_at = $6, rejection_reason = $7, updated_at = $8 WHERE id = $1`,
		quote.ID, quote.Status, quote.ValidationNotes, quote.ValidatedAt,
		quote.AcceptedAt, quote.RejectedAt, quote.RejectionReason, quote.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetLatest(ctx context.Context, id int64, latest bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET is_latest_version = $2, updated_at = $3 WHERE id = $1`, id, latest, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quote_lines (quote_id, description, quantity, unit_price, vat_rate, line_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		line.QuoteID, line.Description, line.Quantity, line.UnitPrice, line.VATRate, line.LineOrder, line.CreatedAt, line.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID)
	return err
}

// GenerateNumber produces the next devis number for the company and year,
// e.g. DEV-2026-0042. The counter row is bumped inside the caller's
// transaction so numbers never repeat.
func (r *repository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	var counter int
	err := r.db.QueryRow(ctx, `INSERT INTO doc_counters (company_id, doc_type, year, counter)
VALUES ($1, 'QUOTE', $2, 1)
ON CONFLICT (company_id, doc_type, year) DO UPDATE SET counter = doc_counters.counter + 1
RETURNING counter`, companyID, date.Year()).Scan(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DEV-%d-%04d", date.Year(), counter), nil
}
