package creditnotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturio/facturio/internal/billing/invoices"
	"github.com/facturio/facturio/internal/platform/db"
)

var ErrNotFound = errors.New("creditnotes: record not found")

type Repository interface {
	// WithTx also hands out an invoice repository bound to the same
	// transaction: applying a note settles its invoice, and the two
	// writes must commit together.
	WithTx(ctx context.Context, fn func(context.Context, Repository, invoices.Repository) error) error
	Get(ctx context.Context, id int64) (*CreditNote, error)
	List(ctx context.Context, req ListCreditNotesRequest) ([]CreditNote, int, error)
	Create(ctx context.Context, note CreditNote) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status CreditNoteStatus, remaining float64) error
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository, invoices.Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool}, invoices.NewTxRepository(tx))
	})
}

const creditNoteColumns = `id, doc_number, company_id, client_id, invoice_id, status, currency,
total_amount, remaining_amount, reason, issue_date, created_at, updated_at`

func scanCreditNote(row pgx.Row) (*CreditNote, error) {
	var n CreditNote
	err := row.Scan(
		&n.ID, &n.DocNumber, &n.CompanyID, &n.ClientID, &n.InvoiceID, &n.Status, &n.Currency,
		&n.TotalAmount, &n.RemainingAmount, &n.Reason, &n.IssueDate, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*CreditNote, error) {
	return scanCreditNote(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM credit_notes WHERE id = $1`, creditNoteColumns), id))
}

func (r *repository) List(ctx context.Context, req ListCreditNotesRequest) ([]CreditNote, int, error) {
	conditions := []string{"company_id = $1"}
	args := []interface{}{req.CompanyID}
	argPos := 2

	if req.InvoiceID != nil {
		conditions = append(conditions, fmt.Sprintf("invoice_id = $%d", argPos))
		args = append(args, *req.InvoiceID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM credit_notes %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM credit_notes %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d",
		creditNoteColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []CreditNote
	for rows.Next() {
		n, err := scanCreditNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, *n)
	}
	return notes, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, note CreditNote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO credit_notes (doc_number, company_id, client_id, invoice_id, status,
currency, total_amount, remaining_amount, reason, issue_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		note.DocNumber, note.CompanyID, note.ClientID, note.InvoiceID, note.Status,
		note.Currency, note.TotalAmount, note.RemainingAmount, note.Reason, note.IssueDate,
		note.CreatedAt, note.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status CreditNoteStatus, remaining float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE credit_notes SET status = $2, remaining_amount = $3, updated_at = $4 WHERE id = $1`,
		id, status, remaining, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateNumber produces the next avoir number for the company and year,
// e.g. AV-2026-0007.
func (r *repository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	var counter int
	err := r.db.QueryRow(ctx, `INSERT INTO doc_counters (company_id, doc_type, year, counter)
VALUES ($1, 'CREDIT_NOTE', $2, 1)
ON CONFLICT (company_id, doc_type, year) DO UPDATE SET counter = doc_counters.counter + 1
RETURNING counter`, companyID, date.Year()).Scan(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AV-%d-%04d", date.Year(), counter), nil
}
