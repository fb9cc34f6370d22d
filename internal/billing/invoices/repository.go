package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturio/facturio/internal/billing/quotes"
	"github.com/facturio/facturio/internal/billing/vat"
	"github.com/facturio/facturio/internal/platform/db"
)

var (
	ErrNotFound        = errors.New("invoices: record not found")
	ErrPaymentNotFound = errors.New("invoices: payment not found")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	Create(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error
	SetPaid(ctx context.Context, id int64, paid float64, status InvoiceStatus) error
	SetBalanceLink(ctx context.Context, depositID, balanceID int64) error
	SumInvoicedForQuote(ctx context.Context, quoteID int64) (float64, error)
	GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error)

	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	DeletePayment(ctx context.Context, id int64) error

	GetQuote(ctx context.Context, id int64) (*quotes.Quote, error)
	UpdateQuoteStatus(ctx context.Context, id int64, status quotes.QuoteStatus) error

	VATBaseByRate(ctx context.Context, companyID int64, from, to time.Time) ([]vat.Line, error)
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

// NewTxRepository binds the invoice repository to a transaction someone else
// opened, so another package can commit its own writes together with an
// invoice update.
func NewTxRepository(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		// Already transaction-bound; run on the caller's transaction.
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const invoiceColumns = `id, doc_number, company_id, client_id, source_quote_id, is_deposit,
deposit_percent, balance_invoice_id, status, currency, subtotal, vat_amount, total_amount,
paid_amount, issue_date, due_date, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.DocNumber, &inv.CompanyID, &inv.ClientID, &inv.SourceQuoteID, &inv.IsDeposit,
		&inv.DepositPercent, &inv.BalanceInvoiceID, &inv.Status, &inv.Currency, &inv.Subtotal,
		&inv.VATAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.IssueDate, &inv.DueDate,
		&inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns), id))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, vat_rate, line_order, created_at, updated_at
FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.VATRate, &l.LineOrder, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
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
	if req.QuoteID != nil {
		conditions = append(conditions, fmt.Sprintf("source_quote_id = $%d", argPos))
		args = append(args, *req.QuoteID)
		argPos++
	}
	if req.OverdueOnly {
		conditions = append(conditions, fmt.Sprintf("due_date < $%d AND paid_amount < total_amount AND status NOT IN ('DRAFT','CANCELLED')", argPos))
		args = append(args, time.Now())
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM invoices %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d",
		invoiceColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *inv)
	}
	return result, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoices (doc_number, company_id, client_id, source_quote_id, is_deposit,
deposit_percent, balance_invoice_id, status, currency, subtotal, vat_amount, total_amount, paid_amount,
issue_date, due_date, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18) RETURNING id`,
		inv.DocNumber, inv.CompanyID, inv.ClientID, inv.SourceQuoteID, inv.IsDeposit,
		inv.DepositPercent, inv.BalanceInvoiceID, inv.Status, inv.Currency, inv.Subtotal,
		inv.VATAmount, inv.TotalAmount, inv.PaidAmount, inv.IssueDate, inv.DueDate,
		inv.Notes, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, vat_rate, line_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		line.InvoiceID, line.Description, line.Quantity, line.UnitPrice, line.VATRate, line.LineOrder, line.CreatedAt, line.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetPaid(ctx context.Context, id int64, paid float64, status InvoiceStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET paid_amount = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, paid, status, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetBalanceLink(ctx context.Context, depositID, balanceID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET balance_invoice_id = $2, updated_at = $3 WHERE id = $1 AND is_deposit`,
		depositID, balanceID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SumInvoicedForQuote totals every non-cancelled invoice generated from the
// quote. The conversion invariant is checked against this sum.
func (r *repository) SumInvoicedForQuote(ctx context.Context, quoteID int64) (float64, error) {
	var sum float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM invoices
WHERE source_quote_id = $1 AND status <> 'CANCELLED'`, quoteID).Scan(&sum)
	return sum, err
}

func (r *repository) GenerateNumber(ctx context.Context, companyID int64, date time.Time) (string, error) {
	var counter int
	err := r.db.QueryRow(ctx, `INSERT INTO doc_counters (company_id, doc_type, year, counter)
VALUES ($1, 'INVOICE', $2, 1)
ON CONFLICT (company_id, doc_type, year) DO UPDATE SET counter = doc_counters.counter + 1
RETURNING counter`, companyID, date.Year()).Scan(&counter)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FAC-%d-%04d", date.Year(), counter), nil
}

func (r *repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx, `SELECT id, invoice_id, reference, amount, paid_at, method, status, note, created_at, updated_at
FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.InvoiceID, &p.Reference, &p.Amount, &p.PaidAt, &p.Method, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, reference, amount, paid_at, method, status, note, created_at, updated_at
FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Reference, &p.Amount, &p.PaidAt, &p.Method, &p.Status, &p.Note, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO payments (invoice_id, reference, amount, paid_at, method, status, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		p.InvoiceID, p.Reference, p.Amount, p.PaidAt, p.Method, p.Status, p.Note, p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (r *repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// GetQuote loads the projection of a quote the conversion engine needs. The
// quotes package owns the full record; only shared columns are read here.
func (r *repository) GetQuote(ctx context.Context, id int64) (*quotes.Quote, error) {
	var q quotes.Quote
	err := r.db.QueryRow(ctx, `SELECT id, doc_number, company_id, client_id, quote_date, expiry_date, status,
currency, subtotal, vat_amount, total_amount, original_quote_id, version_number, is_latest_version
FROM quotes WHERE id = $1`, id).Scan(
		&q.ID, &q.DocNumber, &q.CompanyID, &q.ClientID, &q.QuoteDate, &q.ExpiryDate, &q.Status,
		&q.Currency, &q.Subtotal, &q.VATAmount, &q.TotalAmount, &q.OriginalQuoteID, &q.VersionNumber, &q.IsLatestVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quotes.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, quote_id, description, quantity, unit_price, vat_rate, line_order, created_at, updated_at
FROM quote_lines WHERE quote_id = $1 ORDER BY line_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l quotes.QuoteLine
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.Description, &l.Quantity, &l.UnitPrice, &l.VATRate, &l.LineOrder, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, l)
	}
	return &q, rows.Err()
}

func (r *repository) UpdateQuoteStatus(ctx context.Context, id int64, status quotes.QuoteStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return quotes.ErrNotFound
	}
	return nil
}

// VATBaseByRate aggregates invoiced bases per VAT rate over a period,
// excluding drafts and cancelled invoices. The calculator turns this into
// the declaration-ready breakdown.
func (r *repository) VATBaseByRate(ctx context.Context, companyID int64, from, to time.Time) ([]vat.Line, error) {
	rows, err := r.db.Query(ctx, `SELECT l.vat_rate, SUM(l.quantity * l.unit_price)
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id
WHERE i.company_id = $1 AND i.issue_date >= $2 AND i.issue_date <= $3
  AND i.status NOT IN ('DRAFT','CANCELLED')
GROUP BY l.vat_rate ORDER BY l.vat_rate`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []vat.Line
	for rows.Next() {
		var l vat.Line
		if err := rows.Scan(&l.Rate, &l.Base); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
