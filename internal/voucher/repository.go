package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hanbit-erp/hanbit-erp/internal/sequence"
	"github.com/hanbit-erp/hanbit-erp/internal/shared"
)

// Repository encapsulates DB operations for the voucher ledger.
type Repository interface {
	// Writes run inside one transaction so a failed line insert rolls the
	// sequence allocation back with it.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListByReference(ctx context.Context, reference string) ([]Line, error)
	ListByUnitDate(ctx context.Context, businessUnit, date string) ([]Line, error)
	ListByAccount(ctx context.Context, accountCode, startDate, endDate string) ([]Line, error)
	TrialBalance(ctx context.Context, businessUnit, startDate, endDate string) ([]TrialBalanceRow, error)
	HasActiveVoucher(ctx context.Context, reference string) (bool, error)
}

// TxRepository exposes writes available within a transaction.
type TxRepository interface {
	NextVoucherSequence(ctx context.Context, businessUnit, date string) (int64, error)
	InsertLines(ctx context.Context, lines []Line) error
	DeactivateByReference(ctx context.Context, reference, modifiedBy string) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Repository backed by PostgreSQL.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const lineColumns = `voucher_no, line_seq, business_unit, posting_date, posting_time, account_code, side, amount::text, memo, reference, prepared_by, created_at, COALESCE(modified_by, ''), modified_at, voided`

func (r *repository) ListByReference(ctx context.Context, reference string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM voucher_lines WHERE reference=$1 ORDER BY voucher_no, line_seq`, reference)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) ListByUnitDate(ctx context.Context, businessUnit, date string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM voucher_lines WHERE business_unit=$1 AND posting_date=$2 AND NOT voided ORDER BY voucher_no, line_seq`, businessUnit, date)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) ListByAccount(ctx context.Context, accountCode, startDate, endDate string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM voucher_lines WHERE account_code=$1 AND posting_date BETWEEN $2 AND $3 AND NOT voided ORDER BY posting_date, voucher_no, line_seq`, accountCode, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) TrialBalance(ctx context.Context, businessUnit, startDate, endDate string) ([]TrialBalanceRow, error) {
	rows, err := r.db.Query(ctx, `SELECT account_code,
COALESCE(SUM(amount) FILTER (WHERE side='D'), 0)::text,
COALESCE(SUM(amount) FILTER (WHERE side='C'), 0)::text
FROM voucher_lines
WHERE business_unit=$1 AND posting_date BETWEEN $2 AND $3 AND NOT voided
GROUP BY account_code ORDER BY account_code`, businessUnit, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		var debit, credit string
		if err := rows.Scan(&row.AccountCode, &debit, &credit); err != nil {
			return nil, err
		}
		if row.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("voucher: parse debit total: %w", err)
		}
		if row.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("voucher: parse credit total: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) HasActiveVoucher(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM voucher_lines WHERE reference=$1 AND NOT voided)`, reference).Scan(&exists)
	return exists, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextVoucherSequence(ctx context.Context, businessUnit, date string) (int64, error) {
	return sequence.Next(ctx, r.tx, sequence.DomainVoucher, sequence.BaseCode(businessUnit, date))
}

func (r *txRepository) InsertLines(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_lines (voucher_no, line_seq, business_unit, posting_date, posting_time, account_code, side, amount, memo, reference, prepared_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			line.VoucherNo, line.LineSeq, line.BusinessUnit, line.PostingDate, line.PostingTime,
			line.AccountCode, string(line.Side), line.Amount.StringFixed(2), line.Memo, line.Reference, line.PreparedBy); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("voucher %s line %d: %w", line.VoucherNo, line.LineSeq, shared.ErrConflict)
			}
			return err
		}
	}
	return nil
}

func (r *txRepository) DeactivateByReference(ctx context.Context, reference, modifiedBy string) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE voucher_lines SET voided=true, modified_by=$2, modified_at=NOW() WHERE reference=$1 AND NOT voided`, reference, modifiedBy)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		var amount string
		if err := rows.Scan(&line.VoucherNo, &line.LineSeq, &line.BusinessUnit, &line.PostingDate, &line.PostingTime,
			&line.AccountCode, &line.Side, &amount, &line.Memo, &line.Reference, &line.PreparedBy,
			&line.CreatedAt, &line.ModifiedBy, &line.ModifiedAt, &line.Voided); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("voucher: parse amount: %w", err)
		}
		line.Amount = parsed
		out = append(out, line)
	}
	return out, rows.Err()
}
