package backfill

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SourceRepository reads upstream business documents. The materials movement
// ledger is owned by the inventory screens; this side only queries it.
type SourceRepository interface {
	ListPurchases(ctx context.Context, businessUnit, startDate, endDate string) ([]DocumentGroup, error)
	ListSales(ctx context.Context, businessUnit, startDate, endDate string) ([]DocumentGroup, error)
}

type sourceRepository struct {
	db *pgxpool.Pool
}

// NewSourceRepository returns a SourceRepository over the movement ledger.
func NewSourceRepository(db *pgxpool.Pool) SourceRepository {
	return &sourceRepository{db: db}
}

// direction values in material_movements: 1 inbound (purchase), 2 outbound (sale).
const (
	directionInbound  = 1
	directionOutbound = 2
)

func (r *sourceRepository) ListPurchases(ctx context.Context, businessUnit, startDate, endDate string) ([]DocumentGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT m.posting_date, m.document_id, m.counterparty_code, COALESCE(s.name, ''),
COALESCE(SUM(m.quantity * m.unit_price), 0)::text, COALESCE(SUM(m.tax), 0)::text
FROM material_movements m
LEFT JOIN suppliers s ON s.code = m.counterparty_code AND s.business_unit = m.business_unit
WHERE m.business_unit=$1 AND m.direction=$2 AND m.posting_date BETWEEN $3 AND $4 AND NOT m.voided
GROUP BY m.posting_date, m.document_id, m.counterparty_code, s.name
ORDER BY m.posting_date, m.document_id`, businessUnit, directionInbound, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return scanGroups(rows)
}

func (r *sourceRepository) ListSales(ctx context.Context, businessUnit, startDate, endDate string) ([]DocumentGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT m.posting_date, m.document_id, m.counterparty_code, COALESCE(c.name, ''),
COALESCE(SUM(m.quantity * m.unit_price), 0)::text, COALESCE(SUM(m.tax), 0)::text
FROM material_movements m
LEFT JOIN customers c ON c.code = m.counterparty_code AND c.business_unit = m.business_unit
WHERE m.business_unit=$1 AND m.direction=$2 AND m.posting_date BETWEEN $3 AND $4 AND NOT m.voided
GROUP BY m.posting_date, m.document_id, m.counterparty_code, c.name
ORDER BY m.posting_date, m.document_id`, businessUnit, directionOutbound, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return scanGroups(rows)
}

func scanGroups(rows pgx.Rows) ([]DocumentGroup, error) {
	defer rows.Close()
	var out []DocumentGroup
	for rows.Next() {
		var g DocumentGroup
		var net, tax string
		if err := rows.Scan(&g.PostingDate, &g.DocumentID, &g.CounterpartyCode, &g.CounterpartyName, &net, &tax); err != nil {
			return nil, err
		}
		var err error
		if g.NetAmount, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("backfill: parse net amount: %w", err)
		}
		if g.TaxAmount, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("backfill: parse tax amount: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
