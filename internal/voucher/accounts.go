package voucher

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountPair names the chart-of-accounts codes a document kind posts to.
// Tax accounts are only consulted under the split tax policy.
type AccountPair struct {
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	TaxDebit  string `json:"tax_debit,omitempty"`
	TaxCredit string `json:"tax_credit,omitempty"`
}

// Resolver maps a document kind to the accounts its legs post to.
type Resolver interface {
	Resolve(ctx context.Context, kind DocumentKind) (AccountPair, error)
}

// defaultAccounts carries the account codes the original system hard-coded:
// 501 goods purchased, 252 trade payable, 132 trade receivable, 401 goods
// sold, 101 cash, 136 VAT receivable, 237 VAT payable.
var defaultAccounts = map[DocumentKind]AccountPair{
	KindPurchaseInvoice: {Debit: "501", Credit: "252", TaxDebit: "136"},
	KindSalesDelivery:   {Debit: "132", Credit: "401", TaxCredit: "237"},
	KindCashReceipt:     {Debit: "101", Credit: "132"},
	KindCashPayment:     {Debit: "252", Credit: "101"},
	KindTaxInvoice:      {Debit: "132", Credit: "401", TaxCredit: "237"},
}

// StaticResolver serves the built-in mapping table. It backs tests and acts
// as the fallback when the account_mappings table has no row for a kind.
type StaticResolver struct{}

// Resolve returns the built-in pair for the kind.
func (StaticResolver) Resolve(_ context.Context, kind DocumentKind) (AccountPair, error) {
	pair, ok := defaultAccounts[kind]
	if !ok {
		return AccountPair{}, ErrUnknownKind
	}
	return pair, nil
}

// MappingRepository resolves account pairs from the account_mappings table,
// falling back to the built-in defaults for known kinds without a row.
type MappingRepository struct {
	db *pgxpool.Pool
}

// NewMappingRepository returns a Resolver backed by account_mappings.
func NewMappingRepository(db *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{db: db}
}

// Resolve fetches the pair for the kind.
func (r *MappingRepository) Resolve(ctx context.Context, kind DocumentKind) (AccountPair, error) {
	if !kind.Valid() {
		return AccountPair{}, ErrUnknownKind
	}
	var pair AccountPair
	err := r.db.QueryRow(ctx, `SELECT debit_account, credit_account, COALESCE(tax_debit_account, ''), COALESCE(tax_credit_account, '')
FROM account_mappings WHERE kind=$1`, string(kind)).
		Scan(&pair.Debit, &pair.Credit, &pair.TaxDebit, &pair.TaxCredit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if fallback, ok := defaultAccounts[kind]; ok {
				return fallback, nil
			}
			return AccountPair{}, ErrMappingNotFound
		}
		return AccountPair{}, err
	}
	return pair, nil
}
