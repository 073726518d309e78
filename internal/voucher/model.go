// Package voucher posts and reverses balanced double-entry ledger lines for
// upstream business documents.
package voucher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind tags the upstream document a voucher is derived from.
type DocumentKind string

const (
	KindPurchaseInvoice DocumentKind = "purchase-invoice"
	KindSalesDelivery   DocumentKind = "sales-delivery"
	KindCashReceipt     DocumentKind = "cash-receipt"
	KindCashPayment     DocumentKind = "cash-payment"
	KindTaxInvoice      DocumentKind = "tax-invoice"
)

// Valid reports whether the kind is one this module can post.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindPurchaseInvoice, KindSalesDelivery, KindCashReceipt, KindCashPayment, KindTaxInvoice:
		return true
	}
	return false
}

// Side marks a line as debit or credit. The single-letter values match the
// ledger table's 차대구분 column.
type Side string

const (
	SideDebit  Side = "D"
	SideCredit Side = "C"
)

// Line is one leg of a voucher. A voucher has no row of its own; it exists
// as the set of active lines sharing a voucher number.
type Line struct {
	VoucherNo    string
	LineSeq      int
	BusinessUnit string
	PostingDate  string // YYYYMMDD
	PostingTime  string // HHMMSS
	AccountCode  string
	Side         Side
	Amount       decimal.Decimal
	Memo         string
	Reference    string
	PreparedBy   string
	CreatedAt    time.Time
	ModifiedBy   string
	ModifiedAt   *time.Time
	Voided       bool
}

// TrialBalanceRow aggregates active lines per account over a date range.
type TrialBalanceRow struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// PurchaseReference builds the natural key linking a voucher back to a
// purchase document.
func PurchaseReference(date string, documentID int64) string {
	return fmt.Sprintf("purchase-%s-%d", date, documentID)
}

// SalesReference builds the natural key for a sales delivery document.
func SalesReference(date string, documentID int64) string {
	return fmt.Sprintf("sales-%s-%d", date, documentID)
}
