package voucher

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxPolicy controls how VAT posts. The combined policy folds tax into the
// net leg pair; the split policy gives tax its own leg against the VAT
// receivable/payable accounts. Both shapes exist in production data, so the
// choice stays explicit at the call site.
type TaxPolicy string

const (
	TaxCombined TaxPolicy = "combined"
	TaxSplit    TaxPolicy = "split"
)

// PostingInput groups fields required to post one voucher.
type PostingInput struct {
	Kind         DocumentKind
	BusinessUnit string
	PostingDate  string // YYYYMMDD
	Reference    string
	Counterparty string
	NetAmount    decimal.Decimal
	TaxAmount    decimal.Decimal
	PreparedBy   string
	Memo         string
	Policy       TaxPolicy
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if !in.Kind.Valid() {
		return ErrUnknownKind
	}
	if in.BusinessUnit == "" {
		return errors.New("voucher: business unit required")
	}
	if _, err := time.Parse("20060102", in.PostingDate); err != nil {
		return fmt.Errorf("voucher: invalid posting date %q", in.PostingDate)
	}
	if in.Reference == "" {
		return errors.New("voucher: reference required")
	}
	if in.PreparedBy == "" {
		return errors.New("voucher: preparer required")
	}
	if in.NetAmount.IsNegative() {
		return errors.New("voucher: net amount must not be negative")
	}
	if in.TaxAmount.IsNegative() {
		return errors.New("voucher: tax amount must not be negative")
	}
	switch in.Policy {
	case "", TaxCombined, TaxSplit:
	default:
		return fmt.Errorf("voucher: invalid tax policy %q", in.Policy)
	}
	return nil
}

// policyOrDefault resolves the empty policy to the combined behavior the
// original voucher helper shipped with.
func (in PostingInput) policyOrDefault() TaxPolicy {
	if in.Policy == "" {
		return TaxCombined
	}
	return in.Policy
}
