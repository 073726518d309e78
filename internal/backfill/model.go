// Package backfill replays historical business documents through the voucher
// poster, skipping references that already have an active voucher.
package backfill

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanbit-erp/hanbit-erp/internal/voucher"
)

// DocumentGroup is one source document aggregated from the materials
// movement ledger: every row sharing (posting date, document id,
// counterparty) rolled up to its net and tax totals.
type DocumentGroup struct {
	PostingDate      string // YYYYMMDD
	DocumentID       int64
	CounterpartyCode string
	CounterpartyName string
	NetAmount        decimal.Decimal
	TaxAmount        decimal.Decimal
}

// Input bounds one backfill run. Dates are YYYYMMDD, inclusive.
type Input struct {
	BusinessUnit string
	StartDate    string
	EndDate      string
	PreparedBy   string
	Policy       voucher.TaxPolicy
}

// Validate checks the run bounds before any documents are read.
func (in Input) Validate() error {
	if in.BusinessUnit == "" {
		return errors.New("backfill: business unit required")
	}
	if in.PreparedBy == "" {
		return errors.New("backfill: preparer required")
	}
	start, err := time.Parse("20060102", in.StartDate)
	if err != nil {
		return errors.New("backfill: invalid start date")
	}
	end, err := time.Parse("20060102", in.EndDate)
	if err != nil {
		return errors.New("backfill: invalid end date")
	}
	if end.Before(start) {
		return errors.New("backfill: end date before start date")
	}
	return nil
}

// Failure captures one document that could not be posted, with enough
// context to re-run it by hand.
type Failure struct {
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Result tallies one run. A document lands in exactly one bucket.
type Result struct {
	Posted   int       `json:"posted"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}
