package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanbit-erp/hanbit-erp/internal/shared"
)

// AuditPort records posting and reversal actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements voucher posting and reversal on top of the repository.
// Live document flows and the backfill scanner both go through it, so the
// posting rules live in exactly one place.
type Service struct {
	repo     Repository
	accounts Resolver
	audit    AuditPort
	now      func() time.Time
}

// NewService wires the poster with its account resolver and audit sink.
func NewService(repo Repository, accounts Resolver, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post allocates a voucher number and writes the balanced line set for the
// document in one transaction. A failed insert rolls the allocation back, so
// no number is burned without lines.
func (s *Service) Post(ctx context.Context, in PostingInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	// Resolve before opening the transaction: an unknown kind must not
	// consume a sequence number.
	accounts, err := s.accounts.Resolve(ctx, in.Kind)
	if err != nil {
		return "", err
	}

	var voucherNo string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextVoucherSequence(ctx, in.BusinessUnit, in.PostingDate)
		if err != nil {
			return err
		}
		voucherNo = fmt.Sprintf("%s-%d", in.PostingDate, seq)
		lines := buildLines(voucherNo, in, accounts, s.now())
		if err := checkBalanced(lines); err != nil {
			return err
		}
		return tx.InsertLines(ctx, lines)
	})
	if err != nil {
		return "", err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    in.PreparedBy,
			Action:   "voucher.post",
			Entity:   "voucher",
			EntityID: voucherNo,
			Meta: map[string]any{
				"kind":      string(in.Kind),
				"reference": in.Reference,
				"net":       in.NetAmount.StringFixed(2),
				"tax":       in.TaxAmount.StringFixed(2),
			},
			At: s.now(),
		})
	}
	return voucherNo, nil
}

// Reverse marks every active line for the reference as voided. Calling it
// again, or for a reference with no active lines, returns zero and changes
// nothing.
func (s *Service) Reverse(ctx context.Context, reference, modifiedBy string) (int64, error) {
	if reference == "" {
		return 0, fmt.Errorf("voucher: reference required")
	}
	var affected int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.DeactivateByReference(ctx, reference, modifiedBy)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.audit != nil && affected > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    modifiedBy,
			Action:   "voucher.reverse",
			Entity:   "voucher",
			EntityID: reference,
			Meta:     map[string]any{"lines": affected},
			At:       s.now(),
		})
	}
	return affected, nil
}

// HasActiveVoucher reports whether the reference already has an active
// voucher. Callers that time out on Post re-check here instead of retrying
// blindly.
func (s *Service) HasActiveVoucher(ctx context.Context, reference string) (bool, error) {
	return s.repo.HasActiveVoucher(ctx, reference)
}

// ListByReference returns every line, voided included, for a reference.
func (s *Service) ListByReference(ctx context.Context, reference string) ([]Line, error) {
	return s.repo.ListByReference(ctx, reference)
}

// ListByUnitDate returns active lines for a business unit and posting date.
func (s *Service) ListByUnitDate(ctx context.Context, businessUnit, date string) ([]Line, error) {
	return s.repo.ListByUnitDate(ctx, businessUnit, date)
}

// ListByAccount returns active lines for an account over a date range.
func (s *Service) ListByAccount(ctx context.Context, accountCode, startDate, endDate string) ([]Line, error) {
	return s.repo.ListByAccount(ctx, accountCode, startDate, endDate)
}

// TrialBalance returns per-account debit and credit totals of active lines.
func (s *Service) TrialBalance(ctx context.Context, businessUnit, startDate, endDate string) ([]TrialBalanceRow, error) {
	return s.repo.TrialBalance(ctx, businessUnit, startDate, endDate)
}

// buildLines derives the leg set for a posting. Debit and credit totals are
// equal under both tax policies by construction.
func buildLines(voucherNo string, in PostingInput, accounts AccountPair, ts time.Time) []Line {
	total := in.NetAmount.Add(in.TaxAmount)
	policy := in.policyOrDefault()
	postingTime := ts.Format("150405")

	seq := 0
	newLine := func(account string, side Side, amount decimal.Decimal) Line {
		seq++
		return Line{
			VoucherNo:    voucherNo,
			LineSeq:      seq,
			BusinessUnit: in.BusinessUnit,
			PostingDate:  in.PostingDate,
			PostingTime:  postingTime,
			AccountCode:  account,
			Side:         side,
			Amount:       amount,
			Memo:         memoOrDefault(in.Memo, in.Kind, side, in.Counterparty),
			Reference:    in.Reference,
			PreparedBy:   in.PreparedBy,
			CreatedAt:    ts,
		}
	}

	splitTax := policy == TaxSplit && in.TaxAmount.IsPositive()
	if !splitTax {
		return []Line{
			newLine(accounts.Debit, SideDebit, total),
			newLine(accounts.Credit, SideCredit, total),
		}
	}

	switch in.Kind {
	case KindPurchaseInvoice:
		// v2 shape: net and VAT-in debited separately against the payable total.
		return []Line{
			newLine(accounts.Debit, SideDebit, in.NetAmount),
			newLine(accounts.TaxDebit, SideDebit, in.TaxAmount),
			newLine(accounts.Credit, SideCredit, total),
		}
	case KindSalesDelivery, KindTaxInvoice:
		// v2 shape: receivable total against net revenue plus VAT-out.
		return []Line{
			newLine(accounts.Debit, SideDebit, total),
			newLine(accounts.Credit, SideCredit, in.NetAmount),
			newLine(accounts.TaxCredit, SideCredit, in.TaxAmount),
		}
	default:
		// Cash movements have no tax leg of their own.
		return []Line{
			newLine(accounts.Debit, SideDebit, total),
			newLine(accounts.Credit, SideCredit, total),
		}
	}
}

// checkBalanced guards the double-entry invariant before anything is written.
func checkBalanced(lines []Line) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range lines {
		switch line.Side {
		case SideDebit:
			debit = debit.Add(line.Amount)
		case SideCredit:
			credit = credit.Add(line.Amount)
		}
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

// memoOrDefault falls back to the memo texts the original screens generated.
func memoOrDefault(memo string, kind DocumentKind, side Side, counterparty string) string {
	if memo != "" {
		return memo
	}
	if counterparty == "" {
		counterparty = "미확인"
	}
	switch kind {
	case KindPurchaseInvoice:
		if side == SideDebit {
			return counterparty + " 매입"
		}
		return counterparty + " 미지급"
	case KindSalesDelivery:
		if side == SideDebit {
			return counterparty + " 미수"
		}
		return counterparty + " 매출"
	case KindCashReceipt:
		return counterparty + " 입금"
	case KindCashPayment:
		return counterparty + " 출금"
	case KindTaxInvoice:
		return counterparty + " 세금계산서"
	}
	return counterparty
}
