package voucher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-erp/hanbit-erp/internal/shared"
)

// memoryLedger implements Repository with transactional staging so rollback
// semantics can be asserted without a database.
type memoryLedger struct {
	mu         sync.Mutex
	counters   map[string]int64
	lines      []Line
	failInsert error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{counters: make(map[string]int64)}
}

func (r *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, staged: make(map[string]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for base, v := range tx.staged {
		r.counters[base] = v
	}
	r.lines = append(r.lines, tx.inserted...)
	for _, d := range tx.deactivated {
		for i := range r.lines {
			if r.lines[i].Reference == d.reference && !r.lines[i].Voided {
				now := time.Now()
				r.lines[i].Voided = true
				r.lines[i].ModifiedBy = d.modifiedBy
				r.lines[i].ModifiedAt = &now
			}
		}
	}
	return nil
}

func (r *memoryLedger) ListByReference(ctx context.Context, reference string) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, line := range r.lines {
		if line.Reference == reference {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryLedger) ListByUnitDate(ctx context.Context, businessUnit, date string) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, line := range r.lines {
		if line.BusinessUnit == businessUnit && line.PostingDate == date && !line.Voided {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryLedger) ListByAccount(ctx context.Context, accountCode, startDate, endDate string) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, line := range r.lines {
		if line.AccountCode == accountCode && line.PostingDate >= startDate && line.PostingDate <= endDate && !line.Voided {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryLedger) TrialBalance(ctx context.Context, businessUnit, startDate, endDate string) ([]TrialBalanceRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[string]*TrialBalanceRow)
	for _, line := range r.lines {
		if line.BusinessUnit != businessUnit || line.PostingDate < startDate || line.PostingDate > endDate || line.Voided {
			continue
		}
		row, ok := totals[line.AccountCode]
		if !ok {
			row = &TrialBalanceRow{AccountCode: line.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero}
			totals[line.AccountCode] = row
		}
		if line.Side == SideDebit {
			row.Debit = row.Debit.Add(line.Amount)
		} else {
			row.Credit = row.Credit.Add(line.Amount)
		}
	}
	out := make([]TrialBalanceRow, 0, len(totals))
	for _, row := range totals {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memoryLedger) HasActiveVoucher(ctx context.Context, reference string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if line.Reference == reference && !line.Voided {
			return true, nil
		}
	}
	return false, nil
}

type deactivation struct {
	reference  string
	modifiedBy string
}

type memoryTx struct {
	repo        *memoryLedger
	staged      map[string]int64
	inserted    []Line
	deactivated []deactivation
}

func (tx *memoryTx) NextVoucherSequence(ctx context.Context, businessUnit, date string) (int64, error) {
	base := businessUnit + date
	cur, ok := tx.staged[base]
	if !ok {
		cur = tx.repo.counters[base]
	}
	tx.staged[base] = cur + 1
	return cur + 1, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, lines []Line) error {
	if tx.repo.failInsert != nil {
		return tx.repo.failInsert
	}
	tx.inserted = append(tx.inserted, lines...)
	return nil
}

func (tx *memoryTx) DeactivateByReference(ctx context.Context, reference, modifiedBy string) (int64, error) {
	var count int64
	for _, line := range tx.repo.lines {
		if line.Reference == reference && !line.Voided {
			count++
		}
	}
	if count > 0 {
		tx.deactivated = append(tx.deactivated, deactivation{reference: reference, modifiedBy: modifiedBy})
	}
	return count, nil
}

type recordingAudit struct {
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

func newTestService(repo *memoryLedger) (*Service, *recordingAudit) {
	audit := &recordingAudit{}
	svc := NewService(repo, StaticResolver{}, audit)
	svc.WithNow(func() time.Time {
		return time.Date(2025, 11, 9, 14, 30, 0, 0, time.UTC)
	})
	return svc, audit
}

func purchaseInput() PostingInput {
	return PostingInput{
		Kind:         KindPurchaseInvoice,
		BusinessUnit: "01",
		PostingDate:  "20251109",
		Reference:    "purchase-20251109-7",
		Counterparty: "ACME",
		NetAmount:    decimal.NewFromInt(100000),
		TaxAmount:    decimal.NewFromInt(10000),
		PreparedBy:   "0687",
	}
}

func TestPostPurchaseRoundTrip(t *testing.T) {
	repo := newMemoryLedger()
	svc, audit := newTestService(repo)

	voucherNo, err := svc.Post(context.Background(), purchaseInput())
	require.NoError(t, err)
	require.Equal(t, "20251109-1", voucherNo)

	lines, err := svc.ListByReference(context.Background(), "purchase-20251109-7")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	debit, credit := lines[0], lines[1]
	require.Equal(t, SideDebit, debit.Side)
	require.Equal(t, "501", debit.AccountCode)
	require.True(t, debit.Amount.Equal(decimal.NewFromInt(110000)))
	require.Equal(t, "ACME 매입", debit.Memo)

	require.Equal(t, SideCredit, credit.Side)
	require.Equal(t, "252", credit.AccountCode)
	require.True(t, credit.Amount.Equal(decimal.NewFromInt(110000)))
	require.Equal(t, "ACME 미지급", credit.Memo)

	for _, line := range lines {
		require.Equal(t, "purchase-20251109-7", line.Reference)
		require.Equal(t, "143000", line.PostingTime)
		require.False(t, line.Voided)
	}

	require.Len(t, audit.entries, 1)
	require.Equal(t, "voucher.post", audit.entries[0].Action)
	require.Equal(t, voucherNo, audit.entries[0].EntityID)
}

func TestPostSplitTaxPurchase(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)

	in := purchaseInput()
	in.Policy = TaxSplit
	_, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	lines, err := svc.ListByReference(context.Background(), in.Reference)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	require.Equal(t, "501", lines[0].AccountCode)
	require.True(t, lines[0].Amount.Equal(decimal.NewFromInt(100000)))
	require.Equal(t, "136", lines[1].AccountCode)
	require.True(t, lines[1].Amount.Equal(decimal.NewFromInt(10000)))
	require.Equal(t, "252", lines[2].AccountCode)
	require.True(t, lines[2].Amount.Equal(decimal.NewFromInt(110000)))
}

func TestPostSplitTaxSales(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)

	_, err := svc.Post(context.Background(), PostingInput{
		Kind:         KindSalesDelivery,
		BusinessUnit: "01",
		PostingDate:  "20251109",
		Reference:    "sales-20251109-3",
		Counterparty: "길동상사",
		NetAmount:    decimal.NewFromInt(200000),
		TaxAmount:    decimal.NewFromInt(20000),
		PreparedBy:   "0687",
		Policy:       TaxSplit,
	})
	require.NoError(t, err)

	lines, err := svc.ListByReference(context.Background(), "sales-20251109-3")
	require.NoError(t, err)
	require.Len(t, lines, 3)

	require.Equal(t, "132", lines[0].AccountCode)
	require.Equal(t, SideDebit, lines[0].Side)
	require.True(t, lines[0].Amount.Equal(decimal.NewFromInt(220000)))
	require.Equal(t, "401", lines[1].AccountCode)
	require.Equal(t, SideCredit, lines[1].Side)
	require.True(t, lines[1].Amount.Equal(decimal.NewFromInt(200000)))
	require.Equal(t, "237", lines[2].AccountCode)
	require.Equal(t, SideCredit, lines[2].Side)
	require.True(t, lines[2].Amount.Equal(decimal.NewFromInt(20000)))
}

func TestSplitPolicyWithZeroTaxPostsTwoLines(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)

	in := purchaseInput()
	in.Policy = TaxSplit
	in.TaxAmount = decimal.Zero
	_, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	lines, err := svc.ListByReference(context.Background(), in.Reference)
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestBalanceInvariantAcrossKindsAndPolicies(t *testing.T) {
	kinds := []DocumentKind{KindPurchaseInvoice, KindSalesDelivery, KindCashReceipt, KindCashPayment, KindTaxInvoice}
	policies := []TaxPolicy{TaxCombined, TaxSplit}

	for _, kind := range kinds {
		for _, policy := range policies {
			repo := newMemoryLedger()
			svc, _ := newTestService(repo)

			ref := "doc-20251109-1"
			_, err := svc.Post(context.Background(), PostingInput{
				Kind:         kind,
				BusinessUnit: "01",
				PostingDate:  "20251109",
				Reference:    ref,
				Counterparty: "ACME",
				NetAmount:    decimal.NewFromInt(33333),
				TaxAmount:    decimal.NewFromInt(3333),
				PreparedBy:   "0687",
				Policy:       policy,
			})
			require.NoError(t, err, "kind=%s policy=%s", kind, policy)

			lines, err := svc.ListByReference(context.Background(), ref)
			require.NoError(t, err)

			debit, credit := decimal.Zero, decimal.Zero
			for _, line := range lines {
				require.False(t, line.Amount.IsNegative())
				if line.Side == SideDebit {
					debit = debit.Add(line.Amount)
				} else {
					credit = credit.Add(line.Amount)
				}
			}
			require.True(t, debit.Equal(credit), "kind=%s policy=%s debit=%s credit=%s", kind, policy, debit, credit)
		}
	}
}

func TestUnknownKindConsumesNoSequence(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)

	in := purchaseInput()
	in.Kind = DocumentKind("gift-card")
	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, ErrUnknownKind)
	require.Empty(t, repo.counters)

	// Next valid post still gets the first number of the pool.
	voucherNo, err := svc.Post(context.Background(), purchaseInput())
	require.NoError(t, err)
	require.Equal(t, "20251109-1", voucherNo)
}

func TestFailedInsertRollsBackAllocation(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)

	repo.failInsert = errors.New("disk full")
	_, err := svc.Post(context.Background(), purchaseInput())
	require.Error(t, err)
	require.Empty(t, repo.counters, "failed post must not burn a sequence number")
	require.Empty(t, repo.lines)

	repo.failInsert = nil
	voucherNo, err := svc.Post(context.Background(), purchaseInput())
	require.NoError(t, err)
	require.Equal(t, "20251109-1", voucherNo)
}

func TestSequencePoolsPerUnitAndDate(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	first := purchaseInput()
	no1, err := svc.Post(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "20251109-1", no1)

	second := purchaseInput()
	second.Reference = "purchase-20251109-8"
	no2, err := svc.Post(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "20251109-2", no2)

	otherUnit := purchaseInput()
	otherUnit.BusinessUnit = "02"
	otherUnit.Reference = "purchase-20251109-9"
	no3, err := svc.Post(ctx, otherUnit)
	require.NoError(t, err)
	require.Equal(t, "20251109-1", no3, "a different business unit is its own pool")
}

func TestReverseIsIdempotent(t *testing.T) {
	repo := newMemoryLedger()
	svc, audit := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, purchaseInput())
	require.NoError(t, err)

	affected, err := svc.Reverse(ctx, "purchase-20251109-7", "1042")
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	lines, err := svc.ListByReference(ctx, "purchase-20251109-7")
	require.NoError(t, err)
	for _, line := range lines {
		require.True(t, line.Voided)
		require.Equal(t, "1042", line.ModifiedBy)
		require.NotNil(t, line.ModifiedAt)
	}

	active, err := svc.HasActiveVoucher(ctx, "purchase-20251109-7")
	require.NoError(t, err)
	require.False(t, active)

	again, err := svc.Reverse(ctx, "purchase-20251109-7", "1042")
	require.NoError(t, err)
	require.Zero(t, again)

	never, err := svc.Reverse(ctx, "purchase-19990101-1", "1042")
	require.NoError(t, err)
	require.Zero(t, never)

	// Only the effective reversal is audited.
	var reversals int
	for _, e := range audit.entries {
		if e.Action == "voucher.reverse" {
			reversals++
		}
	}
	require.Equal(t, 1, reversals)
}

func TestReversedLinesLeaveTrialBalance(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, purchaseInput())
	require.NoError(t, err)

	rows, err := svc.TrialBalance(ctx, "01", "20251101", "20251130")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = svc.Reverse(ctx, "purchase-20251109-7", "1042")
	require.NoError(t, err)

	rows, err = svc.TrialBalance(ctx, "01", "20251101", "20251130")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestPostValidation(t *testing.T) {
	repo := newMemoryLedger()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	badDate := purchaseInput()
	badDate.PostingDate = "2025-11-09"
	_, err := svc.Post(ctx, badDate)
	require.Error(t, err)

	negative := purchaseInput()
	negative.NetAmount = decimal.NewFromInt(-1)
	_, err = svc.Post(ctx, negative)
	require.Error(t, err)

	noRef := purchaseInput()
	noRef.Reference = ""
	_, err = svc.Post(ctx, noRef)
	require.Error(t, err)

	require.Empty(t, repo.counters)
}
