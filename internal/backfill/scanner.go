package backfill

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hanbit-erp/hanbit-erp/internal/observability"
	"github.com/hanbit-erp/hanbit-erp/internal/voucher"
)

// Poster is the slice of the voucher service the scanner drives. Backfill
// and live traffic share one posting implementation; the scanner only adds
// the scan-and-skip wrapper.
type Poster interface {
	Post(ctx context.Context, in voucher.PostingInput) (string, error)
	HasActiveVoucher(ctx context.Context, reference string) (bool, error)
}

// Scanner walks a historical date range and posts vouchers for documents
// that do not yet have one. Documents are processed strictly sequentially so
// two workers never race on the same reference.
type Scanner struct {
	src     SourceRepository
	poster  Poster
	logger  *slog.Logger
	metrics *observability.Metrics
	printer *message.Printer
}

// NewScanner wires a Scanner. Metrics may be nil.
func NewScanner(src SourceRepository, poster Poster, logger *slog.Logger, metrics *observability.Metrics) *Scanner {
	return &Scanner{
		src:     src,
		poster:  poster,
		logger:  logger,
		metrics: metrics,
		printer: message.NewPrinter(language.Korean),
	}
}

// Run scans purchases then sales over the range. One document failing is
// logged and counted, never fatal for the rest of the run; only a failure to
// enumerate the source documents aborts.
func (s *Scanner) Run(ctx context.Context, in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	// Run ID ties the summary line to per-document failure logs.
	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	var res Result
	total := decimal.Zero

	purchases, err := s.src.ListPurchases(ctx, in.BusinessUnit, in.StartDate, in.EndDate)
	if err != nil {
		return Result{}, err
	}
	s.processKind(ctx, logger, voucher.KindPurchaseInvoice, purchases, in, &res, &total)

	sales, err := s.src.ListSales(ctx, in.BusinessUnit, in.StartDate, in.EndDate)
	if err != nil {
		return Result{}, err
	}
	s.processKind(ctx, logger, voucher.KindSalesDelivery, sales, in, &res, &total)

	logger.Info("backfill run complete",
		slog.String("business_unit", in.BusinessUnit),
		slog.String("range", in.StartDate+"~"+in.EndDate),
		slog.Int("posted", res.Posted),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.String("amount_posted", s.printer.Sprintf("%d", total.IntPart())),
	)
	return res, nil
}

func (s *Scanner) processKind(ctx context.Context, logger *slog.Logger, kind voucher.DocumentKind, groups []DocumentGroup, in Input, res *Result, total *decimal.Decimal) {
	for _, g := range groups {
		var ref string
		if kind == voucher.KindPurchaseInvoice {
			ref = voucher.PurchaseReference(g.PostingDate, g.DocumentID)
		} else {
			ref = voucher.SalesReference(g.PostingDate, g.DocumentID)
		}

		active, err := s.poster.HasActiveVoucher(ctx, ref)
		if err != nil {
			s.fail(logger, res, ref, err)
			continue
		}
		if active {
			res.Skipped++
			s.metrics.BackfillDocument("skipped")
			continue
		}

		if _, err := s.poster.Post(ctx, voucher.PostingInput{
			Kind:         kind,
			BusinessUnit: in.BusinessUnit,
			PostingDate:  g.PostingDate,
			Reference:    ref,
			Counterparty: g.CounterpartyName,
			NetAmount:    g.NetAmount,
			TaxAmount:    g.TaxAmount,
			PreparedBy:   in.PreparedBy,
			Policy:       in.Policy,
		}); err != nil {
			s.fail(logger, res, ref, err)
			continue
		}
		res.Posted++
		*total = total.Add(g.NetAmount).Add(g.TaxAmount)
		s.metrics.BackfillDocument("posted")
	}
}

func (s *Scanner) fail(logger *slog.Logger, res *Result, ref string, err error) {
	res.Failed++
	res.Failures = append(res.Failures, Failure{Reference: ref, Reason: err.Error()})
	s.metrics.BackfillDocument("failed")
	logger.Error("backfill document failed",
		slog.String("reference", ref),
		slog.Any("error", err),
	)
}
