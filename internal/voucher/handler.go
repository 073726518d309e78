package voucher

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hanbit-erp/hanbit-erp/internal/observability"
	"github.com/hanbit-erp/hanbit-erp/internal/platform/httpx"
)

// Handler exposes the voucher ledger over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the HTTP handler for the voucher routes.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

type postRequest struct {
	Kind         string `json:"kind" validate:"required"`
	BusinessUnit string `json:"business_unit" validate:"required"`
	PostingDate  string `json:"posting_date" validate:"required,len=8,numeric"`
	Reference    string `json:"reference" validate:"required"`
	Counterparty string `json:"counterparty"`
	NetAmount    string `json:"net_amount" validate:"required"`
	TaxAmount    string `json:"tax_amount"`
	PreparedBy   string `json:"prepared_by" validate:"required"`
	Memo         string `json:"memo"`
	TaxPolicy    string `json:"tax_policy" validate:"omitempty,oneof=combined split"`
}

type postResponse struct {
	VoucherNo string `json:"voucher_no"`
}

// Post creates a voucher for an already-validated business document.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	net, err := decimal.NewFromString(req.NetAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "net_amount is not a number")
		return
	}
	tax := decimal.Zero
	if req.TaxAmount != "" {
		if tax, err = decimal.NewFromString(req.TaxAmount); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tax_amount is not a number")
			return
		}
	}

	voucherNo, err := h.service.Post(r.Context(), PostingInput{
		Kind:         DocumentKind(req.Kind),
		BusinessUnit: req.BusinessUnit,
		PostingDate:  req.PostingDate,
		Reference:    req.Reference,
		Counterparty: req.Counterparty,
		NetAmount:    net,
		TaxAmount:    tax,
		PreparedBy:   req.PreparedBy,
		Memo:         req.Memo,
		Policy:       TaxPolicy(req.TaxPolicy),
	})
	if err != nil {
		h.respondError(w, r, "post voucher", err)
		return
	}
	h.metrics.VoucherPosted(req.Kind)
	httpx.JSON(w, http.StatusCreated, postResponse{VoucherNo: voucherNo})
}

type reverseRequest struct {
	Reference  string `json:"reference" validate:"required"`
	ModifiedBy string `json:"modified_by" validate:"required"`
}

type reverseResponse struct {
	AffectedLines int64 `json:"affected_lines"`
}

// Reverse soft-deletes every active line posted for a reference. Reversing a
// reference with no active lines responds 200 with zero affected lines.
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	affected, err := h.service.Reverse(r.Context(), req.Reference, req.ModifiedBy)
	if err != nil {
		h.respondError(w, r, "reverse voucher", err)
		return
	}
	h.metrics.LinesReversed(affected)
	httpx.JSON(w, http.StatusOK, reverseResponse{AffectedLines: affected})
}

// List filters voucher lines by reference, business unit + date, or account.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var lines []Line
	var err error
	switch {
	case q.Get("reference") != "":
		lines, err = h.service.ListByReference(ctx, q.Get("reference"))
	case q.Get("business_unit") != "" && q.Get("date") != "":
		lines, err = h.service.ListByUnitDate(ctx, q.Get("business_unit"), q.Get("date"))
	case q.Get("account") != "":
		lines, err = h.service.ListByAccount(ctx, q.Get("account"), q.Get("start"), q.Get("end"))
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "filter by reference, business_unit+date, or account")
		return
	}
	if err != nil {
		h.respondError(w, r, "list voucher lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLineResponses(lines))
}

// TrialBalance returns per-account debit/credit totals for report screens.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unit, start, end := q.Get("business_unit"), q.Get("start"), q.Get("end")
	if unit == "" || start == "" || end == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "business_unit, start and end are required")
		return
	}
	rows, err := h.service.TrialBalance(r.Context(), unit, start, end)
	if err != nil {
		h.respondError(w, r, "trial balance", err)
		return
	}
	out := make([]trialBalanceResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, trialBalanceResponse{
			AccountCode: row.AccountCode,
			Debit:       row.Debit.StringFixed(2),
			Credit:      row.Credit.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrMappingNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

type lineResponse struct {
	VoucherNo    string `json:"voucher_no"`
	LineSeq      int    `json:"line_seq"`
	BusinessUnit string `json:"business_unit"`
	PostingDate  string `json:"posting_date"`
	PostingTime  string `json:"posting_time"`
	AccountCode  string `json:"account_code"`
	Side         string `json:"side"`
	Amount       string `json:"amount"`
	Memo         string `json:"memo"`
	Reference    string `json:"reference"`
	PreparedBy   string `json:"prepared_by"`
	Voided       bool   `json:"voided"`
}

type trialBalanceResponse struct {
	AccountCode string `json:"account_code"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

func toLineResponses(lines []Line) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineResponse{
			VoucherNo:    line.VoucherNo,
			LineSeq:      line.LineSeq,
			BusinessUnit: line.BusinessUnit,
			PostingDate:  line.PostingDate,
			PostingTime:  line.PostingTime,
			AccountCode:  line.AccountCode,
			Side:         string(line.Side),
			Amount:       line.Amount.StringFixed(2),
			Memo:         line.Memo,
			Reference:    line.Reference,
			PreparedBy:   line.PreparedBy,
			Voided:       line.Voided,
		})
	}
	return out
}
