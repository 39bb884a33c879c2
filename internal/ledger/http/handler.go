// Package http exposes the ledger engine over a thin JSON API. The engine
// owns no rendering; these handlers translate wire requests into domain
// calls and domain results back into plain JSON.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/balance"
	"github.com/meridian-erp/meridian/internal/ledger/chart"
	"github.com/meridian-erp/meridian/internal/ledger/reports"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/platform/httpx"
)

// Handler serves the ledger API.
type Handler struct {
	logger     *slog.Logger
	service    *ledger.Service
	chart      *chart.Service
	calculator *balance.Calculator
	tb         *reports.TrialBalanceBuilder
	bs         *reports.BalanceSheetBuilder
	cache      *cache.ReportCache
	validate   *validator.Validate
	now        func() time.Time

	reportTimeout time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *ledger.Service, chartSvc *chart.Service, calculator *balance.Calculator, tb *reports.TrialBalanceBuilder, bs *reports.BalanceSheetBuilder, reportCache *cache.ReportCache) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		chart:      chartSvc,
		calculator: calculator,
		tb:         tb,
		bs:         bs,
		cache:      reportCache,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// WithReportTimeout caps how long one report build may run. Zero leaves
// the request deadline in charge.
func (h *Handler) WithReportTimeout(d time.Duration) {
	h.reportTimeout = d
}

func (h *Handler) reportContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.reportTimeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), h.reportTimeout)
}

// MountRoutes attaches ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/entries", h.CreateEntry)
		r.Get("/entries", h.ListEntries)
		r.Get("/entries/{id}", h.GetEntry)
		r.Post("/entries/{id}/reverse", h.ReverseEntry)

		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Post("/accounts/{id}/attach", h.AttachChild)
		r.Delete("/accounts/{id}", h.DetachAccount)
		r.Get("/accounts/{id}/balance", h.AccountBalance)
		r.Get("/accounts/{id}/running-balance", h.RunningBalance)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/balance-sheet", h.BalanceSheet)
	})
}

// CreateEntry validates and commits a producer transaction.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entry, result, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.logger.Warn("post entry refused", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry, result.Warnings))
}

// ListEntries returns all posted entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		h.logger.Error("list entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry, nil))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// GetEntry returns one entry with its lines.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry, nil))
}

// ReverseEntry posts the reversing correction for an entry.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	var req reverseEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input := ledger.ReverseInput{EntryID: id, ActorID: req.ActorID, Memo: req.Memo}
	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date")
			return
		}
		input.Date = &date
	}
	reversal, err := h.service.ReverseEntry(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal, nil))
}

// ListAccounts returns the chart of accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.chart.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountResponse(account))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// CreateAccount adds a node to the chart.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	account, err := h.chart.Create(r.Context(), chart.CreateInput{
		Code:         req.Code,
		Name:         req.Name,
		Type:         ledger.AccountType(req.Type),
		Category:     req.Category,
		ParentID:     req.ParentID,
		ReportingTag: req.ReportingTag,
		Currency:     req.Currency,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

// AttachChild reparents an account.
func (h *Handler) AttachChild(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req attachChildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.chart.AttachChild(r.Context(), req.ParentID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetachAccount removes a leaf account without posted lines.
func (h *Handler) DetachAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	if err := h.chart.Detach(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccountBalance serves a point-in-time balance.
func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(dateLayout, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
			return
		}
	}
	includeChildren := r.URL.Query().Get("include_children") == "true"
	pb, err := h.calculator.PointBalanceFor(r.Context(), id, asOf, includeChildren)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		AccountID: pb.AccountID,
		AsOf:      pb.AsOf.Format(dateLayout),
		Side:      string(pb.Side),
		Debit:     pb.Debit.StringFixed(ledger.Scale),
		Credit:    pb.Credit.StringFixed(ledger.Scale),
		Balance:   pb.Balance.StringFixed(ledger.Scale),
	})
}

// RunningBalance serves the ordered per-line cumulative sequence.
func (h *Handler) RunningBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from date required as YYYY-MM-DD")
		return
	}
	to := h.now()
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to date")
			return
		}
	}
	running, err := h.calculator.RunningBalanceFor(r.Context(), id, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]runningLineResponse, 0, len(running))
	for _, row := range running {
		out = append(out, runningLineResponse{
			Line: lineResponse{
				ID:          row.Line.ID,
				AccountID:   row.Line.AccountID,
				Debit:       row.Line.Debit.StringFixed(ledger.Scale),
				Credit:      row.Line.Credit.StringFixed(ledger.Scale),
				Date:        row.Line.Date.Format(dateLayout),
				Description: row.Line.Description,
				Reference:   row.Line.Reference,
				SourceTag:   row.Line.SourceTag,
			},
			BalanceAfter: row.BalanceAfter.StringFixed(ledger.Scale),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// TrialBalance serves the full-book trial balance, cached by as-of date.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reportContext(r)
	defer cancel()
	if h.cache != nil {
		var cached reports.TrialBalance
		if err := h.cache.Get(ctx, "tb", asOf, &cached); err == nil {
			httpx.JSON(w, http.StatusOK, reports.NewTrialBalanceViewModel(cached))
			return
		}
	}
	report, err := h.tb.Build(ctx, asOf)
	if err != nil {
		h.logger.Error("build trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, "tb", asOf, report); err != nil {
			h.logger.Warn("report cache set", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, reports.NewTrialBalanceViewModel(report))
}

// BalanceSheet serves the classified balance sheet, cached by as-of date.
func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.reportContext(r)
	defer cancel()
	if h.cache != nil {
		var cached reports.BalanceSheet
		if err := h.cache.Get(ctx, "bs", asOf, &cached); err == nil {
			httpx.JSON(w, http.StatusOK, reports.NewBalanceSheetViewModel(cached))
			return
		}
	}
	report, err := h.bs.Build(ctx, asOf)
	if err != nil {
		h.logger.Error("build balance sheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, "bs", asOf, report); err != nil {
			h.logger.Warn("report cache set", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, reports.NewBalanceSheetViewModel(report))
}

func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
			return time.Time{}, false
		}
		asOf = parsed
	}
	return asOf, true
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
