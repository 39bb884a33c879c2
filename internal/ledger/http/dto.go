package http

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// dateLayout is the wire format for all dates.
const dateLayout = "2006-01-02"

type postLineRequest struct {
	AccountID   int64  `json:"account_id" validate:"required"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	SourceTag   string `json:"source_tag"`
}

type postEntryRequest struct {
	CompanyID    int64             `json:"company_id"`
	PreparedDate string            `json:"prepared_date"`
	PostedDate   string            `json:"posted_date"`
	Memo         string            `json:"memo"`
	SourceModule string            `json:"source_module" validate:"required"`
	SourceID     string            `json:"source_id" validate:"required,uuid"`
	PostedBy     int64             `json:"posted_by"`
	Lines        []postLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (req postEntryRequest) toInput() (ledger.PostingInput, error) {
	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		return ledger.PostingInput{}, fmt.Errorf("source_id: %w", err)
	}
	input := ledger.PostingInput{
		CompanyID:    req.CompanyID,
		Memo:         req.Memo,
		SourceModule: req.SourceModule,
		SourceID:     sourceID,
		PostedBy:     req.PostedBy,
	}
	if input.PreparedDate, err = parseDate(req.PreparedDate); err != nil {
		return ledger.PostingInput{}, fmt.Errorf("prepared_date: %w", err)
	}
	if input.PostedDate, err = parseDate(req.PostedDate); err != nil {
		return ledger.PostingInput{}, fmt.Errorf("posted_date: %w", err)
	}
	for idx, line := range req.Lines {
		in := ledger.PostingLineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Reference:   line.Reference,
			SourceTag:   line.SourceTag,
		}
		if in.Debit, err = parseAmount(line.Debit); err != nil {
			return ledger.PostingInput{}, fmt.Errorf("line %d debit: %w", idx, err)
		}
		if in.Credit, err = parseAmount(line.Credit); err != nil {
			return ledger.PostingInput{}, fmt.Errorf("line %d credit: %w", idx, err)
		}
		if in.Date, err = parseDate(line.Date); err != nil {
			return ledger.PostingInput{}, fmt.Errorf("line %d date: %w", idx, err)
		}
		input.Lines = append(input.Lines, in)
	}
	return input, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type createAccountRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Category     string `json:"category"`
	ParentID     *int64 `json:"parent_id"`
	ReportingTag string `json:"reporting_tag"`
	Currency     string `json:"currency"`
}

type attachChildRequest struct {
	ParentID int64 `json:"parent_id" validate:"required"`
}

type reverseEntryRequest struct {
	ActorID int64  `json:"actor_id"`
	Memo    string `json:"memo"`
	Date    string `json:"date"`
}

type lineResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	SourceTag   string `json:"source_tag,omitempty"`
}

type entryResponse struct {
	ID           int64          `json:"id"`
	Number       int64          `json:"number"`
	CompanyID    int64          `json:"company_id"`
	PreparedDate string         `json:"prepared_date"`
	PostedDate   string         `json:"posted_date"`
	Memo         string         `json:"memo,omitempty"`
	SourceModule string         `json:"source_module"`
	SourceID     string         `json:"source_id"`
	Status       string         `json:"status"`
	Lines        []lineResponse `json:"lines,omitempty"`
	Warnings     []issuePayload `json:"warnings,omitempty"`
}

type issuePayload struct {
	Code    string `json:"code"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func toEntryResponse(entry ledger.Entry, warnings []ledger.Issue) entryResponse {
	resp := entryResponse{
		ID:           entry.ID,
		Number:       entry.Number,
		CompanyID:    entry.CompanyID,
		PreparedDate: entry.PreparedDate.Format(dateLayout),
		PostedDate:   entry.PostedDate.Format(dateLayout),
		Memo:         entry.Memo,
		SourceModule: entry.SourceModule,
		SourceID:     entry.SourceID.String(),
		Status:       string(entry.Status),
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          line.ID,
			AccountID:   line.AccountID,
			Debit:       line.Debit.StringFixed(ledger.Scale),
			Credit:      line.Credit.StringFixed(ledger.Scale),
			Date:        line.Date.Format(dateLayout),
			Description: line.Description,
			Reference:   line.Reference,
			SourceTag:   line.SourceTag,
		})
	}
	for _, warning := range warnings {
		resp.Warnings = append(resp.Warnings, issuePayload{Code: warning.Code, Line: warning.Line, Message: warning.Message})
	}
	return resp
}

type accountResponse struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Category     string `json:"category,omitempty"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	IsParent     bool   `json:"is_parent"`
	ReportingTag string `json:"reporting_tag,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Balance      string `json:"balance"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		Type:         string(a.Type),
		Category:     a.Category,
		ParentID:     a.ParentID,
		IsParent:     a.IsParent,
		ReportingTag: a.ReportingTag,
		Currency:     a.Currency,
		Balance:      a.Balance.StringFixed(ledger.Scale),
	}
}

type balanceResponse struct {
	AccountID int64  `json:"account_id"`
	AsOf      string `json:"as_of"`
	Side      string `json:"side"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Balance   string `json:"balance"`
}

type runningLineResponse struct {
	Line         lineResponse `json:"line"`
	BalanceAfter string       `json:"balance_after"`
}
