package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string        `json:"type,omitempty"`
	Title  string        `json:"title"`
	Status int           `json:"status"`
	Detail string        `json:"detail,omitempty"`
	Issues []IssueDetail `json:"issues,omitempty"`
}

// IssueDetail is the wire form of a validation finding.
type IssueDetail struct {
	Code    string `json:"code"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ValidationProblem sends a 422 carrying every validator finding, so a
// producer sees all problems in one round trip.
func ValidationProblem(w http.ResponseWriter, result ledger.Result) {
	detail := ProblemDetail{
		Title:  "Entry Rejected",
		Status: http.StatusUnprocessableEntity,
		Detail: "entry failed double-entry validation",
		Issues: Issues(result.Errors),
	}
	JSON(w, http.StatusUnprocessableEntity, detail)
}

// Issues converts validator findings to their wire form.
func Issues(src []ledger.Issue) []IssueDetail {
	out := make([]IssueDetail, 0, len(src))
	for _, issue := range src {
		out = append(out, IssueDetail{Code: issue.Code, Line: issue.Line, Message: issue.Message})
	}
	return out
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
