package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/services"
)

const maxBodyBytes = 64 << 10

// errBadRequestBody marks a malformed JSON body.
var errBadRequestBody = errors.New("malformed request body")

// ParseListRequest reads listing parameters from the query string. Bad
// numbers fall back to defaults; ids that are absent, non-numeric or not
// positive mean no filter.
func ParseListRequest(q url.Values) services.ListRequest {
	return services.ListRequest{
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		AccountID:  parseOptionalID(q.Get("accountId")),
		CategoryID: parseOptionalID(q.Get("categoryId")),
		Search:     strings.TrimSpace(q.Get("search")),
		Sort:       strings.TrimSpace(q.Get("orderBy")),
		Page:       parseInt(q.Get("page"), 1),
		PageSize:   parseInt(q.Get("pageSize"), 0),
	}
}

func ParseReportRequest(q url.Values) services.ReportRequest {
	return services.ReportRequest{
		From:      strings.TrimSpace(q.Get("from")),
		To:        strings.TrimSpace(q.Get("to")),
		AccountID: parseOptionalID(q.Get("accountId")),
	}
}

type insightBody struct {
	From       string `json:"from"`
	To         string `json:"to"`
	AccountID  *int64 `json:"accountId"`
	CategoryID *int64 `json:"categoryId"`
}

// ParseInsightRequest decodes the JSON body. An empty body asks for the
// default window over all accounts.
func ParseInsightRequest(r *http.Request) (services.InsightRequest, error) {
	var body insightBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return services.InsightRequest{}, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return services.InsightRequest{
		From:       strings.TrimSpace(body.From),
		To:         strings.TrimSpace(body.To),
		AccountID:  body.AccountID,
		CategoryID: body.CategoryID,
	}, nil
}

func parseOptionalID(v string) *int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func parseInt(v string, def int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
