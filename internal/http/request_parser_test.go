package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseOptionalID(t *testing.T) {
	tests := []struct {
		in   string
		want int64 // 0 means nil
	}{
		{"", 0},
		{"7", 7},
		{" 12 ", 12},
		{"0", 0},
		{"-3", 0},
		{"abc", 0},
		{"1.5", 0},
	}
	for _, tt := range tests {
		got := parseOptionalID(tt.in)
		switch {
		case tt.want == 0 && got != nil:
			t.Errorf("parseOptionalID(%q) = %d, want nil", tt.in, *got)
		case tt.want != 0 && (got == nil || *got != tt.want):
			t.Errorf("parseOptionalID(%q) = %v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseListRequest(t *testing.T) {
	q := url.Values{
		"from":       {"2024-01-01"},
		"to":         {" 2024-01-31 "},
		"accountId":  {"2"},
		"categoryId": {"zero"},
		"search":     {"  coffee "},
		"orderBy":    {"amountDesc"},
		"page":       {"3"},
		"pageSize":   {"x"},
	}

	req := ParseListRequest(q)
	if req.From != "2024-01-01" || req.To != "2024-01-31" {
		t.Errorf("dates = %q..%q", req.From, req.To)
	}
	if req.AccountID == nil || *req.AccountID != 2 {
		t.Errorf("AccountID = %v, want 2", req.AccountID)
	}
	if req.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil", *req.CategoryID)
	}
	if req.Search != "coffee" || req.Sort != "amountDesc" {
		t.Errorf("Search=%q Sort=%q", req.Search, req.Sort)
	}
	if req.Page != 3 || req.PageSize != 0 {
		t.Errorf("Page=%d PageSize=%d", req.Page, req.PageSize)
	}

	empty := ParseListRequest(url.Values{})
	if empty.Page != 1 {
		t.Errorf("default page = %d, want 1", empty.Page)
	}
}

func TestParseReportRequest(t *testing.T) {
	req := ParseReportRequest(url.Values{"from": {"2024-02-01"}, "accountId": {"-1"}})
	if req.From != "2024-02-01" || req.To != "" {
		t.Errorf("got %+v", req)
	}
	if req.AccountID != nil {
		t.Error("non-positive account must mean no filter")
	}
}

func TestParseInsightRequest(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantAccount int64
	}{
		{name: "empty body", body: ""},
		{name: "full body", body: `{"from":"2024-01-01","to":"2024-01-31","accountId":3,"categoryId":null}`, wantAccount: 3},
		{name: "malformed", body: `{"from":`, wantErr: true},
		{name: "wrong type", body: `{"accountId":"three"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(tt.body))
			req, err := ParseInsightRequest(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantAccount != 0 && (req.AccountID == nil || *req.AccountID != tt.wantAccount) {
				t.Errorf("AccountID = %v, want %d", req.AccountID, tt.wantAccount)
			}
			if req.CategoryID != nil {
				t.Errorf("CategoryID = %v, want nil", *req.CategoryID)
			}
		})
	}
}
