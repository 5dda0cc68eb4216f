package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

	want := map[string]string{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Cache-Control":           "no-store",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector(nil, "203.0.113.0/24")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct client", "198.51.100.7:5555", nil, "198.51.100.7"},
		{"untrusted peer ignores forwarded", "198.51.100.7:5555", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "198.51.100.7"},
		{"trusted private proxy", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.2"}, "1.1.1.1"},
		{"extra trusted proxy", "203.0.113.9:80", map[string]string{"X-Real-IP": "8.8.8.8"}, "8.8.8.8"},
		{"malformed forwarded falls back", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "nonsense"}, "10.0.0.2"},
		{"no port", "198.51.100.7", nil, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Errorf("InvalidIPAttempts = %d, want 1", d.GetMetrics().InvalidIPAttempts)
	}
}

func TestNewDetector_BadCIDR(t *testing.T) {
	if _, err := NewDetector(nil, "not-a-cidr"); err == nil {
		t.Fatal("expected error for bad CIDR")
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d, _ := NewDetector(nil)
	reached := 0
	handler := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached++
	}))

	tests := []struct {
		name       string
		method     string
		target     string
		userAgent  string
		wantStatus int
		suspicious bool
	}{
		{"normal", http.MethodGet, "/api/v1/transactions?search=coffee", "", http.StatusOK, false},
		{"path traversal is logged", http.MethodGet, "/api/v1/../../etc/passwd", "", http.StatusOK, true},
		{"scanner agent", http.MethodGet, "/healthz", "sqlmap/1.7", http.StatusOK, true},
		{"trace rejected", "TRACE", "/", "", http.StatusMethodNotAllowed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := d.GetMetrics().SuspiciousRequests
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			flagged := d.GetMetrics().SuspiciousRequests > before
			if flagged != tt.suspicious {
				t.Errorf("flagged = %v, want %v", flagged, tt.suspicious)
			}
		})
	}
	if reached != 3 {
		t.Errorf("handler reached %d times, want 3", reached)
	}
}
