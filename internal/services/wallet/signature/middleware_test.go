package signature

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

func writeTestError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperrors.CodeOf(err).HTTPStatus())
}

func TestMiddleware(t *testing.T) {
	body := `{"id":"evt_1"}`
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen = string(data)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		enforce bool
		header  string
		status  int
	}{
		{name: "valid", enforce: true, header: "sha256=" + sign(body), status: http.StatusNoContent},
		{name: "invalid enforced", enforce: true, header: "sha256=" + sign("other"), status: http.StatusUnauthorized},
		{name: "unsigned enforced", enforce: true, status: http.StatusUnauthorized},
		{name: "invalid not enforced", enforce: false, header: "sha256=" + sign("other"), status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			handler := Middleware(newVerifier(tt.enforce), writeTestError)(next)
			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/partner", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set(HeaderSignature, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusNoContent && seen != body {
				t.Fatalf("next handler saw body %q", seen)
			}
		})
	}
}

func TestMiddlewareRejectsOversizedBody(t *testing.T) {
	handler := Middleware(newVerifier(false), writeTestError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/partner", strings.NewReader(strings.Repeat("a", MaxBodyBytes+1)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
