package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func serve(t *testing.T, secret, method, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Any("/jobs/:name", func(c echo.Context) error {
		return c.String(http.StatusOK, "ran")
	}, RequirePOST(), CronSecret(secret))

	req := httptest.NewRequest(method, "/jobs/ingest-bars", nil)
	if header != "" {
		req.Header.Set(CronSecretHeader, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequirePOST(t *testing.T) {
	rec := serve(t, "", http.MethodGet, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"Method not allowed"`) || !strings.Contains(rec.Body.String(), `"ok":false`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestMethodCheckedBeforeSecret(t *testing.T) {
	rec := serve(t, "s3cret", http.MethodPut, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT without secret status = %d, want 405", rec.Code)
	}
}

func TestCronSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusOK},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"wrong", "s3cret", "nope", http.StatusUnauthorized},
		{"match", "s3cret", "s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		rec := serve(t, tc.secret, http.MethodPost, tc.header)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
		if tc.want == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "Unauthorized") {
			t.Fatalf("%s: body %s", tc.name, rec.Body.String())
		}
	}
}
