package resources

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssets_ContainsStylesheet(t *testing.T) {
	if _, err := fs.Stat(Assets(), "css/app.css"); err != nil {
		t.Fatalf("css/app.css missing: %v", err)
	}
}

func TestAssetsHandler_StripsPrefix(t *testing.T) {
	h := AssetsHandler("/assets")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/app.css", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/css") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestAssetsHandler_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	AssetsHandler("/assets").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/css/missing.css", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
