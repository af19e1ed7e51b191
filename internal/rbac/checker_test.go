package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"viewer", PermQuestionView, true},
		{"viewer", PermReportWrite, true},
		{"viewer", PermAnnotationImport, false},
		{"viewer", PermReportClear, false},
		{"editor", PermReportClear, true},
		{"editor", PermAnnotationImport, true},
		{"editor", PermExportRun, false},
		{"admin", PermExportRun, true},
		{"admin", "anything:else", true},
		{"", PermQuestionView, false},
		{"student", PermQuestionView, false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !c.Any("viewer", PermExportRun, PermQuestionView) {
		t.Error("Any should match the second permission")
	}
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(PermExportRun)(ok)

	for role, code := range map[string]int{"": http.StatusForbidden, "editor": http.StatusForbidden, "admin": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/api/build/web", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != code {
			t.Errorf("role %q: code = %d, want %d", role, rr.Code, code)
		}
	}
}
