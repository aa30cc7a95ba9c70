package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/config"
	"github.com/iliyamo/study-room-booking/internal/logging"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, uid uint64, role model.Role, status model.AccountStatus) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, string(role), string(status), time.Minute, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok.Token
}

func serve(h echo.HandlerFunc, auth string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/x", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	var gotID uint64
	var gotRole model.Role
	h := func(c echo.Context) error {
		gotID, _ = UserID(c)
		gotRole = Role(c)
		return c.NoContent(http.StatusNoContent)
	}

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"pending account", "Bearer " + token(t, 7, model.RoleStudent, model.AccountPending), http.StatusForbidden},
		{"approved account", "Bearer " + token(t, 7, model.RoleStudent, model.AccountApproved), http.StatusNoContent},
	}
	for _, tt := range tests {
		rec := serve(h, tt.auth, JWTAuth(secret))
		if rec.Code != tt.status {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.status)
		}
		if tt.status != http.StatusNoContent && !strings.Contains(rec.Body.String(), `"code"`) {
			t.Fatalf("%s: body %s lacks code", tt.name, rec.Body.String())
		}
	}
	if gotID != 7 || gotRole != model.RoleStudent {
		t.Fatalf("identity = %d/%s", gotID, gotRole)
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	student := "Bearer " + token(t, 1, model.RoleStudent, model.AccountApproved)
	admin := "Bearer " + token(t, 2, model.RoleAdmin, model.AccountApproved)

	if rec := serve(ok, student, JWTAuth(secret), RequireRole(model.RoleAdmin)); rec.Code != http.StatusForbidden {
		t.Fatalf("student on admin route: %d", rec.Code)
	}
	if rec := serve(ok, admin, JWTAuth(secret), RequireRole(model.RoleAdmin)); rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route: %d", rec.Code)
	}
}

func TestDisabledLayersPassThrough(t *testing.T) {
	t.Parallel()

	ok := func(c echo.Context) error { return c.String(http.StatusOK, "rooms") }
	rl := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, logging.Discard())
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil, logging.Discard())

	rec := serve(ok, "", rl, rc.Middleware())
	if rec.Code != http.StatusOK || rec.Body.String() != "rooms" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Cache") != "" {
		t.Fatal("cache header set while cache is off")
	}
	if err := rc.Invalidate(t.Context()); err != nil {
		t.Fatalf("invalidate with cache off: %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`[{"name":"Alpha"}]`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `[{"name":"Alpha"}]` {
		t.Fatalf("decode = %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("truncated payload decoded")
	}
}
