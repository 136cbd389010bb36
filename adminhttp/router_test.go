package adminhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/verifier"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubDirectory struct {
	mu     sync.Mutex
	admins map[string]*verifier.AdminAccount
}

func (d *stubDirectory) GetAdminByID(_ context.Context, id string) (*verifier.AdminAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.admins[id]
	if !ok {
		return nil, verifier.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

type fixture struct {
	engine *adminauth.Engine
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := &stubDirectory{admins: map[string]*verifier.AdminAccount{
		"root":    {ID: "root", Email: "root@market.test", Role: "SUPER_ADMIN", Active: true},
		"admin-1": {ID: "admin-1", Email: "ops@market.test", Role: "ADMIN", Active: true},
		"sup-1":   {ID: "sup-1", Email: "sup@market.test", Role: "SUPPORT", Active: true},
	}}

	cfg := adminauth.DefaultConfig()
	cfg.Secret.Seed = "router-test-seed-0123456789"
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false
	cfg.LastSeen.Enabled = false

	engine, err := adminauth.New().WithConfig(cfg).WithRedis(rdb).WithDirectory(dir).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	srv := httptest.NewServer(NewRouter(engine))
	t.Cleanup(srv.Close)
	return &fixture{engine: engine, server: srv}
}

func (f *fixture) tokens(t *testing.T, adminID string) *adminauth.TokenPair {
	t.Helper()
	pair, err := f.engine.IssueTokens(context.Background(), adminID)
	if err != nil {
		t.Fatalf("IssueTokens(%s): %v", adminID, err)
	}
	return pair
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestSecurityRoutesRequireAuthentication(t *testing.T) {
	f := newFixture(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/security/status"},
		{http.MethodGet, "/security/permissions"},
		{http.MethodPost, "/security/rotate"},
		{http.MethodPost, "/security/blacklist"},
		{http.MethodPost, "/security/cleanup-blacklist"},
		{http.MethodPost, "/auth/logout"},
	} {
		res := f.do(t, route.method, route.path, "", nil)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, res.StatusCode)
		}
	}
}

func TestStatusRequiresSecurityRead(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/security/status", f.tokens(t, "sup-1").AccessToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for support, got %d", res.StatusCode)
	}

	res = f.do(t, http.MethodGet, "/security/status", f.tokens(t, "admin-1").AccessToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", res.StatusCode)
	}
	st := decode[StatusResponse](t, res)
	if st.Version != 1 || st.HasPreviousSecret {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.RotationIntervalMs != (24 * time.Hour).Milliseconds() {
		t.Fatalf("unexpected interval %d", st.RotationIntervalMs)
	}
	if !st.NextRotation.Equal(st.LastRotation.Add(24 * time.Hour)) {
		t.Fatalf("next rotation %v is not last rotation %v plus interval", st.NextRotation, st.LastRotation)
	}
}

func TestRotateIsSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	adminToken := f.tokens(t, "admin-1").AccessToken

	res := f.do(t, http.MethodPost, "/security/rotate", adminToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for admin, got %d", res.StatusCode)
	}

	res = f.do(t, http.MethodPost, "/security/rotate", f.tokens(t, "root").AccessToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for super admin, got %d", res.StatusCode)
	}
	rec := decode[RotateResponse](t, res)
	if rec.Version != 2 || rec.RotationID == "" {
		t.Fatalf("unexpected rotation %+v", rec)
	}

	// Signed before the rotation: still accepted, flagged for refresh.
	res = f.do(t, http.MethodGet, "/security/status", adminToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 under previous secret, got %d", res.StatusCode)
	}
	if res.Header.Get("X-Token-Rotation-Required") != "true" {
		t.Fatalf("expected rotation header, got %q", res.Header.Get("X-Token-Rotation-Required"))
	}
	if st := decode[StatusResponse](t, res); !st.HasPreviousSecret || st.Version != 2 {
		t.Fatalf("unexpected status after rotation %+v", st)
	}
}

func TestRotateRejectsWrongMethod(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/security/rotate", f.tokens(t, "root").AccessToken, nil)
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.StatusCode)
	}
}

func TestBlacklistRevokesToken(t *testing.T) {
	f := newFixture(t)
	root := f.tokens(t, "root").AccessToken
	victim := f.tokens(t, "admin-1").AccessToken

	res := f.do(t, http.MethodPost, "/security/blacklist", f.tokens(t, "admin-1").AccessToken, BlacklistRequest{Token: victim})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without security:write, got %d", res.StatusCode)
	}

	res = f.do(t, http.MethodPost, "/security/blacklist", root, BlacklistRequest{Token: victim})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	entry := decode[BlacklistResponse](t, res)
	if !entry.Stored || entry.Fingerprint == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	res = f.do(t, http.MethodGet, "/security/status", victim, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", res.StatusCode)
	}

	res = f.do(t, http.MethodGet, "/security/status", root, nil)
	if st := decode[StatusResponse](t, res); st.BlacklistedCount != 1 {
		t.Fatalf("expected 1 blacklisted entry, got %d", st.BlacklistedCount)
	}
}

func TestBlacklistRejectsBadBody(t *testing.T) {
	f := newFixture(t)
	root := f.tokens(t, "root").AccessToken

	for _, body := range []any{
		BlacklistRequest{},
		map[string]string{"jwt": "x"},
	} {
		res := f.do(t, http.MethodPost, "/security/blacklist", root, body)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, res.StatusCode)
		}
	}
}

func TestCleanupBlacklist(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/security/cleanup-blacklist", f.tokens(t, "root").AccessToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if out := decode[CleanupResponse](t, res); out.Removed != 0 {
		t.Fatalf("expected nothing removed, got %d", out.Removed)
	}
}

func TestPermissionMatrix(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/security/permissions", f.tokens(t, "admin-1").AccessToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var m struct {
		SuperAdminRole string `json:"superAdminRole"`
		Roles          []struct {
			Role string `json:"role"`
		} `json:"roles"`
	}
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.SuperAdminRole != "SUPER_ADMIN" || len(m.Roles) == 0 {
		t.Fatalf("unexpected matrix %+v", m)
	}
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	f := newFixture(t)
	pair := f.tokens(t, "admin-1")

	res := f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	next := decode[adminauth.TokenPair](t, res)
	if next.AccessToken == "" || next.RefreshToken == "" || next.TokenType != "Bearer" {
		t.Fatalf("unexpected pair %+v", next)
	}

	res = f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", res.StatusCode)
	}

	res = f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: pair.AccessToken})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected access token to be rejected as refresh, got %d", res.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	token := f.tokens(t, "admin-1").AccessToken

	res := f.do(t, http.MethodPost, "/auth/logout", token, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.StatusCode)
	}
	res = f.do(t, http.MethodGet, "/security/status", token, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected logged out token to be rejected, got %d", res.StatusCode)
	}
}

func TestRefreshWithPaddedTokenSpendsIt(t *testing.T) {
	f := newFixture(t)
	pair := f.tokens(t, "admin-1")

	res := f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken + "\n"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	res = f.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: pair.RefreshToken})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected spent refresh token to be rejected, got %d", res.StatusCode)
	}
}
