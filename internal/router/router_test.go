// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/proxypanel/internal/httpclient"
	"github.com/tomtom215/proxypanel/internal/middleware"
	"github.com/tomtom215/proxypanel/internal/panel"
	"github.com/tomtom215/proxypanel/internal/session"
	"github.com/tomtom215/proxypanel/internal/store"
	"github.com/tomtom215/proxypanel/internal/tokenstore"
	"github.com/tomtom215/proxypanel/internal/views"
)

type cannedResponse struct {
	status  int
	body    string
	headers map[string]string
}

type panelRequest struct {
	contentType string
	auth        string
	body        string
}

// fakePanel answers "METHOD path" with a canned response and records the
// requests it saw.
type fakePanel struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	seen      []string
	requests  map[string][]panelRequest
}

func (f *fakePanel) on(method, path string, status int, body string) {
	f.onWithHeaders(method, path, status, body, nil)
}

func (f *fakePanel) onWithHeaders(method, path string, status int, body string, headers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = cannedResponse{status: status, body: body, headers: headers}
}

func (f *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.seen = append(f.seen, key)
	f.requests[key] = append(f.requests[key], panelRequest{
		contentType: r.Header.Get("Content-Type"),
		auth:        r.Header.Get("Authorization"),
		body:        string(body),
	})
	resp, ok := f.responses[key]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	for k, v := range resp.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (f *fakePanel) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[key]) > 0
}

// last returns the most recent request sent to key.
func (f *fakePanel) last(t *testing.T, key string) panelRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[key]
	if len(reqs) == 0 {
		t.Fatalf("%s was never requested", key)
	}
	return reqs[len(reqs)-1]
}

func (f *fakePanel) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type testEnv struct {
	panel   *fakePanel
	handler http.Handler
	backend tokenstore.Backend
	admins  *store.AdminSessions
	portals *store.PortalSessions
}

func newTestEnv(t *testing.T, withPortal bool) *testEnv {
	t.Helper()

	fp := &fakePanel{
		responses: make(map[string]cannedResponse),
		requests:  make(map[string][]panelRequest),
	}
	server := httptest.NewServer(fp)
	t.Cleanup(server.Close)

	backend := tokenstore.NewMemoryBackend()
	clientConfig := func(actor string) httpclient.Config {
		return httpclient.Config{BaseURL: server.URL, Timeout: 5 * time.Second, Actor: actor}
	}

	admins, err := store.NewAdminSessions(store.AdminSessionsConfig{
		Backend:   backend,
		Logs:      store.NewLogBuffer(100),
		Dashboard: store.DashboardOptions{PageSize: 20},
	}, func(tokens httpclient.TokenSource, onUnauthorized func(ctx context.Context)) store.AdminAPI {
		return panel.NewAdmin(httpclient.New(clientConfig(tokenstore.ActorAdmin), tokens,
			httpclient.WithUnauthorizedHandler(onUnauthorized)))
	})
	if err != nil {
		t.Fatalf("NewAdminSessions() error = %v", err)
	}
	t.Cleanup(admins.Close)
	env := &testEnv{panel: fp, backend: backend, admins: admins}

	stores := Stores{Admin: admins}
	if withPortal {
		portals, err := store.NewPortalSessions(store.PortalSessionsConfig{Backend: backend},
			func(tokens httpclient.TokenSource, onUnauthorized func(ctx context.Context)) store.PortalAPI {
				return panel.NewPortal(httpclient.New(clientConfig(tokenstore.ActorClient), tokens,
					httpclient.WithUnauthorizedHandler(onUnauthorized)))
			})
		if err != nil {
			t.Fatalf("NewPortalSessions() error = %v", err)
		}
		t.Cleanup(portals.Close)
		stores.Portal = portals
		env.portals = portals
	}

	engine, err := views.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	mw := middleware.DefaultChiConfig()
	mw.LoginRateLimit = 0
	env.handler = New(Config{Middleware: mw}, stores, engine).Handler()
	return env
}

// browser keeps the cookies the server sets, like a real browser, and fills
// in the CSRF form field from the CSRF cookie.
type browser struct {
	env     *testEnv
	cookies map[string]string
}

func (e *testEnv) browser() *browser {
	return &browser{env: e, cookies: make(map[string]string)}
}

// do sends a request. Forms get the CSRF token, fetched from the sign-in page
// first when the browser has none yet.
func (b *browser) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if method == http.MethodPost {
		if b.cookies["_csrf"] == "" {
			b.send(t, http.MethodGet, "/login", nil)
		}
		signed := url.Values{}
		for k, v := range form {
			signed[k] = v
		}
		signed.Set("csrf_token", b.cookies["_csrf"])
		form = signed
	}
	return b.send(t, method, target, form)
}

// send issues the request exactly as given.
func (b *browser) send(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	b.env.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return rec
}

// do sends one request from a fresh browser with no cookies.
func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return e.browser().do(t, method, target, form)
}

func (e *testEnv) adminToken(id string) string {
	return tokenstore.Admin(tokenstore.Scoped(e.backend, id)).Token(context.Background())
}

func (e *testEnv) portalToken(id string) string {
	return tokenstore.ClientPortal(tokenstore.Scoped(e.backend, id)).Token(context.Background())
}

// withAdminToken returns a browser whose session already holds token.
func (e *testEnv) withAdminToken(t *testing.T, token string) (*browser, string) {
	t.Helper()
	id := uuid.New().String()
	if err := tokenstore.Admin(tokenstore.Scoped(e.backend, id)).Set(context.Background(), token); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	b := e.browser()
	b.cookies[session.AdminCookieName] = id
	return b, id
}

// signIn returns a browser with a valid admin session.
func (e *testEnv) signIn(t *testing.T) *browser {
	t.Helper()
	e.panel.on(http.MethodGet, "/admin", http.StatusOK, `{"username":"root","is_sudo":true}`)
	b, _ := e.withAdminToken(t, "admin-tok")
	return b
}

// sessionOf returns the stores behind the browser's admin cookie.
func (e *testEnv) sessionOf(t *testing.T, b *browser) *store.AdminStores {
	t.Helper()
	st, ok := e.admins.Lookup(b.cookies[session.AdminCookieName])
	if !ok {
		t.Fatal("browser has no admin session")
	}
	return st
}

const usersBody = `{"users":[{"account_number":"u1","status":"active","data_limit":0,"used_traffic":0,"expire":null,"data_limit_reset_strategy":"no_reset","proxies":{},"inbounds":{},"subscription_url":"https://sub/u1"}],"total":1}`

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodGet, "/healthz", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("metrics output missing http_requests_total")
	}
}

func TestLoader_NoSessionRendersLogin(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "" {
		t.Errorf("Location = %q, want no redirect", loc)
	}
	if !strings.Contains(rec.Body.String(), `action="/login"`) {
		t.Error("body is not the sign-in page")
	}
	if n := env.panel.requestCount(); n != 0 {
		t.Errorf("panel received %d requests without a token", n)
	}
	if n := env.admins.Len(); n != 0 {
		t.Errorf("anonymous visit created %d sessions", n)
	}
}

func TestLoader_UnknownSessionCookie(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser()
	b.cookies[session.AdminCookieName] = uuid.New().String()

	if rec := b.do(t, http.MethodGet, "/", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if n := env.panel.requestCount(); n != 0 {
		t.Errorf("panel received %d requests for a session without a token", n)
	}
	if n := env.admins.Len(); n != 0 {
		t.Errorf("sessions kept = %d, want 0", n)
	}
}

func TestLoader_RejectedTokenRendersLogin(t *testing.T) {
	env := newTestEnv(t, false)
	b, id := env.withAdminToken(t, "stale")
	env.panel.on(http.MethodGet, "/admin", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)

	rec := b.do(t, http.MethodGet, "/nodes", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Your session has expired") {
		t.Error("expired session notice missing")
	}
	if got := env.panel.last(t, "GET /admin").auth; got != "Bearer stale" {
		t.Errorf("Authorization = %q", got)
	}
	if tok := env.adminToken(id); tok != "" {
		t.Errorf("token = %q after rejection, want removed", tok)
	}
}

func TestLogin(t *testing.T) {
	t.Run("success persists token and redirects", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.panel.on(http.MethodPost, "/admin/token", http.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
		env.panel.on(http.MethodGet, "/admin", http.StatusOK, `{"username":"root"}`)

		b := env.browser()
		rec := b.do(t, http.MethodPost, "/login", url.Values{"username": {"root"}, "password": {"secret"}})
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/" {
			t.Errorf("Location = %q, want /", loc)
		}
		id := b.cookies[session.AdminCookieName]
		if id == "" {
			t.Fatal("no session cookie issued")
		}
		if tok := env.adminToken(id); tok != "tok-1" {
			t.Errorf("token = %q, want tok-1", tok)
		}
		if req := env.panel.last(t, "POST /admin/token"); !strings.HasPrefix(req.contentType, "application/x-www-form-urlencoded") {
			t.Errorf("login Content-Type = %q", req.contentType)
		}
	})

	t.Run("failure shows detail without redirect", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.panel.on(http.MethodPost, "/admin/token", http.StatusUnauthorized, `{"detail":"Incorrect username or password"}`)

		b := env.browser()
		rec := b.do(t, http.MethodPost, "/login", url.Values{"username": {"root"}, "password": {"wrong"}})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if rec.Header().Get("Location") != "" {
			t.Error("failed login must not redirect")
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Incorrect username or password") {
			t.Error("panel detail not shown")
		}
		if !strings.Contains(body, `value="root"`) {
			t.Error("username not kept in the form")
		}
		if _, ok := env.admins.Lookup(b.cookies[session.AdminCookieName]); ok {
			t.Error("failed login kept its session")
		}
	})

	t.Run("signing in again rotates the session", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.panel.on(http.MethodPost, "/admin/token", http.StatusOK, `{"access_token":"tok-2","token_type":"bearer"}`)
		b, old := env.withAdminToken(t, "tok-1")

		if rec := b.do(t, http.MethodPost, "/login", url.Values{"username": {"root"}, "password": {"secret"}}); rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		id := b.cookies[session.AdminCookieName]
		if id == old {
			t.Fatal("session id kept across sign-in")
		}
		if tok := env.adminToken(id); tok != "tok-2" {
			t.Errorf("new session token = %q", tok)
		}
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	id := b.cookies[session.AdminCookieName]

	rec := b.do(t, http.MethodPost, "/logout", url.Values{})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("POST /logout = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if tok := env.adminToken(id); tok != "" {
		t.Errorf("token = %q after logout", tok)
	}
	if _, ok := b.cookies[session.AdminCookieName]; ok {
		t.Error("session cookie not cleared")
	}
}

func TestSessions_IsolatedPerBrowser(t *testing.T) {
	env := newTestEnv(t, true)
	fp := env.panel
	fp.on(http.MethodPost, "/admin/token", http.StatusOK, `{"access_token":"tok-a","token_type":"bearer"}`)
	fp.on(http.MethodGet, "/admin", http.StatusOK, `{"username":"root"}`)
	fp.on(http.MethodGet, "/users", http.StatusOK, usersBody)
	fp.on(http.MethodGet, "/system", http.StatusOK, `{"version":"1.0","total_user":1}`)
	fp.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"client-tok","token_type":"bearer"}`)
	fp.on(http.MethodGet, "/client-portal/account", http.StatusOK, `{"account_number":"abc123","status":"active","data_limit":0,"used_traffic":0,"expire":null,"subscription_url":""}`)

	admin := env.browser()
	if rec := admin.do(t, http.MethodPost, "/login", url.Values{"username": {"root"}, "password": {"secret"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("admin login status = %d", rec.Code)
	}
	if rec := admin.do(t, http.MethodGet, "/", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "u1") {
		t.Fatalf("signed-in GET / = %d", rec.Code)
	}

	subscriber := env.browser()
	if rec := subscriber.do(t, http.MethodPost, "/portal/login", url.Values{"account_number": {"abc123"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("portal login status = %d", rec.Code)
	}
	if rec := subscriber.do(t, http.MethodGet, "/portal/state", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "abc123") {
		t.Fatalf("signed-in GET /portal/state = %d %s", rec.Code, rec.Body.String())
	}

	before := fp.requestCount()
	for _, target := range []string{"/", "/nodes", "/api/state/dashboard", "/portal/", "/portal/state"} {
		rec := env.do(t, http.MethodGet, target, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("anonymous GET %s = %d, want 401", target, rec.Code)
		}
		if body := rec.Body.String(); strings.Contains(body, "abc123") || strings.Contains(body, "https://sub/u1") {
			t.Errorf("anonymous GET %s leaked another session: %s", target, body)
		}
	}
	if rec := env.do(t, http.MethodPost, "/users/u1/delete", url.Values{}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous mutation status = %d, want 401", rec.Code)
	}
	if n := fp.requestCount(); n != before {
		t.Errorf("anonymous requests reached the panel %d times", n-before)
	}

	// A second admin signing out leaves the first signed in.
	other := env.signIn(t)
	if rec := other.do(t, http.MethodPost, "/logout", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := admin.do(t, http.MethodGet, "/api/state/dashboard", nil); rec.Code != http.StatusOK {
		t.Errorf("first admin after other logout = %d, want 200", rec.Code)
	}
	if got := fp.last(t, "GET /admin").auth; got != "Bearer tok-a" {
		t.Errorf("first admin sent %q", got)
	}
}

func TestCSRF_FormsRequireToken(t *testing.T) {
	env := newTestEnv(t, true)
	b := env.signIn(t)
	b.do(t, http.MethodGet, "/login", nil)

	tests := []struct {
		name   string
		target string
		form   url.Values
	}{
		{"missing token", "/users/new", url.Values{}},
		{"forged token", "/users/new", url.Values{"csrf_token": {"forged"}}},
		{"login without token", "/login", url.Values{"username": {"root"}, "password": {"secret"}}},
		{"portal login without token", "/portal/login", url.Values{"account_number": {"abc123"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.send(t, http.MethodPost, tt.target, tt.form)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "The form has expired") {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
	if env.panel.called("POST /admin/token") || env.panel.called("POST /token") {
		t.Error("rejected form reached the panel")
	}

	if rec := b.do(t, http.MethodPost, "/users/new", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Errorf("form with token status = %d, want 303", rec.Code)
	}
}

func TestCSRF_RenderedFormsMatchCookie(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser()

	rec := b.do(t, http.MethodGet, "/login", nil)
	token := b.cookies["_csrf"]
	if token == "" {
		t.Fatal("no CSRF cookie issued")
	}
	if !strings.Contains(rec.Body.String(), fmt.Sprintf(`name="csrf_token" value="%s"`, token)) {
		t.Error("sign-in form does not carry the cookie token")
	}
}

func TestDashboard_DeleteUserFlow(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	env.panel.on(http.MethodGet, "/users", http.StatusOK, usersBody)
	env.panel.on(http.MethodGet, "/system", http.StatusOK, `{"version":"1.0","total_user":1}`)
	env.panel.on(http.MethodDelete, "/user/u1", http.StatusOK, `{}`)

	if rec := b.do(t, http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}

	rec := b.do(t, http.MethodPost, "/users/u1/delete", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("select status = %d, want 303", rec.Code)
	}

	rec = b.do(t, http.MethodGet, "/", nil)
	if !strings.Contains(rec.Body.String(), "Delete u1? This cannot be undone.") {
		t.Fatal("delete confirmation not shown")
	}
	if env.panel.called("DELETE /user/u1") {
		t.Fatal("user deleted before confirmation")
	}

	rec = b.do(t, http.MethodPost, "/users/delete/confirm", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("confirm status = %d, want 303", rec.Code)
	}
	if !env.panel.called("DELETE /user/u1") {
		t.Error("DELETE /user/u1 not sent")
	}
}

func TestDashboard_EditPreservesSettings(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	expire := time.Now().Add(30 * 24 * time.Hour).Unix()
	env.panel.on(http.MethodGet, "/users", http.StatusOK, fmt.Sprintf(`{"users":[{"account_number":"u1","status":"active","data_limit":5368709120,"used_traffic":0,"expire":%d,"data_limit_reset_strategy":"week","proxies":{"vless":{"id":"11111111-2222-3333-4444-555555555555","flow":"xtls-rprx-vision"}},"inbounds":{"vless":["VLESS TCP REALITY"]},"subscription_url":"https://sub/u1"}],"total":1}`, expire))
	env.panel.on(http.MethodGet, "/system", http.StatusOK, `{"version":"1.0","total_user":1}`)
	env.panel.on(http.MethodPut, "/user/u1", http.StatusOK, `{"account_number":"u1"}`)

	b.do(t, http.MethodGet, "/", nil)
	if rec := b.do(t, http.MethodPost, "/users/u1/edit", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Fatalf("select status = %d", rec.Code)
	}

	page := b.do(t, http.MethodGet, "/", nil).Body.String()
	for _, want := range []string{
		`<option value="active" selected>`,
		`name="data_limit" type="number" min="0" step="any" value="5"`,
		`name="expire" type="number" min="0" value="30"`,
		`<option value="week" selected>`,
		`value="vless" checked>`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("edit dialog missing %s", want)
		}
	}

	// Submit the dialog as rendered, changing only the note.
	rec := b.do(t, http.MethodPost, "/users/u1", url.Values{
		"status":                    {"active"},
		"data_limit":                {"5"},
		"expire":                    {"30"},
		"data_limit_reset_strategy": {"week"},
		"proxies":                   {"vless"},
		"note":                      {"renewed"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("edit status = %d, want 303", rec.Code)
	}

	sent := env.panel.last(t, "PUT /user/u1").body
	for _, want := range []string{
		`"data_limit":5368709120`,
		fmt.Sprintf(`"expire":%d`, expire),
		`"data_limit_reset_strategy":"week"`,
		`"id":"11111111-2222-3333-4444-555555555555"`,
		`"flow":"xtls-rprx-vision"`,
		`"VLESS TCP REALITY"`,
		`"note":"renewed"`,
	} {
		if !strings.Contains(sent, want) {
			t.Errorf("PUT body missing %s: %s", want, sent)
		}
	}
}

func TestDashboard_OutOfRangeDataLimit(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	env.panel.on(http.MethodGet, "/users", http.StatusOK, usersBody)
	env.panel.on(http.MethodGet, "/system", http.StatusOK, `{"version":"1.0","total_user":1}`)

	if rec := b.do(t, http.MethodPost, "/users/new", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Fatalf("open create status = %d", rec.Code)
	}
	for _, limit := range []string{"Inf", "-Inf", "NaN", "1e12"} {
		rec := b.do(t, http.MethodPost, "/users", url.Values{"status": {"active"}, "data_limit": {limit}})
		if rec.Code != http.StatusUnprocessableEntity && rec.Code != http.StatusSeeOther {
			t.Errorf("data_limit=%s status = %d", limit, rec.Code)
		}
	}
	if env.panel.called("POST /user") {
		t.Errorf("out of range limit sent: %s", env.panel.last(t, "POST /user").body)
	}
}

func TestDashboard_SortAndPageSize(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	env.panel.on(http.MethodGet, "/users", http.StatusOK, usersBody)
	env.panel.on(http.MethodGet, "/system", http.StatusOK, `{"version":"1.0","total_user":1}`)

	if rec := b.do(t, http.MethodGet, "/?sort=used_traffic&descending=true&offset=0", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET sorted status = %d", rec.Code)
	}
	st := env.sessionOf(t, b).Dashboard.State().Filter
	if st.Sort != "used_traffic" || !st.Descending {
		t.Errorf("filter = %+v", st)
	}

	b.do(t, http.MethodGet, "/?sort=password", nil)
	if got := env.sessionOf(t, b).Dashboard.State().Filter.Sort; got != "used_traffic" {
		t.Errorf("unknown sort column applied: %q", got)
	}

	b.do(t, http.MethodGet, "/?limit=50", nil)
	if got := env.sessionOf(t, b).Dashboard.State().Filter.Limit; got != 50 {
		t.Errorf("limit = %d, want 50", got)
	}

	rec := b.do(t, http.MethodPost, "/users/items-per-page", url.Values{"limit": {"100"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("items-per-page status = %d", rec.Code)
	}
	if got := env.sessionOf(t, b).Dashboard.State().Filter.Limit; got != 100 {
		t.Errorf("limit = %d, want 100", got)
	}
}

func TestDashboard_ConfirmWithoutSelection(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)

	rec := b.do(t, http.MethodPost, "/users/delete/confirm", url.Values{})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestDashboard_UnknownUser(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)

	rec := b.do(t, http.MethodPost, "/users/nobody/edit", url.Values{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestNodes_ServiceOfAnotherNode(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.signIn(t)
	env.panel.on(http.MethodGet, "/nodes", http.StatusOK, `[{"id":1,"name":"n1","address":"10.0.0.1","port":62050,"api_port":62051,"usage_coefficient":1,"status":"connected"},{"id":2,"name":"n2","address":"10.0.0.2","port":62050,"api_port":62051,"usage_coefficient":1,"status":"connected"}]`)
	env.panel.on(http.MethodGet, "/node/1/services", http.StatusOK, `[{"id":7,"node_id":1,"tag":"vless","protocol":"vless","network":"tcp","security":"none","port":443}]`)
	env.panel.on(http.MethodGet, "/node/2/services", http.StatusOK, `[]`)

	if rec := b.do(t, http.MethodGet, "/nodes", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /nodes status = %d", rec.Code)
	}

	if rec := b.do(t, http.MethodPost, "/nodes/2/services/7/edit", url.Values{}); rec.Code != http.StatusNotFound {
		t.Errorf("service of node 1 via node 2: status = %d, want 404", rec.Code)
	}
	if rec := b.do(t, http.MethodPost, "/nodes/1/services/7/edit", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", rec.Code)
	}
}

func TestAPIState_RequiresSession(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/state/dashboard", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "AUTHENTICATION_ERROR") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPortal_Disabled(t *testing.T) {
	env := newTestEnv(t, false)

	if rec := env.do(t, http.MethodGet, "/portal/login", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPortal_Login(t *testing.T) {
	t.Run("account number is exchanged for a token", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.panel.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"client-tok","token_type":"bearer"}`)

		b := env.browser()
		rec := b.do(t, http.MethodPost, "/portal/login", url.Values{"account_number": {"abc123"}})
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/portal" {
			t.Errorf("Location = %q, want /portal", loc)
		}

		req := env.panel.last(t, "POST /token")
		if !strings.HasPrefix(req.contentType, "application/x-www-form-urlencoded") {
			t.Errorf("Content-Type = %q, want form encoding", req.contentType)
		}
		sent, err := url.ParseQuery(req.body)
		if err != nil {
			t.Fatalf("ParseQuery(%q) error = %v", req.body, err)
		}
		if sent.Get("username") != "abc123" || sent.Get("grant_type") != "password" {
			t.Errorf("login form = %v", sent)
		}

		id := b.cookies[session.PortalCookieName]
		if id == "" {
			t.Fatal("no portal session cookie issued")
		}
		if tok := env.portalToken(id); tok != "client-tok" {
			t.Errorf("stored token = %q, want client-tok", tok)
		}
	})

	t.Run("rejected account number is shown inline", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.panel.on(http.MethodPost, "/token", http.StatusBadRequest, `{"detail":"Incorrect login"}`)

		b := env.browser()
		rec := b.do(t, http.MethodPost, "/portal/login", url.Values{"account_number": {"abc123"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "" {
			t.Errorf("Location = %q, want none", loc)
		}
		if !strings.Contains(rec.Body.String(), "Incorrect login") {
			t.Error("panel detail not shown")
		}
		if tok := env.portalToken(b.cookies[session.PortalCookieName]); tok != "" {
			t.Errorf("token stored after rejection: %q", tok)
		}
	})
}

func TestPortal_SelectAndDownload(t *testing.T) {
	env := newTestEnv(t, true)
	fp := env.panel
	fp.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"client-tok","token_type":"bearer"}`)
	fp.on(http.MethodGet, "/client-portal/account", http.StatusOK, `{"account_number":"12345","status":"active","data_limit":0,"used_traffic":0,"expire":null,"subscription_url":""}`)
	fp.on(http.MethodGet, "/client-portal/plans", http.StatusOK, `[]`)
	fp.on(http.MethodGet, "/client-portal/servers", http.StatusOK, `[{"node_id":1,"name":"Frankfurt","address":"de.example","status":"connected","services":[{"id":2,"tag":"vless-tcp","protocol":"vless","port":443}]}]`)
	fp.onWithHeaders(http.MethodGet, "/client-portal/config", http.StatusOK, `{"outbounds":[]}`,
		map[string]string{"Content-Disposition": `attachment; filename="frankfurt.json"`})

	b := env.browser()
	rec := b.do(t, http.MethodGet, "/portal/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated portal status = %d, want 401", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/portal/login", url.Values{"account_number": {"12345"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/portal" {
		t.Fatalf("POST /portal/login = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if rec = b.do(t, http.MethodGet, "/portal/", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /portal/ status = %d", rec.Code)
	}
	if got := fp.last(t, "GET /client-portal/account").auth; got != "Bearer client-tok" {
		t.Errorf("Authorization = %q", got)
	}

	rec = b.do(t, http.MethodGet, "/portal/config", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("download without selection status = %d, want 409", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/portal/select", url.Values{"node_id": {"1"}, "service_id": {"3"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown service status = %d, want 400", rec.Code)
	}

	rec = b.do(t, http.MethodPost, "/portal/select", url.Values{"node_id": {"1"}, "service_id": {"2"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("select status = %d, want 303", rec.Code)
	}

	rec = b.do(t, http.MethodGet, "/portal/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "frankfurt.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != `{"outbounds":[]}` {
		t.Errorf("body = %q", rec.Body.String())
	}

	if rec = b.do(t, http.MethodPost, "/portal/logout", url.Values{}); rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec = b.do(t, http.MethodGet, "/portal/", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("portal after logout status = %d, want 401", rec.Code)
	}
}

func TestPortal_BlankAccountNumber(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/portal/login", url.Values{"account_number": {"  "}})
	if rec.Code == http.StatusSeeOther {
		t.Fatal("blank account number redirected")
	}
	if env.panel.called("POST /token") {
		t.Error("login request sent for a blank account number")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", store.ErrNotAuthenticated, http.StatusUnauthorized},
		{"no selection", store.ErrNoSelection, http.StatusConflict},
		{"busy", store.ErrBusy, http.StatusConflict},
		{"not found", errNotFound, http.StatusNotFound},
		{"missing account", panel.ErrMissingAccountNumber, http.StatusBadRequest},
		{"api 404", &httpclient.APIError{StatusCode: 404, Detail: "User not found"}, http.StatusNotFound},
		{"api 500", &httpclient.APIError{StatusCode: 500}, http.StatusBadGateway},
		{"api 401", &httpclient.APIError{StatusCode: 401}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
