// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package session

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type bundle struct {
	id string
}

func newTestRegistry(t *testing.T, cfg RegistryConfig, onDrop func(string, *bundle)) (*Registry[*bundle], *int) {
	t.Helper()
	built := 0
	reg, err := NewRegistry(cfg, func(id string) (*bundle, error) {
		built++
		return &bundle{id: id}, nil
	}, onDrop)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(reg.Close)
	return reg, &built
}

func mustGet(t *testing.T, reg *Registry[*bundle], id string) *bundle {
	t.Helper()
	v, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return v
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_GetBuildsOncePerID(t *testing.T) {
	reg, built := newTestRegistry(t, RegistryConfig{}, nil)

	a := mustGet(t, reg, "a")
	if again := mustGet(t, reg, "a"); again != a {
		t.Error("second Get returned a different value")
	}
	b := mustGet(t, reg, "b")
	if b == a || b.id != "b" {
		t.Errorf("Get(b) = %+v", b)
	}
	if *built != 2 {
		t.Errorf("built = %d, want 2", *built)
	}

	if _, ok := reg.Lookup("c"); ok {
		t.Error("Lookup should not build")
	}
	if _, ok := reg.Lookup(""); ok {
		t.Error("Lookup of the empty id should miss")
	}
	if got, ok := reg.Lookup("a"); !ok || got != a {
		t.Errorf("Lookup(a) = %v, %v", got, ok)
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	reg, built := newTestRegistry(t, RegistryConfig{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Get("shared")
		}()
	}
	wg.Wait()
	if *built != 1 {
		t.Errorf("built = %d, want 1", *built)
	}
}

func TestRegistry_ForgetRunsOnDrop(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	reg, _ := newTestRegistry(t, RegistryConfig{}, func(id string, _ *bundle) {
		mu.Lock()
		dropped = append(dropped, id)
		mu.Unlock()
	})

	mustGet(t, reg, "a")
	mustGet(t, reg, "a")
	reg.Forget("a")
	if _, ok := reg.Lookup("a"); ok {
		t.Error("forgotten id still present")
	}
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if dropped[0] != "a" {
		t.Errorf("dropped = %v", dropped)
	}
}

func TestRegistry_IdleSessionsExpire(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryConfig{TTL: 50 * time.Millisecond}, nil)

	mustGet(t, reg, "a")
	eventually(t, func() bool {
		_, ok := reg.Lookup("a")
		return !ok
	})
}

func TestRegistry_Range(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryConfig{}, nil)
	mustGet(t, reg, "a")
	mustGet(t, reg, "b")

	seen := map[string]bool{}
	reg.Range(func(id string, v *bundle) bool {
		seen[id] = v.id == id
		return true
	})
	if len(seen) != 2 || !seen["a"] || !seen["b"] {
		t.Errorf("Range saw %v", seen)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d", reg.Len())
	}
}

func TestRegistry_BuildFailureIsNotKept(t *testing.T) {
	fail := true
	reg, err := NewRegistry(RegistryConfig{}, func(id string) (*bundle, error) {
		if fail {
			return nil, errors.New("backend closed")
		}
		return &bundle{id: id}, nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(reg.Close)

	if _, err := reg.Get("a"); err == nil {
		t.Fatal("expected build error")
	}
	if _, ok := reg.Lookup("a"); ok {
		t.Error("failed build was cached")
	}
	fail = false
	if v := mustGet(t, reg, "a"); v.id != "a" {
		t.Errorf("Get(a) = %+v", v)
	}
}

func TestCookie_Load(t *testing.T) {
	c := Cookie{Name: AdminCookieName}
	valid := uuid.New().String()

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   string
	}{
		{"no cookie", nil, ""},
		{"malformed id", &http.Cookie{Name: AdminCookieName, Value: "../../etc"}, ""},
		{"other cookie", &http.Cookie{Name: PortalCookieName, Value: valid}, ""},
		{"valid", &http.Cookie{Name: AdminCookieName, Value: valid}, valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			var got string
			c.Load(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = IDFromContext(r.Context())
			})).ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("id = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCookie_IssueRotates(t *testing.T) {
	c := Cookie{Name: PortalCookieName, Path: "/portal", MaxAge: time.Hour}
	req := httptest.NewRequest(http.MethodPost, "/portal/login", nil)
	req = req.WithContext(WithID(req.Context(), "old-id"))

	rec := httptest.NewRecorder()
	next, previous := c.Issue(rec, req)

	if previous != "old-id" {
		t.Errorf("previous = %q", previous)
	}
	id := IDFromContext(next.Context())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("new id %q is not a uuid", id)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	got := cookies[0]
	if got.Name != PortalCookieName || got.Value != id || got.Path != "/portal" ||
		!got.HttpOnly || got.SameSite != http.SameSiteLaxMode || got.MaxAge != 3600 || got.Secure {
		t.Errorf("cookie = %+v", got)
	}
}

func TestCookie_SecureAndClear(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.TLS = &tls.ConnectionState{}

	rec := httptest.NewRecorder()
	Cookie{Name: AdminCookieName}.Clear(rec, req)

	got := rec.Result().Cookies()[0]
	if got.Value != "" || got.MaxAge >= 0 || !got.Secure || got.Path != "/" {
		t.Errorf("cleared cookie = %+v", got)
	}
}
