package mwdb_test

import (
	"context"
	"encoding/json"
	"mwdb/pkg/api"
	"mwdb/pkg/mwdb"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	sha256A = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	sha256B = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	sha256C = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	md5A    = "0123456789abcdef0123456789abcdef"
)

// fakeMWDB is a minimal MWDB REST API backed by an http.ServeMux. Tests
// register the handlers they need and inspect the recorded request paths.
type fakeMWDB struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls []string
}

func newFake(t *testing.T, version string) *fakeMWDB {
	t.Helper()

	f := &fakeMWDB{t: t, mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		call := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/")
		if r.URL.RawQuery != "" {
			call += "?" + r.URL.RawQuery
		}
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)

	f.handle("GET /api/server", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, map[string]any{"server_version": version})
	})

	return f
}

func (f *fakeMWDB) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeMWDB) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}

	return n
}

func (f *fakeMWDB) client(login string) *mwdb.Client {
	f.t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"login": login}).
		SignedString([]byte("secret"))
	require.NoError(f.t, err)

	opts := api.DefaultOptions()
	opts.APIURL = f.srv.URL + "/api/"
	opts.APIKey = token

	c, err := api.New(context.Background(), opts)
	require.NoError(f.t, err)

	return mwdb.New(c)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusNotFound, map[string]string{"message": "Object not found"})
}

func fileEntry(id string) map[string]any {
	return map[string]any{"id": id, "type": "file", "tags": []any{}}
}
