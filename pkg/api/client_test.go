package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mwdb/pkg/api"
	"mwdb/pkg/metrics"
	"mwdb/pkg/serrors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// rtFunc allows using a function as an http.RoundTripper.
type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func makeToken(t *testing.T, login string, exp time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{"login": login}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	return s
}

type sleepRecorder struct {
	pauses []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.pauses = append(s.pauses, d)

	return nil
}

func newClient(t *testing.T, srv *httptest.Server, mod func(*api.Options)) *api.Client {
	t.Helper()

	opts := api.DefaultOptions()
	opts.APIURL = srv.URL + "/api/"
	opts.APIKey = makeToken(t, "alice", time.Time{})
	opts.Sleep = func(context.Context, time.Duration) error { return nil }
	if mod != nil {
		mod(&opts)
	}

	c, err := api.New(context.Background(), opts)
	require.NoError(t, err)

	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Get_sendsHeadersAndDecodes(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/file/abc", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("count"))
		require.Equal(t, "Bearer "+key, r.Header.Get("Authorization"))
		require.Equal(t, api.UserAgent, r.Header.Get("User-Agent"))
		_, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		require.NoError(t, err)

		writeJSON(w, http.StatusOK, map[string]string{"id": "abc"})
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)
	key = c.AuthToken().String()
	require.Equal(t, "alice", c.LoggedUser())

	var out struct {
		ID string `json:"id"`
	}
	err := c.Get(context.Background(), "file/abc", &out, api.Params(url.Values{"count": {"2"}}))
	require.NoError(t, err)
	require.Equal(t, "abc", out.ID)
}

func TestClient_notAuthenticated(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) { o.APIKey = "" })

	err := c.Get(context.Background(), "object", nil)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
	require.Zero(t, calls.Load())

	require.NoError(t, c.Get(context.Background(), "server", nil, api.NoAuth()))
	require.EqualValues(t, 1, calls.Load())
}

func TestClient_Login(t *testing.T) {
	token := makeToken(t, "bob", time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["login"] != "bob" || body["password"] != "hunter2" {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Invalid login or password."})

			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) {
		o.APIKey = ""
		o.Username = "bob"
		o.Password = "hunter2"
	})
	require.Equal(t, "bob", c.LoggedUser())
	require.Equal(t, token, c.AuthToken().String())

	err := c.Login(context.Background(), "bob", "wrong")
	require.ErrorIs(t, err, serrors.ErrInvalidCredentials)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestClient_reloginOnExpiredSession(t *testing.T) {
	first := makeToken(t, "bob", time.Now().Add(-time.Minute))
	second := makeToken(t, "bob", time.Now().Add(time.Hour))
	var logins atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			if logins.Add(1) == 1 {
				writeJSON(w, http.StatusOK, map[string]string{"token": first})
			} else {
				writeJSON(w, http.StatusOK, map[string]string{"token": second})
			}
		case "/api/object":
			if r.Header.Get("Authorization") != "Bearer "+second {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated."})

				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"objects": []any{}})
		}
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) {
		o.APIKey = ""
		o.Username = "bob"
		o.Password = "hunter2"
	})

	require.NoError(t, c.Get(context.Background(), "object", nil))
	require.EqualValues(t, 2, logins.Load())
	require.Equal(t, second, c.AuthToken().String())
}

func TestClient_unauthorizedWithoutPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated."})
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	err := c.Get(context.Background(), "object", nil)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
	require.Equal(t, http.StatusUnauthorized, err.(*serrors.Error).Status()) //nolint: errorlint
	require.Nil(t, c.AuthToken())
}

func TestClient_obeysRateLimiter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
		case 2:
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{})
		}
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newClient(t, srv, func(o *api.Options) { o.Sleep = rec.Sleep })

	require.NoError(t, c.Get(context.Background(), "object", nil))
	require.Equal(t, []time.Duration{3 * time.Second, api.DefaultRetryAfter}, rec.pauses)
}

func TestClient_rateLimitedWhenNotObeying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "slow down"})
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) { o.ObeyRateLimiter = false })

	err := c.Get(context.Background(), "object", nil)
	require.ErrorIs(t, err, serrors.ErrRateLimited)
	require.Contains(t, err.Error(), "slow down")
}

func TestClient_downtimeRetriesWithGrowingPause(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newClient(t, srv, func(o *api.Options) {
		o.RetryOnDowntime = true
		o.MaxDowntimeRetries = 3
		o.DowntimeTimeout = time.Second
		o.Sleep = rec.Sleep
	})

	err := c.Get(context.Background(), "object", nil)
	require.ErrorIs(t, err, serrors.ErrGateway)
	require.EqualValues(t, 4, calls.Load())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.pauses)
}

func TestClient_downtimeRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusGatewayTimeout)

			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) { o.RetryOnDowntime = true })

	require.NoError(t, c.Put(context.Background(), "object/abc/tag", nil, api.JSON(map[string]string{"tag": "x"})))
	require.EqualValues(t, 3, calls.Load())
}

func TestClient_postNotRetriedUnlessIdempotentRetriesAllowed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) {
		o.RetryOnDowntime = true
		o.RetryIdempotent = false
	})

	err := c.Post(context.Background(), "object/abc/comment", nil, api.JSON(map[string]string{"comment": "hi"}))
	require.ErrorIs(t, err, serrors.ErrGateway)
	require.EqualValues(t, 1, calls.Load())
}

func TestClient_connectionErrorRetried(t *testing.T) {
	var calls int
	opts := api.DefaultOptions()
	opts.APIURL = "http://mwdb.invalid/api/"
	opts.APIKey = makeToken(t, "alice", time.Time{})
	opts.RetryOnDowntime = true
	opts.MaxDowntimeRetries = 2
	opts.Sleep = func(context.Context, time.Duration) error { return nil }
	opts.HTTPClient = &http.Client{Transport: rtFunc(func(*http.Request) (*http.Response, error) {
		calls++

		return nil, errors.New("connection refused")
	})}

	c, err := api.New(context.Background(), opts)
	require.NoError(t, err)

	err = c.Get(context.Background(), "object", nil)
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 3, calls)
}

func TestClient_badResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>MWDB</html>")
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	var out map[string]any
	require.ErrorIs(t, c.Get(context.Background(), "object", &out), serrors.ErrBadResponse)
	require.ErrorIs(t, c.Get(context.Background(), "object", nil), serrors.ErrBadResponse)

	raw, err := c.GetRaw(context.Background(), "object")
	require.NoError(t, err)
	require.Equal(t, "<html>MWDB</html>", string(raw))
}

func TestClient_notFoundKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Object not found"})

			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "The requested URL was not found on the server.",
		})
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	err := c.Get(context.Background(), "file/missing", nil)
	require.ErrorIs(t, err, serrors.ErrNotFound)
	require.NotErrorIs(t, err, serrors.ErrEndpointNotFound)

	err = c.Delete(context.Background(), "unknown/endpoint", nil)
	require.ErrorIs(t, err, serrors.ErrEndpointNotFound)
}

func TestClient_multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "sample.exe", hdr.Filename)
		require.Equal(t, "MZ\x90\x00", string(b))
		require.JSONEq(t, `{"parent":null}`, r.FormValue("options"))

		writeJSON(w, http.StatusOK, map[string]string{"id": "abc"})
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	err := c.Post(context.Background(), "file", nil, api.Multipart(
		api.Part{Name: "file", FileName: "sample.exe", Content: []byte("MZ\x90\x00")},
		api.Part{Name: "options", Content: []byte(`{"parent":null}`)},
	))
	require.NoError(t, err)
}

func TestClient_jsonMarshalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("request must not be sent")
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)

	err := c.Post(context.Background(), "config", nil, api.JSON(map[string]any{"cfg": func() {}}))
	require.ErrorContains(t, err, "could not marshal request")
}

func TestClient_serverMetadataCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/server", r.URL.Path)
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"server_version": "2.1.0-rc1", "is_registration_enabled": false})
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *api.Options) { o.APIKey = "" })
	ctx := context.Background()

	v, err := c.ServerVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, "2.1.0-rc1", v)

	ok, err := c.SupportsVersion(ctx, "2.0.0")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.SupportsVersion(ctx, "2.2.0")
	require.NoError(t, err)
	require.False(t, ok)

	err = c.RequireVersion(ctx, "2.2.0")
	require.ErrorIs(t, err, serrors.ErrVersionMismatch)
	require.ErrorContains(t, err, "2.1.0-rc1")

	require.EqualValues(t, 1, calls.Load())
}

func TestClient_validateAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/validate", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"login":        "alice",
			"capabilities": []string{"adding_tags"},
			"groups":       []string{"public", "alice"},
		})
	}))
	defer srv.Close()

	info, err := newClient(t, srv, nil).ValidateAuth(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice", info.Login)
	require.Equal(t, []string{"public", "alice"}, info.Groups)
}

func TestClient_recordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	c := newClient(t, srv, func(o *api.Options) { o.Metrics = m })
	require.NoError(t, c.Get(context.Background(), "object", nil))

	count, err := testutil.GatherAndCount(reg, "mwdb_api_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestClient_invalidAPIKey(t *testing.T) {
	opts := api.DefaultOptions()
	opts.APIKey = "3f1e9a5c-1b2d-4c3e-8f9a-0b1c2d3e4f5a"

	_, err := api.New(context.Background(), opts)
	require.ErrorIs(t, err, serrors.ErrInvalidCredentials)
}
