package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
)

func newTestClient(t *testing.T, handler http.Handler, auth appconfig.AuthConfig) (*Client, *cache.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := &appconfig.ModuleConfig{Name: "vquest", BaseURL: srv.URL, Auth: auth}
	store := cache.NewMemoryStore()
	return NewClient(conf, store, Options{
		ConnectTimeout: time.Second,
		Timeout:        5 * time.Second,
		Attempts:       3,
		RetryDelay:     time.Millisecond,
	}), store
}

func TestGetJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tests/4", r.URL.Path)
		assert.Equal(t, "1,2", r.URL.Query().Get("cads_ids"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": 4, "title": "Thorax"}`))
	}), appconfig.AuthConfig{Type: appconfig.AuthToken, Token: "secret"})

	var dest struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	err := c.GetJSON(context.Background(), "tests/4", url.Values{"cads_ids": {"1,2"}}, &dest)

	require.NoError(t, err)
	assert.Equal(t, 4, dest.ID)
	assert.Equal(t, "Thorax", dest.Title)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}), appconfig.AuthConfig{})

	var dest []int
	require.NoError(t, c.GetJSON(context.Background(), "tests", nil, &dest))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}), appconfig.AuthConfig{})

	var dest []int
	err := c.GetJSON(context.Background(), "tests", nil, &dest)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "vquest", fe.Module)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSONMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}), appconfig.AuthConfig{})

	var dest map[string]any
	err := c.GetJSON(context.Background(), "tests", nil, &dest)

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.True(t, IsFetchError(err))
}

func TestOAuthTokenIsCached(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "prisma", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token": "abc", "expires_in": 3600}`))
	})
	mux.HandleFunc("/cases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	c, _ := newTestClient(t, mux, appconfig.AuthConfig{
		Type: appconfig.AuthOAuth, TokenURL: "oauth/token", ClientID: "prisma", ClientSecret: "s",
	})

	for i := 0; i < 3; i++ {
		var dest []any
		require.NoError(t, c.GetJSON(context.Background(), "cases", nil, &dest))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestSessionIsRenewedAfterUnauthorized(t *testing.T) {
	var logins, calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&logins, 1)
		if n == 1 {
			_, _ = w.Write([]byte(`{"data": {"session": "stale"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data": {"session": "fresh"}}`))
	})
	mux.HandleFunc("/images/1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("X-Session-ID") != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id": 1}`))
	})
	c, _ := newTestClient(t, mux, appconfig.AuthConfig{
		Type: appconfig.AuthSession, LoginPath: "login", SessionPath: "data.session",
		SessionHeader: "X-Session-ID", SessionTimeout: time.Minute,
	})

	var dest map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "images/1", nil, &dest))
	assert.Equal(t, int32(2), atomic.LoadInt32(&logins))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetRaw(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "z", r.URL.Query().Get("orientation"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50})
	}), appconfig.AuthConfig{})

	res, err := c.GetRaw(context.Background(), "images/1/slices/3", url.Values{"orientation": {"z"}})

	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, []byte{0x89, 0x50}, res.Body)
}

func TestPostJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"elements": {}}`))
	}), appconfig.AuthConfig{})

	body, err := c.PostJSON(context.Background(), "aggregate", []byte(`{"elements":{}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"elements": {}}`, string(body))
}

func TestURL(t *testing.T) {
	c := NewClient(&appconfig.ModuleConfig{Name: "m", BaseURL: "https://m.example/api"}, cache.NewMemoryStore(), Options{})

	assert.Equal(t, "https://m.example/api/tests/1", c.URL("/tests/1", nil))
	assert.Equal(t, "https://other.example/x?a=1", c.URL("https://other.example/x", url.Values{"a": {"1"}}))
	assert.Equal(t, "tests", routeOf("https://m.example/api", "https://m.example/api/tests/1?x=1"))
	assert.Equal(t, "external", routeOf("https://m.example/api", "https://other.example/x"))
}

func TestDegrade(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 3, Degrade(ctx, 3, nil, 0, "count"))
	assert.Equal(t, 0, Degrade(ctx, 3, &FetchError{Module: "m"}, 0, "count"))
}
