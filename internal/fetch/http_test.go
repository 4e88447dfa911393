package fetch

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, opts Options) (*HTTPFetcher, *[]time.Duration) {
	t.Helper()

	var delays []time.Duration
	f, err := NewHTTPFetcher(opts, nil, WithSleep(func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}))
	require.NoError(t, err)
	return f, &delays
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<span class="price">Rs. 1,200</span>`))
	}))
	defer srv.Close()

	f, delays := newTestFetcher(t, DefaultOptions())

	body, err := f.FetchWithRetries(context.Background(), srv.URL, 3)
	require.NoError(t, err)
	assert.Contains(t, body, "Rs. 1,200")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *delays)
}

func TestFetchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, delays := newTestFetcher(t, DefaultOptions())

	body, err := f.Fetch(context.Background(), srv.URL)
	assert.Empty(t, body)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *delays, 2)
}

func TestFetchEmptyBodyIsRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, DefaultOptions())

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f, delays := newTestFetcher(t, DefaultOptions())

	_, err := f.Fetch(context.Background(), addr)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.Len(t, *delays, 2)
}

func TestFetchInvalidURLIsTerminal(t *testing.T) {
	f, delays := newTestFetcher(t, DefaultOptions())

	_, err := f.Fetch(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.Empty(t, *delays)
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, DefaultOptions())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "gzip, deflate", got.Get("Accept-Encoding"))
	assert.Equal(t, "https://www.google.com/", got.Get("Referer"))
	assert.Equal(t, "max-age=0", got.Get("Cache-Control"))
	assert.Equal(t, "1", got.Get("Upgrade-Insecure-Requests"))
	assert.NotEmpty(t, got.Get("Accept-Language"))
	assert.NotEmpty(t, got.Get("Accept"))
}

func TestFetchDecodesCompressedBodies(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte("gzip body"))
	gw.Close()

	var zl bytes.Buffer
	zw := zlib.NewWriter(&zl)
	zw.Write([]byte("deflate body"))
	zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(gz.Bytes())
		case "/deflate":
			w.Header().Set("Content-Encoding", "deflate")
			w.Write(zl.Bytes())
		}
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, DefaultOptions())

	body, err := f.Fetch(context.Background(), srv.URL+"/gzip")
	require.NoError(t, err)
	assert.Equal(t, "gzip body", body)

	body, err = f.Fetch(context.Background(), srv.URL+"/deflate")
	require.NoError(t, err)
	assert.Equal(t, "deflate body", body)
}

func TestFetchFollowsRedirectsAndKeepsCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		http.Redirect(w, r, "/product", http.StatusFound)
	})
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("cookie=" + c.Value))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, _ := newTestFetcher(t, DefaultOptions())

	body, err := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, "cookie=abc", body)
}

func TestFetchCancelledContext(t *testing.T) {
	f, delays := newTestFetcher(t, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://example.invalid/")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *delays)
}
