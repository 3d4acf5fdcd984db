package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"packfetch/internal/fetch"
	"packfetch/internal/logging"
	"packfetch/internal/metacache"
	"packfetch/internal/services"
)

func newStore(t *testing.T) *metacache.Store {
	t.Helper()
	store, err := metacache.Open(context.Background(), t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFetchBytesReturnsBody(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()), fetch.WithUserAgent("packfetch-test"))
	body, err := client.FetchBytes(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchBytes: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", body)
	}
	if gotAgent != "packfetch-test" {
		t.Fatalf("User-Agent = %q", gotAgent)
	}
}

func TestFetchBytesKeepsBodyOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404}`))
	}))
	defer srv.Close()

	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()))
	body, err := client.FetchBytes(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if string(body) != `{"code":404}` {
		t.Fatalf("expected body to be returned, got %q", body)
	}
}

func TestFetchBytesServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fetch.New(nil, fetch.WithHTTPClient(srv.Client())).FetchBytes(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchBytesCanceledContextIsAborted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetch.New(nil, fetch.WithHTTPClient(srv.Client())).FetchBytes(ctx, srv.URL)
	if !errors.Is(err, services.ErrAborted) {
		t.Fatalf("expected aborted error, got %v", err)
	}
}

func TestFetchEntryDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("jar-bytes"))
	}))
	defer srv.Close()

	store := newStore(t)
	client := fetch.New(store, fetch.WithHTTPClient(srv.Client()))
	ctx := context.Background()

	entry, err := store.ResolveEntry(ctx, "fmllibs", "lib.jar")
	if err != nil {
		t.Fatalf("ResolveEntry: %v", err)
	}
	if err := client.FetchEntry(ctx, srv.URL+"/lib.jar", entry); err != nil {
		t.Fatalf("FetchEntry: %v", err)
	}
	data, err := os.ReadFile(entry.FullPath)
	if err != nil || string(data) != "jar-bytes" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
	if entry.ETag != `"v1"` || entry.Digest == "" || entry.Stale {
		t.Fatalf("entry not updated: %+v", entry)
	}

	again, _ := store.ResolveEntry(ctx, "fmllibs", "lib.jar")
	if err := client.FetchEntry(ctx, srv.URL+"/lib.jar", again); err != nil {
		t.Fatalf("second FetchEntry: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one request for a present entry, got %d", hits.Load())
	}
}

func TestFetchEntryFailureLeavesEntryStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	store := newStore(t)
	client := fetch.New(store, fetch.WithHTTPClient(srv.Client()))
	ctx := context.Background()
	entry, _ := store.ResolveEntry(ctx, "fmllibs", "gone.jar")

	err := client.FetchEntry(ctx, srv.URL+"/gone.jar", entry)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	store.Refresh(entry)
	if !entry.Stale {
		t.Fatal("failed download must not leave a file behind")
	}
}

func TestFetchEntryWithoutStore(t *testing.T) {
	client := fetch.New(nil)
	err := client.FetchEntry(context.Background(), "http://example.invalid/x", &metacache.Entry{Key: "x", Stale: true})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
