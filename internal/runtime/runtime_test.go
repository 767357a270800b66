package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cfgpkg "github.com/whistlegraph/dp1-feed/internal/config"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestOpenRequiresDataDir(t *testing.T) {
	cfg := cfgpkg.Default()
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestOpenCreatesNamespacesAndQueue(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	for _, ns := range []string{NamespacePlaylists, NamespaceChannels, NamespacePlaylistItems} {
		tbl, err := rt.Table(ns)
		if err != nil {
			t.Fatalf("table %s: %v", ns, err)
		}
		if tbl.Namespace() != ns {
			t.Fatalf("namespace %s", tbl.Namespace())
		}
	}
	if rt.Queue() == nil || rt.Queue().Name() != "feed-writes" {
		t.Fatalf("queue not wired")
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestTableIsCachedPerNamespace(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	a, _ := rt.Table(NamespacePlaylists)
	b, _ := rt.Table(NamespacePlaylists)
	if a != b {
		t.Fatalf("expected the same table instance")
	}
}

func TestCloseStopsProcessorBeforeStorage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.Queue.DispatchURL = srv.URL
	cfg.Queue.PollIntervalMs = 10
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rt.StartProcessor()

	ctx := context.Background()
	if _, err := rt.Queue().Send(ctx, `{"id":"1","operation":"create","timestamp":"2024-01-01T00:00:00Z"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	// Close must not race a tick against the released handle.
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
