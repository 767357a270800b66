package namespace

import (
	"testing"

	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureIdempotent(t *testing.T) {
	db := openTestDB(t)
	m1, err := Ensure(db, "playlists")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m1.Name != "playlists" || m1.CreatedAtMs == 0 {
		t.Fatalf("meta: %+v", m1)
	}
	m2, err := Ensure(db, "playlists")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if m2.CreatedAtMs != m1.CreatedAtMs {
		t.Fatalf("re-ensure should return existing record")
	}
}

func TestEnsureRequiresName(t *testing.T) {
	db := openTestDB(t)
	if _, err := Ensure(db, ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestList(t *testing.T) {
	db := openTestDB(t)
	for _, ns := range []string{"playlists", "channels", "playlist_items"} {
		if _, err := Ensure(db, ns); err != nil {
			t.Fatalf("ensure %s: %v", ns, err)
		}
	}
	metas, err := List(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("want 3 namespaces, got %d", len(metas))
	}
	// key order is lexicographic
	if metas[0].Name != "channels" || metas[1].Name != "playlist_items" || metas[2].Name != "playlists" {
		t.Fatalf("order: %+v", metas)
	}
}
