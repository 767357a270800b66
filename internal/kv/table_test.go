package kv

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

func openTestTable(t *testing.T, ns string) *Table {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	tbl, err := OpenTable(db, ns)
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	return tbl
}

func TestPutGetLastWriteWins(t *testing.T) {
	tbl := openTestTable(t, "playlists")
	if err := tbl.Put("p1", "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tbl.Put("p1", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := tbl.Get("p1")
	if err != nil || got != "v2" {
		t.Fatalf("get: %q %v", got, err)
	}
	if _, err := tbl.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	playlists, err := OpenTable(db, "playlists")
	if err != nil {
		t.Fatalf("open playlists: %v", err)
	}
	channels, err := OpenTable(db, "channels")
	if err != nil {
		t.Fatalf("open channels: %v", err)
	}
	if err := playlists.Put("same-key", "playlist"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := channels.Put("same-key", "channel"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if v, _ := playlists.Get("same-key"); v != "playlist" {
		t.Fatalf("playlists value: %q", v)
	}
	if v, _ := channels.Get("same-key"); v != "channel" {
		t.Fatalf("channels value: %q", v)
	}
	if err := playlists.Delete("same-key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := channels.Get("same-key"); err != nil {
		t.Fatalf("delete must not cross namespaces: %v", err)
	}
}

func TestGetJSONDecodeError(t *testing.T) {
	tbl := openTestTable(t, "playlists")
	if err := tbl.Put("good", `{"title":"morning"}`); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tbl.Put("bad", "not json"); err != nil {
		t.Fatalf("put: %v", err)
	}

	var dst struct {
		Title string `json:"title"`
	}
	if err := tbl.GetJSON("good", &dst); err != nil || dst.Title != "morning" {
		t.Fatalf("good decode: %v %+v", err, dst)
	}
	err := tbl.GetJSON("bad", &dst)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if de.Key != "bad" || de.Namespace != "playlists" {
		t.Fatalf("decode error fields: %+v", de)
	}
}

func TestGetMultipleOmitsAbsent(t *testing.T) {
	tbl := openTestTable(t, "channels")
	_ = tbl.Put("a", "1")
	_ = tbl.Put("c", "3")
	got, err := tbl.GetMultiple([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("get multiple: %v", err)
	}
	if len(got) != 2 || got["a"] != "1" || got["c"] != "3" {
		t.Fatalf("got %v", got)
	}
	if _, ok := got["b"]; ok {
		t.Fatalf("absent key must be omitted, not errored")
	}

	empty, err := tbl.GetMultiple(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input: %v %v", empty, err)
	}
}

func TestPutMultipleAtomicAndVisible(t *testing.T) {
	tbl := openTestTable(t, "playlists")
	entries := map[string]string{"p1": "a", "p2": "b", "p3": "c"}
	failed, err := tbl.PutMultiple(entries)
	if err != nil || len(failed) != 0 {
		t.Fatalf("put multiple: failed=%v err=%v", failed, err)
	}
	for k, want := range entries {
		if got, err := tbl.Get(k); err != nil || got != want {
			t.Fatalf("get %s: %q %v", k, got, err)
		}
	}
	// single-entry batches go through the plain put path
	failed, err = tbl.PutMultiple(map[string]string{"p4": "d"})
	if err != nil || len(failed) != 0 {
		t.Fatalf("single put multiple: %v %v", failed, err)
	}
	if got, _ := tbl.Get("p4"); got != "d" {
		t.Fatalf("p4: %q", got)
	}
}

func TestDeleteMultiple(t *testing.T) {
	tbl := openTestTable(t, "playlists")
	_, _ = tbl.PutMultiple(map[string]string{"p1": "a", "p2": "b", "p3": "c"})
	failed, err := tbl.DeleteMultiple([]string{"p1", "p3", "never-existed"})
	if err != nil || len(failed) != 0 {
		t.Fatalf("delete multiple: %v %v", failed, err)
	}
	if _, err := tbl.Get("p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("p1 should be gone")
	}
	if got, _ := tbl.Get("p2"); got != "b" {
		t.Fatalf("p2 should remain: %q", got)
	}
}

func TestListPrefixAndPagination(t *testing.T) {
	tbl := openTestTable(t, "playlist_items")
	for i := 0; i < 25; i++ {
		if err := tbl.Put(fmt.Sprintf("item:%03d", i), "x"); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	_ = tbl.Put("other:1", "y")

	// unbounded call returns the full prefix set in order
	all, err := tbl.List(ListOptions{Prefix: "item:"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !all.IsComplete || len(all.Keys) != 25 {
		t.Fatalf("full list: complete=%v n=%d", all.IsComplete, len(all.Keys))
	}
	for i, k := range all.Keys {
		if want := fmt.Sprintf("item:%03d", i); k != want {
			t.Fatalf("order at %d: %s != %s", i, k, want)
		}
	}

	// paging with a fixed limit yields the same set, no dups, no gaps
	var paged []string
	cursor := ""
	pages := 0
	for {
		res, err := tbl.List(ListOptions{Prefix: "item:", Limit: 10, Cursor: cursor})
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		paged = append(paged, res.Keys...)
		pages++
		if res.IsComplete {
			break
		}
		if res.Cursor != res.Keys[len(res.Keys)-1] {
			t.Fatalf("cursor should be last key of full page")
		}
		cursor = res.Cursor
	}
	if len(paged) != 25 {
		t.Fatalf("paged total %d", len(paged))
	}
	for i := range paged {
		if paged[i] != all.Keys[i] {
			t.Fatalf("paged[%d]=%s, want %s", i, paged[i], all.Keys[i])
		}
	}
	if pages < 3 {
		t.Fatalf("expected at least 3 pages, got %d", pages)
	}

	// exactly-limit page: 25 items with limit 25 looks possibly-incomplete,
	// and the follow-up page is empty and complete
	exact, err := tbl.List(ListOptions{Prefix: "item:", Limit: 25})
	if err != nil || exact.IsComplete {
		t.Fatalf("exact page should not claim completeness: %+v %v", exact, err)
	}
	next, err := tbl.List(ListOptions{Prefix: "item:", Limit: 25, Cursor: exact.Cursor})
	if err != nil || !next.IsComplete || len(next.Keys) != 0 {
		t.Fatalf("follow-up page: %+v %v", next, err)
	}
}

func TestConcurrentDisjointBatches(t *testing.T) {
	tbl := openTestTable(t, "playlists")
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			entries := make(map[string]string, 20)
			for i := 0; i < 20; i++ {
				entries[fmt.Sprintf("g%d:%02d", g, i)] = "v"
			}
			if failed, err := tbl.PutMultiple(entries); err != nil || len(failed) != 0 {
				t.Errorf("batch %d: failed=%v err=%v", g, failed, err)
			}
		}(g)
	}
	wg.Wait()
	res, err := tbl.List(ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Keys) != 40 {
		t.Fatalf("lost updates: %d keys", len(res.Keys))
	}
}
