package queue

import (
	"context"
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

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(openTestDB(t), "feed-writes", 3)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func TestSendAssignsIncreasingIDs(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	var prev uint64
	for i := 0; i < 5; i++ {
		id, err := q.Send(ctx, "msg")
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if id <= prev {
			t.Fatalf("ids must increase: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestSendSerializesStructuredMessages(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	id, err := q.Send(ctx, map[string]string{"operation": "create"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	entries, err := q.FetchPending(ctx, 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("fetch: %v %d", err, len(entries))
	}
	if entries[0].ID != id || entries[0].Message != `{"operation":"create"}` {
		t.Fatalf("entry: %+v", entries[0])
	}
	if entries[0].State != StatePending || entries[0].Attempts != 0 || entries[0].MaxAttempts != 3 {
		t.Fatalf("fresh entry fields: %+v", entries[0])
	}
}

func TestFetchPendingIsAPeek(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	id1, _ := q.Send(ctx, "a")
	id2, _ := q.Send(ctx, "b")

	first, err := q.FetchPending(ctx, 10)
	if err != nil || len(first) != 2 {
		t.Fatalf("fetch: %v %d", err, len(first))
	}
	if first[0].ID != id1 || first[1].ID != id2 {
		t.Fatalf("order: %+v", first)
	}
	// not acked: a second fetch returns the same entries
	again, err := q.FetchPending(ctx, 10)
	if err != nil || len(again) != 2 {
		t.Fatalf("re-fetch: %v %d", err, len(again))
	}
}

func TestFetchPendingHonorsLimit(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_, _ = q.Send(ctx, "m")
	}
	entries, err := q.FetchPending(ctx, 0) // default limit
	if err != nil || len(entries) != DefaultFetchLimit {
		t.Fatalf("default limit: %v %d", err, len(entries))
	}
	entries, err = q.FetchPending(ctx, 3)
	if err != nil || len(entries) != 3 {
		t.Fatalf("explicit limit: %v %d", err, len(entries))
	}
}

func TestMarkProcessedIdempotent(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	id, _ := q.Send(ctx, "m")
	if err := q.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	// second call is a no-op, not an error
	if err := q.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("second mark processed: %v", err)
	}
	entries, _ := q.FetchPending(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("processed entry still pending")
	}
	// unknown ids are no-ops too
	if err := q.MarkProcessed(ctx, 9999); err != nil {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestMarkFailedRetriesThenDeadLetters(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	id, _ := q.Send(ctx, "m")

	// two failures leave the entry pending and re-fetchable
	for i := 1; i <= 2; i++ {
		if err := q.MarkFailed(ctx, id, "boom"); err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
		entries, _ := q.FetchPending(ctx, 10)
		if len(entries) != 1 || entries[0].Attempts != uint32(i) || entries[0].LastError != "boom" {
			t.Fatalf("after fail %d: %+v", i, entries)
		}
		if entries[0].State != StatePending {
			t.Fatalf("should stay pending before ceiling")
		}
	}

	// third failure reaches maxAttempts and dead-letters
	if err := q.MarkFailed(ctx, id, "final"); err != nil {
		t.Fatalf("final fail: %v", err)
	}
	entries, _ := q.FetchPending(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("dead entry must not be fetchable")
	}
	dead, err := q.ListDead(ctx, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("list dead: %v %d", err, len(dead))
	}
	if dead[0].ID != id || dead[0].Attempts != 3 || dead[0].State != StateDead || dead[0].LastError != "final" {
		t.Fatalf("dead entry: %+v", dead[0])
	}

	// terminal states accept no further transitions
	if err := q.MarkFailed(ctx, id, "again"); err != nil {
		t.Fatalf("fail on dead: %v", err)
	}
	if err := q.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("process on dead: %v", err)
	}
	dead, _ = q.ListDead(ctx, 10)
	if dead[0].Attempts != 3 || dead[0].State != StateDead {
		t.Fatalf("dead entry mutated: %+v", dead[0])
	}
}

func TestNamedQueuesArePartitioned(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a, _ := Open(db, "alpha", 3)
	b, _ := Open(db, "beta", 3)
	_, _ = a.Send(ctx, "for-a")
	_, _ = b.Send(ctx, "for-b")

	ea, _ := a.FetchPending(ctx, 10)
	eb, _ := b.FetchPending(ctx, 10)
	if len(ea) != 1 || ea[0].Message != "for-a" {
		t.Fatalf("alpha: %+v", ea)
	}
	if len(eb) != 1 || eb[0].Message != "for-b" {
		t.Fatalf("beta: %+v", eb)
	}
}

func TestSequencePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	q, _ := Open(db, "feed-writes", 3)
	id1, _ := q.Send(ctx, "m1")
	_ = db.Close()

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	q2, _ := Open(db2, "feed-writes", 3)
	id2, err := q2.Send(ctx, "m2")
	if err != nil {
		t.Fatalf("send after reopen: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("sequence regressed across reopen: %d <= %d", id2, id1)
	}
}

func TestStats(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	id1, _ := q.Send(ctx, "a")
	id2, _ := q.Send(ctx, "b")
	_, _ = q.Send(ctx, "c")
	_ = q.MarkProcessed(ctx, id1)
	for i := 0; i < 3; i++ {
		_ = q.MarkFailed(ctx, id2, "x")
	}
	s, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Pending != 1 || s.Processed != 1 || s.Dead != 1 || s.LastID != 3 {
		t.Fatalf("stats: %+v", s)
	}
}
