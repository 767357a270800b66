package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
)

// DefaultMaxAttempts is the retry ceiling before an entry is dead-lettered.
const DefaultMaxAttempts = 3

// DefaultFetchLimit bounds FetchPending when no explicit limit is given.
const DefaultFetchLimit = 10

// Queue is one named durable queue. It borrows the shared DB handle and must
// not close it.
type Queue struct {
	db          *pebblestore.DB
	name        string
	maxAttempts uint32

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Queue and restores the last assigned sequence from
// metadata if present. maxAttempts <= 0 selects DefaultMaxAttempts.
func Open(db *pebblestore.DB, name string, maxAttempts int) (*Queue, error) {
	if name == "" {
		return nil, errors.New("queue: name is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	q := &Queue{db: db, name: name, maxAttempts: uint32(maxAttempts)}
	if meta, err := db.Get(metaKey(name)); err == nil && len(meta) >= 8 {
		q.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return q, nil
}

// Name returns the logical queue name.
func (q *Queue) Name() string { return q.name }

// Send appends message as a new pending entry and returns its id. Strings
// and raw bytes pass through unchanged; any other value is JSON-serialized.
func (q *Queue) Send(ctx context.Context, message any) (uint64, error) {
	text, err := serializeMessage(message)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.lastSeq++
	seq := q.lastSeq
	e := Entry{
		ID:          seq,
		Queue:       q.name,
		Message:     text,
		CreatedAtMs: time.Now().UnixMilli(),
		State:       StatePending,
		MaxAttempts: q.maxAttempts,
	}
	val, err := encodeEntry(&e)
	if err != nil {
		q.lastSeq--
		return 0, err
	}

	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(q.name, seq), val, nil); err != nil {
		q.lastSeq--
		return 0, err
	}
	if err := b.Set(pendingKey(q.name, seq), nil, nil); err != nil {
		q.lastSeq--
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(metaKey(q.name), meta[:], nil); err != nil {
		q.lastSeq--
		return 0, err
	}
	if err := q.db.CommitBatch(b); err != nil {
		q.lastSeq--
		return 0, fmt.Errorf("queue: send: %w", err)
	}
	return seq, nil
}

// FetchPending returns up to limit pending entries ascending by id. It does
// not mutate state: entries stay pending until marked processed or failed.
// limit <= 0 selects DefaultFetchLimit.
func (q *Queue) FetchPending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	lo, hi := pendingRange(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]Entry, 0, limit)
	for ok := iter.First(); ok && len(out) < limit; ok = iter.Next() {
		seq, ok2 := seqFromIndexKey(iter.Key())
		if !ok2 {
			continue
		}
		val, err := q.db.Get(entryKey(q.name, seq))
		if err != nil {
			// orphan index entry: drop it and move on
			_ = q.db.Delete(pendingKey(q.name, seq))
			continue
		}
		e, err := decodeEntry(val)
		if err != nil {
			return nil, err
		}
		if e.State != StatePending {
			// index lagging a terminal transition; repair
			_ = q.db.Delete(pendingKey(q.name, seq))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkProcessed transitions the entry to Processed and removes it from the
// pending index. Idempotent: a second call, or a call against an already
// terminal entry, is a no-op.
func (q *Queue) MarkProcessed(ctx context.Context, id uint64) error {
	val, err := q.db.Get(entryKey(q.name, id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil
		}
		return err
	}
	e, err := decodeEntry(val)
	if err != nil {
		return err
	}
	if e.State != StatePending {
		return nil
	}
	e.State = StateProcessed
	return q.writeTransition(&e, true, false)
}

// MarkFailed records a delivery failure: attempts is incremented, lastError
// overwritten, and the entry is dead-lettered when the post-increment count
// reaches the retry ceiling. Otherwise the entry stays pending and will be
// re-fetched. Calls against terminal or unknown entries are no-ops.
func (q *Queue) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	val, err := q.db.Get(entryKey(q.name, id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil
		}
		return err
	}
	e, err := decodeEntry(val)
	if err != nil {
		return err
	}
	if e.State != StatePending {
		return nil
	}
	e.Attempts++
	e.LastError = errMsg
	if e.Attempts >= e.MaxAttempts {
		e.State = StateDead
		return q.writeTransition(&e, true, true)
	}
	return q.writeTransition(&e, false, false)
}

// writeTransition commits an entry update plus its index maintenance as one
// batch so the attempt-increment and state check are never partially visible.
func (q *Queue) writeTransition(e *Entry, dropPending, addDead bool) error {
	val, err := encodeEntry(e)
	if err != nil {
		return err
	}
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(q.name, e.ID), val, nil); err != nil {
		return err
	}
	if dropPending {
		if err := b.Delete(pendingKey(q.name, e.ID), nil); err != nil {
			return err
		}
	}
	if addDead {
		if err := b.Set(deadKey(q.name, e.ID), nil, nil); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(b)
}

// Stats summarizes the queue for introspection endpoints.
type Stats struct {
	Queue     string `json:"queue"`
	Pending   uint64 `json:"pending"`
	Processed uint64 `json:"processed"`
	Dead      uint64 `json:"dead"`
	LastID    uint64 `json:"lastId"`
}

// Stats counts entries per state. Processed is derived from the entry count
// so it needs no index of its own.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Queue: q.name}
	q.mu.Lock()
	s.LastID = q.lastSeq
	q.mu.Unlock()

	var err error
	if s.Pending, err = q.countRange(pendingRange(q.name)); err != nil {
		return Stats{}, err
	}
	if s.Dead, err = q.countRange(deadRange(q.name)); err != nil {
		return Stats{}, err
	}
	total, err := q.countRange(entryRange(q.name))
	if err != nil {
		return Stats{}, err
	}
	if total > s.Pending+s.Dead {
		s.Processed = total - s.Pending - s.Dead
	}
	return s, nil
}

// ListDead returns up to limit dead-lettered entries ascending by id, for
// out-of-band inspection and remediation.
func (q *Queue) ListDead(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	lo, hi := deadRange(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]Entry, 0, limit)
	for ok := iter.First(); ok && len(out) < limit; ok = iter.Next() {
		seq, ok2 := seqFromIndexKey(iter.Key())
		if !ok2 {
			continue
		}
		val, err := q.db.Get(entryKey(q.name, seq))
		if err != nil {
			continue
		}
		e, err := decodeEntry(val)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (q *Queue) countRange(lo, hi []byte) (uint64, error) {
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var n uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

func serializeMessage(message any) (string, error) {
	switch m := message.(type) {
	case string:
		return m, nil
	case []byte:
		return string(m), nil
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("queue: serialize message: %w", err)
		}
		return string(b), nil
	}
}
