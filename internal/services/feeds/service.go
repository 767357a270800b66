package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/whistlegraph/dp1-feed/internal/kv"
	"github.com/whistlegraph/dp1-feed/internal/queue"
	"github.com/whistlegraph/dp1-feed/internal/runtime"
	"github.com/whistlegraph/dp1-feed/pkg/log"
)

// Service writes feed records and enqueues change notifications.
type Service struct {
	rt     *runtime.Runtime
	logger log.Logger
	now    func() time.Time
}

// New creates a Service with a discarding logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, log.NewLogger(log.WithOutput(log.NullOutput{})))
}

// NewWithLogger creates a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger log.Logger) *Service {
	return &Service{rt: rt, logger: logger, now: time.Now}
}

// Save upserts a record and enqueues a create or update event depending on
// whether the key previously existed.
func (s *Service) Save(ctx context.Context, ns, key string, value json.RawMessage) error {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return err
	}
	op := OpUpdate
	if _, err := tbl.Get(key); errors.Is(err, kv.ErrNotFound) {
		op = OpCreate
	} else if err != nil {
		return err
	}
	if err := tbl.Put(key, string(value)); err != nil {
		return fmt.Errorf("feeds: save %s/%s: %w", ns, key, err)
	}
	s.notify(ctx, op, ns, key)
	return nil
}

// SaveBatch upserts entries as one atomic batch, then enqueues an update
// event per key. Returns the failed keys on batch failure; none of them are
// visible in that case.
func (s *Service) SaveBatch(ctx context.Context, ns string, entries map[string]json.RawMessage) ([]string, error) {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(entries))
	for k, v := range entries {
		values[k] = string(v)
	}
	failed, err := tbl.PutMultiple(values)
	if err != nil {
		return failed, fmt.Errorf("feeds: save batch %s: %w", ns, err)
	}
	for k := range entries {
		s.notify(ctx, OpUpdate, ns, k)
	}
	return nil, nil
}

// Get returns a record's JSON value, or kv.ErrNotFound.
func (s *Service) Get(ctx context.Context, ns, key string) (json.RawMessage, error) {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := tbl.GetJSON(key, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetMultiple returns the present records among keys; absent keys are omitted.
func (s *Service) GetMultiple(ctx context.Context, ns string, keys []string) (map[string]json.RawMessage, error) {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return nil, err
	}
	values, err := tbl.GetMultiple(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// Delete removes a record and enqueues a delete event. Absent keys delete
// cleanly without an event.
func (s *Service) Delete(ctx context.Context, ns, key string) error {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return err
	}
	if _, err := tbl.Get(key); errors.Is(err, kv.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	if err := tbl.Delete(key); err != nil {
		return fmt.Errorf("feeds: delete %s/%s: %w", ns, key, err)
	}
	s.notify(ctx, OpDelete, ns, key)
	return nil
}

// List returns one page of record keys, optionally narrowed by a CEL filter
// over record values. The filter applies within the fetched page, so a
// filtered page may hold fewer than Limit keys while more data remains.
func (s *Service) List(ctx context.Context, ns string, q ListQuery) (ListPage, error) {
	tbl, err := s.rt.Table(ns)
	if err != nil {
		return ListPage{}, err
	}
	filter, err := newCELFilter(q.Filter)
	if err != nil {
		return ListPage{}, fmt.Errorf("feeds: list filter: %w", err)
	}
	res, err := tbl.List(kv.ListOptions{Prefix: q.Prefix, Limit: q.Limit, Cursor: q.Cursor})
	if err != nil {
		return ListPage{}, err
	}

	keys := res.Keys
	if filter.enabled {
		matched := make([]string, 0, len(keys))
		for _, k := range keys {
			v, err := tbl.Get(k)
			if err != nil {
				continue
			}
			if filter.Eval(k, []byte(v)) {
				matched = append(matched, k)
			}
		}
		keys = matched
	}
	return ListPage{Keys: keys, IsComplete: res.IsComplete, Cursor: res.Cursor}, nil
}

// notify appends a change event to the write queue. Failure to enqueue is
// logged, not surfaced: the record write already committed and the caller
// cannot act on a notification error.
func (s *Service) notify(ctx context.Context, op, ns, key string) {
	ev := queue.ChangeEvent{
		Operation: op,
		ID:        key,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Data:      json.RawMessage(fmt.Sprintf(`{"namespace":%q}`, ns)),
	}
	if _, err := s.rt.Queue().Send(ctx, ev); err != nil {
		s.logger.Error("enqueue change event failed",
			log.Str("op", op), log.Str("ns", ns), log.Str("key", key), log.Err(err))
	}
}
