package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cfgpkg "github.com/whistlegraph/dp1-feed/internal/config"
	"github.com/whistlegraph/dp1-feed/internal/kv"
	"github.com/whistlegraph/dp1-feed/internal/queue"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
	"github.com/whistlegraph/dp1-feed/pkg/log"
)

// Feed namespaces. Tables are auto-created on first use; repeated opens are
// idempotent.
const (
	NamespacePlaylists     = "playlists"
	NamespaceChannels      = "channels"
	NamespacePlaylistItems = "playlist_items"
)

// Options for building the Runtime.
type Options struct {
	Config        cfgpkg.Config
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Logger        log.Logger
}

// Runtime is the application context for a single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger

	mu     sync.Mutex
	tables map[string]*kv.Table

	queue     *queue.Queue
	processor *queue.Processor
}

// Open validates configuration, opens the underlying storage, and prepares
// the write queue. The processor is created but not started; call
// StartProcessor once the surrounding application is ready to dispatch.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithOutput(log.NullOutput{}))
	}

	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.Config.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, fmt.Errorf("runtime: open storage: %w", err)
	}
	q, err := queue.Open(db, opts.Config.Queue.Name, opts.Config.Queue.MaxAttempts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rt := &Runtime{
		db:     db,
		config: opts.Config,
		logger: logger,
		tables: make(map[string]*kv.Table),
		queue:  q,
	}
	// open the fixed feed namespaces up front so construction surfaces
	// storage problems immediately
	for _, ns := range []string{NamespacePlaylists, NamespaceChannels, NamespacePlaylistItems} {
		if _, err := rt.Table(ns); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Close stops the processor, then releases the storage handle. Safe to call
// once; the Runtime is unusable afterwards.
func (r *Runtime) Close() error {
	if r.processor != nil {
		r.processor.Stop()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("runtime: db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Table returns the KV table for a namespace, opening it on first use.
func (r *Runtime) Table(ns string) (*kv.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[ns]; ok {
		return t, nil
	}
	t, err := kv.OpenTable(r.db, ns)
	if err != nil {
		return nil, err
	}
	r.tables[ns] = t
	return t, nil
}

// Queue returns the write queue.
func (r *Runtime) Queue() *queue.Queue { return r.queue }

// StartProcessor launches the background queue processor against the
// configured dispatch target. No-op when no target is configured.
func (r *Runtime) StartProcessor() {
	qc := r.config.Queue
	if qc.DispatchURL == "" {
		r.logger.Warn("no dispatch url configured, queue processor not started")
		return
	}
	r.processor = queue.NewProcessor(r.queue, queue.ProcessorOptions{
		Target:       qc.DispatchURL,
		Token:        qc.DispatchToken,
		PollInterval: time.Duration(qc.PollIntervalMs) * time.Millisecond,
		FetchLimit:   qc.FetchLimit,
		Logger:       r.logger,
	})
	r.processor.Start()
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the process logger.
func (r *Runtime) Logger() log.Logger { return r.logger }
