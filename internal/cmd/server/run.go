package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/whistlegraph/dp1-feed/internal/config"
	"github.com/whistlegraph/dp1-feed/internal/runtime"
	httpserver "github.com/whistlegraph/dp1-feed/internal/server/http"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
	logpkg "github.com/whistlegraph/dp1-feed/pkg/log"
)

// small wrapper to allow testing
var getenv = func(key string) string { return os.Getenv(key) }

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

type Options struct {
	Config        cfgpkg.Config
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
}

// Run starts the feed server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass context.Background still get clean shutdown on SIGINT/SIGTERM.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Config.DataDir == "" {
		opts.Config.DataDir = cfgpkg.DefaultDataDir()
	}

	lcfg := &logpkg.Config{
		Level:  getenvDefault("DP1_LOG_LEVEL", "info"),
		Format: getenvDefault("DP1_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(lcfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		Config:        opts.Config,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting dp1-feed server",
		logpkg.Str("http", opts.Config.HTTPAddr),
		logpkg.Str("data_dir", opts.Config.DataDir),
		logpkg.Str("queue", opts.Config.Queue.Name),
		logpkg.Str("dispatch_url", opts.Config.Queue.DispatchURL),
		logpkg.Str("level", lcfg.Level),
		logpkg.Str("format", lcfg.Format),
	)

	rt.StartProcessor()

	hsrv := httpserver.NewWithLogger(rt, procLogger)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, opts.Config.HTTPAddr) }()

	select {
	case <-sctx.Done():
	case err := <-errCh:
		if err != nil && sctx.Err() == nil {
			return err
		}
	}
	// Shut the HTTP surface before the runtime so in-flight requests do
	// not observe a closed store.
	hsrv.Close()
	return nil
}
