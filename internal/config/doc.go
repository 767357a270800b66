// Package config provides loading and environment overlay for dp1-feed
// configuration. It exposes a Default() baseline, a JSON file loader, and a
// DP1_* env overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/dp1-feed.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
