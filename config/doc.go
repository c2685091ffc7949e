// Package config loads transitcache settings.
//
// Settings come from, in increasing precedence: Default(), an optional YAML
// file, and TRANSITCACHE_* environment variables, where nested keys join
// with underscores (TRANSITCACHE_UPSTREAM_BASE_URL). Durations use Go
// syntax ("30s", "5m").
//
// Secret-bearing fields may hold ${ENV} references and secretref: values;
// Resolve expands them after loading.
package config
