// Package debugserver exposes cache state over HTTP for operators.
//
// Probe routes (/healthz, /readyz) are always open. Every other route sits
// behind the configured authenticator: reads need the "read" action, and
// POST /refresh/{dataset} and POST /clear need "write".
//
//	GET  /stats                 engine counters
//	GET  /status                hot dataset status plus counters
//	GET  /status/{key}          one cache key
//	GET  /readiness             which screens can render from cache
//	GET  /health                every health check, JSON
//	GET  /health/{name}         one health check
//	GET  /metrics               Prometheus exposition
//	GET  /data/{dataset}?id=    read a dataset through the cache
//	POST /refresh/{dataset}?id= force a refresh
//	POST /clear?dataset=        clear every key of one dataset, or everything
package debugserver
