// Package transit defines the bus-tracking payloads and the Upstream
// interface the cache facade fetches them through.
//
// HTTPUpstream is a thin JSON client for a gateway that already serves these
// shapes. Matching raw departure feeds to lines is the gateway's concern.
package transit
