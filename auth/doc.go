// Package auth guards the operator HTTP surface.
//
// Requests are authenticated by an API key header or an HMAC-signed JWT
// bearer token, then authorized by role: "viewer" may read cache state and
// "operator" may also force refreshes and clear datasets.
//
//	chain := auth.NewCompositeAuthenticator(apiKeys, jwtAuth)
//	r.Use(auth.Authenticate(chain, logger))
//	r.With(auth.Require(auth.NewRoleAuthorizer(nil, ""), auth.ActionWrite)).Post(...)
package auth
