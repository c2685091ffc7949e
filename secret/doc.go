// Package secret resolves secret-bearing configuration values such as the
// Redis URL, the upstream token and the debug API key.
//
// A value is first expanded strictly against the environment (see
// ExpandEnvStrict). A value that then holds a reference of the form
//
//	secretref:<provider>:<ref>
//
// is resolved through the named Provider, either as the whole value or
// inline ("redis://:secretref:file:redis_password@cache:6379/0").
//
// Two providers are built in: "env" reads an environment variable and
// "file" reads a file below a base directory, e.g. /run/secrets.
package secret
