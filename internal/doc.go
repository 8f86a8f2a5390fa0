// Package internal contains the core implementation packages for paramtrail.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - params: tracked parameters, the incoming-key registry and its holder
//   - codec: reversible URL-safe obfuscation of values
//   - session: per-visitor value store and the cookie-keyed session manager
//   - capture: query and form values into the session store
//   - compose: tracked values back onto URLs
//   - forms: prefilled third-party form URLs
//   - sanitize: host policy for stored text
//   - render: templ components for values, links and hidden fields
//   - integration: host capabilities fed from the session
//   - server: HTTP host, middleware chain and capture inspector
//   - config, watcher: viper configuration and live reload
//   - logging, errors, metrics, validation, version: shared plumbing
//
// # Data Flow
//
// A request passes through session.Manager.Middleware, which attaches the
// visitor's Store, and capture.Middleware, which resolves tracked keys
// through the current params.Registry, decodes, sanitizes and stores them.
// Handlers and templates read values back through render, compose, forms
// and integration. A configuration reload swaps the registry in
// params.Source; the next request sees it.
//
// # Failure Policy
//
// Reading and composing never fail: a malformed token is kept literally, a
// missing value falls back to its default, and an unparsable base URL is
// treated as a bare path. Only session-subsystem failures reach the
// visitor, as 503 responses.
package internal
