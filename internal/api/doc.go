// Package api is the authenticated transport to the Storage API.
//
// Requests carry the X-StorageApi-Token header, bodies are form encoded and
// responses are JSON. Non-2xx answers surface as *StatusError, which matches
// errors.ErrNotFound for 404 and errors.ErrUnauthorized for 401/403 so callers
// can branch with errors.Is. The transport never retries.
package api
