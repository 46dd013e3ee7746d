// Package server wires the HTTP surface of the task management API:
// authentication and task CRUD routes, the assistant chat endpoint,
// health probes, and a dedicated Prometheus metrics server.
//
// Task routes are guarded by a bearer-token middleware that resolves
// the JWT to a user id on the request context; every handler scopes
// its queries to that owner.
package server
