// Package session stores refresh-token sessions in Redis and implements
// the rotation compare-and-swap. Each session is one Redis hash plus a
// membership entry in a per-user index set; rotation runs as a single
// Lua script so that exactly one presenter of the current hash wins and
// any stale presenter revokes the session.
package session
