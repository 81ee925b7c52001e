// Package password implements Argon2id hashing with PHC-string encoding
// and a minimal length policy. Cost parameters are embedded in the hash
// so they can be raised over time; NeedsUpgrade lets callers re-hash
// stale credentials transparently on login.
package password
