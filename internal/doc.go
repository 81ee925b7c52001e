// Package internal holds token material helpers shared by the engine and
// the session store: session id generation, refresh-secret generation and
// hashing, and the opaque refresh-token wire encoding.
//
// Nothing here performs I/O; all randomness comes from crypto/rand.
package internal
