// Package mock defines the intercepted-call boundary: the normalized
// Request a transport hands to the dispatcher and the Response it expects
// back.
//
// Requests carry the raw body; handlers decode it with DecodeJSON, JSON or
// JSONPath. Responses carry any serializable body and are encoded by Bytes
// when written to the wire.
package mock
