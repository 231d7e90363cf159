// Package identity stamps outbound requests with a stable client identity.
package identity

import "github.com/google/uuid"

// NewClientID returns a fresh RFC 4122 client identifier, stamped onto every
// wire.RequestMeta the engine builds (spec §6).
func NewClientID() string {
	return uuid.NewString()
}
