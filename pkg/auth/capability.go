package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the capability role required for admin operations on the switch.
const RoleAdmin = "settlement:admin"

var ErrCapabilityRequired = errors.New("missing required capability")

// Capability is the policy token threaded through every admin operation. It
// is checked at the start of the operation, before any state mutation.
type Capability struct {
	Subject string
	Roles   []string
}

// Has reports whether the capability grants a role.
func (c Capability) Has(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns ErrCapabilityRequired unless the capability grants the role.
func (c Capability) Require(role string) error {
	if !c.Has(role) {
		return ErrCapabilityRequired
	}
	return nil
}

// CapabilityFromClaims extracts a capability from validated JWT claims. Roles
// are read from the "roles" claim; the subject from "sub".
func CapabilityFromClaims(claims jwt.MapClaims) Capability {
	c := Capability{}
	if sub, ok := claims["sub"].(string); ok {
		c.Subject = sub
	}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				c.Roles = append(c.Roles, s)
			}
		}
	}
	return c
}

type contextKey string

const contextKeyCapability contextKey = "capability"

// WithCapability adds the capability to the context.
func WithCapability(ctx context.Context, c Capability) context.Context {
	return context.WithValue(ctx, contextKeyCapability, c)
}

// CapabilityFromContext retrieves the capability from the context.
func CapabilityFromContext(ctx context.Context) (Capability, bool) {
	c, ok := ctx.Value(contextKeyCapability).(Capability)
	return c, ok
}
