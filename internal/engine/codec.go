package engine

import (
	"encoding/json"
	"fmt"

	"github.com/utafrali/shopcart/internal/domain"
)

// KeyPrefix namespaces cart entries in the store.
const KeyPrefix = "@shopcart:cart:"

// StoreKey returns the store key for a session's cart.
func StoreKey(sessionID string) string {
	return KeyPrefix + sessionID
}

// Encode serializes a cart as a JSON array of lines. An empty cart encodes
// as "[]".
func Encode(c domain.Cart) (string, error) {
	if c == nil {
		c = domain.Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored cart. Entries that break the cart invariants are
// rejected like malformed JSON.
func Decode(raw string) (domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("stored cart: %w", err)
	}
	if c == nil {
		c = domain.Cart{}
	}
	return c, nil
}
