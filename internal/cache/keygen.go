package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyGenerator builds cache keys from request parameters using SHA-256
// hashing. Hashing keeps the key size constant regardless of prompt length,
// and identical requests deliberately collide so they share one entry.
type KeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewKeyGenerator creates a KeyGenerator with an optional prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{Prefix: prefix}
}

// Generate creates a key from the routing parameters.
// The key format is: [prefix:]namespace:sha256(type|prompt|quality)
func (g *KeyGenerator) Generate(namespace, requestType, prompt, quality string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("type:%s", requestType))
	sb.WriteString(fmt.Sprintf("|prompt:%s", prompt))
	if quality != "" {
		sb.WriteString(fmt.Sprintf("|quality:%s", quality))
	}
	return g.fromRaw(namespace, sb.String())
}

// GenerateFromRaw creates a key from arbitrary serialized content. Used by
// the webhook dispatcher, whose key includes the JSON-encoded payload.
func (g *KeyGenerator) GenerateFromRaw(namespace, content string) string {
	return g.fromRaw(namespace, content)
}

func (g *KeyGenerator) fromRaw(namespace, content string) string {
	hash := sha256.Sum256([]byte(content))
	hashHex := hex.EncodeToString(hash[:])

	var key strings.Builder
	if g.Prefix != "" {
		key.WriteString(g.Prefix)
		key.WriteString(":")
	}
	if namespace != "" {
		key.WriteString(namespace)
		key.WriteString(":")
	}
	key.WriteString(hashHex)
	return key.String()
}
