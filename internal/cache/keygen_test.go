package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyGenerator_Deterministic(t *testing.T) {
	g := NewKeyGenerator("relay")

	k1 := g.Generate("route", "chat_simple", "Hello", "low")
	k2 := g.Generate("route", "chat_simple", "Hello", "low")
	assert.Equal(t, k1, k2)
}

func TestKeyGenerator_DistinguishesInputs(t *testing.T) {
	g := NewKeyGenerator("relay")
	base := g.Generate("route", "chat_simple", "Hello", "low")

	assert.NotEqual(t, base, g.Generate("route", "chat_deep", "Hello", "low"))
	assert.NotEqual(t, base, g.Generate("route", "chat_simple", "Goodbye", "low"))
	assert.NotEqual(t, base, g.Generate("route", "chat_simple", "Hello", "high"))
}

func TestKeyGenerator_Format(t *testing.T) {
	g := NewKeyGenerator("relay")
	key := g.Generate("route", "chat_simple", "Hello", "low")

	parts := strings.Split(key, ":")
	assert.Len(t, parts, 3)
	assert.Equal(t, "relay", parts[0])
	assert.Equal(t, "route", parts[1])
	assert.Len(t, parts[2], 64) // hex-encoded sha256
}

func TestKeyGenerator_NoPrefixNoNamespace(t *testing.T) {
	g := NewKeyGenerator("")
	key := g.Generate("", "chat_simple", "Hello", "")
	assert.NotContains(t, key, ":")
	assert.Len(t, key, 64)
}

func TestKeyGenerator_ConstantSizeForLargePrompts(t *testing.T) {
	g := NewKeyGenerator("relay")
	small := g.Generate("route", "chat_simple", "hi", "low")
	large := g.Generate("route", "chat_simple", strings.Repeat("x", 1<<20), "low")
	assert.Equal(t, len(small), len(large))
}

func TestKeyGenerator_FromRaw(t *testing.T) {
	g := NewKeyGenerator("relay")
	k1 := g.GenerateFromRaw("dispatch", `{"module":"news","data":{"a":1}}`)
	k2 := g.GenerateFromRaw("dispatch", `{"module":"news","data":{"a":2}}`)
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "relay:dispatch:"))
}
