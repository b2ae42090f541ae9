package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "vfx_"))
	assert.Len(t, key, 4+64)

	other, err := GenerateAPIKey()
	assert.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestHashAPIKey(t *testing.T) {
	hash := HashAPIKey("vfx_example")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIKey("vfx_example"))
	assert.NotEqual(t, hash, HashAPIKey("vfx_other"))
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	assert.NoError(t, err)

	assert.True(t, CheckPasswordHash("correct-horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
