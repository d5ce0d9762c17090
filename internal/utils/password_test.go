package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avendal/tenant-identity/internal/utils"
)

func TestHashPasswordVerifies(t *testing.T) {
	hash, err := utils.HashPassword("cat", 4)
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "cat", hash)

	assert.True(t, utils.VerifyPassword(hash, "cat"))
	assert.False(t, utils.VerifyPassword(hash, "dog"))
}

func TestHashPasswordSaltsAreRandom(t *testing.T) {
	h1, err := utils.HashPassword("cat", 4)
	assert.NoError(t, err)
	h2, err := utils.HashPassword("cat", 4)
	assert.NoError(t, err)

	// Fresh salt every call: same plaintext, different stored values.
	assert.NotEqual(t, h1, h2)
	assert.True(t, utils.VerifyPassword(h1, "cat"))
	assert.True(t, utils.VerifyPassword(h2, "cat"))
}

func TestVerifyPasswordNoHash(t *testing.T) {
	assert.False(t, utils.VerifyPassword("", "anything"))
	assert.False(t, utils.VerifyPassword("not-a-bcrypt-hash", "anything"))
}
