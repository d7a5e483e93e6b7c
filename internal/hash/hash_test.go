package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hashed, err := HashPassword("password")
	require.NoError(t, err)
	require.NotEmpty(t, hashed)
	require.NotEqual(t, "password", hashed)

	assert.True(t, CheckPassword(hashed, "password"))
	assert.False(t, CheckPassword(hashed, "other password"))
	assert.False(t, CheckPassword(hashed, ""))
}
