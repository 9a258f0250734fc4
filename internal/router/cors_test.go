package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsConfig(t *testing.T) {
	open := corsConfig(nil)
	require.NoError(t, open.Validate())
	assert.True(t, open.AllowAllOrigins)
	assert.False(t, open.AllowCredentials)

	strict := corsConfig([]string{"https://hr.example.com"})
	require.NoError(t, strict.Validate())
	assert.False(t, strict.AllowAllOrigins)
	assert.True(t, strict.AllowCredentials)
	assert.Equal(t, []string{"https://hr.example.com"}, strict.AllowOrigins)
}
