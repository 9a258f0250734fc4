package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrors(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("User not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "load: User not found", err.Error())

	assert.True(t, errors.Is(Forbidden("no"), ErrForbidden))
	assert.True(t, errors.Is(Unauthenticated("no"), ErrUnauthenticated))

	var ve *ValidationError
	assert.True(t, errors.As(Invalid("name", "name is required"), &ve))
	assert.Equal(t, "name", ve.Field)
}

func TestCapabilityTable(t *testing.T) {
	assert.True(t, Can(RoleAdmin, PermAuditView))
	assert.False(t, Can(RoleHR, PermAuditView))
	assert.True(t, Can(RoleHR, PermLeaveReview))
	assert.False(t, Can(RoleManager, PermLeaveReview))
	assert.False(t, Can(RoleEmployee, PermUsersView))
	assert.False(t, Can("GUEST", PermUsersView))
	assert.Empty(t, PermissionsFor(RoleEmployee))

	perms := PermissionsFor(RoleManager)
	for i := 1; i < len(perms); i++ {
		assert.Less(t, string(perms[i-1]), string(perms[i]))
	}
}
