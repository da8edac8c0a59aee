package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOpponent_Involution(t *testing.T) {
	assert.Equal(t, RoleClient, RoleHost.Opponent())
	assert.Equal(t, RoleHost, RoleClient.Opponent())
	for _, r := range []Role{RoleHost, RoleClient} {
		assert.Equal(t, r, r.Opponent().Opponent())
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleHost.Valid())
	assert.True(t, RoleClient.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("spectator").Valid())
}
