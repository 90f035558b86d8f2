package services

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAuthorizerCanManage(t *testing.T) {
	env := newTestEnv()
	tour := &models.Tournament{ID: "t1", OrganizerID: "org"}
	auth := env.authorizer()

	tests := []struct {
		user string
		want bool
	}{
		{user: "admin", want: true},
		{user: "org", want: true},
		{user: "org2", want: false},
		{user: "player", want: false},
		{user: "ghost", want: false},
		{user: "", want: false},
	}
	for _, tt := range tests {
		ok, err := auth.CanManage(context.Background(), nil, tt.user, tour)
		require.NoError(t, err, tt.user)
		assert.Equal(t, tt.want, ok, tt.user)
	}

	ok, err := auth.CanManage(context.Background(), nil, "admin", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
