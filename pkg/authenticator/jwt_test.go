package authenticator_test

import (
	"testing"
	"time"

	"github.com/questx-lab/coursechat/pkg/authenticator"
	"github.com/stretchr/testify/require"
)

type principal struct {
	ID string `json:"id"`
}

func TestJWT(t *testing.T) {
	engine := authenticator.NewTokenEngine[principal]("secret", time.Minute)
	token, err := engine.Generate("user1", principal{ID: "user1"})
	require.NoError(t, err)

	obj, err := engine.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user1", obj.ID)
}

func TestJWTExpiration(t *testing.T) {
	engine := authenticator.NewTokenEngine[principal]("secret", -time.Minute)
	token, err := engine.Generate("user1", principal{ID: "user1"})
	require.NoError(t, err)

	_, err = engine.Verify(token)
	require.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := authenticator.NewTokenEngine[principal]("secret", time.Minute).
		Generate("user1", principal{ID: "user1"})
	require.NoError(t, err)

	_, err = authenticator.NewTokenEngine[principal]("other", time.Minute).Verify(token)
	require.Error(t, err)
}
