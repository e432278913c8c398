package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSignAndParseToken(t *testing.T) {
	token, err := SignToken(testSecret, "school", Claims{UserID: "p-1", Role: "parent", StudentIDs: []string{"s-1", "s-2"}}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, "school", token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", claims.UserID)
	assert.Equal(t, "parent", claims.Role)
	assert.Equal(t, []string{"s-1", "s-2"}, claims.StudentIDs)
	assert.Equal(t, "p-1", claims.Subject)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := SignToken(testSecret, "school", Claims{UserID: "u-1", Role: "teacher"}, time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(testSecret, "school", Claims{UserID: "u-1", Role: "teacher"}, -time.Minute)
	require.NoError(t, err)
	noRole, err := SignToken(testSecret, "school", Claims{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)

	cases := map[string]struct {
		secret, issuer, token string
	}{
		"wrong secret": {"other", "school", valid},
		"wrong issuer": {testSecret, "elsewhere", valid},
		"expired":      {testSecret, "school", expired},
		"missing role": {testSecret, "school", noRole},
		"garbage":      {testSecret, "school", "not-a-token"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.issuer, tc.token)
			assert.Error(t, err)
		})
	}
}

func TestClaimsContext(t *testing.T) {
	_, err := ClaimsFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoClaims)

	ctx := WithClaims(context.Background(), &Claims{UserID: "u-1"})
	claims, err := ClaimsFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}
