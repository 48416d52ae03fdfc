package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, minted, err := MintAccessToken(cfg, now, AccessTokenPayload{Role: enums.ActorRoleAdmin, JTI: "session-1"})
	require.NoError(t, err)
	require.Equal(t, "session-1", minted.ID)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, enums.ActorRoleAdmin, claims.Role)
	require.Equal(t, "session-1", claims.ID)
	require.Equal(t, "storefront", claims.Issuer)
	require.Equal(t, AdminSubject, claims.Subject)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAssignsJTI(t *testing.T) {
	_, claims, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{Role: enums.ActorRoleAdmin})
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
}

func TestMintRejectsBadInput(t *testing.T) {
	_, _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{Role: "shopper"})
	require.Error(t, err)

	cfg := testJWTConfig()
	cfg.Secret = ""
	_, _, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ActorRoleAdmin})
	require.Error(t, err)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	cfg := testJWTConfig()

	expired, _, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{Role: enums.ActorRoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, expired)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := cfg
	other.Issuer = "someone-else"
	foreign, _, err := MintAccessToken(other, time.Now(), AccessTokenPayload{Role: enums.ActorRoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, foreign)
	require.Error(t, err)

	valid, _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.ActorRoleAdmin})
	require.NoError(t, err)
	tampered := valid[:strings.LastIndex(valid, ".")] + ".bogus"
	_, err = ParseAccessToken(cfg, tampered)
	require.Error(t, err)
}
