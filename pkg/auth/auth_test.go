package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/database"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT:              config.JWTConfig{Secret: "test_secret", Expiration: time.Hour},
		BookingRefSecret: "ref_secret",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := New(testConfig())

	token, err := a.CreateToken("admin")
	require.NoError(t, err)

	claims, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := New(testConfig()).CreateToken("admin")
	require.NoError(t, err)

	other := testConfig()
	other.JWT.Secret = "different"
	_, err = New(other).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	a := New(testConfig())
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := a.CreateToken("admin")
	require.NoError(t, err)

	_, err = New(testConfig()).VerifyToken(token)
	assert.Error(t, err)
}

func TestBookingRef(t *testing.T) {
	a := New(testConfig())
	const first, second = "6f1c0c1e-5b7a-4c1e-9d55-2f0f8f5e7a10", "0b8e7d3a-1f2c-4e5d-8a9b-3c4d5e6f7a8b"
	ref := a.SignBookingRef("1717372800-am-0", first)

	assert.NoError(t, a.VerifyBookingRef(ref, "1717372800-am-0", first))
	assert.Error(t, a.VerifyBookingRef(ref, "1717372800-pm-0", first))
	assert.Error(t, a.VerifyBookingRef("garbage", "1717372800-am-0", first))

	// A later booking of the same slot gets a new nonce; the old reference
	// no longer matches it.
	assert.Error(t, a.VerifyBookingRef(ref, "1717372800-am-0", second))
	assert.Error(t, a.VerifyBookingRef(ref, "1717372800-am-0", ""))

	// Codes carrying a disambiguation suffix still split correctly.
	suffixed := a.SignBookingRef("1717372800-am-1.2", first)
	assert.NoError(t, a.VerifyBookingRef(suffixed, "1717372800-am-1.2", first))
}

func TestEnsureAdminExists(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	cfg := config.AdminConfig{Username: "pcn", Password: "s3cret"}

	require.NoError(t, EnsureAdminExists(ctx, store, cfg, zap.NewNop()))
	require.NoError(t, EnsureAdminExists(ctx, store, cfg, zap.NewNop()))

	count, err := store.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	a := New(testConfig())
	token, err := a.Login(ctx, store, "pcn", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = a.Login(ctx, store, "pcn", "wrong")
	assert.Error(t, err)
}
