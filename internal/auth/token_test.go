package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	uid := uuid.New()
	raw, err := MakeToken(uid, appointment.RoleProfessional, secret, time.Hour)
	require.NoError(t, err)

	id, err := ParseToken(raw, secret)
	require.NoError(t, err)
	assert.Equal(t, uid, id.ID)
	assert.Equal(t, appointment.RoleProfessional, id.Role)
	assert.WithinDuration(t, time.Now(), id.IssuedAt, 2*time.Second)
}

func TestParseTokenRejects(t *testing.T) {
	raw, err := MakeToken(uuid.New(), appointment.RoleClient, secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(raw, "other-secret")
	assert.ErrorIs(t, err, ErrBadToken)

	_, err = ParseToken("not.a.token", secret)
	assert.ErrorIs(t, err, ErrBadToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.NewString(),
		Role:   "client",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	raw, err = expired.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(raw, secret)
	assert.ErrorIs(t, err, ErrBadToken)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           uuid.NewString(),
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	})
	raw, err = badRole.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(raw, secret)
	assert.ErrorIs(t, err, ErrBadToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           uuid.NewString(),
		Role:             "client",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(raw, secret)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestMakeTokenUnknownRole(t *testing.T) {
	_, err := MakeToken(uuid.New(), appointment.RoleUnknown, secret, 0)
	assert.Error(t, err)
}
