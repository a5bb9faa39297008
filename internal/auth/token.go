package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/booking-lifecycle/internal/appointment"
)

var ErrBadToken = errors.New("invalid token")

const DefaultTTL = 24 * time.Hour

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	appointment.Requester
	IssuedAt time.Time
}

// MakeToken signs an HS256 token for a user. ttl <= 0 uses DefaultTTL.
func MakeToken(userID uuid.UUID, role appointment.Role, secret string, ttl time.Duration) (string, error) {
	if role != appointment.RoleClient && role != appointment.RoleProfessional {
		return "", fmt.Errorf("make token: unsupported role %s", role)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	c := Claims{
		UserID: userID.String(),
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Identity, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuedAt())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrBadToken
	}

	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: uid: %w", ErrBadToken, err)
	}
	role, err := appointment.ParseRole(c.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	if c.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrBadToken)
	}

	return &Identity{
		Requester: appointment.Requester{ID: id, Role: role},
		IssuedAt:  c.IssuedAt.Time,
	}, nil
}
