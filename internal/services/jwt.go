package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"chatsino/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the session token carries: enough to rebuild the safe
// client identity without a database round trip.
type Claims struct {
	Username        string                 `json:"username"`
	PermissionLevel models.PermissionLevel `json:"permissionLevel"`
	jwt.RegisteredClaims
}

func (c *Claims) ClientID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: "chatsino", ttl: 24 * time.Hour}
}

func (s *JWTService) GenerateToken(client models.ClientIdentity) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:        client.Username,
		PermissionLevel: client.PermissionLevel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(client.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := claims.ClientID(); err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}
	if !claims.PermissionLevel.Valid() {
		return nil, fmt.Errorf("invalid token permission level %q", claims.PermissionLevel)
	}
	return claims, nil
}
