package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims identifies a kitchen or admin user on mutation routes.
type StaffClaims struct {
	Subject  string
	Role     string
	BranchID string
}

type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    "qrdine-backend",
		ttl:       ttl,
	}
}

func (s *TokenService) GenerateToken(c StaffClaims) (string, error) {
	claims := jwt.MapClaims{
		"sub":    c.Subject,                    // Subject
		"role":   c.Role,                       // kitchen | admin
		"branch": c.BranchID,                   // Branch scope
		"iat":    time.Now().Unix(),            // Issued At
		"exp":    time.Now().Add(s.ttl).Unix(), // Expiration
		"iss":    s.issuer,                     // Issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses and validates the JWT string
func (s *TokenService) ValidateToken(tokenStr string) (StaffClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Ensure signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return StaffClaims{}, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return StaffClaims{}, fmt.Errorf("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return StaffClaims{}, fmt.Errorf("subject not found in token")
	}
	role, _ := claims["role"].(string)
	branch, _ := claims["branch"].(string)
	return StaffClaims{Subject: sub, Role: role, BranchID: branch}, nil
}
