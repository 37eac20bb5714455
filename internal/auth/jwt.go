// Package auth issues and verifies the access tokens handed out at login.
// The token subject is the student id; the feed stream trusts nothing else
// to decide whose items to send.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// Claims carried by an access token.
type Claims struct {
	StudentID string      `json:"student_id"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 access tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. secret must not be empty.
func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// NewAccessToken returns a signed token for the given student and role.
func (i *Issuer) NewAccessToken(studentID string, role models.Role) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		StudentID: studentID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   studentID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseToken verifies the signature and expiry of tokenString.
func (i *Issuer) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.StudentID == "" || claims.Subject != claims.StudentID {
		return nil, errors.New("token subject does not match student id")
	}
	return claims, nil
}
