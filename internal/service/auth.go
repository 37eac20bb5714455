// Package service provides the business logic behind the HTTP handlers:
// credential verification and owner-scoped feed snapshots.
package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// IdentityRepository defines the identity store lookup required by AuthService.
type IdentityRepository interface {
	// GetStudentByID returns the student whose id equals id, or sql.ErrNoRows.
	GetStudentByID(ctx context.Context, id string) (*models.Identity, error)
}

// TokenIssuer mints access tokens for verified students.
type TokenIssuer interface {
	NewAccessToken(studentID string, role models.Role) (string, error)
}

// AuthService verifies student credentials against the identity store.
type AuthService struct {
	// repo performs the data-layer lookup.
	repo   IdentityRepository
	tokens TokenIssuer
}

// NewAuthService constructs a new AuthService.
func NewAuthService(repo IdentityRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

// Verify resolves id and secret to a full identity record.
//
// The id is trimmed and compared case-sensitively. It returns
// models.ErrNotFound when no record matches, models.ErrWrongSecret when the
// secret differs and models.ErrBackendUnavailable when the store itself failed.
func (s *AuthService) Verify(ctx context.Context, id, secret string) (*models.Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.ErrNotFound
	}
	if s.repo == nil {
		return nil, fmt.Errorf("identity store not configured: %w", models.ErrBackendUnavailable)
	}

	student, err := s.repo.GetStudentByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %v: %w", id, err, models.ErrBackendUnavailable)
	}
	// Plain comparison of stored secrets; the store keeps no hashes.
	if subtle.ConstantTimeCompare([]byte(student.Secret), []byte(secret)) != 1 {
		return nil, models.ErrWrongSecret
	}
	return student, nil
}

// Login verifies the credentials and issues an access token for the student.
func (s *AuthService) Login(ctx context.Context, id, secret string) (*models.Identity, string, error) {
	student, err := s.Verify(ctx, id, secret)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.NewAccessToken(student.ID, models.RoleStudent)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return student, token, nil
}
