package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/atinyakov/ClassFeed/internal/models"
)

type mockIdentityRepo struct {
	GetStudentByIDFunc func(ctx context.Context, id string) (*models.Identity, error)
}

func (m *mockIdentityRepo) GetStudentByID(ctx context.Context, id string) (*models.Identity, error) {
	return m.GetStudentByIDFunc(ctx, id)
}

type mockIssuer struct {
	token string
	err   error
	gotID string
}

func (m *mockIssuer) NewAccessToken(studentID string, role models.Role) (string, error) {
	m.gotID = studentID
	return m.token, m.err
}

func storeWith(students ...models.Identity) *mockIdentityRepo {
	return &mockIdentityRepo{
		GetStudentByIDFunc: func(ctx context.Context, id string) (*models.Identity, error) {
			for _, s := range students {
				if s.ID == id {
					s := s
					return &s, nil
				}
			}
			return nil, sql.ErrNoRows
		},
	}
}

func TestVerify_Success(t *testing.T) {
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right", Name: "Asha"}), &mockIssuer{})

	got, err := svc.Verify(context.Background(), "  S100 ", "right")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if got.ID != "S100" || got.Name != "Asha" {
		t.Errorf("Verify = %+v; want S100/Asha", got)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right"}), &mockIssuer{})

	_, err := svc.Verify(context.Background(), "S100", "wrong")
	if !errors.Is(err, models.ErrWrongSecret) {
		t.Fatalf("Verify error = %v; want ErrWrongSecret", err)
	}
}

func TestVerify_NotFound(t *testing.T) {
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right"}), &mockIssuer{})

	for _, id := range []string{"S999", "s100", "", "   "} {
		_, err := svc.Verify(context.Background(), id, "right")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Verify(%q) error = %v; want ErrNotFound", id, err)
		}
	}
}

func TestVerify_BackendUnavailable(t *testing.T) {
	repo := &mockIdentityRepo{
		GetStudentByIDFunc: func(ctx context.Context, id string) (*models.Identity, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	svc := NewAuthService(repo, &mockIssuer{})

	_, err := svc.Verify(context.Background(), "S100", "right")
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Fatalf("Verify error = %v; want ErrBackendUnavailable", err)
	}
	if errors.Is(err, models.ErrNotFound) {
		t.Fatal("backend failure must not look like NotFound")
	}
}

func TestVerify_NoStore(t *testing.T) {
	svc := NewAuthService(nil, &mockIssuer{})

	_, err := svc.Verify(context.Background(), "S100", "right")
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Fatalf("Verify error = %v; want ErrBackendUnavailable", err)
	}
}

func TestLogin_IssuesToken(t *testing.T) {
	iss := &mockIssuer{token: "tok"}
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right"}), iss)

	student, token, err := svc.Login(context.Background(), "S100", "right")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if student.ID != "S100" || token != "tok" || iss.gotID != "S100" {
		t.Errorf("Login = %v, %q (issuer saw %q)", student, token, iss.gotID)
	}
}

func TestLogin_TokenError(t *testing.T) {
	iss := &mockIssuer{err: errors.New("sign failed")}
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right"}), iss)

	if _, _, err := svc.Login(context.Background(), "S100", "right"); err == nil {
		t.Fatal("expected error from token issuer")
	}
}

func TestLogin_RejectedDoesNotIssue(t *testing.T) {
	iss := &mockIssuer{token: "tok"}
	svc := NewAuthService(storeWith(models.Identity{ID: "S100", Secret: "right"}), iss)

	if _, _, err := svc.Login(context.Background(), "S100", "wrong"); !errors.Is(err, models.ErrWrongSecret) {
		t.Fatalf("Login error = %v; want ErrWrongSecret", err)
	}
	if iss.gotID != "" {
		t.Errorf("token issued for rejected login: %q", iss.gotID)
	}
}
