package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, repo *SQLiteUserRepository, username, password string, role Role, active bool) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return user
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("unexpected PHC format: %s", hash)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("expected correct password to verify")
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("expected wrong password to fail")
	}

	if _, err := VerifyPassword("anything", "not-a-phc-hash"); err == nil {
		t.Error("expected malformed hash to error")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	user := &User{ID: "user-1", Username: "operator1", Role: RoleOperator}

	token, err := GenerateAccessToken(user, secret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.Username != "operator1" || claims.Role != RoleOperator {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if _, err := ParseToken(token, "another-secret-another-secret-xx"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid with wrong secret, got %v", err)
	}
	if _, err := ParseToken("garbage", secret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"

	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Username: "viewer1",
		Role:     RoleViewer,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseToken(token, secret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()
	seedUser(t, repo, "operator1", "s3cret-pass", RoleOperator, true)
	seedUser(t, repo, "disabled1", "s3cret-pass", RoleViewer, false)

	user, err := repo.Authenticate(ctx, "operator1", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Role != RoleOperator {
		t.Errorf("expected operator role, got %s", user.Role)
	}

	if _, err := repo.Authenticate(ctx, "operator1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := repo.Authenticate(ctx, "nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := repo.Authenticate(ctx, "disabled1", "s3cret-pass"); !errors.Is(err, ErrUserInactive) {
		t.Errorf("expected ErrUserInactive, got %v", err)
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	seedUser(t, repo, "operator1", "s3cret-pass", RoleOperator, true)

	err := repo.Create(context.Background(), &User{
		ID:           uuid.NewString(),
		Username:     "operator1",
		PasswordHash: "x",
		Role:         RoleViewer,
		IsActive:     true,
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	err := repo.Create(ctx, &User{ID: "u1", Username: "has spaces", PasswordHash: "x", Role: RoleViewer})
	if !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("expected ErrInvalidUsername, got %v", err)
	}
	err = repo.Create(ctx, &User{ID: "u1", Username: "ok", PasswordHash: "x", Role: Role("superuser")})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestSetActiveAndDelete(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()
	user := seedUser(t, repo, "viewer1", "s3cret-pass", RoleViewer, true)

	if err := repo.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.IsActive {
		t.Error("expected account disabled")
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on repeat delete, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := EnsureAdmin(ctx, repo, "admin", "bootstrap-password")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !created {
		t.Fatal("expected admin account to be created")
	}

	user, err := repo.Authenticate(ctx, "admin", "bootstrap-password")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Errorf("expected admin role, got %s", user.Role)
	}

	// Second call leaves the existing account alone.
	created, err = EnsureAdmin(ctx, repo, "admin", "different-password")
	if err != nil {
		t.Fatalf("EnsureAdmin repeat: %v", err)
	}
	if created {
		t.Error("expected existing admin to be left untouched")
	}
	if _, err := repo.Authenticate(ctx, "admin", "bootstrap-password"); err != nil {
		t.Errorf("expected original password still valid, got %v", err)
	}
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role       Role
		operate    bool
		administer bool
	}{
		{RoleViewer, false, false},
		{RoleOperator, true, false},
		{RoleAdmin, true, true},
	}
	for _, tt := range tests {
		if got := tt.role.CanOperate(); got != tt.operate {
			t.Errorf("%s.CanOperate() = %v, want %v", tt.role, got, tt.operate)
		}
		if got := tt.role.CanAdminister(); got != tt.administer {
			t.Errorf("%s.CanAdminister() = %v, want %v", tt.role, got, tt.administer)
		}
	}
}
