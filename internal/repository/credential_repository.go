package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/catalog-service/internal/domain"
)

// CredentialStore holds username to password-hash and role mappings.
// Implementations must be safe for concurrent use.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.Credential, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.Credential, error)
}

type credentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository returns a SQL-backed implementation. Queries use
// $n placeholders, which both Postgres and SQLite accept.
func NewCredentialRepository(db *sql.DB) CredentialStore {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) FindByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at
        FROM credentials WHERE username=$1`

	var (
		cred     domain.Credential
		roleName string
	)
	if err := r.db.QueryRowContext(ctx, query, username).Scan(
		&cred.ID,
		&cred.Username,
		&cred.PasswordHash,
		&roleName,
		&cred.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", cred.Username, err)
	}
	cred.Role = role
	return &cred, nil
}

func (r *credentialRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT COUNT(1) FROM credentials WHERE username=$1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *credentialRepository) Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.Credential, error) {
	const query = `
        INSERT INTO credentials (id, username, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	cred := &domain.Credential{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.db.ExecContext(ctx, query,
		cred.ID,
		cred.Username,
		cred.PasswordHash,
		cred.Role.String(),
		cred.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return cred, nil
}
