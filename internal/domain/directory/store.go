package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

var ErrUserNotFound = errors.New("user not found")

// Store answers who exists and who holds which role. Lookups only see active users.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) UsersForRole(ctx context.Context, roleID string) ([]string, error) {
	return s.collectIDs(ctx, `
    SELECT id
    FROM users
    WHERE role_id = $1 AND status = $2
    ORDER BY id
  `, roleID, UserStatusActive)
}

func (s *Store) AllActiveUsers(ctx context.Context) ([]string, error) {
	return s.collectIDs(ctx, `
    SELECT id
    FROM users
    WHERE status = $1
    ORDER BY id
  `, UserStatusActive)
}

func (s *Store) UserIDByUsername(ctx context.Context, username string) (string, error) {
	return s.lookupID(ctx, `
    SELECT id
    FROM users
    WHERE lower(username) = lower($1) AND status = $2
  `, strings.TrimSpace(username))
}

func (s *Store) UserIDByEmail(ctx context.Context, email string) (string, error) {
	return s.lookupID(ctx, `
    SELECT id
    FROM users
    WHERE lower(email) = lower($1) AND status = $2
  `, strings.TrimSpace(email))
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.username, u.email, COALESCE(u.role_id::text, ''), COALESCE(r.name, ''),
           COALESCE(u.department_code, ''), COALESCE(u.employment_type, ''), u.status, u.created_at
    FROM users u
    LEFT JOIN roles r ON r.id = u.role_id
    WHERE u.id = $1
  `, userID).Scan(&u.ID, &u.Username, &u.Email, &u.RoleID, &u.RoleName, &u.DepartmentCode, &u.EmploymentType, &u.Status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, in NewUser) (string, error) {
	status := in.Status
	if status == "" {
		status = UserStatusActive
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (username, email, password_hash, role_id, department_code, employment_type, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, in.Username, in.Email, in.PasswordHash, nullIfEmpty(in.RoleID), nullIfEmpty(in.DepartmentCode), nullIfEmpty(in.EmploymentType), status).Scan(&id)
	return id, err
}

func (s *Store) RoleIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", name).Scan(&id)
	return id, err
}

func (s *Store) lookupID(ctx context.Context, query, value string) (string, error) {
	if value == "" {
		return "", ErrUserNotFound
	}
	var id string
	err := s.DB.QueryRow(ctx, query, value, UserStatusActive).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, value)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
