package auth

import (
	"context"

	"hrdocs/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID       string
	RoleID   string
	RoleName string
	Password string
}

// FindActiveUserByLogin matches either the username or the email, case-insensitively.
func (s *Store) FindActiveUserByLogin(ctx context.Context, login string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, COALESCE(u.role_id::text, ''), COALESCE(r.name, ''), u.password_hash
    FROM users u
    LEFT JOIN roles r ON u.role_id = r.id
    WHERE (lower(u.username) = lower($1) OR lower(u.email) = lower($1)) AND u.status = 'active'
    ORDER BY (lower(u.username) = lower($1)) DESC
    LIMIT 1
  `, login).Scan(&out.ID, &out.RoleID, &out.RoleName, &out.Password)
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}
