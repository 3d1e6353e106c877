package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail    = errors.New("a user with that email already exists")
	ErrDuplicateUsername = errors.New("a user with that username already exists")
)

// Roles gate which price fields a viewer may see. A user with IsAdmin set
// has implicit full access regardless of role.
const (
	RoleCustomer    = "customer"
	RoleWholesale   = "wholesale"
	RolePreparation = "preparation"
	RoleFullDetails = "full_details"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleWholesale, RolePreparation, RoleFullDetails:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Phone        *string   `json:"phone,omitempty"`
	Address      *string   `json:"address,omitempty"`
	Governorate  *string   `json:"governorate,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	Role         string    `json:"role"`
	Password     password  `json:"-"` // Hide password
	RefreshToken string    `json:"-"` // Sensitive data
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanSeeWholesalePrice reports whether this user may see the wholesale
// price field.
func (u *User) CanSeeWholesalePrice() bool {
	return u.IsAdmin || u.Role == RoleWholesale || u.Role == RoleFullDetails
}

// Password struct to store plain text and hash
type password struct {
	text *string `json:"-"` // Hide plaintext password
	hash []byte  `json:"-"` // Hide hashed password
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.text = &text
	p.hash = hash

	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

type UsersStore struct {
	db *pgxpool.Pool
}

func (s *UsersStore) Create(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if user.Role == "" {
		user.Role = RoleCustomer
	}

	query := `
		INSERT INTO users (email, username, password_hash, phone, address, governorate, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_admin, created_at, updated_at
	`

	err := s.db.QueryRow(
		ctx, query,
		user.Email,
		user.Username,
		user.Password.hash,
		user.Phone,
		user.Address,
		user.Governorate,
		user.Role,
	).Scan(&user.ID, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "users_email") {
				return ErrDuplicateEmail
			}
			return ErrDuplicateUsername
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (s *UsersStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *UsersStore) getBy(ctx context.Context, column, value string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, email, username, password_hash, phone, address, governorate,
		       avatar_url, is_admin, role, refresh_token, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	var user User
	var refreshToken *string
	err := s.db.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Password.hash,
		&user.Phone,
		&user.Address,
		&user.Governorate,
		&user.AvatarURL,
		&user.IsAdmin,
		&user.Role,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if refreshToken != nil {
		user.RefreshToken = *refreshToken
	}

	return &user, nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, id string, patch map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := "UPDATE users SET updated_at = now()"
	args := []interface{}{}
	argCounter := 1

	for column, value := range patch {
		query += fmt.Sprintf(", %s = $%d", column, argCounter)
		args = append(args, value)
		argCounter++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argCounter)
	args = append(args, id)

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole updates a user's role and admin flag. Admin-only operation,
// enforced at the handler.
func (s *UsersStore) SetRole(ctx context.Context, userID, role string, isAdmin bool) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET role = $1, is_admin = $2, updated_at = now() WHERE id = $3`,
		role, isAdmin, userID,
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetRefreshToken(ctx context.Context, userID, hashedToken string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`,
		hashedToken, userID,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
