package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"souq/internal/catalog"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type CategoriesStore struct {
	db *pgxpool.Pool
}

func (s *CategoriesStore) List(ctx context.Context) ([]catalog.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT id, name, slug, image, color, description, created_at, updated_at
		FROM categories
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []catalog.Category
	for rows.Next() {
		var c catalog.Category
		err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Image, &c.Color,
			&c.Description, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (s *CategoriesStore) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT id, name, slug, image, color, description, created_at, updated_at
		FROM categories
		WHERE id = $1
	`

	var c catalog.Category
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Slug,
		&c.Image, &c.Color, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &c, nil
}

// Create inserts the category. A slug collision surfaces as
// ErrDuplicateSlug so the caller can retry once with a disambiguated slug.
func (s *CategoriesStore) Create(ctx context.Context, category *catalog.Category) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO categories (name, slug, image, color, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(
		ctx, query,
		category.Name,
		category.Slug,
		category.Image,
		category.Color,
		category.Description,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

func (s *CategoriesStore) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := "UPDATE categories SET updated_at = now()"
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
			return ErrDuplicateSlug
		}
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the category and hands back its image URL; the stored
// image object is the caller's to clean up.
func (s *CategoriesStore) Delete(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var image *string
	err := s.db.QueryRow(ctx,
		`DELETE FROM categories WHERE id = $1 RETURNING image`, id,
	).Scan(&image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete category: %w", err)
	}

	if image == nil {
		return "", nil
	}
	return *image, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
