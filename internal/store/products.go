package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"souq/internal/catalog"
)

type ProductsStore struct {
	db *pgxpool.Pool
}

// ListProducts returns every product, newest first, with its associated
// category ids aggregated from the join table. An empty table is an empty
// slice, never an error.
func (s *ProductsStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT p.id, p.name, p.product_code, p.box_quantity, p.piece_price,
		       p.wholesale_price, p.image_url, p.is_new, p.created_at,
		       p.updated_at, p.category_id,
		       COALESCE(array_agg(pc.category_id::text) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN product_categories pc ON pc.product_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.ProductCode,
			&p.BoxQuantity,
			&p.PiecePrice,
			&p.WholesalePrice,
			&p.ImageURL,
			&p.IsNew,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.CategoryID,
			&p.CategoryIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *ProductsStore) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		SELECT p.id, p.name, p.product_code, p.box_quantity, p.piece_price,
		       p.wholesale_price, p.image_url, p.is_new, p.created_at,
		       p.updated_at, p.category_id,
		       COALESCE(array_agg(pc.category_id::text) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
		FROM products p
		LEFT JOIN product_categories pc ON pc.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.id
	`

	var p catalog.Product
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.ProductCode,
		&p.BoxQuantity,
		&p.PiecePrice,
		&p.WholesalePrice,
		&p.ImageURL,
		&p.IsNew,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CategoryID,
		&p.CategoryIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (s *ProductsStore) Create(ctx context.Context, product *catalog.Product) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := `
		INSERT INTO products (name, product_code, box_quantity, piece_price,
		                      wholesale_price, image_url, is_new, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(
		ctx, query,
		product.Name,
		product.ProductCode,
		product.BoxQuantity,
		product.PiecePrice,
		product.WholesalePrice,
		product.ImageURL,
		product.IsNew,
		product.CategoryID,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

// Update patches the given columns. updated_at is always bumped so the
// change feed carries a fresh timestamp.
func (s *ProductsStore) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	query := "UPDATE products SET updated_at = now()"
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
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductsStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCategories replaces the product's category associations.
func (s *ProductsStore) SetCategories(ctx context.Context, productID string, categoryIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback is a no-op once the tx committed.
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear product categories: %w", err)
	}

	for _, categoryID := range categoryIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			productID, categoryID,
		)
		if err != nil {
			return fmt.Errorf("associate category: %w", err)
		}
	}

	return tx.Commit(ctx)
}
